package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"consistentsdb/internal/attrs"
	"consistentsdb/internal/backingstore"
)

// Handler fronts a backingstore.Store with the JSON wire protocol
// internal/backingstore/httpstore speaks as a client — the same shape as
// the teacher's Handler wrapping a store.Store/cluster.Replicator pair,
// narrowed here to the single collaborator this protocol actually needs.
type Handler struct {
	store backingstore.Store
}

// NewHandler creates a Handler fronting store.
func NewHandler(store backingstore.Store) *Handler {
	return &Handler{store: store}
}

// Register mounts all routes on r.
func (h *Handler) Register(r *gin.Engine) {
	v1 := r.Group("/v1/domains")
	v1.GET("", h.ListDomains)
	v1.PUT("/:domain", h.CreateDomain)
	v1.DELETE("/:domain", h.DeleteDomain)
	v1.GET("/:domain", h.GetDomainMetadata)
	v1.POST("/:domain/items:batch", h.BatchPut)
	v1.POST("/:domain/select", h.Select)
	v1.PUT("/:domain/items/:item", h.Put)
	v1.DELETE("/:domain/items/:item", h.DeleteAttrs)
	v1.GET("/:domain/items/:item", h.GetAttrs)
}

// ─── wire shapes ──────────────────────────────────────────────────────────
//
// Mirrors internal/backingstore/httpstore's unexported wire* types
// field-for-field: the two packages never import each other, only agree on
// this JSON shape.

type wireAttrSpec struct {
	Values  []string `json:"values"`
	Replace bool     `json:"replace"`
}

type wirePutRequest struct {
	Attributes map[string]wireAttrSpec `json:"attributes"`
}

type wireBatchPutRequest struct {
	Items map[string]map[string]wireAttrSpec `json:"items"`
}

type wireDeleteRequest struct {
	All        bool                `json:"all"`
	Attributes map[string][]string `json:"attributes,omitempty"`
}

type wireGetResponse struct {
	Attributes map[string][]string `json:"attributes"`
}

type wireRow struct {
	ItemName   string              `json:"item_name"`
	Attributes map[string][]string `json:"attributes,omitempty"`
}

type wireSelectRequest struct {
	Expression string   `json:"expression,omitempty"`
	Projection string   `json:"projection"`
	Attrs      []string `json:"attrs,omitempty"`
	Limit      int      `json:"limit,omitempty"`
	NextToken  string   `json:"next_token,omitempty"`
}

type wireSelectResponse struct {
	Rows      []wireRow `json:"rows"`
	NextToken string    `json:"next_token,omitempty"`
}

type wireDomainMetadata struct {
	ItemCount      int64 `json:"item_count"`
	AttributeCount int64 `json:"attribute_count"`
}

func toAttrMap(m map[string]wireAttrSpec) backingstore.AttrMap {
	out := make(backingstore.AttrMap, len(m))
	for name, spec := range m {
		out[name] = backingstore.AttrSpec{Values: attrs.NewSetFromSlice(spec.Values), Replace: spec.Replace}
	}
	return out
}

func toItemJSON(it attrs.Item) map[string][]string {
	out := make(map[string][]string, len(it))
	for name, set := range it {
		out[name] = set.Values()
	}
	return out
}

// writeErr maps a backingstore sentinel error to the right HTTP status.
func writeErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, backingstore.ErrDomainNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, backingstore.ErrRemoteError), errors.Is(err, backingstore.ErrTransportFailure):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// ─── domain admin ─────────────────────────────────────────────────────────

// ListDomains handles GET /v1/domains
func (h *Handler) ListDomains(c *gin.Context) {
	names, err := h.store.ListDomains(c.Request.Context())
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, names)
}

// CreateDomain handles PUT /v1/domains/:domain
func (h *Handler) CreateDomain(c *gin.Context) {
	if err := h.store.CreateDomain(c.Request.Context(), c.Param("domain")); err != nil {
		writeErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteDomain handles DELETE /v1/domains/:domain
func (h *Handler) DeleteDomain(c *gin.Context) {
	if err := h.store.DeleteDomain(c.Request.Context(), c.Param("domain")); err != nil {
		writeErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetDomainMetadata handles GET /v1/domains/:domain
func (h *Handler) GetDomainMetadata(c *gin.Context) {
	domain := c.Param("domain")
	ok, err := h.store.HasDomain(c.Request.Context(), domain)
	if err != nil {
		writeErr(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "domain not found"})
		return
	}
	meta, err := h.store.GetDomainMetadata(c.Request.Context(), domain)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, wireDomainMetadata{ItemCount: meta.ItemCount, AttributeCount: meta.AttributeCount})
}

// ─── items ────────────────────────────────────────────────────────────────

// Put handles PUT /v1/domains/:domain/items/:item
func (h *Handler) Put(c *gin.Context) {
	var body wirePutRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := h.store.Put(c.Request.Context(), c.Param("domain"), c.Param("item"), toAttrMap(body.Attributes))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// BatchPut handles POST /v1/domains/:domain/items:batch
func (h *Handler) BatchPut(c *gin.Context) {
	var body wireBatchPutRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	items := make(map[string]backingstore.AttrMap, len(body.Items))
	for item, attributes := range body.Items {
		items[item] = toAttrMap(attributes)
	}
	if err := h.store.BatchPut(c.Request.Context(), c.Param("domain"), items); err != nil {
		writeErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteAttrs handles DELETE /v1/domains/:domain/items/:item
func (h *Handler) DeleteAttrs(c *gin.Context) {
	var body wireDeleteRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	spec := backingstore.DeleteSpec{AllAttributes: body.All}
	if body.Attributes != nil {
		spec.Attributes = make(map[string]attrs.Set, len(body.Attributes))
		for name, values := range body.Attributes {
			spec.Attributes[name] = attrs.NewSetFromSlice(values)
		}
	}
	err := h.store.DeleteAttrs(c.Request.Context(), c.Param("domain"), c.Param("item"), spec)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetAttrs handles GET /v1/domains/:domain/items/:item?attr=a&attr=b
func (h *Handler) GetAttrs(c *gin.Context) {
	projection := c.QueryArray("attr")
	it, err := h.store.GetAttrs(c.Request.Context(), c.Param("domain"), c.Param("item"), projection)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, wireGetResponse{Attributes: toItemJSON(it)})
}

// Select handles POST /v1/domains/:domain/select. Each call returns
// exactly one page — the client's cursor paginates by re-posting with the
// returned next_token, per spec §4.4's continuation-token model.
func (h *Handler) Select(c *gin.Context) {
	var body wireSelectRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var projection backingstore.Projection
	switch body.Projection {
	case "item_name":
		projection = backingstore.ProjectionItemName()
	case "count":
		projection = backingstore.ProjectionCount()
	case "all", "":
		projection = backingstore.ProjectionAll()
	case "attrs":
		projection = backingstore.ProjectionAttrs(body.Attrs)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown projection " + strconv.Quote(body.Projection)})
		return
	}

	cur, err := h.store.Select(c.Request.Context(), backingstore.Query{
		Domain:     c.Param("domain"),
		Expression: body.Expression,
		Projection: projection,
		Limit:      body.Limit,
		NextToken:  body.NextToken,
	})
	if err != nil {
		writeErr(c, err)
		return
	}

	rows, next, err := cur.Next(c.Request.Context())
	if err != nil {
		writeErr(c, err)
		return
	}

	wireRows := make([]wireRow, 0, len(rows))
	for _, row := range rows {
		wr := wireRow{ItemName: row.ItemName}
		if row.Attributes != nil {
			wr.Attributes = toItemJSON(row.Attributes)
		}
		wireRows = append(wireRows, wr)
	}
	c.JSON(http.StatusOK, wireSelectResponse{Rows: wireRows, NextToken: next})
}
