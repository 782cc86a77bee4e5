// Package httpstore implements backingstore.Store over a small JSON/HTTP
// protocol, grounded on the teacher's internal/client (a hand-rolled SDK
// wrapping net/http + encoding/json behind a clean Go API) and on
// internal/cluster/replicator.go's sendReplicateRequest (exponential
// backoff with a capped retry count, to avoid a thundering herd against a
// server that is briefly overloaded).
//
// This is a demonstration transport, not a SimpleDB client: spec §1 puts
// SimpleDB's actual wire format (request signing, XML) out of scope, so
// this speaks its own minimal JSON protocol instead — the same shape
// cmd/consistentsdbd serves.
//
// Per spec §5 ("one persistent connection... one in-flight request at a
// time"), every call serializes through reqMu: this Store issues at most
// one HTTP request at a time, queuing the rest, rather than opening
// connections per-request the way net/http's default transport would.
package httpstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"consistentsdb/internal/attrs"
	"consistentsdb/internal/backingstore"
)

// Store is an HTTP/JSON backingstore.Store talking to one consistentsdbd
// instance.
type Store struct {
	baseURL     string
	httpClient  *http.Client
	retryDelays []time.Duration

	reqMu sync.Mutex // one in-flight request at a time, per spec §5
}

// Option configures a Store at construction time.
type Option func(*Store)

// WithRetryDelays overrides the default exponential-backoff schedule used
// when a request fails with a transport error.
func WithRetryDelays(delays []time.Duration) Option {
	return func(s *Store) { s.retryDelays = delays }
}

// New returns a Store talking to baseURL (e.g. "http://localhost:8080"),
// timing out any single request after timeout.
func New(baseURL string, timeout time.Duration, opts ...Option) *Store {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	s := &Store{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		retryDelays: []time.Duration{
			100 * time.Millisecond,
			200 * time.Millisecond,
			400 * time.Millisecond,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// wire protocol types — the JSON shape this Store and cmd/consistentsdbd
// agree on. Internal, never exported: callers only see backingstore types.

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
	Projection string   `json:"projection"` // "all" | "item_name" | "count" | "attrs"
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

type wireErrorBody struct {
	Error string `json:"error"`
}

func toWireAttrMap(m backingstore.AttrMap) map[string]wireAttrSpec {
	out := make(map[string]wireAttrSpec, len(m))
	for name, spec := range m {
		out[name] = wireAttrSpec{Values: spec.Values.Values(), Replace: spec.Replace}
	}
	return out
}

func fromWireItem(values map[string][]string) attrs.Item {
	it := attrs.NewItem()
	for name, vals := range values {
		it[name] = attrs.NewSetFromSlice(vals)
	}
	return it
}

// do sends req, retrying on transport failure per the configured backoff
// schedule, and serializing all calls through reqMu. A non-2xx response is
// never retried — it is a remote error, not a transport failure — and is
// returned as-is; doJSON maps it to backingstore.ErrDomainNotFound (404) or
// backingstore.ErrRemoteError (any other non-2xx status).
func (s *Store) do(req *http.Request) (*http.Response, error) {
	s.reqMu.Lock()
	defer s.reqMu.Unlock()

	var lastErr error
	attempts := len(s.retryDelays) + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-req.Context().Done():
				return nil, fmt.Errorf("%w: %v", backingstore.ErrTransportFailure, req.Context().Err())
			case <-time.After(s.retryDelays[attempt-1]):
			}
			// The previous attempt already drained req.Body; rebuild it from
			// GetBody (populated by http.NewRequestWithContext for the
			// bytes.Reader bodies doJSON constructs) so a retried Put/Delete/
			// Select does not send an empty body.
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, fmt.Errorf("%w: rebuild request body: %v", backingstore.ErrTransportFailure, err)
				}
				req.Body = body
			}
		}

		resp, err := s.httpClient.Do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: %v", backingstore.ErrTransportFailure, lastErr)
}

func (s *Store) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("httpstore: encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%w: %v", backingstore.ErrTransportFailure, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", backingstore.ErrDomainNotFound, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		var wireErr wireErrorBody
		_ = json.Unmarshal(data, &wireErr)
		msg := wireErr.Error
		if msg == "" {
			msg = string(data)
		}
		return fmt.Errorf("%w: HTTP %d: %s", backingstore.ErrRemoteError, resp.StatusCode, msg)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Put implements backingstore.Store.
func (s *Store) Put(ctx context.Context, domain, item string, attributes backingstore.AttrMap) error {
	path := fmt.Sprintf("/v1/domains/%s/items/%s", domain, item)
	return s.doJSON(ctx, http.MethodPut, path, wirePutRequest{Attributes: toWireAttrMap(attributes)}, nil)
}

// BatchPut implements backingstore.Store.
func (s *Store) BatchPut(ctx context.Context, domain string, items map[string]backingstore.AttrMap) error {
	wireItems := make(map[string]map[string]wireAttrSpec, len(items))
	for item, attributes := range items {
		wireItems[item] = toWireAttrMap(attributes)
	}
	path := fmt.Sprintf("/v1/domains/%s/items:batch", domain)
	return s.doJSON(ctx, http.MethodPost, path, wireBatchPutRequest{Items: wireItems}, nil)
}

// DeleteAttrs implements backingstore.Store.
func (s *Store) DeleteAttrs(ctx context.Context, domain, item string, spec backingstore.DeleteSpec) error {
	body := wireDeleteRequest{All: spec.AllAttributes}
	if spec.Attributes != nil {
		body.Attributes = make(map[string][]string, len(spec.Attributes))
		for name, values := range spec.Attributes {
			body.Attributes[name] = values.Values()
		}
	}
	path := fmt.Sprintf("/v1/domains/%s/items/%s", domain, item)
	return s.doJSON(ctx, http.MethodDelete, path, body, nil)
}

// GetAttrs implements backingstore.Store.
func (s *Store) GetAttrs(ctx context.Context, domain, item string, projection []string) (attrs.Item, error) {
	path := fmt.Sprintf("/v1/domains/%s/items/%s", domain, item)
	if len(projection) > 0 {
		params := make([]string, len(projection))
		for i, name := range projection {
			params[i] = "attr=" + name
		}
		path += "?" + strings.Join(params, "&")
	}
	var resp wireGetResponse
	if err := s.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return fromWireItem(resp.Attributes), nil
}

// CreateDomain implements backingstore.Store.
func (s *Store) CreateDomain(ctx context.Context, domain string) error {
	return s.doJSON(ctx, http.MethodPut, "/v1/domains/"+domain, nil, nil)
}

// DeleteDomain implements backingstore.Store.
func (s *Store) DeleteDomain(ctx context.Context, domain string) error {
	return s.doJSON(ctx, http.MethodDelete, "/v1/domains/"+domain, nil, nil)
}

// ListDomains implements backingstore.Store.
func (s *Store) ListDomains(ctx context.Context) ([]string, error) {
	var names []string
	if err := s.doJSON(ctx, http.MethodGet, "/v1/domains", nil, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// HasDomain implements backingstore.Store.
func (s *Store) HasDomain(ctx context.Context, domain string) (bool, error) {
	var meta wireDomainMetadata
	err := s.doJSON(ctx, http.MethodGet, "/v1/domains/"+domain, nil, &meta)
	if err != nil {
		if errors.Is(err, backingstore.ErrDomainNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GetDomainMetadata implements backingstore.Store.
func (s *Store) GetDomainMetadata(ctx context.Context, domain string) (backingstore.DomainMetadata, error) {
	var meta wireDomainMetadata
	if err := s.doJSON(ctx, http.MethodGet, "/v1/domains/"+domain, nil, &meta); err != nil {
		return backingstore.DomainMetadata{}, err
	}
	return backingstore.DomainMetadata{ItemCount: meta.ItemCount, AttributeCount: meta.AttributeCount}, nil
}

// Select implements backingstore.Store.
func (s *Store) Select(ctx context.Context, q backingstore.Query) (backingstore.SelectCursor, error) {
	return &cursor{store: s, domain: q.Domain, expression: q.Expression, projection: q.Projection, limit: q.Limit, nextToken: q.NextToken, first: true}, nil
}

// cursor paginates a Select by re-issuing the select request with each
// returned next_token, matching spec §4.4's continuation-token model.
type cursor struct {
	store      *Store
	domain     string
	expression string
	projection backingstore.Projection
	limit      int
	nextToken  string
	first      bool
}

func (c *cursor) Next(ctx context.Context) ([]backingstore.Row, string, error) {
	if !c.first && c.nextToken == "" {
		return nil, "", nil
	}
	c.first = false

	req := wireSelectRequest{
		Expression: c.expression,
		Limit:      c.limit,
		NextToken:  c.nextToken,
	}
	switch {
	case c.projection.IsItemName():
		req.Projection = "item_name"
	case c.projection.IsCount():
		req.Projection = "count"
	case c.projection.IsAll():
		req.Projection = "all"
	default:
		req.Projection = "attrs"
		req.Attrs = c.projection.Attrs()
	}

	var resp wireSelectResponse
	path := fmt.Sprintf("/v1/domains/%s/select", c.domain)
	if err := c.store.doJSON(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, "", err
	}

	rows := make([]backingstore.Row, 0, len(resp.Rows))
	for _, r := range resp.Rows {
		row := backingstore.Row{ItemName: r.ItemName}
		if r.Attributes != nil {
			row.Attributes = fromWireItem(r.Attributes)
		}
		rows = append(rows, row)
	}
	c.nextToken = resp.NextToken
	return rows, resp.NextToken, nil
}
