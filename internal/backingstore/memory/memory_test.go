package memory

import (
	"context"
	"testing"
	"time"

	"consistentsdb/internal/attrs"
	"consistentsdb/internal/backingstore"
)

func mustSet(values ...string) attrs.Set {
	return attrs.NewSetFromSlice(values)
}

func putAttrs(values map[string][]string, replace bool) backingstore.AttrMap {
	m := make(backingstore.AttrMap, len(values))
	for k, v := range values {
		m[k] = backingstore.AttrSpec{Values: mustSet(v...), Replace: replace}
	}
	return m
}

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.CreateDomain(ctx, "d"); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, "d", "i", putAttrs(map[string][]string{"a": {"1", "2"}}, true)); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetAttrs(ctx, "d", "i", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !got["a"].Equal(mustSet("1", "2")) {
		t.Fatalf("got %v", got)
	}
}

func TestPutToMissingDomainErrors(t *testing.T) {
	s := New()
	err := s.Put(context.Background(), "nope", "i", putAttrs(map[string][]string{"a": {"1"}}, true))
	if err == nil {
		t.Fatal("expected error for missing domain")
	}
}

func TestGetMissingItemReturnsEmpty(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.CreateDomain(ctx, "d"); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetAttrs(ctx, "d", "ghost", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty item, got %v", got)
	}
}

func TestDeleteAttrsWholeItem(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.CreateDomain(ctx, "d")
	_ = s.Put(ctx, "d", "i", putAttrs(map[string][]string{"a": {"1"}}, true))

	if err := s.DeleteAttrs(ctx, "d", "i", backingstore.DeleteSpec{AllAttributes: true}); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetAttrs(ctx, "d", "i", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("expected item cleared, got %v", got)
	}
}

func TestReplicaLagDelaysVisibility(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := func() time.Time { return clock }
	s := NewWithClock(now, time.Second)
	_ = s.CreateDomain(ctx, "d")

	if err := s.Put(ctx, "d", "i", putAttrs(map[string][]string{"a": {"1"}}, true)); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetAttrs(ctx, "d", "i", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("write must not be visible before lag elapses, got %v", got)
	}

	clock = clock.Add(2 * time.Second)
	got, err = s.GetAttrs(ctx, "d", "i", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !got["a"].Equal(mustSet("1")) {
		t.Fatalf("write must be visible after lag elapses, got %v", got)
	}
}

func TestReplicaLagOrdersMultipleWritesOnSameItem(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := func() time.Time { return clock }
	s := NewWithClock(now, time.Second)
	_ = s.CreateDomain(ctx, "d")

	_ = s.Put(ctx, "d", "i", putAttrs(map[string][]string{"a": {"1"}}, true))
	clock = clock.Add(500 * time.Millisecond)
	_ = s.Put(ctx, "d", "i", putAttrs(map[string][]string{"a": {"2"}}, true))

	clock = clock.Add(600 * time.Millisecond) // first write visible, second not yet
	got, err := s.GetAttrs(ctx, "d", "i", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !got["a"].Equal(mustSet("1")) {
		t.Fatalf("only the first write should be visible yet, got %v", got)
	}

	clock = clock.Add(time.Second)
	got, err = s.GetAttrs(ctx, "d", "i", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !got["a"].Equal(mustSet("2")) {
		t.Fatalf("second write should now be visible, got %v", got)
	}
}

func TestSelectProjectionsAndPagination(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.CreateDomain(ctx, "d")
	for _, item := range []string{"a", "b", "c"} {
		_ = s.Put(ctx, "d", item, putAttrs(map[string][]string{"x": {"1"}}, true))
	}

	cur, err := s.Select(ctx, backingstore.Query{Domain: "d", Projection: backingstore.ProjectionItemName(), Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	page1, token, err := cur.Next(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(page1) != 2 || token == "" {
		t.Fatalf("expected a 2-row page with a continuation token, got %d rows token=%q", len(page1), token)
	}

	cur2, err := s.Select(ctx, backingstore.Query{Domain: "d", Projection: backingstore.ProjectionItemName(), Limit: 2, NextToken: token})
	if err != nil {
		t.Fatal(err)
	}
	page2, token2, err := cur2.Next(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(page2) != 1 || token2 != "" {
		t.Fatalf("expected final 1-row page with no further token, got %d rows token=%q", len(page2), token2)
	}
}

func TestSelectCountProjection(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.CreateDomain(ctx, "d")
	for _, item := range []string{"a", "b", "c"} {
		_ = s.Put(ctx, "d", item, putAttrs(map[string][]string{"x": {"1"}}, true))
	}

	cur, err := s.Select(ctx, backingstore.Query{Domain: "d", Projection: backingstore.ProjectionCount()})
	if err != nil {
		t.Fatal(err)
	}
	rows, _, err := cur.Next(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || !rows[0].Attributes["count"].Equal(mustSet("3")) {
		t.Fatalf("expected a single count row of 3, got %v", rows)
	}
}

func TestDomainAdminLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()
	if ok, _ := s.HasDomain(ctx, "d"); ok {
		t.Fatal("domain should not exist yet")
	}
	if err := s.CreateDomain(ctx, "d"); err != nil {
		t.Fatal(err)
	}
	if ok, err := s.HasDomain(ctx, "d"); err != nil || !ok {
		t.Fatalf("expected domain to exist, ok=%v err=%v", ok, err)
	}
	names, err := s.ListDomains(ctx)
	if err != nil || len(names) != 1 || names[0] != "d" {
		t.Fatalf("got %v, %v", names, err)
	}
	if err := s.DeleteDomain(ctx, "d"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.HasDomain(ctx, "d"); ok {
		t.Fatal("domain should be gone")
	}
}

func TestDomainMetadataCounts(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.CreateDomain(ctx, "d")
	_ = s.Put(ctx, "d", "i1", putAttrs(map[string][]string{"a": {"1"}, "b": {"2"}}, true))
	_ = s.Put(ctx, "d", "i2", putAttrs(map[string][]string{"a": {"3"}}, true))

	meta, err := s.GetDomainMetadata(ctx, "d")
	if err != nil {
		t.Fatal(err)
	}
	if meta.ItemCount != 2 || meta.AttributeCount != 3 {
		t.Fatalf("got %+v", meta)
	}
}
