package marker

import (
	"testing"

	"consistentsdb/internal/attrs"
	"consistentsdb/internal/timestamp"
)

func TestAttributeNameIsPerServer(t *testing.T) {
	a := AttributeName("server-a")
	b := AttributeName("server-b")
	if a == b {
		t.Fatal("distinct server IDs must produce distinct marker attribute names")
	}
	if !IsMarker(a) || !IsMarker(b) {
		t.Fatal("AttributeName output must be recognized by IsMarker")
	}
}

func TestExtractPresentMarker(t *testing.T) {
	ts := timestamp.Now()
	item := attrs.Item{AttributeName("s1"): func() attrs.Set {
		s := attrs.EmptySet()
		s.Add(ts.String())
		return s
	}()}

	got, ok := Extract(item, "s1")
	if !ok {
		t.Fatal("expected marker to be found")
	}
	if got.String() != ts.String() {
		t.Fatalf("got %s want %s", got, ts)
	}
	if _, present := item[AttributeName("s1")]; present {
		t.Fatal("Extract must strip the marker from item")
	}
}

func TestExtractAbsentMarker(t *testing.T) {
	item := attrs.Item{"other": attrs.NewSetFromSlice([]string{"v"})}
	_, ok := Extract(item, "s1")
	if ok {
		t.Fatal("expected no marker to be found")
	}
}

func TestExtractEmptyMarkerTreatedAsAbsent(t *testing.T) {
	item := attrs.Item{AttributeName("s1"): attrs.EmptySet()}
	_, ok := Extract(item, "s1")
	if ok {
		t.Fatal("an empty marker set must be treated as absent")
	}
}

func TestStripAllRemovesEveryServersMarker(t *testing.T) {
	item := attrs.Item{
		AttributeName("s1"): attrs.NewSetFromSlice([]string{"a"}),
		AttributeName("s2"): attrs.NewSetFromSlice([]string{"b"}),
		"normal":            attrs.NewSetFromSlice([]string{"c"}),
	}
	StripAll(item)
	if len(item) != 1 {
		t.Fatalf("expected only the non-marker attribute to survive, got %v", item)
	}
}
