package provider

import (
	"context"
	"testing"
)

type stubSource struct {
	name     Name
	category Category
	tags     []Tag
	err      error
	calls    int
}

func (s *stubSource) Name() Name         { return s.name }
func (s *stubSource) Category() Category { return s.category }
func (s *stubSource) FetchTags(_ context.Context, _ string) ([]Tag, error) {
	s.calls++
	return s.tags, s.err
}

func TestRegistry_StableOrder(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubSource{name: NameCatalog, category: CategoryDatabase})
	reg.Register(&stubSource{name: "zeta", category: CategoryCommunity})
	reg.Register(&stubSource{name: NameLastFM, category: CategoryCommunity})
	reg.Register(&stubSource{name: NameSpotify, category: CategoryAlgorithmic})
	reg.Register(&stubSource{name: "alpha", category: CategoryCommunity})

	var got []Name
	for _, s := range reg.All() {
		got = append(got, s.Name())
	}
	want := []Name{NameSpotify, NameLastFM, NameCatalog, "alpha", "zeta"}
	if len(got) != len(want) {
		t.Fatalf("All() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("All()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestRegistry_ByCategory(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubSource{name: NameLastFM, category: CategoryCommunity})

	if s := reg.ByCategory(CategoryCommunity); s == nil || s.Name() != NameLastFM {
		t.Errorf("ByCategory(community) = %v, want lastfm", s)
	}
	if s := reg.ByCategory(CategoryIndustry); s != nil {
		t.Errorf("ByCategory(industry) = %v, want nil", s)
	}
	if s := reg.Get("nonexistent"); s != nil {
		t.Errorf("Get(nonexistent) = %v, want nil", s)
	}
}
