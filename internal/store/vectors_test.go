package store

import (
	"context"
	"testing"
)

func TestVectorKeywordFallback(t *testing.T) {
	s := openTestStore(t)
	v := s.Vectors()
	if v.HasEngine() {
		t.Fatal("fresh index should have no engine")
	}

	ctx := context.Background()
	entries := []struct {
		id, content string
		meta        VectorMeta
	}{
		{"i1", "espresso machines are getting absurdly expensive",
			VectorMeta{Tier: TierShortTerm, Strength: 0.8, Topic: "coffee"}},
		{"i2", "retro console prices keep climbing",
			VectorMeta{Tier: TierShortTerm, Strength: 0.7, Topic: "retro gaming"}},
		{"i3", "weak memory about espresso",
			VectorMeta{Tier: TierEphemeral, Strength: 0.1, Topic: "coffee"}},
	}
	for _, e := range entries {
		if err := v.Add(ctx, KindInspiration, e.id, e.content, e.meta); err != nil {
			t.Fatalf("Add %s: %v", e.id, err)
		}
	}

	hits, err := v.Search(ctx, KindInspiration, "espresso", VectorFilter{
		MinStrength: 0.3,
		Tiers:       []Tier{TierShortTerm, TierLongTerm},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].EntityID != "i1" {
		t.Fatalf("hits = %+v, want only i1", hits)
	}
	if hits[0].Distance > 0.3 {
		t.Errorf("keyword match distance = %v, want <= 0.3", hits[0].Distance)
	}
}

func TestVectorMetaUpdateAndDelete(t *testing.T) {
	s := openTestStore(t)
	v := s.Vectors()
	ctx := context.Background()

	if err := v.Add(ctx, KindInspiration, "i1", "something about tea",
		VectorMeta{Tier: TierEphemeral, Strength: 0.5, Topic: "tea"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := v.UpdateMetaBatch(KindInspiration, map[string]VectorMeta{
		"i1": {Tier: TierShortTerm, Strength: 0.6, Topic: "tea", ReinforcementCount: 3},
	}); err != nil {
		t.Fatalf("UpdateMetaBatch: %v", err)
	}

	hits, err := v.Search(ctx, KindInspiration, "tea", VectorFilter{
		Tiers: []Tier{TierShortTerm},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].Meta.ReinforcementCount != 3 {
		t.Fatalf("hits after meta update = %+v", hits)
	}

	if err := v.DeleteBatch(KindInspiration, []string{"i1"}); err != nil {
		t.Fatalf("DeleteBatch: %v", err)
	}
	hits, err = v.Search(ctx, KindInspiration, "tea", VectorFilter{})
	if err != nil {
		t.Fatalf("Search after delete: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("deleted entry still found: %+v", hits)
	}
}

func TestVectorAddIsUpsert(t *testing.T) {
	s := openTestStore(t)
	v := s.Vectors()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := v.Add(ctx, KindInspiration, "i1", "same entity twice",
			VectorMeta{Tier: TierEphemeral, Strength: 0.5}); err != nil {
			t.Fatalf("Add #%d: %v", i, err)
		}
	}
	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats["vectors"] != 1 {
		t.Errorf("vectors rows = %d, want 1", stats["vectors"])
	}
}
