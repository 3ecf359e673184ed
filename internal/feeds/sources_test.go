package feeds

import "testing"

func TestSourcesByName(t *testing.T) {
	if got := SourcesByName(nil); got != nil {
		t.Errorf("no names should return nil (full catalog), got %d sources", len(got))
	}

	got := SourcesByName([]string{"bloomberg markets", " CNBC Markets ", "No Such Feed"})
	if len(got) != 2 {
		t.Fatalf("got %d sources, want 2 (unknown names ignored)", len(got))
	}
	if got[0].Name != "Bloomberg Markets" || got[1].Name != "CNBC Markets" {
		t.Errorf("selection = %q, %q; want catalog order Bloomberg then CNBC", got[0].Name, got[1].Name)
	}
}

func TestRegistryOverridesRestrictCatalog(t *testing.T) {
	r := NewRegistry(SourcesByName([]string{"Bloomberg Markets"}))

	if tier := r.NewsTier("Bloomberg Markets"); tier != 1 {
		t.Errorf("NewsTier(Bloomberg) = %d, want 1", tier)
	}
	if tier := r.NewsTier("CNBC Markets"); tier != 0 {
		t.Errorf("excluded source tier = %d, want 0", tier)
	}
	if got := r.Layer(2); len(got) != 0 {
		t.Errorf("layer 2 has %d sources under the override, want 0", len(got))
	}
	if q := r.Quality("Bloomberg Markets"); q != 1.0 {
		t.Errorf("Quality(Bloomberg) = %v, want 1.0", q)
	}
}
