package persona

import "testing"

func TestMemoryStoreFindByID(t *testing.T) {
	store := NewMemoryStore(Seed())

	p, ok := store.FindByID("gunnu")
	if !ok {
		t.Fatal("expected seeded persona gunnu")
	}
	if p.SystemPrompt == "" || p.SelfieTemplate == "" {
		t.Fatal("seeded persona is missing prompts")
	}
	if _, ok := store.FindByID("missing"); ok {
		t.Fatal("expected lookup miss")
	}
}

func TestMemoryStoreListReturnsCopy(t *testing.T) {
	store := NewMemoryStore(Seed())
	items := store.List()
	items[0].Name = "changed"

	if got := store.List()[0].Name; got != "Gunnu" {
		t.Fatalf("store mutated through List: %s", got)
	}
}

func TestMemoryStoreNormalizesIDs(t *testing.T) {
	seeds := append(Seed(), Persona{ID: "GUNNU", Name: "Duplicate"}, Persona{ID: "  "})
	store := NewMemoryStore(seeds)

	if got := len(store.List()); got != 1 {
		t.Fatalf("expected duplicates and blank ids dropped, got %d personas", got)
	}
	p, ok := store.FindByID(" Gunnu ")
	if !ok || p.Name != "Gunnu" {
		t.Fatalf("expected case-insensitive lookup, got %+v %t", p, ok)
	}

	p.QuickReplies[0] = "changed"
	if again, _ := store.FindByID("gunnu"); again.QuickReplies[0] == "changed" {
		t.Fatal("quick replies shared with caller")
	}
}
