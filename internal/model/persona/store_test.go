package persona

import "testing"

func TestMemoryStoreKeepsOrderAndFirstDuplicate(t *testing.T) {
	store := NewMemoryStore([]Persona{
		{ID: "b", Name: "first b"},
		{ID: "  a "},
		{ID: ""},
		{ID: "b", Name: "second b"},
	})

	list := store.List()
	if len(list) != 2 || list[0].ID != "b" || list[1].ID != "a" {
		t.Fatalf("unexpected list: %+v", list)
	}
	p, ok := store.FindByID("b")
	if !ok || p.Name != "first b" {
		t.Fatalf("expected first duplicate to win, got %+v", p)
	}
	if _, ok := store.FindByID(" a"); !ok {
		t.Fatalf("expected trimmed lookup to succeed")
	}
	if _, ok := store.FindByID("missing"); ok {
		t.Fatalf("expected missing persona")
	}
}

func TestSeedLocalesAreSupported(t *testing.T) {
	for _, p := range Seed() {
		if p.Locale != LocaleEnglish && p.Locale != LocaleChinese {
			t.Fatalf("persona %s has unsupported locale %q", p.ID, p.Locale)
		}
		if p.VoiceID == "" {
			t.Fatalf("persona %s has no voice", p.ID)
		}
	}
}
