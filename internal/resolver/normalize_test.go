package resolver

import "testing"

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases", "Bakery", "bakery"},
		{"strips diacritics", "café", "cafe"},
		{"folds full-width", "ｃａｆｅ", "cafe"},
		{"collapses whitespace", "  past   perfect\ttense ", "past perfect tense"},
		{"kana passes through", "パン屋", "パン屋"},
		{"mixed accents and case", "Crème BRÛLÉE", "creme brulee"},
		{"empty stays empty", "", ""},
		{"whitespace only", "   \t\n", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Canonicalize(tt.in); got != tt.want {
				t.Errorf("Canonicalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCanonicalizeConverges(t *testing.T) {
	// Surface variants of the same word must land on one key
	variants := []string{"Café", "cafe", "CAFÉ", " café "}
	for _, v := range variants {
		if got := Canonicalize(v); got != "cafe" {
			t.Errorf("Canonicalize(%q) = %q, want %q", v, got, "cafe")
		}
	}
}
