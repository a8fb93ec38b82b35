package language

import (
	"testing"
	"unicode"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		input string
		code  string
		ok    bool
	}{
		{"ja", "ja", true},
		{"Japanese", "ja", true},
		{"japanese", "ja", true},
		{"en-orig", "en", true},
		{"iw", "he", true},
		{"pt-BR", "pt", true},
		{"zh-Hant", "zh", true},
		{"Arabic", "ar", true},
		{"", "", false},
		{"klingon", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			lang, ok := Resolve(tt.input)
			if ok != tt.ok {
				t.Fatalf("Resolve(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if ok && lang.Code != tt.code {
				t.Errorf("Resolve(%q) = %q, want %q", tt.input, lang.Code, tt.code)
			}
		})
	}
}

func TestDescriptor(t *testing.T) {
	fr, _ := Get("fr")
	if got := fr.Descriptor(); got != "French (fr)" {
		t.Errorf("Descriptor() = %q", got)
	}
}

func TestScriptPolicies(t *testing.T) {
	ar, _ := Get("ar")
	if ar.Script == nil || ar.Script.Name != "Arabic" {
		t.Fatal("Arabic must carry a script policy")
	}
	if !ar.RequiresDiacritics {
		t.Error("Arabic must require diacritics")
	}
	if !unicode.Is(ar.Diacritics, 'َ') { // fatha
		t.Error("fatha must match the Arabic diacritic range")
	}
	if unicode.Is(ar.Diacritics, 'a') {
		t.Error("latin letter must not match the diacritic range")
	}

	he, _ := Get("he")
	if !unicode.Is(he.Diacritics, 'ִ') { // hiriq
		t.Error("hiriq must match the Hebrew diacritic range")
	}

	en, _ := Get("en")
	if en.NonLatinScript() {
		t.Error("English must not have a script policy")
	}
}

func TestSegmentationLanguages(t *testing.T) {
	for _, code := range []string{"th", "km", "my", "ja", "ko", "zh"} {
		lang, ok := Get(code)
		if !ok || !lang.SegmentationRequired {
			t.Errorf("%s should require segmentation", code)
		}
	}
	fr, _ := Get("fr")
	if fr.SegmentationRequired {
		t.Error("fr should not require segmentation")
	}
}

func TestSupportedSorted(t *testing.T) {
	entries := Supported()
	if len(entries) != len(Languages) {
		t.Fatalf("Supported() len = %d, want %d", len(entries), len(Languages))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i-1].Name > entries[i].Name {
			t.Fatalf("entries not sorted at %d: %q > %q", i, entries[i-1].Name, entries[i].Name)
		}
	}
}
