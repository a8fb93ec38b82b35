package validate

import (
	"strings"
	"testing"

	"github.com/fifosk/ebook-tools-sub003/internal/language"
)

func lang(t *testing.T, code string) language.Language {
	t.Helper()
	l, ok := language.Get(code)
	if !ok {
		t.Fatalf("unknown language %q", code)
	}
	return l
}

func TestTranslationPlaceholder(t *testing.T) {
	fr := lang(t, "fr")

	if r := Translation("Hello.", "", fr); r.OK || r.Reason != ReasonPlaceholder {
		t.Errorf("empty candidate: %+v", r)
	}
	if r := Translation("Hello.", "I cannot translate this.", fr); r.OK || r.Reason != ReasonPlaceholder {
		t.Errorf("refusal: %+v", r)
	}
	if r := Translation("Hello.", "Bonjour.", fr); !r.OK {
		t.Errorf("valid candidate rejected: %+v", r)
	}
}

func TestTranslationTranslitInstead(t *testing.T) {
	ar := lang(t, "ar")

	// Arabic source, Arabic target, Latin-only candidate.
	r := Translation("مرحبا بالعالم", "marhaban bialealam", ar)
	if r.OK || r.Reason != ReasonTranslitForText {
		t.Errorf("latin candidate for arabic target: %+v", r)
	}

	// Latin source never triggers this check.
	fr := lang(t, "fr")
	if r := Translation("Hello world", "Bonjour le monde", fr); !r.OK {
		t.Errorf("latin-to-latin rejected: %+v", r)
	}
}

func TestTranslationTooShort(t *testing.T) {
	fr := lang(t, "fr")
	longSource := strings.Repeat("sentence with many letters ", 4) // ~96 letters

	if r := Translation(longSource, "Oui.", fr); r.OK || r.Reason != ReasonTooShort {
		t.Errorf("4-letter candidate for 96-letter source: %+v", r)
	}

	// Sources with <=12 letters are exempt.
	if r := Translation("Hi there.", "Ok.", fr); !r.OK {
		t.Errorf("short source rejected: %+v", r)
	}

	// Ratio check: 30+ letters, candidate under 28%.
	midSource := "this source sentence has thirtyfive letters"
	if r := Translation(midSource, "petit", fr); r.OK || r.Reason != ReasonTooShort {
		t.Errorf("ratio check: %+v", r)
	}
}

func TestTranslationDiacritics(t *testing.T) {
	ar := lang(t, "ar")

	// Bare Arabic without tashkil.
	r := Translation("Hello world, how are you today my friend", "مرحبا بالعالم كيف حالك اليوم يا صديقي", ar)
	if r.OK || r.Reason != ReasonNoDiacritics {
		t.Errorf("bare arabic: %+v", r)
	}

	// With a fatha present the check passes.
	r = Translation("Hello world, how are you today my friend", "مَرحبا بالعالم كيف حالك اليوم يا صديقي", ar)
	if !r.OK {
		t.Errorf("vocalized arabic rejected: %+v", r)
	}
}

func TestTranslationWrongScript(t *testing.T) {
	kn := lang(t, "kn")

	// Devanagari answer for a Kannada target.
	r := Translation("Hello world, nice to meet you", "नमस्ते दुनिया आपसे मिलकर अच्छा लगा", kn)
	if r.OK || r.Reason != ReasonWrongScript {
		t.Errorf("devanagari for kannada: %+v", r)
	}

	// Kannada answer passes.
	r = Translation("Hello world, nice to meet you", "ಹಲೋ ವರ್ಲ್ಡ್ ನಿಮ್ಮನ್ನು ಭೇಟಿಯಾಗಿ ಸಂತೋಷವಾಯಿತು", kn)
	if !r.OK {
		t.Errorf("kannada rejected: %+v", r)
	}
}

func TestTranslationSegmentation(t *testing.T) {
	th := lang(t, "th")

	// Unsegmented Thai blob for a multi-word source.
	r := Translation("hello world how are you doing today", "สวัสดีชาวโลกวันนี้เป็นอย่างไรบ้าง", th)
	if r.OK || r.Reason != ReasonSegmentation {
		t.Errorf("unsegmented thai: %+v", r)
	}

	// Properly spaced Thai passes.
	r = Translation("hello world how are you doing today", "สวัสดี ชาว โลก วันนี้ เป็น อย่างไร บ้าง", th)
	if !r.OK {
		t.Errorf("segmented thai rejected: %+v", r)
	}

	// Single-word sources are exempt.
	if r := Translation("Hello", "สวัสดี", th); !r.OK {
		t.Errorf("single word source: %+v", r)
	}

	// Token explosion beyond 4x source words.
	exploded := strings.Repeat("คำ ", 40)
	if r := Translation("three word source", exploded, th); r.OK || r.Reason != ReasonSegmentation {
		t.Errorf("token explosion: %+v", r)
	}
}

func TestTransliteration(t *testing.T) {
	if r := Transliteration(""); r.OK || r.Reason != ReasonEmptyTranslit {
		t.Errorf("empty: %+v", r)
	}
	if r := Transliteration("мир мир мир"); r.OK || r.Reason != ReasonNonLatinTranslit {
		t.Errorf("cyrillic: %+v", r)
	}
	if r := Transliteration("konnichiwa sekai"); !r.OK {
		t.Errorf("valid romaji rejected: %+v", r)
	}
}
