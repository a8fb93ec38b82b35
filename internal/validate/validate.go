// Package validate decides whether LLM translation and transliteration
// outputs are acceptable. It is pure: no retries, no I/O.
package validate

import (
	"strings"
	"unicode"

	"github.com/fifosk/ebook-tools-sub003/internal/language"
	"github.com/fifosk/ebook-tools-sub003/internal/textnorm"
)

// Reject reasons double as retry-counter keys, so they are stable strings.
const (
	ReasonPlaceholder     = "Invalid or placeholder translation"
	ReasonTranslitForText = "Transliteration returned instead of translation"
	ReasonTooShort        = "Translation shorter than expected"
	ReasonNoDiacritics    = "Missing required diacritics"
	ReasonWrongScript     = "Unexpected script used"
	ReasonSegmentation    = "Segmentation failure"

	ReasonEmptyTranslit    = "Empty transliteration"
	ReasonNonLatinTranslit = "Non-Latin transliteration received"
)

// Result is Ok or a rejection with a reason code.
type Result struct {
	OK     bool
	Reason string
}

func ok() Result                  { return Result{OK: true} }
func reject(reason string) Result { return Result{Reason: reason} }

// Translation checks a candidate translation of source into target.
// Checks run in a fixed order; the first failure wins.
func Translation(source, candidate string, target language.Language) Result {
	candidate = strings.TrimSpace(candidate)

	if candidate == "" || textnorm.IsPlaceholder(candidate) {
		return reject(ReasonPlaceholder)
	}

	if textnorm.HasNonLatinLetters(source) && target.NonLatinScript() && textnorm.LatinShare(candidate) >= 0.6 {
		return reject(ReasonTranslitForText)
	}

	if r := checkLength(source, candidate); !r.OK {
		return r
	}

	if target.RequiresDiacritics && target.Script != nil {
		// Only meaningful when the expected script actually showed up.
		if textnorm.CountIn(candidate, target.Script.Ranges) > 0 &&
			textnorm.CountIn(candidate, target.Diacritics) == 0 {
			return reject(ReasonNoDiacritics)
		}
	}

	if r := checkScript(candidate, target); !r.OK {
		return r
	}

	if r := checkSegmentation(source, candidate, target); !r.OK {
		return r
	}

	return ok()
}

// Transliteration checks a candidate romanization.
func Transliteration(candidate string) Result {
	if strings.TrimSpace(candidate) == "" {
		return reject(ReasonEmptyTranslit)
	}
	if !textnorm.IsMostlyLatin(candidate) {
		return reject(ReasonNonLatinTranslit)
	}
	return ok()
}

// checkLength rejects suspiciously short translations. Short sources carry
// no signal and are skipped.
func checkLength(source, candidate string) Result {
	srcLetters := textnorm.LetterCount(source)
	if srcLetters <= 12 {
		return ok()
	}
	candLetters := textnorm.LetterCount(candidate)
	if srcLetters >= 80 && candLetters < 15 {
		return reject(ReasonTooShort)
	}
	if srcLetters >= 30 && float64(candLetters)/float64(srcLetters) < 0.28 {
		return reject(ReasonTooShort)
	}
	return ok()
}

func checkScript(candidate string, target language.Language) Result {
	if target.Script == nil {
		return ok()
	}

	totalNonLatin := 0
	for _, r := range candidate {
		if unicode.IsLetter(r) && !unicode.Is(unicode.Latin, r) {
			totalNonLatin++
		}
	}
	if totalNonLatin == 0 {
		return ok()
	}

	expected := textnorm.CountIn(candidate, target.Script.Ranges)
	others := totalNonLatin - expected
	if expected < others {
		// Dominant non-Latin script is not the expected one.
		return reject(ReasonWrongScript)
	}
	if float64(expected)/float64(totalNonLatin) < 0.85 {
		return reject(ReasonWrongScript)
	}
	allowed := int(float64(expected) * 0.10)
	if allowed < 2 {
		allowed = 2
	}
	if others > allowed {
		return reject(ReasonWrongScript)
	}
	return ok()
}

// checkSegmentation applies only to languages written without spaces where
// the model was asked to insert word boundaries.
func checkSegmentation(source, candidate string, target language.Language) Result {
	if !target.SegmentationRequired {
		return ok()
	}
	srcWords := textnorm.WordCount(source)
	if srcWords <= 1 {
		return ok()
	}
	khmer := target.Code == "km"

	tokens := strings.Fields(candidate)
	if len(tokens) <= 1 {
		return reject(ReasonSegmentation)
	}

	if khmer {
		short := 0
		for _, tok := range tokens {
			if len([]rune(tok)) <= 2 {
				short++
			}
		}
		if float64(short)/float64(len(tokens)) > 0.10 {
			return reject(ReasonSegmentation)
		}
	}

	required := int(float64(srcWords) * 0.6)
	minRequired := 4
	if khmer {
		minRequired = 2
	}
	if required < minRequired {
		required = minRequired
	}
	if len(tokens) < required {
		return reject(ReasonSegmentation)
	}

	maxAllowed := srcWords * 4
	if khmer {
		if alt := required + 1; 2*srcWords > alt {
			maxAllowed = 2 * srcWords
		} else {
			maxAllowed = required + 1
		}
	}
	if len(tokens) > maxAllowed {
		return reject(ReasonSegmentation)
	}
	return ok()
}
