package language

import (
	"strings"

	xlang "golang.org/x/text/language"
)

// pseudoSuffixes appear on codes coming from subtitle tracks and job
// payloads ("en-orig", "ja-forced"). They carry no language information.
var pseudoSuffixes = []string{"-orig", "-auto", "-forced", "-sdh", "-dub"}

// legacy code aliases.
var codeAliases = map[string]string{
	"iw":  "he",
	"in":  "id",
	"tl":  "fil",
	"nb":  "no",
	"nn":  "no",
	"cmn": "zh",
}

// StripPseudoSuffix removes a known pseudo suffix from a code, if present.
func StripPseudoSuffix(code string) string {
	lower := strings.ToLower(strings.TrimSpace(code))
	for _, suffix := range pseudoSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return strings.TrimSuffix(lower, suffix)
		}
	}
	return lower
}

// Resolve accepts a language name ("Japanese"), a code ("ja"), or a
// pseudo-suffixed code ("en-orig") and returns the matching Language.
func Resolve(input string) (Language, bool) {
	value := StripPseudoSuffix(input)
	if value == "" {
		return Language{}, false
	}

	if lang, ok := Languages[value]; ok {
		return lang, true
	}
	if alias, ok := codeAliases[value]; ok {
		return Languages[alias], true
	}
	if key, ok := nameIndex[value]; ok {
		return Languages[key], true
	}

	// BCP 47 tags with region or script subtags fold down to their base:
	// "pt-BR" resolves to pt, "zh-Hant" to zh.
	if tag, err := xlang.Parse(value); err == nil {
		base, conf := tag.Base()
		if conf != xlang.No {
			code := base.String()
			if alias, ok := codeAliases[code]; ok {
				code = alias
			}
			if lang, ok := Languages[code]; ok {
				return lang, true
			}
		}
	}
	return Language{}, false
}
