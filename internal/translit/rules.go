package translit

import (
	"strings"
	"unicode"
)

// Rule-based romanization. Tables cover the scripts the local engine can
// handle without a model; anything else falls through to the LLM path.

var cyrillicTable = map[rune]string{
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d", 'е': "e", 'ё': "yo",
	'ж': "zh", 'з': "z", 'и': "i", 'й': "y", 'к': "k", 'л': "l", 'м': "m",
	'н': "n", 'о': "o", 'п': "p", 'р': "r", 'с': "s", 'т': "t", 'у': "u",
	'ф': "f", 'х': "kh", 'ц': "ts", 'ч': "ch", 'ш': "sh", 'щ': "shch",
	'ъ': "", 'ы': "y", 'ь': "", 'э': "e", 'ю': "yu", 'я': "ya",
	// Ukrainian and Serbian additions.
	'є': "ye", 'і': "i", 'ї': "yi", 'ґ': "g", 'ђ': "dj", 'ј': "j",
	'љ': "lj", 'њ': "nj", 'ћ': "c", 'џ': "dz",
}

var greekTable = map[rune]string{
	'α': "a", 'β': "v", 'γ': "g", 'δ': "d", 'ε': "e", 'ζ': "z", 'η': "i",
	'θ': "th", 'ι': "i", 'κ': "k", 'λ': "l", 'μ': "m", 'ν': "n", 'ξ': "x",
	'ο': "o", 'π': "p", 'ρ': "r", 'σ': "s", 'ς': "s", 'τ': "t", 'υ': "y",
	'φ': "f", 'χ': "ch", 'ψ': "ps", 'ω': "o",
	// Accented vowels common in monotonic Greek.
	'ά': "a", 'έ': "e", 'ή': "i", 'ί': "i", 'ό': "o", 'ύ': "y", 'ώ': "o",
	'ϊ': "i", 'ϋ': "y", 'ΐ': "i", 'ΰ': "y",
}

// hebrewTable is consonantal; vowel points are dropped, which matches how
// unpointed text reads anyway.
var hebrewTable = map[rune]string{
	'א': "", 'ב': "v", 'ג': "g", 'ד': "d", 'ה': "h", 'ו': "v", 'ז': "z",
	'ח': "ch", 'ט': "t", 'י': "y", 'כ': "kh", 'ך': "kh", 'ל': "l",
	'מ': "m", 'ם': "m", 'נ': "n", 'ן': "n", 'ס': "s", 'ע': "", 'פ': "p",
	'ף': "f", 'צ': "ts", 'ץ': "ts", 'ק': "k", 'ר': "r", 'ש': "sh", 'ת': "t",
}

var scriptTables = []struct {
	ranges *unicode.RangeTable
	table  map[rune]string
}{
	{unicode.Cyrillic, cyrillicTable},
	{unicode.Greek, greekTable},
	{unicode.Hebrew, hebrewTable},
}

// Romanize converts text using the rule tables. It returns "" when the text
// contains non-Latin letters the tables do not cover, signalling that the
// local engine cannot handle this script.
func Romanize(text string) string {
	var sb strings.Builder
	for _, r := range text {
		if r < 0x80 {
			sb.WriteRune(r)
			continue
		}
		if unicode.IsMark(r) {
			continue
		}
		mapped, ok := lookupRune(r)
		if !ok {
			if unicode.IsLetter(r) {
				return ""
			}
			sb.WriteRune(r)
			continue
		}
		var out string
		if unicode.IsUpper(r) {
			out = titleCase(mapped)
		} else {
			out = mapped
		}
		sb.WriteString(out)
	}
	return strings.TrimSpace(sb.String())
}

func lookupRune(r rune) (string, bool) {
	lower := unicode.ToLower(r)
	for _, st := range scriptTables {
		if unicode.Is(st.ranges, r) {
			v, ok := st.table[lower]
			return v, ok
		}
	}
	return "", false
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
