// Package textnorm holds pure, allocation-friendly text helpers shared by
// prompt construction and response validation.
package textnorm

import (
	"strings"
	"unicode"

	"github.com/rivo/uniseg"
)

// placeholderPhrases are substrings of known "I can't translate" responses.
// Matching is case-insensitive.
var placeholderPhrases = []string{
	"i cannot translate",
	"i can't translate",
	"i am unable to translate",
	"i'm unable to translate",
	"unable to provide a translation",
	"cannot provide a translation",
	"no translation available",
	"as an ai language model",
	"i'm sorry, but",
	"i apologize, but",
	"[translation failed",
	"retry failed for",
}

// CollapseWhitespace trims the string and folds internal whitespace runs
// into single spaces.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// StripQuotes removes one pair of matched surrounding quotes.
func StripQuotes(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return s
	}
	pairs := [][2]string{
		{`"`, `"`}, {"'", "'"}, {"“", "”"}, {"‘", "’"},
		{"«", "»"}, {"「", "」"},
	}
	for _, p := range pairs {
		if strings.HasPrefix(s, p[0]) && strings.HasSuffix(s, p[1]) && len(s) >= len(p[0])+len(p[1]) {
			return strings.TrimSpace(s[len(p[0]) : len(s)-len(p[1])])
		}
	}
	return s
}

// SplitTranslit splits a "translation\ntransliteration" blob. The second
// return is empty when the blob has a single line.
func SplitTranslit(s string) (string, string) {
	s = strings.ReplaceAll(s, "\\n", "\n")
	idx := strings.IndexByte(s, '\n')
	if idx < 0 {
		return strings.TrimSpace(s), ""
	}
	return strings.TrimSpace(s[:idx]), CollapseWhitespace(s[idx+1:])
}

// IsPlaceholder reports whether the string is a known refusal response.
func IsPlaceholder(s string) bool {
	lower := strings.ToLower(s)
	for _, phrase := range placeholderPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// LatinShare returns the fraction of letters that belong to the Latin
// script. A string with no letters has share 0.
func LatinShare(s string) float64 {
	letters, latin := 0, 0
	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.Is(unicode.Latin, r) {
			latin++
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(latin) / float64(letters)
}

// IsMostlyLatin reports whether at least 60% of the letters are Latin.
func IsMostlyLatin(s string) bool {
	return LatinShare(s) >= 0.6
}

// LetterCount counts grapheme clusters whose leading rune is a letter.
// Counting clusters rather than runes keeps scripts with stacked combining
// marks comparable to Latin text.
func LetterCount(s string) int {
	count := 0
	state := -1
	var cluster string
	for len(s) > 0 {
		cluster, s, _, state = uniseg.FirstGraphemeClusterInString(s, state)
		for _, r := range cluster {
			if unicode.IsLetter(r) {
				count++
			}
			break
		}
	}
	return count
}

// CountIn counts runes matched by the range table.
func CountIn(s string, table *unicode.RangeTable) int {
	if table == nil {
		return 0
	}
	count := 0
	for _, r := range s {
		if unicode.Is(table, r) {
			count++
		}
	}
	return count
}

// HasNonLatinLetters reports whether any letter outside the Latin script
// is present.
func HasNonLatinLetters(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) && !unicode.Is(unicode.Latin, r) {
			return true
		}
	}
	return false
}

// WordCount counts whitespace-separated tokens.
func WordCount(s string) int {
	return len(strings.Fields(s))
}
