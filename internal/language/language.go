package language

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// ScriptPolicy describes the writing system a translation must use.
type ScriptPolicy struct {
	// Name is the Unicode script name, e.g. "Devanagari".
	Name string
	// Ranges matches characters of the expected script.
	Ranges *unicode.RangeTable
	// Instruction is the prompt clause enforcing the script.
	Instruction string
}

// Language is one supported target (or source) language.
type Language struct {
	Code string
	Name string
	// Script is nil for Latin-script languages with no enforcement policy.
	Script *ScriptPolicy
	// SegmentationRequired marks languages written without spaces where the
	// model must insert word boundaries.
	SegmentationRequired bool
	// RequiresDiacritics marks languages whose bare script is ambiguous
	// without vowel marks (Arabic tashkil, Hebrew niqqud).
	RequiresDiacritics bool
	// Diacritics matches the required combining marks.
	Diacritics *unicode.RangeTable
	// DialectNote is an extra prompt clause disambiguating commonly
	// confused languages.
	DialectNote string
}

// Descriptor renders the prompt-facing form, e.g. "French (fr)".
func (l Language) Descriptor() string {
	return fmt.Sprintf("%s (%s)", l.Name, l.Code)
}

// NonLatinScript reports whether the language is written in a non-Latin
// script (used by the "transliteration instead of translation" check).
func (l Language) NonLatinScript() bool {
	return l.Script != nil
}

var arabicDiacritics = &unicode.RangeTable{
	R16: []unicode.Range16{{Lo: 0x064B, Hi: 0x0652, Stride: 1}, {Lo: 0x0670, Hi: 0x0670, Stride: 1}},
}

var hebrewDiacritics = &unicode.RangeTable{
	R16: []unicode.Range16{{Lo: 0x05B0, Hi: 0x05BD, Stride: 1}, {Lo: 0x05C1, Hi: 0x05C2, Stride: 1}},
}

func scriptPolicy(name string, ranges *unicode.RangeTable) *ScriptPolicy {
	return &ScriptPolicy{
		Name:        name,
		Ranges:      ranges,
		Instruction: fmt.Sprintf("Write the translation using the %s script only.", name),
	}
}

// japaneseRanges covers kana plus Han for Japanese policy checks.
var japaneseRanges = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x3040, Hi: 0x30FF, Stride: 1},
		{Lo: 0x4E00, Hi: 0x9FFF, Stride: 1},
	},
}

// Languages maps lookup key (language code) to Language.
var Languages = map[string]Language{
	"af":  {Code: "af", Name: "Afrikaans"},
	"am":  {Code: "am", Name: "Amharic", Script: scriptPolicy("Ethiopic", unicode.Ethiopic)},
	"ar":  {Code: "ar", Name: "Arabic", Script: scriptPolicy("Arabic", unicode.Arabic), RequiresDiacritics: true, Diacritics: arabicDiacritics},
	"bg":  {Code: "bg", Name: "Bulgarian", Script: scriptPolicy("Cyrillic", unicode.Cyrillic)},
	"bn":  {Code: "bn", Name: "Bengali", Script: scriptPolicy("Bengali", unicode.Bengali)},
	"ca":  {Code: "ca", Name: "Catalan"},
	"cs":  {Code: "cs", Name: "Czech"},
	"cy":  {Code: "cy", Name: "Welsh"},
	"da":  {Code: "da", Name: "Danish"},
	"de":  {Code: "de", Name: "German"},
	"el":  {Code: "el", Name: "Greek", Script: scriptPolicy("Greek", unicode.Greek)},
	"en":  {Code: "en", Name: "English"},
	"es":  {Code: "es", Name: "Spanish"},
	"et":  {Code: "et", Name: "Estonian"},
	"fa":  {Code: "fa", Name: "Persian", Script: scriptPolicy("Arabic", unicode.Arabic)},
	"fi":  {Code: "fi", Name: "Finnish"},
	"fil": {Code: "fil", Name: "Filipino"},
	"fr":  {Code: "fr", Name: "French"},
	"ga":  {Code: "ga", Name: "Irish"},
	"gu":  {Code: "gu", Name: "Gujarati", Script: scriptPolicy("Gujarati", unicode.Gujarati)},
	"he":  {Code: "he", Name: "Hebrew", Script: scriptPolicy("Hebrew", unicode.Hebrew), RequiresDiacritics: true, Diacritics: hebrewDiacritics},
	"hi":  {Code: "hi", Name: "Hindi", Script: scriptPolicy("Devanagari", unicode.Devanagari)},
	"hr":  {Code: "hr", Name: "Croatian"},
	"hu":  {Code: "hu", Name: "Hungarian"},
	"hy":  {Code: "hy", Name: "Armenian", Script: scriptPolicy("Armenian", unicode.Armenian)},
	"id":  {Code: "id", Name: "Indonesian"},
	"is":  {Code: "is", Name: "Icelandic"},
	"it":  {Code: "it", Name: "Italian"},
	"ja":  {Code: "ja", Name: "Japanese", Script: scriptPolicy("Japanese", japaneseRanges), SegmentationRequired: true},
	"ka":  {Code: "ka", Name: "Georgian", Script: scriptPolicy("Georgian", unicode.Georgian)},
	"km":  {Code: "km", Name: "Khmer", Script: scriptPolicy("Khmer", unicode.Khmer), SegmentationRequired: true},
	"kn":  {Code: "kn", Name: "Kannada", Script: scriptPolicy("Kannada", unicode.Kannada)},
	"ko":  {Code: "ko", Name: "Korean", Script: scriptPolicy("Hangul", unicode.Hangul), SegmentationRequired: true},
	"lt":  {Code: "lt", Name: "Lithuanian"},
	"lv":  {Code: "lv", Name: "Latvian"},
	"mk":  {Code: "mk", Name: "Macedonian", Script: scriptPolicy("Cyrillic", unicode.Cyrillic)},
	"ml":  {Code: "ml", Name: "Malayalam", Script: scriptPolicy("Malayalam", unicode.Malayalam)},
	"mr":  {Code: "mr", Name: "Marathi", Script: scriptPolicy("Devanagari", unicode.Devanagari)},
	"ms":  {Code: "ms", Name: "Malay"},
	"my":  {Code: "my", Name: "Burmese", Script: scriptPolicy("Myanmar", unicode.Myanmar), SegmentationRequired: true},
	"ne":  {Code: "ne", Name: "Nepali", Script: scriptPolicy("Devanagari", unicode.Devanagari)},
	"nl":  {Code: "nl", Name: "Dutch"},
	"no":  {Code: "no", Name: "Norwegian"},
	"pa":  {Code: "pa", Name: "Punjabi", Script: scriptPolicy("Gurmukhi", unicode.Gurmukhi)},
	"pl":  {Code: "pl", Name: "Polish"},
	"ps":  {Code: "ps", Name: "Pashto", Script: scriptPolicy("Arabic", unicode.Arabic), DialectNote: "Pashto is not Urdu or Hindi; use Pashto vocabulary and orthography."},
	"pt":  {Code: "pt", Name: "Portuguese"},
	"ro":  {Code: "ro", Name: "Romanian"},
	"rom": {Code: "rom", Name: "Romani", DialectNote: "Romani is the language of the Roma people, not Romanian."},
	"ru":  {Code: "ru", Name: "Russian", Script: scriptPolicy("Cyrillic", unicode.Cyrillic)},
	"si":  {Code: "si", Name: "Sinhala", Script: scriptPolicy("Sinhala", unicode.Sinhala)},
	"sk":  {Code: "sk", Name: "Slovak"},
	"sl":  {Code: "sl", Name: "Slovenian"},
	"sr":  {Code: "sr", Name: "Serbian", Script: scriptPolicy("Cyrillic", unicode.Cyrillic)},
	"sv":  {Code: "sv", Name: "Swedish"},
	"sw":  {Code: "sw", Name: "Swahili"},
	"ta":  {Code: "ta", Name: "Tamil", Script: scriptPolicy("Tamil", unicode.Tamil)},
	"te":  {Code: "te", Name: "Telugu", Script: scriptPolicy("Telugu", unicode.Telugu)},
	"th":  {Code: "th", Name: "Thai", Script: scriptPolicy("Thai", unicode.Thai), SegmentationRequired: true},
	"tr":  {Code: "tr", Name: "Turkish"},
	"uk":  {Code: "uk", Name: "Ukrainian", Script: scriptPolicy("Cyrillic", unicode.Cyrillic)},
	"ur":  {Code: "ur", Name: "Urdu", Script: scriptPolicy("Arabic", unicode.Arabic)},
	"vi":  {Code: "vi", Name: "Vietnamese"},
	"zh":  {Code: "zh", Name: "Chinese", Script: scriptPolicy("Han", unicode.Han), SegmentationRequired: true},
	"zu":  {Code: "zu", Name: "Zulu"},
}

// Get returns the language for a strict code match.
func Get(code string) (Language, bool) {
	lang, ok := Languages[code]
	return lang, ok
}

// Entry pairs a lookup key with its language for listings.
type Entry struct {
	ID string
	Language
}

// Supported returns all languages sorted by name then key.
func Supported() []Entry {
	entries := make([]Entry, 0, len(Languages))
	for k, v := range Languages {
		entries = append(entries, Entry{ID: k, Language: v})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Name != entries[j].Name {
			return entries[i].Name < entries[j].Name
		}
		return entries[i].ID < entries[j].ID
	})
	return entries
}

var nameIndex = func() map[string]string {
	idx := make(map[string]string, len(Languages))
	for key, lang := range Languages {
		idx[strings.ToLower(lang.Name)] = key
	}
	return idx
}()
