package pipeline

import (
	"fmt"
	"strings"

	"github.com/fifosk/ebook-tools-sub003/internal/language"
)

// Prompt builders. Both shapes share the per-language clauses; descriptors
// come from the language table so "fr" always reads "French (fr)".

func describe(code string) string {
	if lang, ok := language.Resolve(code); ok {
		return lang.Descriptor()
	}
	return code
}

func languageClauses(target language.Language, includeTranslit bool) []string {
	var clauses []string
	if target.SegmentationRequired {
		clauses = append(clauses,
			fmt.Sprintf("%s is written without spaces; insert a space between every word, like this: \"word1 word2 word3\". Keep the translation on one line.", target.Name))
	}
	if target.Script != nil {
		clauses = append(clauses, target.Script.Instruction+" Do not romanize.")
	}
	if target.DialectNote != "" {
		clauses = append(clauses, target.DialectNote)
	}
	if target.RequiresDiacritics {
		clauses = append(clauses,
			fmt.Sprintf("Include full vowel diacritics in the %s text.", target.Name))
	}
	if includeTranslit {
		clauses = append(clauses,
			"If appropriate, append a Latin transliteration on the second line, no labels.")
	}
	return clauses
}

// SinglePrompt is the system prompt for a one-sentence request.
func SinglePrompt(sourceCode, targetCode string, includeTranslit bool) string {
	target, _ := language.Resolve(targetCode)

	var sb strings.Builder
	rules := []string{
		fmt.Sprintf("Translate the sentence from %s to %s.", describe(sourceCode), describe(targetCode)),
		"Provide only the translated text on the first line.",
		"Do not echo the source, add notes, or explain.",
	}
	rules = append(rules, languageClauses(target, includeTranslit)...)
	for i, rule := range rules {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, rule)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// BatchPrompt is the system prompt for a JSON batch request.
func BatchPrompt(sourceCode, targetCode string, includeTranslit bool) string {
	target, _ := language.Resolve(targetCode)

	shape := `{"items": [{"id": n, "translation": "..."}]}`
	if includeTranslit {
		shape = `{"items": [{"id": n, "translation": "...", "transliteration": "..."}]}`
	}

	var sb strings.Builder
	fmt.Fprintf(&sb,
		"You translate numbered sentences from %s to %s.\n",
		describe(sourceCode), describe(targetCode))
	fmt.Fprintf(&sb,
		"Reply with only valid JSON of the form %s. One entry per input id. Single-line strings. No code fences. Do not echo the source text.\n", shape)
	for _, clause := range languageClauses(target, includeTranslit) {
		sb.WriteString(clause)
		sb.WriteByte('\n')
	}
	return strings.TrimRight(sb.String(), "\n")
}
