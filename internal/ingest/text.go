package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/fifosk/ebook-tools-sub003/internal/apperrors"
	"github.com/fifosk/ebook-tools-sub003/internal/textnorm"
)

// TextSource splits a plain-text document into sentences.
type TextSource struct {
	path string
}

func NewTextSource(path string) *TextSource {
	return &TextSource{path: path}
}

func (s *TextSource) Name() string {
	return strings.TrimSuffix(filepath.Base(s.path), filepath.Ext(s.path))
}

func (s *TextSource) Sentences(_ context.Context) ([]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, apperrors.Config(fmt.Errorf("read input: %w", err))
	}
	return SplitSentences(string(data)), nil
}

// abbreviations that end with a period but do not end a sentence.
var abbreviations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true,
	"sr": true, "jr": true, "st": true, "vs": true, "etc": true,
	"e.g": true, "i.e": true, "no": true, "vol": true, "approx": true,
}

// sentence-final punctuation, including CJK forms.
func isTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？', '…':
		return true
	}
	return false
}

// SplitSentences breaks text on sentence-final punctuation, keeping the
// punctuation with the sentence. Abbreviations, decimal points, and
// ellipses do not split.
func SplitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(textnorm.CollapseWhitespace(text))
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		current.WriteRune(r)
		if !isTerminator(r) {
			continue
		}
		if r == '.' {
			// An ellipsis written as periods trails off rather than ending
			// the sentence.
			dots := 0
			for i+1 < len(runes) && runes[i+1] == '.' {
				i++
				dots++
				current.WriteRune(runes[i])
			}
			if dots > 0 {
				continue
			}
			if i+1 < len(runes) && unicode.IsDigit(runes[i+1]) {
				continue
			}
			if abbreviations[lastWord(current.String())] {
				continue
			}
		}
		// Trailing close quotes belong to the finished sentence.
		for i+1 < len(runes) && isClosingQuote(runes[i+1]) {
			i++
			current.WriteRune(runes[i])
		}
		if s := strings.TrimSpace(current.String()); s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func isClosingQuote(r rune) bool {
	switch r {
	case '"', '\'', '”', '’', '»', '」', '』':
		return true
	}
	return false
}

// lastWord returns the lower-cased word preceding the final period.
func lastWord(s string) string {
	s = strings.TrimRight(s, ".")
	idx := strings.LastIndexFunc(s, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	word := s
	if idx >= 0 {
		word = s[idx+1:]
	}
	return strings.ToLower(strings.TrimLeftFunc(word, func(r rune) bool {
		return !unicode.IsLetter(r)
	}))
}
