package ingest

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "basic",
			in:   "First sentence. Second one! Third?",
			want: []string{"First sentence.", "Second one!", "Third?"},
		},
		{
			name: "abbreviation does not split",
			in:   "Dr. Smith arrived. He sat down.",
			want: []string{"Dr. Smith arrived.", "He sat down."},
		},
		{
			name: "decimal point does not split",
			in:   "It cost 3.50 euros. Cheap.",
			want: []string{"It cost 3.50 euros.", "Cheap."},
		},
		{
			name: "ellipsis stays together",
			in:   "Well... maybe. Fine.",
			want: []string{"Well... maybe.", "Fine."},
		},
		{
			name: "closing quote stays with sentence",
			in:   `"Stop." He ran.`,
			want: []string{`"Stop."`, "He ran."},
		},
		{
			name: "cjk terminators",
			in:   "これは文です。これも！",
			want: []string{"これは文です。", "これも！"},
		},
		{
			name: "trailing fragment kept",
			in:   "Complete. And a fragment",
			want: []string{"Complete.", "And a fragment"},
		},
		{
			name: "whitespace collapsed",
			in:   "One.\n\nTwo.\t Three.",
			want: []string{"One.", "Two.", "Three."},
		},
		{
			name: "empty",
			in:   "   ",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitSentences(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitSentences(%q) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}

func TestTextSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chapter one.txt")
	if err := os.WriteFile(path, []byte("Hello there. Second sentence."), 0o644); err != nil {
		t.Fatal(err)
	}

	src := NewTextSource(path)
	if src.Name() != "chapter one" {
		t.Errorf("Name = %q", src.Name())
	}
	got, err := src.Sentences(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != "Hello there." {
		t.Errorf("sentences = %#v", got)
	}
}

func TestSubtitleSourceJoinsCues(t *testing.T) {
	srt := "1\n00:00:01,000 --> 00:00:02,000\nThis sentence spans\n\n2\n00:00:02,500 --> 00:00:04,000\ntwo cues. And ends here.\n"
	path := filepath.Join(t.TempDir(), "episode.srt")
	if err := os.WriteFile(path, []byte(srt), 0o644); err != nil {
		t.Fatal(err)
	}

	src, err := ForFile(path)
	if err != nil {
		t.Fatal(err)
	}
	got, err := src.Sentences(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"This sentence spans two cues.", "And ends here."}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("sentences = %#v, want %#v", got, want)
	}
}

func TestForFileUnsupported(t *testing.T) {
	if _, err := ForFile("book.epub.zip"); err == nil {
		t.Error("unsupported extension must be rejected")
	}
}
