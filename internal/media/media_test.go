package media

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConcatSkipsNil(t *testing.T) {
	a := &AudioSegment{Data: []byte("aa"), Duration: time.Second}
	b := &AudioSegment{Data: []byte("bb"), Duration: 2 * time.Second}

	got := Concat([]*AudioSegment{a, nil, b})
	if string(got.Data) != "aabb" {
		t.Errorf("data = %q", got.Data)
	}
	if got.Duration != 3*time.Second {
		t.Errorf("duration = %v", got.Duration)
	}
}

func TestExportMP3(t *testing.T) {
	path := filepath.Join(t.TempDir(), "0001-0010_book.mp3")
	seg := &AudioSegment{Data: []byte("mp3bytes")}
	if err := ExportMP3(seg, path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "mp3bytes" {
		t.Errorf("exported = %q, err %v", data, err)
	}

	if err := ExportMP3(nil, path); err == nil {
		t.Error("nil segment must fail")
	}
}

func TestFakeSynthesizerDuration(t *testing.T) {
	f := &FakeSynthesizer{PerRune: 10 * time.Millisecond}
	seg, err := f.Synthesize(context.Background(), "abcd", "es")
	if err != nil {
		t.Fatal(err)
	}
	if seg.Duration != 40*time.Millisecond {
		t.Errorf("duration = %v", seg.Duration)
	}
}

func TestFakeCompositorWritesStub(t *testing.T) {
	path := filepath.Join(t.TempDir(), "0001-0010_book.mp4")
	f := &FakeCompositor{}
	err := f.Compose(context.Background(), []string{"b1", "b2"}, []*AudioSegment{{Duration: time.Second}}, path)
	if err != nil {
		t.Fatal(err)
	}
	if len(f.Calls) != 1 {
		t.Errorf("calls = %v", f.Calls)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("stub not written: %v", err)
	}
}
