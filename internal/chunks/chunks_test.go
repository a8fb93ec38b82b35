package chunks

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sentences(texts ...string) []map[string]any {
	out := make([]map[string]any, len(texts))
	for i, t := range texts {
		out[i] = map[string]any{"text": t}
	}
	return out
}

func TestCommitWritesAndSlims(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	s.BaseURL = "http://host/jobs/j1/"

	in := []Chunk{
		{StartSentence: 1, EndSentence: 2, Sentences: sentences("a", "b"), HighlightingPolicy: "word"},
		{StartSentence: 3, EndSentence: 3, Sentences: sentences("c")},
	}
	out, err := s.Commit(in)
	require.NoError(t, err)
	require.Len(t, out, 2)

	first := out[0]
	assert.Equal(t, "chunk_0001", first.ChunkID)
	assert.Equal(t, "0001-0002", first.RangeFragment)
	assert.Equal(t, 2, first.SentenceCount)
	assert.Nil(t, first.Sentences, "heavy sentence data must be stripped")
	assert.Equal(t, filepath.Join("metadata", "chunk_0001.json"), first.MetadataPath)
	assert.Equal(t, "http://host/jobs/j1/metadata/chunk_0001.json", first.MetadataURL)

	// The input slice keeps its sentences.
	assert.Len(t, in[0].Sentences, 2)

	data, err := os.ReadFile(filepath.Join(dir, "metadata", "chunk_0001.json"))
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, float64(3), raw["version"])
	assert.Equal(t, "word", raw["highlighting_policy"])
	assert.Len(t, raw["sentences"], 2)
}

func TestCommitIdempotent(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	in := []Chunk{
		{StartSentence: 1, EndSentence: 2, Sentences: sentences("a", "b")},
		{StartSentence: 3, EndSentence: 4, Sentences: sentences("c", "d")},
	}

	_, err := s.Commit(in)
	require.NoError(t, err)
	snapshot := readAll(t, filepath.Join(dir, "metadata"))

	_, err = s.Commit(in)
	require.NoError(t, err)
	assert.Equal(t, snapshot, readAll(t, filepath.Join(dir, "metadata")))
}

func TestCommitPrunesStale(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	in := []Chunk{
		{StartSentence: 1, EndSentence: 1, Sentences: sentences("a")},
		{StartSentence: 2, EndSentence: 2, Sentences: sentences("b")},
		{StartSentence: 3, EndSentence: 3, Sentences: sentences("c")},
	}
	_, err := s.Commit(in)
	require.NoError(t, err)

	// Recommit with only the first chunk; the rest must be pruned.
	_, err = s.Commit(in[:1])
	require.NoError(t, err)

	names := fileNames(t, filepath.Join(dir, "metadata"))
	assert.Equal(t, []string{"chunk_0001.json"}, names)
}

func TestCommitKeepsFilesBehindSlimEntries(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	full := []Chunk{
		{StartSentence: 1, EndSentence: 1, Sentences: sentences("a")},
		{StartSentence: 2, EndSentence: 2, Sentences: sentences("b")},
	}
	slimmed, err := s.Commit(full)
	require.NoError(t, err)

	// Committing the already-slim payload must not prune its files.
	_, err = s.Commit(slimmed)
	require.NoError(t, err)
	names := fileNames(t, filepath.Join(dir, "metadata"))
	assert.Equal(t, []string{"chunk_0001.json", "chunk_0002.json"}, names)
}

func TestReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	in := []Chunk{{
		StartSentence: 5, EndSentence: 8,
		Sentences:          sentences("a", "b", "c", "d"),
		AudioTracks:        map[string]any{"mixed": "audio/mixed.mp3"},
		HighlightingPolicy: "estimated_uniform",
		TimingVersion:      2,
	}}
	_, err := s.Commit(in)
	require.NoError(t, err)

	got, err := s.Read(1)
	require.NoError(t, err)
	assert.Equal(t, "0005-0008", got.RangeFragment)
	assert.Equal(t, 4, got.SentenceCount)
	assert.Len(t, got.Sentences, 4)
	assert.Equal(t, "audio/mixed.mp3", got.AudioTracks["mixed"])
	assert.Equal(t, 2, got.TimingVersion)
}

func TestReadRejectsWrongVersion(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "metadata"), 0o755))
	path := filepath.Join(dir, "metadata", "chunk_0001.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":2,"chunk_id":"chunk_0001"}`), 0o644))

	_, err := NewStore(dir).Read(1)
	assert.ErrorContains(t, err, "unsupported version")
}

func TestHighlightingPolicyPrefersEstimated(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	in := []Chunk{
		{StartSentence: 1, EndSentence: 1, Sentences: sentences("a"), HighlightingPolicy: "word"},
		{StartSentence: 2, EndSentence: 2, Sentences: sentences("b"), HighlightingPolicy: "word"},
		{StartSentence: 3, EndSentence: 3, Sentences: sentences("c"), HighlightingPolicy: "estimated_uniform"},
	}
	_, err := s.Commit(in)
	require.NoError(t, err)

	policy, err := s.HighlightingPolicy()
	require.NoError(t, err)
	assert.Equal(t, "estimated_uniform", policy, "estimated beats the majority policy")
}

func TestHighlightingPolicyMajority(t *testing.T) {
	assert.Equal(t, "word", dominantPolicy(map[string]int{"word": 3, "sentence": 1}))
	assert.Equal(t, "", dominantPolicy(nil))
}

func readAll(t *testing.T, dir string) map[string]string {
	t.Helper()
	out := make(map[string]string)
	for _, name := range fileNames(t, dir) {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		out[name] = string(data)
	}
	return out
}

func fileNames(t *testing.T, dir string) []string {
	t.Helper()
	paths, err := filepath.Glob(filepath.Join(dir, "chunk_*.json"))
	require.NoError(t, err)
	names := make([]string, 0, len(paths))
	for _, p := range paths {
		names = append(names, filepath.Base(p))
	}
	return names
}
