// Package chunks persists per-batch sentence payloads as individually
// rewritable chunk_NNNN.json files under a job's metadata directory.
// Heavy sentence data lives in the chunk files; the job payload keeps
// only slim descriptors pointing at them.
package chunks

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fifosk/ebook-tools-sub003/internal/apperrors"
	"github.com/fifosk/ebook-tools-sub003/internal/files"
	"github.com/fifosk/ebook-tools-sub003/internal/logger"
)

// Version is the chunk file schema version this package writes and
// accepts.
const Version = 3

// Chunk is one batch entry of a generated job payload. In the full
// form Sentences carries the batch content; after Commit the entry is
// slimmed to a descriptor whose MetadataPath points at the chunk file.
type Chunk struct {
	ChunkID       string `json:"chunk_id,omitempty"`
	RangeFragment string `json:"range_fragment,omitempty"`
	StartSentence int    `json:"start_sentence"`
	EndSentence   int    `json:"end_sentence"`
	SentenceCount int    `json:"sentence_count,omitempty"`

	Sentences []map[string]any `json:"sentences,omitempty"`

	AudioTracks        map[string]any `json:"audioTracks,omitempty"`
	TimingTracks       map[string]any `json:"timingTracks,omitempty"`
	HighlightingPolicy string         `json:"highlighting_policy,omitempty"`
	TimingVersion      int            `json:"timingVersion,omitempty"`

	MetadataPath string `json:"metadata_path,omitempty"`
	MetadataURL  string `json:"metadata_url,omitempty"`
}

// chunkFile is the on-disk envelope.
type chunkFile struct {
	Version            int              `json:"version"`
	ChunkID            string           `json:"chunk_id"`
	RangeFragment      string           `json:"range_fragment"`
	StartSentence      int              `json:"start_sentence"`
	EndSentence        int              `json:"end_sentence"`
	SentenceCount      int              `json:"sentence_count"`
	Sentences          []map[string]any `json:"sentences"`
	AudioTracks        map[string]any   `json:"audioTracks,omitempty"`
	TimingTracks       map[string]any   `json:"timingTracks,omitempty"`
	HighlightingPolicy string           `json:"highlighting_policy,omitempty"`
	TimingVersion      int              `json:"timingVersion,omitempty"`
}

// Store writes chunk files for one job.
type Store struct {
	// JobDir is the job's root directory; chunk files go under
	// JobDir/metadata.
	JobDir string
	// BaseURL, when set, is joined with the relative metadata path to
	// form each descriptor's MetadataURL.
	BaseURL string
}

func NewStore(jobDir string) *Store {
	return &Store{JobDir: jobDir}
}

func (s *Store) metadataDir() string {
	return filepath.Join(s.JobDir, "metadata")
}

func chunkName(n int) string {
	return fmt.Sprintf("chunk_%04d.json", n)
}

// Commit writes every chunk that carries sentences, slims each entry to
// a descriptor, and prunes chunk files no longer referenced. The input
// slice is not modified; the returned slice is the slimmed payload.
func (s *Store) Commit(in []Chunk) ([]Chunk, error) {
	if err := files.EnsureDir(s.metadataDir(), 0o755); err != nil {
		return nil, apperrors.Persistence(err)
	}

	out := make([]Chunk, len(in))
	valid := make(map[string]bool)
	for i, c := range in {
		out[i] = c
		if len(c.Sentences) == 0 {
			// Already-slim entries keep their committed file alive.
			if c.MetadataPath != "" {
				valid[filepath.Base(c.MetadataPath)] = true
			}
			continue
		}

		name := chunkName(i + 1)
		if out[i].ChunkID == "" {
			out[i].ChunkID = strings.TrimSuffix(name, ".json")
		}
		if out[i].RangeFragment == "" {
			out[i].RangeFragment = fmt.Sprintf("%04d-%04d", c.StartSentence, c.EndSentence)
		}
		out[i].SentenceCount = len(c.Sentences)

		if err := s.writeChunk(name, out[i]); err != nil {
			return nil, err
		}
		valid[name] = true

		rel := filepath.Join("metadata", name)
		out[i].MetadataPath = rel
		if s.BaseURL != "" {
			out[i].MetadataURL = strings.TrimRight(s.BaseURL, "/") + "/" + filepath.ToSlash(rel)
		}
		out[i].Sentences = nil
	}

	if err := s.prune(valid); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) writeChunk(name string, c Chunk) error {
	env := chunkFile{
		Version:            Version,
		ChunkID:            c.ChunkID,
		RangeFragment:      c.RangeFragment,
		StartSentence:      c.StartSentence,
		EndSentence:        c.EndSentence,
		SentenceCount:      c.SentenceCount,
		Sentences:          c.Sentences,
		AudioTracks:        c.AudioTracks,
		TimingTracks:       c.TimingTracks,
		HighlightingPolicy: c.HighlightingPolicy,
		TimingVersion:      c.TimingVersion,
	}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return apperrors.Persistence(err)
	}
	if err := files.AtomicWrite(filepath.Join(s.metadataDir(), name), data, 0o644); err != nil {
		return apperrors.Persistence(fmt.Errorf("chunk %s: %w", name, err))
	}
	return nil
}

// prune deletes chunk_*.json files not in the valid set.
func (s *Store) prune(valid map[string]bool) error {
	paths, err := filepath.Glob(filepath.Join(s.metadataDir(), "chunk_*.json"))
	if err != nil {
		return err
	}
	for _, path := range paths {
		if valid[filepath.Base(path)] {
			continue
		}
		if err := os.Remove(path); err != nil {
			logger.Warn("Failed to prune stale chunk file", "path", path, "error", err)
			continue
		}
		logger.Debug("Pruned stale chunk file", "path", path)
	}
	return nil
}

// Read loads one committed chunk file by its 1-based number.
func (s *Store) Read(n int) (*Chunk, error) {
	data, err := os.ReadFile(filepath.Join(s.metadataDir(), chunkName(n)))
	if err != nil {
		return nil, err
	}
	var env chunkFile
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, apperrors.Persistence(err)
	}
	if env.Version != Version {
		return nil, fmt.Errorf("chunk %04d: unsupported version %d", n, env.Version)
	}
	return &Chunk{
		ChunkID:            env.ChunkID,
		RangeFragment:      env.RangeFragment,
		StartSentence:      env.StartSentence,
		EndSentence:        env.EndSentence,
		SentenceCount:      env.SentenceCount,
		Sentences:          env.Sentences,
		AudioTracks:        env.AudioTracks,
		TimingTracks:       env.TimingTracks,
		HighlightingPolicy: env.HighlightingPolicy,
		TimingVersion:      env.TimingVersion,
	}, nil
}

// HighlightingPolicy scans committed chunk files and returns the
// dominant policy. Any "estimated"-prefixed policy takes precedence so
// callers display the worst-case label. Returns "" when no chunk
// declares a policy.
func (s *Store) HighlightingPolicy() (string, error) {
	paths, err := filepath.Glob(filepath.Join(s.metadataDir(), "chunk_*.json"))
	if err != nil {
		return "", err
	}
	counts := make(map[string]int)
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var env chunkFile
		if err := json.Unmarshal(data, &env); err != nil || env.HighlightingPolicy == "" {
			continue
		}
		counts[env.HighlightingPolicy]++
	}
	return dominantPolicy(counts), nil
}

func dominantPolicy(counts map[string]int) string {
	pick := func(match func(string) bool) string {
		var best string
		bestCount := 0
		names := make([]string, 0, len(counts))
		for name := range counts {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if !match(name) {
				continue
			}
			if counts[name] > bestCount {
				best, bestCount = name, counts[name]
			}
		}
		return best
	}
	if est := pick(func(name string) bool { return strings.HasPrefix(name, "estimated") }); est != "" {
		return est
	}
	return pick(func(string) bool { return true })
}
