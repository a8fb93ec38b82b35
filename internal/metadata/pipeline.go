package metadata

import (
	"context"
	"strings"
	"time"

	"github.com/fifosk/ebook-tools-sub003/internal/logger"
)

// Provider is one metadata source client.
type Provider interface {
	Name() SourceID
	SupportedTypes() []MediaType
	// Available reports whether the client can be called; providers that
	// require a missing API key report false.
	Available() bool
	// Lookup returns nil on a clean miss. Implementations never panic;
	// transport problems come back as errors.
	Lookup(ctx context.Context, q Query) (*Result, error)
}

// Options tunes one lookup.
type Options struct {
	// MaxSources caps how many chain providers are consulted (default 3).
	MaxSources int
	// SkipCache bypasses the cache read (the result is still written).
	SkipCache bool
	// WithFallback makes a fully-failed lookup return an error-annotated
	// empty result instead of nil.
	WithFallback bool
}

const defaultMaxSources = 3

// Pipeline is the stateless lookup orchestrator.
type Pipeline struct {
	cache     *Cache
	providers map[SourceID]Provider

	now func() time.Time
}

func NewPipeline(cache *Cache, providers ...Provider) *Pipeline {
	m := make(map[SourceID]Provider, len(providers))
	for _, p := range providers {
		m[p.Name()] = p
	}
	return &Pipeline{cache: cache, providers: m, now: time.Now}
}

// Lookup runs the fallback chain for the query's media type and merges
// whatever came back. A nil return means no provider had anything.
func (p *Pipeline) Lookup(ctx context.Context, q Query, opts Options) *Result {
	maxSources := opts.MaxSources
	if maxSources <= 0 {
		maxSources = defaultMaxSources
	}

	if p.cache != nil && !opts.SkipCache {
		if hit := p.cache.Get(q); hit != nil {
			logger.Debug("Metadata cache hit", "type", q.MediaType, "title", q.Title)
			return hit
		}
	}

	var inFlight []*Result
	var contributors []SourceID
	consulted := 0
	for _, id := range chains[q.MediaType] {
		if consulted >= maxSources {
			break
		}
		client, ok := p.providers[id]
		if !ok || !client.Available() {
			continue
		}
		consulted++

		result, err := p.safeLookup(ctx, client, q)
		if err != nil {
			logger.Warn("Metadata provider failed", "provider", id, "error", err)
			continue
		}
		if result == nil || (result.Title == "" && result.Error != "") {
			continue
		}
		inFlight = append(inFlight, result)
		contributors = append(contributors, id)

		if result.Confidence == ConfidenceHigh && result.Complete() {
			break
		}
	}

	if len(inFlight) == 0 {
		if opts.WithFallback {
			return &Result{
				Type:      q.MediaType,
				QueriedAt: p.now(),
				Error:     "no metadata source returned a result",
			}
		}
		return nil
	}

	merged := Merge(inFlight)
	merged.Type = q.MediaType
	merged.PrimarySource = contributors[0]
	merged.ContributingSources = contributors
	merged.QueriedAt = p.now()

	if p.cache != nil {
		if err := p.cache.Put(q, merged); err != nil {
			logger.Warn("Metadata cache write failed", "error", err)
		}
	}
	return &merged
}

func (p *Pipeline) safeLookup(ctx context.Context, client Provider, q Query) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Metadata provider panicked", "provider", client.Name(), "panic", r)
			result, err = nil, nil
		}
	}()
	return client.Lookup(ctx, q)
}

// genreCap bounds the merged genre union.
const genreCap = 10

// Merge folds results in chain order into one record. The first result is
// primary; later ones only fill gaps, except votes-backed ratings and the
// conservative confidence minimum.
func Merge(results []*Result) Result {
	merged := *results[0]
	merged.Genres = append([]string(nil), merged.Genres...)
	merged.SourceIDs = copyIDs(merged.SourceIDs)

	for _, r := range results[1:] {
		fillString(&merged.Title, r.Title)
		fillInt(&merged.Year, r.Year)
		fillString(&merged.Summary, r.Summary)
		fillString(&merged.CoverURL, r.CoverURL)
		fillString(&merged.CoverFile, r.CoverFile)
		fillString(&merged.Author, r.Author)
		fillString(&merged.Language, r.Language)
		fillInt(&merged.RuntimeMinutes, r.RuntimeMinutes)
		fillString(&merged.Series, r.Series)
		fillString(&merged.ChannelName, r.ChannelName)
		fillString(&merged.UploadDate, r.UploadDate)
		if merged.ViewCount == 0 {
			merged.ViewCount = r.ViewCount
		}

		merged.Genres = unionGenres(merged.Genres, r.Genres)
		for k, v := range r.SourceIDs {
			if merged.SourceIDs[k] == "" && v != "" {
				merged.SourceIDs[k] = v
			}
		}

		// A secondary rating wins only with twice the vote weight.
		if r.Votes >= 2*merged.Votes && r.Votes > 0 {
			merged.Rating = r.Rating
			merged.Votes = r.Votes
		}

		merged.Confidence = MinConfidence(merged.Confidence, r.Confidence)
	}
	return merged
}

func fillString(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

func fillInt(dst *int, v int) {
	if *dst == 0 {
		*dst = v
	}
}

func copyIDs(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// unionGenres appends new genres case-insensitively, capped at genreCap.
func unionGenres(have, add []string) []string {
	seen := make(map[string]bool, len(have))
	for _, g := range have {
		seen[strings.ToLower(g)] = true
	}
	for _, g := range add {
		if len(have) >= genreCap {
			break
		}
		key := strings.ToLower(g)
		if g == "" || seen[key] {
			continue
		}
		seen[key] = true
		have = append(have, g)
	}
	if len(have) > genreCap {
		have = have[:genreCap]
	}
	return have
}
