// Package metadata looks up book/movie/TV/YouTube metadata across external
// providers with per-type fallback chains, merges the results with graded
// confidence, and caches them on disk.
package metadata

import (
	"time"
)

// MediaType is the kind of work being looked up.
type MediaType string

const (
	TypeBook         MediaType = "book"
	TypeMovie        MediaType = "movie"
	TypeTVSeries     MediaType = "tv_series"
	TypeTVEpisode    MediaType = "tv_episode"
	TypeYouTubeVideo MediaType = "youtube_video"
)

// SourceID identifies a provider.
type SourceID string

const (
	SourceOpenLibrary SourceID = "openlibrary"
	SourceGoogleBooks SourceID = "googlebooks"
	SourceWikipedia   SourceID = "wikipedia"
	SourceTMDB        SourceID = "tmdb"
	SourceOMDb        SourceID = "omdb"
	SourceTVMaze      SourceID = "tvmaze"
	SourceYTDLP       SourceID = "yt_dlp"
)

// Confidence grades a result. High requires an exact-ID match.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// rank orders confidences for the conservative minimum.
func (c Confidence) rank() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	}
	return 0
}

// MinConfidence returns the more conservative of two grades.
func MinConfidence(a, b Confidence) Confidence {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	if a.rank() <= b.rank() {
		return a
	}
	return b
}

// Query is a metadata lookup request.
type Query struct {
	MediaType      MediaType `json:"media_type"`
	Title          string    `json:"title,omitempty"`
	Author         string    `json:"author,omitempty"`
	ISBN           string    `json:"isbn,omitempty"`
	SeriesName     string    `json:"series_name,omitempty"`
	Season         int       `json:"season,omitempty"`
	Episode        int       `json:"episode,omitempty"`
	Year           int       `json:"year,omitempty"`
	YouTubeVideoID string    `json:"youtube_video_id,omitempty"`
	IMDBID         string    `json:"imdb_id,omitempty"`
	TMDBID         string    `json:"tmdb_id,omitempty"`
	SourceFilename string    `json:"source_filename,omitempty"`
}

// Result is the unified metadata shape all providers map into.
type Result struct {
	Title          string            `json:"title"`
	Type           MediaType         `json:"type"`
	Year           int               `json:"year,omitempty"`
	Genres         []string          `json:"genres,omitempty"`
	Summary        string            `json:"summary,omitempty"`
	CoverURL       string            `json:"cover_url,omitempty"`
	CoverFile      string            `json:"cover_file,omitempty"`
	Series         string            `json:"series,omitempty"`
	SourceIDs      map[string]string `json:"source_ids,omitempty"`
	Author         string            `json:"author,omitempty"`
	Language       string            `json:"language,omitempty"`
	RuntimeMinutes int               `json:"runtime_minutes,omitempty"`
	Rating         float64           `json:"rating,omitempty"`
	Votes          int               `json:"votes,omitempty"`
	ChannelName    string            `json:"channel_name,omitempty"`
	ViewCount      int64             `json:"view_count,omitempty"`
	UploadDate     string            `json:"upload_date,omitempty"`

	Confidence          Confidence `json:"confidence"`
	PrimarySource       SourceID   `json:"primary_source,omitempty"`
	ContributingSources []SourceID `json:"contributing_sources,omitempty"`
	QueriedAt           time.Time  `json:"queried_at"`
	Error               string     `json:"error,omitempty"`
}

// Complete reports whether every field required for an early stop is set.
func (r *Result) Complete() bool {
	return r.Title != "" && r.Year != 0 && len(r.Genres) > 0 &&
		r.Summary != "" && (r.CoverURL != "" || r.CoverFile != "")
}

// chains routes each media type through its provider order.
var chains = map[MediaType][]SourceID{
	TypeBook:         {SourceOpenLibrary, SourceGoogleBooks, SourceWikipedia},
	TypeMovie:        {SourceTMDB, SourceOMDb, SourceWikipedia},
	TypeTVSeries:     {SourceTMDB, SourceOMDb, SourceTVMaze, SourceWikipedia},
	TypeTVEpisode:    {SourceTMDB, SourceOMDb, SourceTVMaze},
	TypeYouTubeVideo: {SourceYTDLP},
}
