package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
)

// YTDLP shells out to a local yt-dlp binary for YouTube metadata. The
// provider is available only when the binary is on PATH.
type YTDLP struct {
	// Binary defaults to "yt-dlp".
	Binary string

	// runner is swapped in tests.
	runner func(ctx context.Context, binary string, args ...string) ([]byte, error)
}

func NewYTDLP() *YTDLP {
	return &YTDLP{
		Binary: "yt-dlp",
		runner: func(ctx context.Context, binary string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, binary, args...).Output()
		},
	}
}

func (p *YTDLP) Name() SourceID              { return SourceYTDLP }
func (p *YTDLP) SupportedTypes() []MediaType { return []MediaType{TypeYouTubeVideo} }

func (p *YTDLP) Available() bool {
	_, err := exec.LookPath(p.binary())
	return err == nil
}

func (p *YTDLP) binary() string {
	if p.Binary == "" {
		return "yt-dlp"
	}
	return p.Binary
}

func (p *YTDLP) Lookup(ctx context.Context, q Query) (*Result, error) {
	if q.YouTubeVideoID == "" {
		return nil, nil
	}
	out, err := p.runner(ctx, p.binary(),
		"--dump-single-json", "--skip-download",
		"https://www.youtube.com/watch?v="+q.YouTubeVideoID)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp: %w", err)
	}

	var body struct {
		Title      string  `json:"title"`
		Channel    string  `json:"channel"`
		Uploader   string  `json:"uploader"`
		ViewCount  int64   `json:"view_count"`
		UploadDate string  `json:"upload_date"`
		Duration   float64 `json:"duration"`
		Thumbnail  string  `json:"thumbnail"`
	}
	if err := json.Unmarshal(out, &body); err != nil {
		return nil, fmt.Errorf("yt-dlp output: %w", err)
	}
	if body.Title == "" {
		return nil, nil
	}

	channel := body.Channel
	if channel == "" {
		channel = body.Uploader
	}
	return &Result{
		Title:          body.Title,
		Type:           TypeYouTubeVideo,
		Year:           yearOf(body.UploadDate),
		CoverURL:       body.Thumbnail,
		ChannelName:    channel,
		ViewCount:      body.ViewCount,
		UploadDate:     body.UploadDate,
		RuntimeMinutes: int(body.Duration) / 60,
		SourceIDs:      map[string]string{"youtube": q.YouTubeVideoID},
		// The video id is an exact-ID match.
		Confidence: ConfidenceHigh,
	}, nil
}
