package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"path/filepath"
	"time"

	"github.com/fifosk/ebook-tools-sub003/internal/files"
	"github.com/fifosk/ebook-tools-sub003/internal/logger"
	"github.com/fifosk/ebook-tools-sub003/internal/media"
	"github.com/fifosk/ebook-tools-sub003/internal/pool"
	"github.com/fifosk/ebook-tools-sub003/internal/progress"
)

// Exporter commits media items to output artifacts in sentence order,
// flushing a batch window every SentencesPerBatch sentences. Writes are
// serialized through a single-worker pool so batches never reorder.
type Exporter struct {
	OutputDir string
	BaseName  string

	SentencesPerBatch int
	GenerateAudio     bool
	GenerateVideo     bool
	OutputHTML        bool
	OutputPDF         bool

	Compositor media.Compositor
	ExportPool pool.Pool
	Tracker    *progress.Tracker

	// Exported is invoked with each artifact path written, for run
	// summaries and tests.
	Exported func(path string)

	// Committed receives a copy of each flushed window before export so
	// callers can persist batch state alongside the artifacts.
	Committed func(batch []MediaItem)
}

// Run drains the media queue until it has seen producers sentinels and the
// reorder buffer is empty. The final partial window is flushed unless stop
// was requested.
func (e *Exporter) Run(ctx context.Context, in <-chan MediaItem, stop *Stop, producers int) error {
	buffer := map[int]MediaItem{}
	next := 0
	var window []MediaItem
	var futures []*pool.Future
	sentinels := 0

	for sentinels < producers {
		var item MediaItem
		select {
		case item = <-in:
		case <-time.After(200 * time.Millisecond):
			if stop.IsSet() {
				// Workers are gone or wedged; do not wait for sentinels
				// that may never come.
				sentinels = producers
			}
			continue
		}

		if isSentinel(item.Index) {
			sentinels++
			continue
		}

		buffer[item.Index] = item
		for {
			it, ok := buffer[next]
			if !ok {
				break
			}
			delete(buffer, next)
			next++
			window = append(window, it)
			if it.Number%e.SentencesPerBatch == 0 && !stop.IsSet() {
				futures = append(futures, e.submit(ctx, window))
				window = nil
			}
		}
	}

	if len(window) > 0 && !stop.IsSet() {
		futures = append(futures, e.submit(ctx, window))
	}

	var failed int
	for f := range pool.AsCompleted(compact(futures)) {
		if _, err := f.Result(); err != nil {
			failed++
			logger.Error("Batch export failed", "error", err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d batch export(s) failed", failed)
	}
	return nil
}

func compact(futures []*pool.Future) []*pool.Future {
	out := futures[:0]
	for _, f := range futures {
		if f != nil {
			out = append(out, f)
		}
	}
	return out
}

func (e *Exporter) submit(ctx context.Context, window []MediaItem) *pool.Future {
	batch := make([]MediaItem, len(window))
	copy(batch, window)
	if e.Committed != nil {
		e.Committed(batch)
	}
	f, err := e.ExportPool.Submit(func() (any, error) {
		return nil, e.exportBatch(ctx, batch)
	})
	if err != nil {
		logger.Error("Export pool rejected batch", "error", err)
		return nil
	}
	return f
}

// rangeFragment renders the zero-padded FFFF-LLLL window prefix.
func rangeFragment(batch []MediaItem) string {
	return fmt.Sprintf("%04d-%04d", batch[0].Number, batch[len(batch)-1].Number)
}

func (e *Exporter) artifactPath(batch []MediaItem, ext string) string {
	return filepath.Join(e.OutputDir, rangeFragment(batch)+"_"+e.BaseName+ext)
}

func (e *Exporter) exportBatch(ctx context.Context, batch []MediaItem) error {
	if len(batch) == 0 {
		return nil
	}
	logger.Debug("Exporting batch", "range", rangeFragment(batch), "items", len(batch))

	if e.OutputHTML {
		if err := e.writeHTML(batch); err != nil {
			return err
		}
	}
	if e.OutputPDF {
		if err := e.writePDF(batch); err != nil {
			return err
		}
	}
	if e.GenerateAudio {
		if err := e.writeMP3(batch); err != nil {
			return err
		}
	}
	if e.GenerateVideo && e.Compositor != nil {
		if err := e.writeMP4(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}

var htmlTemplate = template.Must(template.New("batch").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: Georgia, serif; margin: 2em auto; max-width: 42em; }
.sentence { margin-bottom: 1.2em; }
.number { color: #888; font-size: 0.8em; }
.source { color: #333; }
.translation { font-weight: bold; }
.translit { color: #666; font-style: italic; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
{{range .Items}}<div class="sentence">
<div class="number">{{.Number}}</div>
<div class="source">{{.Sentence}}</div>
<div class="translation">{{.Translation}}</div>
{{if .Transliteration}}<div class="translit">{{.Transliteration}}</div>
{{end}}</div>
{{end}}</body>
</html>
`))

func (e *Exporter) writeHTML(batch []MediaItem) error {
	var buf bytes.Buffer
	err := htmlTemplate.Execute(&buf, struct {
		Title string
		Items []MediaItem
	}{
		Title: fmt.Sprintf("%s %s", e.BaseName, rangeFragment(batch)),
		Items: batch,
	})
	if err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	path := e.artifactPath(batch, ".html")
	if err := files.AtomicWrite(path, buf.Bytes(), 0o644); err != nil {
		return err
	}
	e.notify(path)
	return nil
}

func (e *Exporter) writePDF(batch []MediaItem) error {
	var lines []string
	for _, it := range batch {
		lines = append(lines, fmt.Sprintf("%d. %s", it.Number, it.Sentence))
		lines = append(lines, "   "+it.Translation)
		if it.Transliteration != "" {
			lines = append(lines, "   "+it.Transliteration)
		}
		lines = append(lines, "")
	}
	path := e.artifactPath(batch, ".pdf")
	title := fmt.Sprintf("%s %s", e.BaseName, rangeFragment(batch))
	if err := writePDFDocument(path, title, lines); err != nil {
		return err
	}
	e.notify(path)
	return nil
}

func (e *Exporter) writeMP3(batch []MediaItem) error {
	segments := make([]*media.AudioSegment, len(batch))
	for i, it := range batch {
		segments[i] = it.Audio
	}
	joined := media.Concat(segments)
	if len(joined.Data) == 0 {
		logger.Debug("Batch has no audio, skipping mp3", "range", rangeFragment(batch))
		return nil
	}
	path := e.artifactPath(batch, ".mp3")
	if err := media.ExportMP3(joined, path); err != nil {
		return err
	}
	e.notify(path)
	return nil
}

func (e *Exporter) writeMP4(ctx context.Context, batch []MediaItem) error {
	blocks := make([]string, len(batch))
	segments := make([]*media.AudioSegment, len(batch))
	for i, it := range batch {
		blocks[i] = it.VideoBlock
		segments[i] = it.Audio
	}
	path := e.artifactPath(batch, ".mp4")
	if err := e.Compositor.Compose(ctx, blocks, segments, path); err != nil {
		return fmt.Errorf("compose video: %w", err)
	}
	e.notify(path)
	return nil
}

func (e *Exporter) notify(path string) {
	if e.Exported != nil {
		e.Exported(path)
	}
}
