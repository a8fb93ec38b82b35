package pipeline

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fifosk/ebook-tools-sub003/internal/logger"
	"github.com/fifosk/ebook-tools-sub003/internal/progress"
)

// joinTimeout bounds how long shutdown waits for workers after a stop.
const joinTimeout = 5 * time.Second

// Coordinator owns the stage queues and the run lifecycle. Sequential runs
// use the same path with WorkerCount 1.
type Coordinator struct {
	Engine   *Engine
	Media    *MediaEngine
	Exporter *Exporter
	Tracker  *progress.Tracker

	WorkerCount int
	QueueSize   int
}

// Summary is returned to the entry layer when a run finishes.
type Summary struct {
	Progress  progress.Snapshot
	Stopped   bool
	ExportErr error
}

// Run drives sentences through translation, media, and export. It returns
// once the exporter has drained and the workers have joined. Stop may be
// shared with a signal handler; a nil stop gets a private one.
func (c *Coordinator) Run(ctx context.Context, sentences []Sentence, sourceLang string, stop *Stop) (Summary, error) {
	if stop == nil {
		stop = NewStop()
	}
	workers := c.WorkerCount
	if workers < 1 {
		workers = 1
	}
	queueSize := c.QueueSize
	if queueSize < 1 {
		queueSize = 1
	}
	if c.Tracker != nil {
		c.Tracker.SetTotal(len(sentences))
	}

	translations := make(chan TranslationResult, queueSize)
	items := make(chan MediaItem, queueSize)

	// Stop when the surrounding context is canceled, once, monotonic.
	go func() {
		select {
		case <-ctx.Done():
			stop.Set()
		case <-stop.Done():
		}
	}()

	go c.Engine.Start(ctx, sentences, sourceLang, translations, stop, workers)

	var g errgroup.Group
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			c.Media.Worker(ctx, translations, items, stop)
			return nil
		})
	}

	exportErr := c.Exporter.Run(ctx, items, stop, workers)

	joined := make(chan struct{})
	go func() {
		g.Wait()
		close(joined)
	}()
	select {
	case <-joined:
	case <-time.After(joinTimeout):
		logger.Warn("Media workers did not join before timeout")
	}

	summary := Summary{Stopped: stop.IsSet(), ExportErr: exportErr}
	if c.Tracker != nil {
		summary.Progress = c.Tracker.Snapshot()
		c.Tracker.Publish()
	}
	if exportErr != nil {
		logger.Warn("Run finished with export errors", "error", exportErr)
	}
	logger.Info("Pipeline run complete",
		"sentences", len(sentences),
		"workers", workers,
		"stopped", summary.Stopped)
	return summary, nil
}
