// Package progress holds the run-wide counters shared by every stage. The
// tracker is the only shared-mutable object in a run; all access goes
// through its lock.
package progress

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Stage keys for retry counters and batch statistics.
const (
	StageTranslation     = "translation"
	StageTransliteration = "transliteration"
	StageMedia           = "media"
	StageExport          = "export"
)

// BatchStats aggregates per-stage LLM batch call statistics.
type BatchStats struct {
	Batches  int           `json:"batches"`
	Items    int           `json:"items"`
	Failures int           `json:"failures"`
	Elapsed  time.Duration `json:"elapsed"`
}

// Snapshot is an immutable view handed to subscribers and status
// endpoints.
type Snapshot struct {
	Total                int                       `json:"total"`
	CompletedTranslation int                       `json:"completed_translation"`
	CompletedMedia       int                       `json:"completed_media"`
	Retries              map[string]map[string]int `json:"retries"`
	BatchStats           map[string]BatchStats     `json:"batch_stats"`
	RatePerSecond        float64                   `json:"rate_per_second"`
	ETA                  time.Duration             `json:"eta"`
}

// Tracker is a thread-safe progress aggregate.
type Tracker struct {
	mu                   sync.Mutex
	total                int
	completedTranslation int
	completedMedia       int
	retries              map[string]map[string]int
	batchStats           map[string]BatchStats
	completions          []time.Time
	subscribers          []func(Snapshot)

	completedVec *prometheus.CounterVec
	retryVec     *prometheus.CounterVec

	now func() time.Time
}

// rateWindow is the sliding window for the completion-rate estimate.
const rateWindow = 10 * time.Second

func NewTracker() *Tracker {
	return &Tracker{
		retries:    map[string]map[string]int{},
		batchStats: map[string]BatchStats{},
		now:        time.Now,
	}
}

// RegisterMetrics attaches Prometheus counters to the tracker. Safe to skip
// for runs without a metrics endpoint.
func (t *Tracker) RegisterMetrics(reg prometheus.Registerer) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completedVec = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ebook_sentences_completed_total",
		Help: "Sentences completed per pipeline stage.",
	}, []string{"stage"})
	t.retryVec = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ebook_stage_retries_total",
		Help: "Retries per stage and rejection reason.",
	}, []string{"stage", "reason"})
	if err := reg.Register(t.completedVec); err != nil {
		return err
	}
	return reg.Register(t.retryVec)
}

// SetTotal sets the expected sentence count.
func (t *Tracker) SetTotal(total int) {
	t.mu.Lock()
	t.total = total
	t.mu.Unlock()
}

// AddTotal adjusts the total upward when a source discovers more sentences.
func (t *Tracker) AddTotal(delta int) {
	t.mu.Lock()
	t.total += delta
	t.mu.Unlock()
}

// CompleteTranslation records n finished translations.
func (t *Tracker) CompleteTranslation(n int) {
	t.mu.Lock()
	t.completedTranslation += n
	now := t.now()
	for i := 0; i < n; i++ {
		t.completions = append(t.completions, now)
	}
	t.trimWindow(now)
	if t.completedVec != nil {
		t.completedVec.WithLabelValues(StageTranslation).Add(float64(n))
	}
	t.mu.Unlock()
}

// CompleteMedia records n finished media items.
func (t *Tracker) CompleteMedia(n int) {
	t.mu.Lock()
	t.completedMedia += n
	if t.completedVec != nil {
		t.completedVec.WithLabelValues(StageMedia).Add(float64(n))
	}
	t.mu.Unlock()
}

// Retry increments the (stage, reason) retry counter.
func (t *Tracker) Retry(stage, reason string) {
	t.mu.Lock()
	byReason := t.retries[stage]
	if byReason == nil {
		byReason = map[string]int{}
		t.retries[stage] = byReason
	}
	byReason[reason]++
	if t.retryVec != nil {
		t.retryVec.WithLabelValues(stage, reason).Inc()
	}
	t.mu.Unlock()
}

// RecordBatch folds one batch call into the stage statistics.
func (t *Tracker) RecordBatch(stage string, items, failures int, elapsed time.Duration) {
	t.mu.Lock()
	stats := t.batchStats[stage]
	stats.Batches++
	stats.Items += items
	stats.Failures += failures
	stats.Elapsed += elapsed
	t.batchStats[stage] = stats
	t.mu.Unlock()
}

// Subscribe registers a callback invoked on each Publish.
func (t *Tracker) Subscribe(fn func(Snapshot)) {
	if fn == nil {
		return
	}
	t.mu.Lock()
	t.subscribers = append(t.subscribers, fn)
	t.mu.Unlock()
}

// Snapshot returns a deep-copied view.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// Publish pushes the current snapshot to every subscriber.
func (t *Tracker) Publish() {
	t.mu.Lock()
	snap := t.snapshotLocked()
	subs := make([]func(Snapshot), len(t.subscribers))
	copy(subs, t.subscribers)
	t.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

func (t *Tracker) snapshotLocked() Snapshot {
	retries := make(map[string]map[string]int, len(t.retries))
	for stage, byReason := range t.retries {
		inner := make(map[string]int, len(byReason))
		for reason, n := range byReason {
			inner[reason] = n
		}
		retries[stage] = inner
	}
	stats := make(map[string]BatchStats, len(t.batchStats))
	for stage, s := range t.batchStats {
		stats[stage] = s
	}

	now := t.now()
	t.trimWindow(now)
	rate := 0.0
	if len(t.completions) > 0 {
		rate = float64(len(t.completions)) / rateWindow.Seconds()
	}
	var eta time.Duration
	if rate > 0 && t.total > t.completedTranslation {
		eta = time.Duration(float64(t.total-t.completedTranslation)/rate) * time.Second
	}

	return Snapshot{
		Total:                t.total,
		CompletedTranslation: t.completedTranslation,
		CompletedMedia:       t.completedMedia,
		Retries:              retries,
		BatchStats:           stats,
		RatePerSecond:        rate,
		ETA:                  eta,
	}
}

func (t *Tracker) trimWindow(now time.Time) {
	cutoff := now.Add(-rateWindow)
	idx := 0
	for idx < len(t.completions) && t.completions[idx].Before(cutoff) {
		idx++
	}
	if idx > 0 {
		t.completions = append(t.completions[:0], t.completions[idx:]...)
	}
}

// RetryCount returns the counter for one (stage, reason) pair.
func (t *Tracker) RetryCount(stage, reason string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.retries[stage][reason]
}
