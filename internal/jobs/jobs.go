// Package jobs persists pipeline job descriptors as one JSON file per
// job. Reads are lock-free; mutations hold a per-job mutex plus, on
// POSIX systems, an fcntl lock on a sidecar file so concurrent
// processes cannot interleave a read-modify-write.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/fifosk/ebook-tools-sub003/internal/apperrors"
	"github.com/fifosk/ebook-tools-sub003/internal/files"
	"github.com/fifosk/ebook-tools-sub003/internal/logger"
)

// Role controls job visibility.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Status is the job lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// ErrNotFound reports a missing job id.
var ErrNotFound = errors.New("job not found")

// ErrForbidden reports a visibility violation.
var ErrForbidden = errors.New("job belongs to another user")

// Job type tags; free-form values are accepted for new run kinds.
const (
	TypePipeline   = "pipeline"
	TypeSubtitle   = "subtitle"
	TypeYouTubeDub = "youtube_dub"
)

// Job is the on-disk envelope for one pipeline run.
type Job struct {
	ID        string    `json:"job_id"`
	Type      string    `json:"job_type"`
	Owner     string    `json:"owner_user_id"`
	OwnerRole Role      `json:"owner_role"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// RequestPayload is the submitted run request. ResumeContext is a
	// deep clone of the last request payload committed to a successful
	// run, or the pre-run snapshot taken at creation; a crashed run
	// restarts from it.
	RequestPayload map[string]any `json:"request_payload,omitempty"`
	ResumeContext  map[string]any `json:"resume_context,omitempty"`
	ResultPayload  map[string]any `json:"result_payload,omitempty"`
}

// Clone returns a deep copy safe to hand to callers.
func (j *Job) Clone() *Job {
	out := *j
	out.RequestPayload = deepCopy(j.RequestPayload)
	out.ResumeContext = deepCopy(j.ResumeContext)
	out.ResultPayload = deepCopy(j.ResultPayload)
	return &out
}

// deepCopy clones a JSON-shaped map through a marshal round trip.
func deepCopy(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

// Store is a file-per-job store rooted at one directory.
type Store struct {
	root  string
	slots *semaphore.Weighted

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	now func() time.Time
}

// NewStore opens (creating if needed) a job store. maxWorkers bounds
// how many runs may hold a run slot at once; values below 1 mean 1.
func NewStore(root string, maxWorkers int) (*Store, error) {
	if err := files.EnsureDir(root, 0o755); err != nil {
		return nil, apperrors.Config(fmt.Errorf("job store root: %w", err))
	}
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Store{
		root:  root,
		slots: semaphore.NewWeighted(int64(maxWorkers)),
		locks: make(map[string]*sync.Mutex),
		now:   time.Now,
	}, nil
}

// AcquireRunSlot blocks until a run slot is free or ctx is done.
func (s *Store) AcquireRunSlot(ctx context.Context) error {
	if err := s.slots.Acquire(ctx, 1); err != nil {
		return apperrors.Canceled(err)
	}
	return nil
}

// ReleaseRunSlot returns a slot taken by AcquireRunSlot.
func (s *Store) ReleaseRunSlot() { s.slots.Release(1) }

func (s *Store) path(id string) string {
	return filepath.Join(s.root, id+".json")
}

func (s *Store) lockPath(id string) string {
	return filepath.Join(s.root, id+".lock")
}

// jobLock returns the process-local mutex for one job id.
func (s *Store) jobLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// Create persists a new job. A missing ID is assigned; the resume
// context starts as a snapshot of the request payload.
func (s *Store) Create(job *Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Type == "" {
		job.Type = TypePipeline
	}
	if job.OwnerRole == "" {
		job.OwnerRole = RoleUser
	}
	if job.Status == "" {
		job.Status = StatusPending
	}
	now := s.now()
	job.CreatedAt = now
	job.UpdatedAt = now
	if job.ResumeContext == nil {
		job.ResumeContext = deepCopy(job.RequestPayload)
	}

	l := s.jobLock(job.ID)
	l.Lock()
	defer l.Unlock()
	if _, err := os.Stat(s.path(job.ID)); err == nil {
		return apperrors.Validation(fmt.Errorf("job %s already exists", job.ID))
	}
	return s.write(job)
}

// Get returns a job, enforcing visibility: admins see every job, other
// users only their own. The read takes no lock; it sees the last
// atomically committed state.
func (s *Store) Get(id, userID string, role Role) (*Job, error) {
	job, err := s.read(id)
	if err != nil {
		return nil, err
	}
	if role != RoleAdmin && job.Owner != userID {
		return nil, apperrors.Auth(fmt.Errorf("job %s: %w", id, ErrForbidden))
	}
	return job, nil
}

// Mutate applies f under the job's mutex and commits the result with an
// atomic replace. f receives a deep copy; returning an error aborts the
// mutation with the prior state intact.
func (s *Store) Mutate(id string, f func(*Job) error) error {
	l := s.jobLock(id)
	l.Lock()
	defer l.Unlock()

	flock, err := acquireFileLock(s.lockPath(id))
	if err != nil {
		logger.Warn("Job file lock unavailable, relying on process mutex", "job", id, "error", err)
	} else {
		defer flock.release()
	}

	job, err := s.read(id)
	if err != nil {
		return err
	}
	if err := f(job); err != nil {
		return err
	}
	job.UpdatedAt = s.now()
	return s.write(job)
}

// MarkCompleted records a successful run: the result payload is stored
// and the resume context advances to the request payload that succeeded.
func (s *Store) MarkCompleted(id string, result map[string]any) error {
	return s.Mutate(id, func(job *Job) error {
		job.Status = StatusCompleted
		job.ResultPayload = deepCopy(result)
		job.ResumeContext = deepCopy(job.RequestPayload)
		return nil
	})
}

// List returns the jobs visible to userID, newest first.
func (s *Store) List(userID string, role Role) ([]*Job, error) {
	paths, err := filepath.Glob(filepath.Join(s.root, "*.json"))
	if err != nil {
		return nil, err
	}
	var out []*Job
	for _, path := range paths {
		job, err := readFile(path)
		if err != nil {
			logger.Warn("Skipping unreadable job file", "path", path, "error", err)
			continue
		}
		if role != RoleAdmin && job.Owner != userID {
			continue
		}
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) read(id string) (*Job, error) {
	job, err := readFile(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	return job, err
}

func readFile(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, apperrors.Persistence(fmt.Errorf("job file %s: %w", path, err))
	}
	return &job, nil
}

func (s *Store) write(job *Job) error {
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return apperrors.Persistence(err)
	}
	if err := files.AtomicWrite(s.path(job.ID), data, 0o644); err != nil {
		return apperrors.Persistence(err)
	}
	return nil
}
