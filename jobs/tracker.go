// Package jobs keeps state of conversion jobs from submission until they are
// swept.
package jobs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"epub2pdf/common"
	"epub2pdf/metrics"
)

var (
	ErrNotFound = errors.New("conversion not found")
	ErrFinished = errors.New("conversion already finished")
	ErrExists   = errors.New("conversion already exists")
)

// Result of completed conversion.
type Result struct {
	// OutputPath is never shown to clients.
	OutputPath string `json:"-"`
	BookTitle  string `json:"book_title"`
	PageCount  int    `json:"page_count"`
}

// Job is point in time copy of conversion state.
type Job struct {
	ID        string           `json:"conversion_id"`
	Status    common.JobStatus `json:"status"`
	Progress  int              `json:"progress"`
	Message   string           `json:"message"`
	CreatedAt time.Time        `json:"created_at"`
	Result    *Result          `json:"result,omitempty"`
}

// entry is mutated by single worker and read by any number of pollers.
type entry struct {
	mu  sync.RWMutex
	job Job
}

func (e *entry) snapshot() Job {
	e.mu.RLock()
	defer e.mu.RUnlock()

	j := e.job
	if j.Result != nil {
		r := *j.Result
		j.Result = &r
	}
	return j
}

// Tracker is registry of jobs. Entries never expire on their own, Sweep
// removes them.
type Tracker struct {
	items *cache.Cache
	now   func() time.Time
	rec   *metrics.Recorder
	log   *zap.Logger
}

type Option func(*Tracker)

// WithClock replaces time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

func NewTracker(rec *metrics.Recorder, log *zap.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		items: cache.New(cache.NoExpiration, 0),
		now:   time.Now,
		rec:   rec,
		log:   log.Named("jobs"),
	}
	for _, o := range opts {
		o(t)
	}
	t.items.OnEvicted(t.release)
	return t
}

// NewID returns fresh time ordered job identifier.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Create registers pending job.
func (t *Tracker) Create(id string) (Job, error) {
	e := &entry{job: Job{
		ID:        id,
		Status:    common.JobStatusPending,
		CreatedAt: t.now(),
	}}
	if err := t.items.Add(id, e, cache.NoExpiration); err != nil {
		return Job{}, fmt.Errorf("%w: %s", ErrExists, id)
	}
	return e.snapshot(), nil
}

func (t *Tracker) lookup(id string) (*entry, error) {
	v, ok := t.items.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return v.(*entry), nil
}

// modify applies fn to unfinished job.
func (t *Tracker) modify(id string, fn func(j *Job)) error {
	e, err := t.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.job.Status.Finished() {
		return fmt.Errorf("%w: %s", ErrFinished, id)
	}
	fn(&e.job)
	return nil
}

// Update marks job as processing and records its progress.
func (t *Tracker) Update(id string, progress int, message string) error {
	return t.modify(id, func(j *Job) {
		j.Status = common.JobStatusProcessing
		j.Progress = min(max(progress, 0), 100)
		j.Message = message
	})
}

// Complete stores conversion result.
func (t *Tracker) Complete(id string, res Result) error {
	var created time.Time
	err := t.modify(id, func(j *Job) {
		j.Status = common.JobStatusCompleted
		j.Progress = 100
		j.Result = &res
		created = j.CreatedAt
	})
	if err == nil {
		t.rec.JobFinished(common.JobStatusCompleted, t.now().Sub(created))
	}
	return err
}

// Fail puts job into error state, progress is reset.
func (t *Tracker) Fail(id, message string) error {
	var created time.Time
	err := t.modify(id, func(j *Job) {
		j.Status = common.JobStatusError
		j.Progress = 0
		j.Message = message
		created = j.CreatedAt
	})
	if err == nil {
		t.rec.JobFinished(common.JobStatusError, t.now().Sub(created))
	}
	return err
}

// Get returns copy of the job state.
func (t *Tracker) Get(id string) (Job, error) {
	e, err := t.lookup(id)
	if err != nil {
		return Job{}, err
	}
	return e.snapshot(), nil
}

// Len returns number of tracked jobs.
func (t *Tracker) Len() int {
	return t.items.ItemCount()
}

// Sweep removes finished jobs created more than maxAge ago together with
// their output and returns how many were removed. Jobs still in progress are
// left alone, their worker owns them.
func (t *Tracker) Sweep(maxAge time.Duration) int {
	cutoff := t.now().Add(-maxAge)

	var removed int
	for id, item := range t.items.Items() {
		e := item.Object.(*entry)
		e.mu.RLock()
		old := e.job.CreatedAt.Before(cutoff) && e.job.Status.Finished()
		e.mu.RUnlock()
		if old {
			t.items.Delete(id)
			removed++
		}
	}
	if removed > 0 {
		t.log.Debug("Jobs swept", zap.Int("removed", removed), zap.Int("left", t.items.ItemCount()))
	}
	return removed
}

// release is eviction hook, it deletes job output and its directory when
// nothing else is left there.
func (t *Tracker) release(id string, v any) {
	e := v.(*entry)
	e.mu.RLock()
	res := e.job.Result
	e.mu.RUnlock()
	if res == nil || res.OutputPath == "" {
		return
	}

	var err error
	if rerr := os.Remove(res.OutputPath); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
		err = multierr.Append(err, rerr)
	}
	dir := filepath.Dir(res.OutputPath)
	if entries, derr := os.ReadDir(dir); derr == nil && len(entries) == 0 {
		err = multierr.Append(err, os.Remove(dir))
	}
	if err != nil {
		t.log.Warn("Unable to release job output", zap.String("id", id), zap.Error(err))
	}
}
