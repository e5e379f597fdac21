package jobs

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"epub2pdf/common"
	"epub2pdf/metrics"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestTracker(t *testing.T) (*Tracker, *clock) {
	t.Helper()
	c := &clock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	return NewTracker(metrics.New(), zaptest.NewLogger(t), WithClock(c.Now)), c
}

func TestTracker_Lifecycle(t *testing.T) {
	tr, _ := newTestTracker(t)

	job, err := tr.Create("a")
	if err != nil {
		t.Fatal(err)
	}
	if job.Status != common.JobStatusPending || job.Progress != 0 {
		t.Errorf("new job = %+v", job)
	}
	if _, err := tr.Create("a"); !errors.Is(err, ErrExists) {
		t.Errorf("duplicate Create() error = %v", err)
	}

	if err := tr.Update("a", 45, "Assembling document content..."); err != nil {
		t.Fatal(err)
	}
	job, _ = tr.Get("a")
	if job.Status != common.JobStatusProcessing || job.Progress != 45 || job.Message != "Assembling document content..." {
		t.Errorf("updated job = %+v", job)
	}

	if err := tr.Complete("a", Result{OutputPath: "/tmp/x.pdf", BookTitle: "Book", PageCount: 12}); err != nil {
		t.Fatal(err)
	}
	job, _ = tr.Get("a")
	if job.Status != common.JobStatusCompleted || job.Progress != 100 || job.Result == nil || job.Result.PageCount != 12 {
		t.Errorf("completed job = %+v", job)
	}

	// snapshot is detached from tracker state
	job.Result.PageCount = 1
	if again, _ := tr.Get("a"); again.Result.PageCount != 12 {
		t.Error("snapshot shares result with tracker")
	}

	if err := tr.Update("a", 10, "late"); !errors.Is(err, ErrFinished) {
		t.Errorf("Update() after completion error = %v", err)
	}
	if err := tr.Fail("a", "late"); !errors.Is(err, ErrFinished) {
		t.Errorf("Fail() after completion error = %v", err)
	}
	if _, err := tr.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v", err)
	}
}

func TestTracker_Fail(t *testing.T) {
	tr, _ := newTestTracker(t)
	if _, err := tr.Create("b"); err != nil {
		t.Fatal(err)
	}
	_ = tr.Update("b", 35, "Building PDF structure...")
	if err := tr.Fail("b", "An error occurred: boom"); err != nil {
		t.Fatal(err)
	}
	job, _ := tr.Get("b")
	if job.Status != common.JobStatusError || job.Progress != 0 || job.Message != "An error occurred: boom" {
		t.Errorf("failed job = %+v", job)
	}
}

func TestTracker_JSONHidesOutputPath(t *testing.T) {
	tr, _ := newTestTracker(t)
	_, _ = tr.Create("c")
	_ = tr.Complete("c", Result{OutputPath: "/secret/place.pdf", BookTitle: "Book", PageCount: 7})

	job, _ := tr.Get("c")
	data, err := json.Marshal(job)
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	if strings.Contains(s, "secret") {
		t.Errorf("output path leaked: %s", s)
	}
	for _, want := range []string{`"conversion_id":"c"`, `"status":"completed"`, `"page_count":7`, `"book_title":"Book"`} {
		if !strings.Contains(s, want) {
			t.Errorf("%s missing in %s", want, s)
		}
	}
}

func TestTracker_Sweep(t *testing.T) {
	tr, c := newTestTracker(t)

	dir := filepath.Join(t.TempDir(), "old")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "book.pdf")
	if err := os.WriteFile(out, []byte("%PDF-"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, _ = tr.Create("old")
	_ = tr.Complete("old", Result{OutputPath: out, BookTitle: "Old", PageCount: 5})
	_, _ = tr.Create("running")
	_ = tr.Update("running", 45, "Assembling document content...")
	c.Advance(50 * time.Minute)
	_, _ = tr.Create("fresh")
	c.Advance(15 * time.Minute)

	if n := tr.Sweep(time.Hour); n != 1 {
		t.Errorf("Sweep() removed %d, want 1", n)
	}
	if _, err := tr.Get("old"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(old) after sweep error = %v", err)
	}
	if _, err := tr.Get("fresh"); err != nil {
		t.Errorf("Get(fresh) after sweep error = %v", err)
	}
	// long running conversion outlives retention and can still finish
	if err := tr.Complete("running", Result{BookTitle: "Slow", PageCount: 9}); err != nil {
		t.Errorf("Complete(running) after sweep error = %v", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Errorf("output still exists: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("empty output directory still exists: %v", err)
	}
	if tr.Len() != 2 {
		t.Errorf("Len() = %d", tr.Len())
	}
}

func TestTracker_ConcurrentReaders(t *testing.T) {
	tr, _ := newTestTracker(t)
	_, _ = tr.Create("d")

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				job, err := tr.Get("d")
				if err != nil || job.Progress < 0 || job.Progress > 100 {
					t.Errorf("Get() = %+v, %v", job, err)
					return
				}
			}
		}()
	}
	for p := range 101 {
		_ = tr.Update("d", p, "working")
	}
	_ = tr.Complete("d", Result{PageCount: 1})
	close(stop)
	wg.Wait()
}
