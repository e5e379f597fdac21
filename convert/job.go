package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"epub2pdf/jobs"
)

// RunJob performs conversion on behalf of tracked job. Every job gets its own
// directory under workDir, on failure it is removed. RunJob never returns
// error, outcome is recorded in tracker.
func (p *Pipeline) RunJob(ctx context.Context, tr *jobs.Tracker, id string, req Request, workDir string) {
	log := p.log.With(zap.String("id", id))
	if workDir == "" {
		workDir = os.TempDir()
	}
	dir := filepath.Join(workDir, id)

	log.Info("Conversion starting", zap.String("from", req.Source))
	defer func(start time.Time) {
		// image libraries are not always mature enough, single bad book must
		// not take whole server down
		if r := recover(); r != nil {
			log.Error("Conversion ended with panic",
				zap.Any("panic", r), zap.Duration("elapsed", time.Since(start)), zap.ByteString("stack", debug.Stack()))
			_ = os.RemoveAll(dir)
			if err := tr.Fail(id, fmt.Sprintf("An error occurred: %v", r)); err != nil {
				log.Warn("Unable to record failure", zap.Error(err))
			}
		}
	}(time.Now())

	progress := func(percent int, message string) {
		if err := tr.Update(id, percent, message); err != nil {
			log.Warn("Unable to record progress", zap.Error(err))
		}
	}

	start := time.Now()
	out, err := p.convert(ctx, req, dir, id, progress)
	if err != nil {
		log.Error("Conversion failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		if rerr := os.RemoveAll(dir); rerr != nil {
			log.Warn("Unable to remove job directory", zap.String("dir", dir), zap.Error(rerr))
		}
		if err := tr.Fail(id, "An error occurred: "+err.Error()); err != nil {
			log.Warn("Unable to record failure", zap.Error(err))
		}
		return
	}

	log.Info("Conversion completed",
		zap.Duration("elapsed", time.Since(start)), zap.String("to", out.Path), zap.Int("pages", out.PageCount))
	if err := tr.Complete(id, jobs.Result{OutputPath: out.Path, BookTitle: out.Title, PageCount: out.PageCount}); err != nil {
		log.Warn("Unable to record result", zap.Error(err))
		// nobody is going to download it
		if rerr := os.RemoveAll(dir); rerr != nil {
			log.Warn("Unable to remove job directory", zap.String("dir", dir), zap.Error(rerr))
		}
	}
}
