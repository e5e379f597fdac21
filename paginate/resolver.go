// Package paginate renders story twice so that table of contents carries
// page numbers known only after layout.
package paginate

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"epub2pdf/layout"
	"epub2pdf/metrics"
	"epub2pdf/render"
)

// ErrBookmarkExtractionDegraded is reported (never returned) when page of
// some bookmark could not be learned from the first pass and sequential
// numbering was used instead.
var ErrBookmarkExtractionDegraded = errors.New("bookmark extraction degraded")

// Output of resolution.
type Output struct {
	// Result of the final pass.
	*render.Result
	Story *layout.Story
	// Pages has physical page for every bookmark key as injected into the
	// final pass.
	Pages map[string]int
	// Degraded lists keys numbered sequentially.
	Degraded []string
	// Drift lists keys whose page moved between passes.
	Drift []string
}

// Resolver drives two render passes over the same input.
type Resolver struct {
	renderer render.Renderer
	reg      *layout.Registry
	rec      *metrics.Recorder
	log      *zap.Logger

	// OnPass, if set, is called after each successful pass.
	OnPass func(pass int, story *layout.Story, res *render.Result)
}

func New(renderer render.Renderer, reg *layout.Registry, rec *metrics.Recorder, log *zap.Logger) *Resolver {
	return &Resolver{renderer: renderer, reg: reg, rec: rec, log: log.Named("paginate")}
}

// Resolve renders pass 1 with TOC page numbers missing, learns where every
// bookmark landed and renders pass 2 with resolved numbers. Both passes use
// the same input and registry. Failure of any pass aborts resolution.
func (r *Resolver) Resolve(ctx context.Context, in layout.Input) (*Output, error) {
	first := layout.Assemble(in, nil)
	res, err := r.renderer.Render(ctx, first, r.reg)
	if err != nil {
		return nil, fmt.Errorf("first pass failed: %w", err)
	}
	r.log.Debug("First pass done", zap.Int("pages", res.PageCount), zap.Int("bookmarks", len(first.Keys)))
	if r.OnPass != nil {
		r.OnPass(1, first, res)
	}

	pages, degraded := r.extract(first, res, in.Geometry)
	if len(degraded) > 0 {
		r.log.Warn("Using sequential chapter numbering",
			zap.Error(ErrBookmarkExtractionDegraded),
			zap.Strings("keys", degraded))
		r.rec.Condition(metrics.ConditionBookmarkExtractionDegraded, len(degraded))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	final := layout.Assemble(in, pages)
	out, err := r.renderer.Render(ctx, final, r.reg)
	if err != nil {
		return nil, fmt.Errorf("second pass failed: %w", err)
	}
	r.log.Debug("Second pass done", zap.Int("pages", out.PageCount))
	if r.OnPass != nil {
		r.OnPass(2, final, out)
	}

	drift := r.drift(pages, degraded, out)
	if res.PageCount != out.PageCount {
		r.log.Warn("Page count changed between passes", zap.Int("first", res.PageCount), zap.Int("second", out.PageCount))
	}
	return &Output{Result: out, Story: final, Pages: pages, Degraded: degraded, Drift: drift}, nil
}

// extract looks for bookmark pages reported by renderer first, then in the
// document outline. Outline entries are matched to bookmarks by order.
func (r *Resolver) extract(story *layout.Story, res *render.Result, g layout.Geometry) (map[string]int, []string) {
	pages := make(map[string]int, len(story.Keys))
	var (
		degraded []string
		outline  []render.OutlineEntry
		loaded   bool
	)
	for i, key := range story.Keys {
		if p := res.BookmarkPages[key]; p > 0 {
			pages[key] = p
			continue
		}
		if !loaded {
			loaded = true
			outline = r.outline(res.Artifact, len(story.Keys))
		}
		if outline != nil && outline[i].Page > 0 {
			pages[key] = outline[i].Page
			continue
		}
		// visible number becomes position + 1
		pages[key] = i + 1 + g.ReservedPages
		degraded = append(degraded, key)
	}
	return pages, degraded
}

func (r *Resolver) outline(artifact []byte, want int) []render.OutlineEntry {
	entries, err := render.ReadOutline(artifact)
	if err != nil {
		r.log.Debug("Document outline is not available", zap.Error(err))
		return nil
	}
	if len(entries) != want {
		r.log.Debug("Document outline does not match bookmarks", zap.Int("entries", len(entries)), zap.Int("bookmarks", want))
		return nil
	}
	return entries
}

func (r *Resolver) drift(pages map[string]int, degraded []string, res *render.Result) []string {
	if res.BookmarkPages == nil {
		return nil
	}
	skip := make(map[string]bool, len(degraded))
	for _, key := range degraded {
		skip[key] = true
	}
	var drift []string
	for key, p := range pages {
		if skip[key] {
			continue
		}
		if got, ok := res.BookmarkPages[key]; ok && got != p {
			r.log.Warn("Bookmark moved between passes", zap.String("key", key), zap.Int("first", p), zap.Int("second", got))
			drift = append(drift, key)
		}
	}
	slices.Sort(drift)
	r.rec.Condition(metrics.ConditionPageDrift, len(drift))
	return drift
}
