package paginate

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"testing"

	"go.uber.org/zap/zaptest"

	"epub2pdf/archive"
	"epub2pdf/content"
	"epub2pdf/layout"
	"epub2pdf/metrics"
	"epub2pdf/render"
)

func testInput() layout.Input {
	var chapters []content.Chapter
	for i, n := range []int{40, 3, 25} {
		ch := content.Chapter{Index: i, Title: fmt.Sprintf("Chapter %d", i+1)}
		for j := range n {
			ch.Blocks = append(ch.Blocks, content.Block{Kind: content.BlockParagraph, Spans: []content.InlineSpan{
				{Text: fmt.Sprintf("Paragraph %d.%d keeps going for a while so that it wraps over a few lines of the page frame.", i, j)},
			}})
		}
		chapters = append(chapters, ch)
	}
	return layout.Input{
		Content: &content.Content{
			Meta:     archive.Metadata{Title: "Book", Author: "Writer", Description: "About"},
			Chapters: chapters,
		},
		Geometry:     layout.Geometry{PageW: 612, PageH: 792, Margin: 72, OuterExtra: 18, Mirrored: true, ReservedPages: 3},
		ImageSpacing: 72,
		TOCTitle:     "Contents",
	}
}

func newResolver(t *testing.T, in layout.Input, opts render.Options, wrap func(render.Renderer) render.Renderer) (*Resolver, *metrics.Recorder) {
	t.Helper()
	pdf, err := render.NewPDF(in.Content.Assets, opts, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	var r render.Renderer = pdf
	if wrap != nil {
		r = wrap(pdf)
	}
	rec := metrics.New()
	reg := layout.NewRegistry(in.Geometry, layout.Decorations{Title: "Book", Author: "Writer"})
	return New(r, reg, rec, zaptest.NewLogger(t)), rec
}

func labels(s *layout.Story) []string {
	var out []string
	for _, e := range s.TOCEntries() {
		out = append(out, e.Label)
	}
	return out
}

func TestResolve_TwoPassConsistency(t *testing.T) {
	in := testInput()

	var outs []*Output
	for range 2 {
		r, _ := newResolver(t, in, render.Options{}, nil)
		out, err := r.Resolve(context.Background(), in)
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		outs = append(outs, out)
	}

	a, b := outs[0], outs[1]
	if a.PageCount != b.PageCount || !reflect.DeepEqual(a.Pages, b.Pages) {
		t.Errorf("runs differ: %d %v / %d %v", a.PageCount, a.Pages, b.PageCount, b.Pages)
	}
	if len(a.Degraded) != 0 || len(a.Drift) != 0 {
		t.Errorf("degraded = %v, drift = %v", a.Degraded, a.Drift)
	}
	if !reflect.DeepEqual(a.Pages, a.BookmarkPages) {
		t.Errorf("final pass pages %v differ from resolved %v", a.BookmarkPages, a.Pages)
	}

	got := labels(a.Story)
	if len(got) != 3 {
		t.Fatalf("toc labels = %v", got)
	}
	prev := 0
	for i, l := range got {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 || n < prev {
			t.Errorf("entry %d label %q after %d", i, l, prev)
		}
		prev = n
	}
	if got[0] != "1" {
		t.Errorf("first chapter label = %q", got[0])
	}
}

func TestResolve_FromOutline(t *testing.T) {
	in := testInput()

	tracked, _ := newResolver(t, in, render.Options{}, nil)
	want, err := tracked.Resolve(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}

	r, rec := newResolver(t, in, render.Options{SkipBookmarkPages: true}, nil)
	got, err := r.Resolve(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got.Pages, want.Pages) || len(got.Degraded) != 0 {
		t.Errorf("outline pages = %v (degraded %v), want %v", got.Pages, got.Degraded, want.Pages)
	}
	if n := rec.ConditionCount(metrics.ConditionBookmarkExtractionDegraded); n != 0 {
		t.Errorf("degraded counter = %v", n)
	}
}

// blind hides every trace of bookmark placement.
type blind struct {
	render.Renderer
}

func (b blind) Render(ctx context.Context, story *layout.Story, reg *layout.Registry) (*render.Result, error) {
	res, err := b.Renderer.Render(ctx, story, reg)
	if err != nil {
		return nil, err
	}
	res.BookmarkPages = nil
	res.Artifact = []byte("not a document")
	return res, nil
}

func TestResolve_ForcedFallback(t *testing.T) {
	in := testInput()
	r, rec := newResolver(t, in, render.Options{}, func(r render.Renderer) render.Renderer { return blind{r} })

	out, err := r.Resolve(context.Background(), in)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got := labels(out.Story); !reflect.DeepEqual(got, []string{"1", "2", "3"}) {
		t.Errorf("toc labels = %v", got)
	}
	if !reflect.DeepEqual(out.Degraded, []string{"chapter_0", "chapter_1", "chapter_2"}) {
		t.Errorf("degraded = %v", out.Degraded)
	}
	if n := rec.ConditionCount(metrics.ConditionBookmarkExtractionDegraded); n != 3 {
		t.Errorf("degraded counter = %v, want 3", n)
	}
}

type failing struct {
	calls int
}

func (f *failing) Render(context.Context, *layout.Story, *layout.Registry) (*render.Result, error) {
	f.calls++
	return nil, fmt.Errorf("%w: out of paper", render.ErrRenderFailure)
}

func TestResolve_FirstPassFailure(t *testing.T) {
	in := testInput()
	f := &failing{}
	r := New(f, layout.NewRegistry(in.Geometry, layout.Decorations{}), nil, zaptest.NewLogger(t))

	var passes []int
	r.OnPass = func(pass int, _ *layout.Story, _ *render.Result) { passes = append(passes, pass) }

	if _, err := r.Resolve(context.Background(), in); !errors.Is(err, render.ErrRenderFailure) {
		t.Errorf("Resolve() error = %v", err)
	}
	if f.calls != 1 || len(passes) != 0 {
		t.Errorf("calls = %d, passes = %v", f.calls, passes)
	}
}
