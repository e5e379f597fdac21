package layout

import (
	"fmt"
	"strconv"
)

// TemplateID names one of the fixed page templates.
type TemplateID int

const (
	TemplateCover TemplateID = iota
	TemplateTitle
	TemplateContentOdd
	TemplateContentEven
	TemplateFullImage
	TemplateFinal
)

func (id TemplateID) String() string {
	switch id {
	case TemplateCover:
		return "Cover"
	case TemplateTitle:
		return "Title"
	case TemplateContentOdd:
		return "ContentOdd"
	case TemplateContentEven:
		return "ContentEven"
	case TemplateFullImage:
		return "FullImage"
	case TemplateFinal:
		return "Final"
	default:
		return "Template(" + strconv.Itoa(int(id)) + ")"
	}
}

// stage orders templates, content pair shares one stage.
func (id TemplateID) stage() int {
	switch id {
	case TemplateCover:
		return 0
	case TemplateTitle:
		return 1
	case TemplateContentOdd, TemplateContentEven:
		return 2
	case TemplateFullImage:
		return 3
	default:
		return 4
	}
}

// Rect uses top-left origin, units are points.
type Rect struct {
	X, Y, W, H float64
}

func (r Rect) Bottom() float64 { return r.Y + r.H }
func (r Rect) Right() float64  { return r.X + r.W }

type Align int

const (
	AlignLeft Align = iota
	AlignCenter
	AlignRight
)

// Canvas is drawing surface template backgrounds are painted on. It is
// implemented by the renderer.
type Canvas interface {
	// DrawImage paints asset stretched over r, unknown keys are ignored.
	DrawImage(key string, r Rect)
	// DrawText writes single line with baseline at y, x is the anchor
	// interpreted according to align.
	DrawText(text string, x, y, size float64, align Align)
}

// Template is page layout: content frame and background painted before any
// content is placed on the page.
type Template struct {
	ID    TemplateID
	Frame Rect
	// Background is called once for every page using this template.
	Background func(c Canvas, physical int)
}

// Geometry describes page and margins. Everything is in points.
type Geometry struct {
	PageW, PageH float64
	// Margin is inner margin, top and bottom.
	Margin float64
	// OuterExtra is added to Margin on the outer side of mirrored pages.
	OuterExtra float64
	Mirrored   bool
	// ReservedPages are excluded from visible page numbering.
	ReservedPages int
	HeaderSize    float64
}

// Margins returns left and right margin of content page with given parity.
func (g Geometry) Margins(odd bool) (left, right float64) {
	if !g.Mirrored {
		return g.Margin, g.Margin
	}
	inner, outer := g.Margin, g.Margin+g.OuterExtra
	if odd {
		// recto, spine is on the left
		return inner, outer
	}
	return outer, inner
}

// ContentFrame is text area of content page with given parity. Odd and even
// frames have the same size and differ in horizontal offset only.
func (g Geometry) ContentFrame(odd bool) Rect {
	left, right := g.Margins(odd)
	return Rect{X: left, Y: g.Margin, W: g.PageW - left - right, H: g.PageH - 2*g.Margin}
}

// VisiblePage converts physical page number to the one printed on pages,
// reserved pages have no visible number.
func (g Geometry) VisiblePage(physical int) (int, bool) {
	if physical <= g.ReservedPages {
		return 0, false
	}
	return physical - g.ReservedPages, true
}

func (g Geometry) page() Rect {
	return Rect{W: g.PageW, H: g.PageH}
}

// Decorations are optional images and running header texts. Image fields are
// asset keys, empty when not supplied.
type Decorations struct {
	Cover           string
	TitleBackground string
	FullImage       string
	FinalBackground string
	Title           string
	Author          string
}

// Registry holds fixed template set created once per document.
type Registry struct {
	Geometry    Geometry
	Decorations Decorations
	templates   map[TemplateID]*Template
}

const inch = 72.0

// NewRegistry creates templates. FullImage template exists only when full
// page image is supplied.
func NewRegistry(g Geometry, d Decorations) *Registry {
	if g.HeaderSize <= 0 {
		g.HeaderSize = 9
	}
	r := &Registry{Geometry: g, Decorations: d, templates: make(map[TemplateID]*Template)}
	page := g.page()

	fullBleed := func(key string) func(Canvas, int) {
		return func(c Canvas, _ int) {
			if key != "" {
				c.DrawImage(key, page)
			}
		}
	}

	r.add(&Template{
		ID:    TemplateCover,
		Frame: page,
		Background: func(c Canvas, physical int) {
			if physical == 1 && d.Cover != "" {
				c.DrawImage(d.Cover, page)
			}
		},
	})
	r.add(&Template{
		ID:         TemplateTitle,
		Frame:      Rect{X: g.Margin, Y: 0, W: g.PageW - 2*g.Margin, H: g.PageH},
		Background: fullBleed(d.TitleBackground),
	})
	for _, odd := range []bool{true, false} {
		id := TemplateContentEven
		if odd {
			id = TemplateContentOdd
		}
		r.add(&Template{
			ID:         id,
			Frame:      g.ContentFrame(odd),
			Background: r.runningHeads(odd),
		})
	}
	if d.FullImage != "" {
		r.add(&Template{
			ID:         TemplateFullImage,
			Frame:      page,
			Background: fullBleed(d.FullImage),
		})
	}
	r.add(&Template{
		ID:         TemplateFinal,
		Frame:      Rect{X: inch, Y: 0, W: g.PageW - 2*inch, H: g.PageH},
		Background: fullBleed(d.FinalBackground),
	})
	return r
}

func (r *Registry) add(t *Template) {
	r.templates[t.ID] = t
}

// runningHeads draws header anchored at the inner margin and centered footer
// with visible page number.
func (r *Registry) runningHeads(odd bool) func(Canvas, int) {
	g, d := r.Geometry, r.Decorations
	left, right := g.Margins(odd)
	headerY := g.Margin - 0.15*inch
	footerY := g.PageH - g.Margin + 0.25*inch

	return func(c Canvas, physical int) {
		if odd {
			if d.Author != "" {
				c.DrawText(d.Author, left, headerY, g.HeaderSize, AlignLeft)
			}
		} else if d.Title != "" {
			c.DrawText(d.Title, g.PageW-right, headerY, g.HeaderSize, AlignRight)
		}
		if n, ok := g.VisiblePage(physical); ok {
			c.DrawText(strconv.Itoa(n), g.PageW/2, footerY, g.HeaderSize, AlignCenter)
		}
	}
}

// Get returns registered template.
func (r *Registry) Get(id TemplateID) (*Template, error) {
	t, ok := r.templates[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTemplate, id)
	}
	return t, nil
}

// Has reports whether template is registered.
func (r *Registry) Has(id TemplateID) bool {
	_, ok := r.templates[id]
	return ok
}
