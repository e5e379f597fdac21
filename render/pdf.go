package render

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"go.uber.org/zap"

	"epub2pdf/archive"
	"epub2pdf/config"
	"epub2pdf/content"
	"epub2pdf/layout"
	"epub2pdf/misc"
)

const (
	familyCore = "Helvetica"
	familyMono = "Courier"
	familyTTF  = "Body"
)

// Options control typography of produced document.
type Options struct {
	FontSize    float64
	LineSpacing float64
	Fonts       config.FontsConfig
	Meta        archive.Metadata
	Created     time.Time
	// SkipBookmarkPages makes renderer leave Result.BookmarkPages empty, page
	// numbers are then recovered from document outline.
	SkipBookmarkPages bool
}

// PDF renders story with gofpdf.
type PDF struct {
	assets content.Assets
	opts   Options
	// fonts has TTF data keyed by gofpdf style, nil means core fonts
	fonts map[string][]byte
	log   *zap.Logger
}

// NewPDF creates renderer. When regular font is configured the remaining
// styles default to it.
func NewPDF(assets content.Assets, opts Options, log *zap.Logger) (*PDF, error) {
	if opts.FontSize <= 0 {
		opts.FontSize = 13
	}
	if opts.LineSpacing < 1 {
		opts.LineSpacing = 1.5
	}
	p := &PDF{assets: assets, opts: opts, log: log.Named("pdf")}

	if opts.Fonts.Regular == "" {
		return p, nil
	}
	p.fonts = make(map[string][]byte)
	for _, f := range []struct{ style, path string }{
		{"", opts.Fonts.Regular},
		{"B", opts.Fonts.Bold},
		{"I", opts.Fonts.Italic},
		{"BI", opts.Fonts.BoldItalic},
	} {
		path := f.path
		if path == "" {
			path = opts.Fonts.Regular
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("unable to load font: %w", err)
		}
		p.fonts[f.style] = data
	}
	return p, nil
}

type face struct {
	family string
	tr     func(string) string
}

type textStyle struct {
	size     float64
	leading  float64
	emphasis content.Emphasis
	align    layout.Align
	justify  bool
	indent   float64
	after    float64
}

// pdfRun keeps state of single Render call.
type pdfRun struct {
	*PDF
	ctx    context.Context
	doc    *gofpdf.Fpdf
	seq    *layout.Sequencer
	body   face
	mono   face
	frame  layout.Rect
	y      float64
	atTop  bool
	links  map[string]int
	images map[string]bool
	res    *Result
	// pages description panels were drawn on
	panels []int
}

// Render lays story out page by page. Pages are opened by page breaks and by
// content overflowing the current frame.
func (p *PDF) Render(ctx context.Context, story *layout.Story, reg *layout.Registry) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("%w: %v", ErrRenderFailure, r)
		}
	}()

	run := p.start(ctx, reg)
	if err := run.story(story); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRenderFailure, err)
	}

	var buf bytes.Buffer
	if err := run.doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("%w: unable to write document: %w", ErrRenderFailure, err)
	}
	run.res.Artifact = buf.Bytes()
	run.res.PageCount = len(run.res.PageTemplates)

	p.log.Debug("Document rendered",
		zap.Int("pages", run.res.PageCount),
		zap.Int("bytes", len(run.res.Artifact)),
		zap.Int("bookmarks", len(story.Keys)))
	return run.res, nil
}

func (p *PDF) start(ctx context.Context, reg *layout.Registry) *pdfRun {
	g := reg.Geometry
	doc := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: g.PageW, Ht: g.PageH},
	})
	doc.SetMargins(0, 0, 0)
	doc.SetAutoPageBreak(false, 0)
	doc.SetTitle(p.opts.Meta.Title, true)
	doc.SetAuthor(p.opts.Meta.Author, true)
	doc.SetCreator(misc.GetAppName()+" "+misc.GetVersion(), true)
	if !p.opts.Created.IsZero() {
		doc.SetCreationDate(p.opts.Created)
	}

	core := doc.UnicodeTranslatorFromDescriptor("")
	run := &pdfRun{
		PDF:    p,
		ctx:    ctx,
		doc:    doc,
		seq:    layout.NewSequencer(reg),
		body:   face{family: familyCore, tr: core},
		mono:   face{family: familyMono, tr: core},
		links:  make(map[string]int),
		images: make(map[string]bool),
		res:    &Result{},
	}
	if !p.opts.SkipBookmarkPages {
		run.res.BookmarkPages = make(map[string]int)
	}
	if p.fonts != nil {
		// fixed order keeps output stable
		for _, style := range []string{"", "B", "I", "BI"} {
			doc.AddUTF8FontFromBytes(familyTTF, style, p.fonts[style])
		}
		run.body = face{family: familyTTF, tr: func(s string) string { return s }}
	}
	return run
}

func (r *pdfRun) story(story *layout.Story) error {
	// cover is always the first page
	if err := r.newPage(); err != nil {
		return err
	}
	for i := range story.Items {
		if i%64 == 0 {
			if err := r.ctx.Err(); err != nil {
				return err
			}
		}
		it := &story.Items[i]
		var err error
		switch it.Kind {
		case layout.ItemSwitch:
			err = r.seq.Switch(it.Templates...)
		case layout.ItemPageBreak:
			err = r.newPage()
		case layout.ItemBookmark:
			err = r.bookmark(it)
		case layout.ItemSpacer:
			r.space(it.Height)
		case layout.ItemImage:
			err = r.image(it)
		case layout.ItemTOCEntry:
			err = r.tocEntry(it)
		case layout.ItemContent:
			err = r.content(it)
		}
		if err != nil {
			return fmt.Errorf("item %d (%s): %w", i, it.Kind, err)
		}
		if r.doc.Err() {
			return fmt.Errorf("item %d (%s): %w", i, it.Kind, r.doc.Error())
		}
	}
	return nil
}

func (r *pdfRun) newPage() error {
	physical := r.doc.PageNo() + 1
	tmpl, err := r.seq.BeginPage(physical)
	if err != nil {
		return err
	}
	r.doc.AddPage()
	r.res.PageTemplates = append(r.res.PageTemplates, tmpl.ID)
	if tmpl.Background != nil {
		tmpl.Background(r, physical)
	}
	r.frame = tmpl.Frame
	r.y = tmpl.Frame.Y
	r.atTop = true
	return nil
}

// ensure starts new page unless h points fit below current position. Nothing
// is moved from the top of a page since it would not fit anywhere else.
func (r *pdfRun) ensure(h float64) error {
	if r.atTop || r.y+h <= r.frame.Bottom()+0.01 {
		return nil
	}
	return r.newPage()
}

func (r *pdfRun) space(h float64) {
	r.y = min(r.y+h, r.frame.Bottom())
}

func (r *pdfRun) advance(h float64) {
	r.y += h
	r.atTop = false
}

func (r *pdfRun) link(key string) int {
	id, ok := r.links[key]
	if !ok {
		id = r.doc.AddLink()
		r.links[key] = id
	}
	return id
}

func (r *pdfRun) bookmark(it *layout.Item) error {
	// bookmark has to land on the page chapter title goes to
	if err := r.ensure(chapterTitle.leading); err != nil {
		return err
	}
	r.doc.SetLink(r.link(it.Key), r.y, -1)
	// outline text encoding follows current font
	r.doc.SetFont(r.body.family, "", r.opts.FontSize)
	r.doc.Bookmark(r.body.tr(it.Text), 0, r.y)
	if r.res.BookmarkPages != nil {
		r.res.BookmarkPages[it.Key] = r.doc.PageNo()
	}
	return nil
}

func (r *pdfRun) registerImage(key string) (*content.Asset, bool) {
	asset, ok := r.assets[key]
	if !ok || asset == nil {
		r.log.Debug("Image asset is not available", zap.String("key", key))
		return nil, false
	}
	if !r.images[key] {
		r.doc.RegisterImageOptionsReader(key, gofpdf.ImageOptions{ImageType: asset.Format}, bytes.NewReader(asset.Data))
		r.images[key] = true
	}
	return asset, true
}

func (r *pdfRun) image(it *layout.Item) error {
	asset, ok := r.registerImage(it.Key)
	if !ok {
		return nil
	}
	if err := r.ensure(it.Height); err != nil {
		return err
	}
	x := r.frame.X + (r.frame.W-it.Width)/2
	r.doc.ImageOptions(asset.Key, x, r.y, it.Width, it.Height, false, gofpdf.ImageOptions{ImageType: asset.Format}, 0, "")
	r.advance(it.Height)
	return nil
}

// DrawImage implements layout.Canvas.
func (r *pdfRun) DrawImage(key string, rect layout.Rect) {
	asset, ok := r.registerImage(key)
	if !ok {
		return
	}
	r.doc.ImageOptions(asset.Key, rect.X, rect.Y, rect.W, rect.H, false, gofpdf.ImageOptions{ImageType: asset.Format}, 0, "")
}

// DrawText implements layout.Canvas.
func (r *pdfRun) DrawText(text string, x, y, size float64, align layout.Align) {
	if text == "" {
		return
	}
	r.doc.SetFont(r.body.family, "", size)
	s := r.body.tr(text)
	w := r.doc.GetStringWidth(s)
	switch align {
	case layout.AlignCenter:
		x -= w / 2
	case layout.AlignRight:
		x -= w
	}
	r.doc.Text(x, y, s)
}

var (
	bookTitle    = textStyle{size: 30, leading: 36, emphasis: content.EmphasisBold, align: layout.AlignCenter}
	bookAuthor   = textStyle{size: 18, leading: 22, emphasis: content.EmphasisItalic, align: layout.AlignCenter}
	chapterTitle = textStyle{size: 20, leading: 24, emphasis: content.EmphasisBold, align: layout.AlignCenter, after: 12}
)

const (
	tocSize    = 14.0
	tocLeading = 18.0
	tocIndent  = 18.0
	listIndent = 18.0
	quoteInset = 36.0
	panelPad   = 20.0
	ruleHeight = 12.0
)

func (r *pdfRun) bodyStyle() textStyle {
	fs := r.opts.FontSize
	return textStyle{size: fs, leading: fs * r.opts.LineSpacing, justify: true}
}

func (r *pdfRun) typesetter(f face, size float64) *typesetter {
	return newTypesetter(func(text, style string) float64 {
		r.doc.SetFont(f.family, style, size)
		return r.doc.GetStringWidth(f.tr(text))
	})
}

func (r *pdfRun) content(it *layout.Item) error {
	switch it.Role {
	case layout.RoleBookTitle:
		return r.plain(it.Text, bookTitle)
	case layout.RoleBookAuthor:
		return r.plain(it.Text, bookAuthor)
	case layout.RoleTOCHeader, layout.RoleChapterTitle:
		return r.plain(it.Text, chapterTitle)
	case layout.RoleDescription:
		return r.description(it.Text)
	}
	if it.Block == nil {
		return nil
	}

	b := it.Block
	st := r.bodyStyle()
	switch b.Kind {
	case content.BlockHeading:
		st.size *= [...]float64{1.6, 1.35, 1.15}[min(max(b.Level, 1), 3)-1]
		st.leading = st.size * 1.25
		st.emphasis = content.EmphasisBold
		st.justify = false
		st.after = 4
		return r.plain(b.Text, st)
	case content.BlockParagraph:
		return r.paragraph(b.Spans, st, r.frame.W)
	case content.BlockQuote:
		st.emphasis = content.EmphasisItalic
		st.indent = quoteInset
		return r.paragraph([]content.InlineSpan{{Text: b.Text, Emphasis: content.EmphasisItalic}}, st, r.frame.W-2*quoteInset)
	case content.BlockList:
		return r.list(b, st)
	case content.BlockCode:
		return r.code(b.Text)
	case content.BlockRule:
		return r.rule()
	}
	return nil
}

func (r *pdfRun) plain(text string, st textStyle) error {
	if text == "" {
		return nil
	}
	return r.paragraph([]content.InlineSpan{{Text: text, Emphasis: st.emphasis}}, st, r.frame.W)
}

func (r *pdfRun) paragraph(spans []content.InlineSpan, st textStyle, width float64) error {
	ts := r.typesetter(r.body, st.size)
	for _, ln := range ts.lines(ts.words(spans), width) {
		if err := r.ensure(st.leading); err != nil {
			return err
		}
		r.drawLine(r.body, ts, ln, r.frame.X+st.indent, width, st)
		r.advance(st.leading)
	}
	r.space(st.after)
	return nil
}

func (r *pdfRun) drawLine(f face, ts *typesetter, ln line, x, width float64, st textStyle) {
	baseline := r.y + st.leading/2 + 0.3*st.size
	gap := ts.space
	switch {
	case st.justify:
		if !ln.hard && len(ln.words) > 1 {
			gap = (width - ln.natural) / float64(len(ln.words)-1)
		}
	case st.align == layout.AlignCenter:
		x += (width - ln.width(ts.space)) / 2
	case st.align == layout.AlignRight:
		x += width - ln.width(ts.space)
	}
	for i, w := range ln.words {
		if i > 0 {
			x += gap
		}
		for _, frag := range w.frags {
			r.doc.SetFont(f.family, frag.style, st.size)
			r.doc.Text(x, baseline, f.tr(frag.text))
			x += frag.width
		}
	}
}

func (r *pdfRun) list(b *content.Block, st textStyle) error {
	st.justify = false
	ts := r.typesetter(r.body, st.size)
	width := r.frame.W - listIndent
	for i, item := range b.Items {
		marker := "•"
		if b.Ordered {
			marker = strconv.Itoa(i+1) + "."
		}
		for j, ln := range ts.lines(ts.words(item), width) {
			if err := r.ensure(st.leading); err != nil {
				return err
			}
			if j == 0 {
				mw := ts.measure(marker, "")
				r.doc.SetFont(r.body.family, "", st.size)
				r.doc.Text(r.frame.X+listIndent-mw-4, r.y+st.leading/2+0.3*st.size, r.body.tr(marker))
			}
			r.drawLine(r.body, ts, ln, r.frame.X+listIndent, width, st)
			r.advance(st.leading)
		}
	}
	return nil
}

func (r *pdfRun) code(text string) error {
	size := r.opts.FontSize * 0.85
	leading := size * 1.3
	ts := r.typesetter(r.mono, size)
	perLine := max(int(r.frame.W/ts.measure("0", "")), 1)
	for _, raw := range strings.Split(text, "\n") {
		runes := []rune(raw)
		for start := 0; start == 0 || start < len(runes); start += perLine {
			piece := string(runes[start:min(start+perLine, len(runes))])
			if err := r.ensure(leading); err != nil {
				return err
			}
			r.doc.SetFont(r.mono.family, "", size)
			r.doc.Text(r.frame.X, r.y+leading/2+0.3*size, r.mono.tr(piece))
			r.advance(leading)
			if len(runes) == 0 {
				break
			}
		}
	}
	return nil
}

func (r *pdfRun) rule() error {
	if err := r.ensure(ruleHeight); err != nil {
		return err
	}
	mid := r.y + ruleHeight/2
	r.doc.SetDrawColor(128, 128, 128)
	r.doc.SetLineWidth(0.5)
	r.doc.Line(r.frame.X+r.frame.W/4, mid, r.frame.Right()-r.frame.W/4, mid)
	r.doc.SetDrawColor(0, 0, 0)
	r.advance(ruleHeight)
	return nil
}

func (r *pdfRun) tocEntry(it *layout.Item) error {
	if err := r.ensure(tocLeading); err != nil {
		return err
	}
	ts := r.typesetter(r.body, tocSize)
	numW := ts.measure("00000", "")
	x := r.frame.X + tocIndent
	title := ts.truncate(it.Text, "", r.frame.W-tocIndent-numW-2*ts.space)
	baseline := r.y + tocLeading/2 + 0.3*tocSize

	r.doc.SetFont(r.body.family, "", tocSize)
	r.doc.Text(x, baseline, r.body.tr(title))
	if it.Label != "" {
		r.doc.Text(r.frame.Right()-ts.measure(it.Label, ""), baseline, r.body.tr(it.Label))
	}
	r.doc.Link(x, r.y, r.frame.W-tocIndent, tocLeading, r.link(it.Key))
	r.advance(tocLeading)
	return nil
}

// description is drawn in white over translucent dark panel. Long text is
// split into several panels, one per page.
func (r *pdfRun) description(text string) error {
	if text == "" {
		return nil
	}
	st := r.bodyStyle()
	st.justify = false
	st.align = layout.AlignCenter
	st.indent = panelPad

	ts := r.typesetter(r.body, st.size)
	width := r.frame.W - 2*panelPad
	lines := ts.lines(ts.words([]content.InlineSpan{{Text: text}}), width)

	defer r.doc.SetTextColor(0, 0, 0)
	for len(lines) > 0 {
		if err := r.ensure(st.leading + 2*panelPad); err != nil {
			return err
		}
		n := int((r.frame.Bottom() - r.y - 2*panelPad) / st.leading)
		n = min(max(n, 1), len(lines))
		r.panel(float64(n)*st.leading + 2*panelPad)
		r.advance(panelPad)

		r.doc.SetTextColor(255, 255, 255)
		for _, ln := range lines[:n] {
			r.drawLine(r.body, ts, ln, r.frame.X+st.indent, width, st)
			r.advance(st.leading)
		}
		r.advance(panelPad)
		lines = lines[n:]
	}
	return nil
}

func (r *pdfRun) panel(h float64) {
	r.doc.SetAlpha(0.6, "Normal")
	r.doc.SetFillColor(0, 0, 0)
	r.doc.Rect(r.frame.X, r.y, r.frame.W, h, "F")
	r.doc.SetAlpha(1, "Normal")
	r.panels = append(r.panels, r.doc.PageNo())
}
