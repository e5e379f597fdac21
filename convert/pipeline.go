package convert

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"epub2pdf/archive"
	"epub2pdf/config"
	"epub2pdf/content"
	"epub2pdf/layout"
	"epub2pdf/metrics"
	"epub2pdf/paginate"
	"epub2pdf/render"
	"epub2pdf/source"
	"epub2pdf/state"
	"epub2pdf/utils/images"
)

// ErrBadRequest is returned for requests which cannot be converted at all.
var ErrBadRequest = errors.New("bad request")

// Keys of decoration images, they never clash with book resources since
// those are keyed by base name.
const (
	keyCover     = "decoration/cover"
	keyTitleBG   = "decoration/title"
	keyFullImage = "decoration/full"
	keyFinalBG   = "decoration/final"
)

// Request describes single conversion. Zero layout values are taken from
// configuration.
type Request struct {
	Source          string  `json:"epub_url"`
	CoverInput      string  `json:"cover_input,omitempty"`
	TitleBackground string  `json:"title_page_bg_input,omitempty"`
	FullPageImage   string  `json:"full_page_image_input,omitempty"`
	FontSize        float64 `json:"font_size,omitempty"`
	LineSpacing     float64 `json:"line_spacing,omitempty"`
	// Margin is in inches.
	Margin float64 `json:"margin_size,omitempty"`
}

// Validate fills defaults and checks values are usable.
func (r *Request) Validate(cfg *config.LayoutConfig) error {
	if r.Source == "" {
		return fmt.Errorf("%w: EPUB URL is required", ErrBadRequest)
	}
	if r.FontSize == 0 {
		r.FontSize = cfg.FontSize
	}
	if r.LineSpacing == 0 {
		r.LineSpacing = cfg.LineSpacing
	}
	if r.Margin == 0 {
		r.Margin = cfg.Margin
	}
	switch {
	case r.FontSize < 4 || r.FontSize > 72:
		return fmt.Errorf("%w: font size %g is out of range", ErrBadRequest, r.FontSize)
	case r.LineSpacing < 1 || r.LineSpacing > 4:
		return fmt.Errorf("%w: line spacing %g is out of range", ErrBadRequest, r.LineSpacing)
	case r.Margin < 0 || r.Margin > 3:
		return fmt.Errorf("%w: margin %g is out of range", ErrBadRequest, r.Margin)
	}
	return nil
}

// CheckRemote makes sure every reference of request is http or https URL.
func (r *Request) CheckRemote() error {
	refs := []struct{ name, ref string }{
		{"epub_url", r.Source},
		{"cover_input", r.CoverInput},
		{"title_page_bg_input", r.TitleBackground},
		{"full_page_image_input", r.FullPageImage},
	}
	for _, f := range refs {
		if f.ref != "" && !source.IsRemote(f.ref) {
			return fmt.Errorf("%w: %s must be http or https URL", ErrBadRequest, f.name)
		}
	}
	return nil
}

// Progress receives conversion milestones.
type Progress func(percent int, message string)

// Progress milestones.
const (
	StepFetch    = 5
	StepContent  = 15
	StepImages   = 25
	StepStruct   = 35
	StepAssemble = 45
	StepGenerate = 85
	StepDone     = 100
)

var stepMessages = map[int]string{
	StepFetch:    "Fetching EPUB file...",
	StepContent:  "Processing EPUB content...",
	StepImages:   "Preparing images...",
	StepStruct:   "Building PDF structure...",
	StepAssemble: "Assembling document content...",
	StepGenerate: "Generating PDF...",
	StepDone:     "PDF generation complete!",
}

// Output of successful conversion.
type Output struct {
	Path      string
	Title     string
	PageCount int
	Issues    []content.Issue
	Degraded  []string
}

// Pipeline converts EPUB into PDF: fetch, read, build content, resolve
// pages and write result.
type Pipeline struct {
	cfg       *config.Config
	fetch     *source.Fetcher
	rec       *metrics.Recorder
	rpt       *config.Report
	log       *zap.Logger
	overwrite bool
	// wrap, if set, decorates renderer, tests use it to damage renderer
	// output
	wrap func(render.Renderer) render.Renderer
}

type Option func(*options)

type options struct {
	fetch []source.Option
}

// WithLocalSources allows book and images to be local files. Only command
// line conversion enables it, submitted jobs are limited to remote sources.
func WithLocalSources() Option {
	return func(o *options) {
		o.fetch = append(o.fetch, source.WithLocal())
	}
}

func NewPipeline(env *state.LocalEnv, opts ...Option) *Pipeline {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	log := env.Log.Named("convert")
	return &Pipeline{
		cfg:       env.Cfg,
		fetch:     source.NewFetcher(&env.Cfg.Fetch, env.Log, o.fetch...),
		rec:       env.Metrics,
		rpt:       env.Rpt,
		log:       log,
		overwrite: env.Overwrite,
	}
}

func (p *Pipeline) step(progress Progress, n int) {
	p.log.Debug(stepMessages[n], zap.Int("progress", n))
	if progress != nil {
		progress(n, stepMessages[n])
	}
}

// Convert runs whole conversion and writes document into dst directory.
// Request must be validated.
func (p *Pipeline) Convert(ctx context.Context, req Request, dst string, progress Progress) (*Output, error) {
	return p.convert(ctx, req, dst, "", progress)
}

func (p *Pipeline) convert(ctx context.Context, req Request, dst, jobID string, progress Progress) (*Output, error) {
	rpt := p.rpt
	if jobID != "" {
		rpt = rpt.In(path.Join("jobs", jobID))
	}

	p.step(progress, StepFetch)
	data, err := p.fetch.Book(ctx, req.Source)
	if err != nil {
		return nil, err
	}

	p.step(progress, StepContent)
	book, err := archive.ReadEPUB(data, p.log)
	if err != nil {
		return nil, err
	}
	c, err := content.Prepare(ctx, book, p.log)
	if err != nil {
		return nil, fmt.Errorf("unable to prepare content: %w", err)
	}
	p.rec.Condition(metrics.ConditionAssetMissing, c.CountIssues(content.IssueAssetMissing))
	p.rec.Condition(metrics.ConditionInvalidImageDimensions, c.CountIssues(content.IssueInvalidImageDimensions))
	if rpt != nil {
		rpt.StoreData("content.txt", []byte(c.String()))
	}

	lc := &p.cfg.Layout
	pw, ph := lc.PageSize.Dimensions()
	geometry := layout.Geometry{
		PageW:         pw,
		PageH:         ph,
		Margin:        config.Points(req.Margin),
		OuterExtra:    config.Points(lc.OuterMarginExtra),
		Mirrored:      lc.MirroredMargins,
		ReservedPages: lc.ReservedPages,
	}

	p.step(progress, StepImages)
	deco, err := p.decorations(ctx, req, c, geometry)
	if err != nil {
		return nil, err
	}

	p.step(progress, StepStruct)
	reg := layout.NewRegistry(geometry, deco)
	renderer, err := render.NewPDF(c.Assets, render.Options{
		FontSize:    req.FontSize,
		LineSpacing: req.LineSpacing,
		Fonts:       lc.Fonts,
		Meta:        c.Meta,
		Created:     time.Now(),
	}, p.log)
	if err != nil {
		return nil, fmt.Errorf("unable to prepare renderer: %w", err)
	}
	var r render.Renderer = renderer
	if p.wrap != nil {
		r = p.wrap(r)
	}

	resolver := paginate.New(r, reg, p.rec, p.log)
	resolver.OnPass = func(pass int, story *layout.Story, res *render.Result) {
		if rpt != nil {
			rpt.StoreData(fmt.Sprintf("story-pass%d.txt", pass), []byte(story.String()))
			if pass == 1 {
				rpt.StoreData("pass1.pdf", res.Artifact)
			}
		}
		if pass == 1 {
			p.step(progress, StepGenerate)
		}
	}

	p.step(progress, StepAssemble)
	out, err := resolver.Resolve(ctx, layout.Input{
		Content:      c,
		Geometry:     geometry,
		ImageSpacing: config.Points(lc.ImageSpacing),
		TOCTitle:     lc.TOCTitle,
		HasFullImage: deco.FullImage != "",
	})
	if err != nil {
		return nil, err
	}
	p.rec.Condition(metrics.ConditionInvalidImageDimensions, len(out.Story.Issues))
	p.rec.Pages(out.PageCount)

	outputName := buildOutputPath(c.Meta, Values{
		SourceFile: sourceBase(req.Source),
		JobID:      jobID,
		PageSize:   lc.PageSize.String(),
	}, dst, &p.cfg.Jobs, p.log)
	if err := p.write(outputName, out.Artifact); err != nil {
		return nil, err
	}
	if jobID != "" {
		// job output is removed when job expires
		if err := rpt.StoreCopy("result.pdf", outputName); err != nil {
			p.log.Warn("Unable to store result in report", zap.Error(err))
		}
	} else {
		rpt.Store("result.pdf", outputName)
	}

	p.step(progress, StepDone)
	return &Output{
		Path:      outputName,
		Title:     c.Meta.Title,
		PageCount: out.PageCount,
		Issues:    append(c.Issues, out.Story.Issues...),
		Degraded:  out.Degraded,
	}, nil
}

// decorations prepares optional page images. Any of them failing is not
// fatal, page is produced without it.
func (p *Pipeline) decorations(ctx context.Context, req Request, c *content.Content, g layout.Geometry) (layout.Decorations, error) {
	deco := layout.Decorations{Title: c.Meta.Title, Author: c.Meta.Author}

	var coverData []byte
	if req.CoverInput != "" {
		if coverData = p.image(ctx, req.CoverInput, keyCover, c.Assets); coverData != nil {
			deco.Cover = keyCover
		}
	} else if c.Cover != "" {
		// book declared cover, it has been normalized already
		deco.Cover = c.Cover
		coverData = c.Assets[c.Cover].Data
	}
	if req.TitleBackground != "" && p.image(ctx, req.TitleBackground, keyTitleBG, c.Assets) != nil {
		deco.TitleBackground = keyTitleBG
	}
	if req.FullPageImage != "" && p.image(ctx, req.FullPageImage, keyFullImage, c.Assets) != nil {
		deco.FullImage = keyFullImage
	}
	if err := ctx.Err(); err != nil {
		return deco, err
	}

	if coverData != nil {
		w, h := int(math.Round(g.PageW)), int(math.Round(g.PageH))
		blurred, err := images.Blurred(coverData, w, h, p.cfg.Images.BlurSigma, p.cfg.Images.JPEGQuality)
		if err != nil {
			p.log.Warn("Unable to prepare final page background", zap.Error(err))
		} else {
			c.Assets[keyFinalBG] = &content.Asset{Key: keyFinalBG, Format: images.FormatJPEG, Data: blurred, Width: w, Height: h}
			deco.FinalBackground = keyFinalBG
		}
	}
	return deco, nil
}

// image fetches and normalizes decoration image storing it under key. It
// returns original data or nil.
func (p *Pipeline) image(ctx context.Context, ref, key string, assets content.Assets) []byte {
	data, err := p.fetch.Image(ctx, ref)
	if err != nil {
		p.log.Warn("Unable to fetch image, skipping", zap.String("image", key), zap.Error(err))
		p.rec.Condition(metrics.ConditionAssetMissing, 1)
		return nil
	}
	n, err := images.Normalize(data)
	if err != nil {
		p.log.Warn("Unable to prepare image, skipping", zap.String("image", key), zap.Error(err))
		p.rec.Condition(metrics.ConditionAssetMissing, 1)
		return nil
	}
	assets[key] = &content.Asset{Key: key, Format: n.Format, Data: n.Data, Width: n.Width, Height: n.Height}
	return data
}

func (p *Pipeline) write(outputName string, data []byte) error {
	if _, err := os.Stat(outputName); err == nil {
		if !p.overwrite {
			return fmt.Errorf("output file already exists: %s", outputName)
		}
		p.log.Warn("Overwriting existing file", zap.String("file", outputName))
	} else if !os.IsNotExist(err) {
		return err
	} else if err := os.MkdirAll(filepath.Dir(outputName), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}
	if err := os.WriteFile(outputName, data, 0644); err != nil {
		return fmt.Errorf("unable to write output: %w", err)
	}
	return nil
}
