package content

import (
	"strings"
)

// Emphasis of inline text run.
type Emphasis int

const (
	EmphasisNone Emphasis = iota
	EmphasisBold
	EmphasisItalic
	EmphasisBoldItalic
)

func (e Emphasis) String() string {
	switch e {
	case EmphasisBold:
		return "bold"
	case EmphasisItalic:
		return "italic"
	case EmphasisBoldItalic:
		return "bold_italic"
	default:
		return "none"
	}
}

func (e Emphasis) Bold() bool   { return e == EmphasisBold || e == EmphasisBoldItalic }
func (e Emphasis) Italic() bool { return e == EmphasisItalic || e == EmphasisBoldItalic }

// With adds requested emphasis to the current one, nesting accumulates.
func (e Emphasis) With(bold, italic bool) Emphasis {
	bold = bold || e.Bold()
	italic = italic || e.Italic()
	switch {
	case bold && italic:
		return EmphasisBoldItalic
	case bold:
		return EmphasisBold
	case italic:
		return EmphasisItalic
	default:
		return EmphasisNone
	}
}

type InlineSpan struct {
	Text     string
	Emphasis Emphasis
}

// BlockKind is tag of Block union.
type BlockKind int

const (
	BlockHeading BlockKind = iota
	BlockParagraph
	BlockImage
	BlockList
	BlockQuote
	BlockCode
	BlockRule
)

func (k BlockKind) String() string {
	switch k {
	case BlockHeading:
		return "heading"
	case BlockParagraph:
		return "paragraph"
	case BlockImage:
		return "image"
	case BlockList:
		return "list"
	case BlockQuote:
		return "blockquote"
	case BlockCode:
		return "code"
	case BlockRule:
		return "rule"
	default:
		return "unknown"
	}
}

// ImageRef points to image asset, natural size is in points.
type ImageRef struct {
	Key    string
	Width  float64
	Height float64
}

// Block is one semantic unit of chapter content. Which fields are set
// depends on Kind.
type Block struct {
	Kind BlockKind
	// Level is 1..3, heading only.
	Level int
	// Text of heading, quote and code blocks.
	Text string
	// Spans of paragraph.
	Spans []InlineSpan
	Image *ImageRef
	// Ordered and Items describe list.
	Ordered bool
	Items   [][]InlineSpan
}

// PlainText returns block text without emphasis.
func (b *Block) PlainText() string {
	switch b.Kind {
	case BlockParagraph:
		return joinSpans(b.Spans)
	case BlockList:
		items := make([]string, 0, len(b.Items))
		for _, it := range b.Items {
			items = append(items, joinSpans(it))
		}
		return strings.Join(items, "\n")
	default:
		return b.Text
	}
}

func joinSpans(spans []InlineSpan) string {
	var sb strings.Builder
	for _, s := range spans {
		sb.WriteString(s.Text)
	}
	return sb.String()
}

// IssueKind lists recoverable problems found while building content.
type IssueKind int

const (
	IssueAssetMissing IssueKind = iota
	IssueInvalidImageDimensions
)

func (k IssueKind) String() string {
	if k == IssueInvalidImageDimensions {
		return "invalid_image_dimensions"
	}
	return "asset_missing"
}

type Issue struct {
	Kind IssueKind
	// Ref is asset key the issue is about.
	Ref string
}

// Asset is image ready for the renderer.
type Asset struct {
	Key    string
	Format string
	Data   []byte
	Width  int
	Height int
}

// Assets are keyed by image base name.
type Assets map[string]*Asset
