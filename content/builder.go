package content

import (
	"bytes"
	"fmt"
	"net/url"
	"path"
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/unicode/norm"
)

// maxDepth bounds markup nesting we descend into, deeper content is flattened
// to text.
const maxDepth = 64

type builder struct {
	assets Assets
	blocks []Block
	issues []Issue
	spans  []InlineSpan
}

// Build converts chapter markup into ordered blocks. It never fails on bad
// markup, unresolvable images are dropped and reported as issues. Output
// depends only on the input.
func Build(markup []byte, assets Assets) ([]Block, []Issue, error) {
	r, err := charset.NewReader(bytes.NewReader(markup), "application/xhtml+xml")
	if err != nil {
		return nil, nil, fmt.Errorf("unable to detect markup encoding: %w", err)
	}
	doc, err := html.Parse(r)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to parse markup: %w", err)
	}

	root := findElement(doc, "body")
	if root == nil {
		root = doc
	}

	b := &builder{assets: assets}
	b.children(root, 0)
	b.flush()
	return b.blocks, b.issues, nil
}

// FirstHeading returns text of the first heading block, if any.
func FirstHeading(blocks []Block) string {
	for i := range blocks {
		if blocks[i].Kind == BlockHeading {
			return blocks[i].Text
		}
	}
	return ""
}

func (b *builder) children(n *html.Node, depth int) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.block(c, depth+1)
	}
}

func (b *builder) block(n *html.Node, depth int) {
	switch n.Type {
	case html.TextNode:
		// loose text directly in containers forms implicit paragraph
		b.addText(n.Data, EmphasisNone)
		return
	case html.ElementNode:
	default:
		return
	}

	if depth > maxDepth {
		b.addText(textOf(n), EmphasisNone)
		return
	}

	switch n.Data {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		b.flush()
		if text := collapse(textOf(n)); text != "" {
			b.blocks = append(b.blocks, Block{Kind: BlockHeading, Level: min(int(n.Data[1]-'0'), 3), Text: text})
		}
	case "p":
		b.flush()
		b.inline(n, EmphasisNone, depth)
		b.flush()
	case "img", "image":
		b.flush()
		b.image(n)
	case "svg":
		b.flush()
		b.svg(n)
	case "ul", "ol":
		b.flush()
		b.list(n, n.Data == "ol", depth)
	case "blockquote":
		b.flush()
		if text := collapse(textOf(n)); text != "" {
			b.blocks = append(b.blocks, Block{Kind: BlockQuote, Text: text})
		}
	case "pre":
		b.flush()
		text := strings.TrimRightFunc(strings.ReplaceAll(textOf(n), "\t", "    "), unicode.IsSpace)
		text = strings.TrimLeft(text, "\n")
		if strings.TrimSpace(text) != "" {
			b.blocks = append(b.blocks, Block{Kind: BlockCode, Text: norm.NFC.String(text)})
		}
	case "hr":
		b.flush()
		b.blocks = append(b.blocks, Block{Kind: BlockRule})
	case "br":
		b.flush()
	case "head", "title", "script", "style", "template", "noscript":
	case "body", "div", "section", "article", "main", "header", "footer", "aside", "nav", "figure", "center":
		b.flush()
		b.children(n, depth)
		b.flush()
	case "span", "a", "b", "strong", "i", "em", "cite", "small", "sup", "sub", "u", "font", "abbr", "code", "q":
		// inline element outside of paragraph joins implicit one
		b.inlineNode(n, EmphasisNone, depth)
	default:
		// anything else is reduced to its text
		b.flush()
		b.inline(n, EmphasisNone, depth)
		b.flush()
	}
}

func (b *builder) inline(n *html.Node, em Emphasis, depth int) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.inlineNode(c, em, depth+1)
	}
}

func (b *builder) inlineNode(n *html.Node, em Emphasis, depth int) {
	switch n.Type {
	case html.TextNode:
		b.addText(n.Data, em)
		return
	case html.ElementNode:
	default:
		return
	}
	if depth > maxDepth {
		b.addText(textOf(n), em)
		return
	}
	switch n.Data {
	case "b", "strong":
		b.inline(n, em.With(true, false), depth)
	case "i", "em", "cite", "var", "dfn":
		b.inline(n, em.With(false, true), depth)
	case "br":
		b.spans = append(b.spans, InlineSpan{Text: "\n", Emphasis: em})
	case "img", "image":
		// image splits paragraph keeping document order
		b.flush()
		b.image(n)
	case "svg":
		b.flush()
		b.svg(n)
	case "script", "style":
	default:
		b.inline(n, em, depth)
	}
}

func (b *builder) list(n *html.Node, ordered bool, depth int) {
	blk := Block{Kind: BlockList, Ordered: ordered}
	var trailing []Block
	for li := n.FirstChild; li != nil; li = li.NextSibling {
		if li.Type != html.ElementNode || li.Data != "li" {
			continue
		}
		sub := &builder{assets: b.assets}
		sub.inline(li, EmphasisNone, depth+1)
		if spans := sub.takeSpans(); len(spans) > 0 {
			blk.Items = append(blk.Items, spans)
		}
		// images inside items follow the list
		trailing = append(trailing, sub.blocks...)
		b.issues = append(b.issues, sub.issues...)
	}
	if len(blk.Items) > 0 {
		b.blocks = append(b.blocks, blk)
	}
	b.blocks = append(b.blocks, trailing...)
}

func (b *builder) svg(n *html.Node) {
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && (c.Data == "image" || c.Data == "img") {
				b.image(c)
				continue
			}
			walk(c)
		}
	}
	walk(n)
}

func (b *builder) image(n *html.Node) {
	src := ""
	for _, a := range n.Attr {
		switch {
		case a.Key == "src":
			src = a.Val
		case a.Key == "href" && src == "":
			// svg image, with or without xlink namespace
			src = a.Val
		}
	}
	if src == "" {
		return
	}
	key := AssetKey(src)
	asset, ok := b.assets[key]
	if !ok {
		b.issues = append(b.issues, Issue{Kind: IssueAssetMissing, Ref: key})
		return
	}
	if asset.Width <= 0 || asset.Height <= 0 {
		b.issues = append(b.issues, Issue{Kind: IssueInvalidImageDimensions, Ref: key})
		return
	}
	b.blocks = append(b.blocks, Block{
		Kind:  BlockImage,
		Image: &ImageRef{Key: key, Width: float64(asset.Width), Height: float64(asset.Height)},
	})
}

// AssetKey reduces image reference to the base name used as asset key.
func AssetKey(src string) string {
	src, _, _ = strings.Cut(src, "#")
	src, _, _ = strings.Cut(src, "?")
	if u, err := url.PathUnescape(src); err == nil {
		src = u
	}
	return path.Base(src)
}

func (b *builder) addText(text string, em Emphasis) {
	if text == "" {
		return
	}
	text = norm.NFC.String(text)
	// collapse whitespace runs like HTML rendering does
	var sb strings.Builder
	space := false
	for _, r := range text {
		if isHTMLSpace(r) {
			space = true
			continue
		}
		if space {
			sb.WriteByte(' ')
			space = false
		}
		sb.WriteRune(r)
	}
	if space {
		sb.WriteByte(' ')
	}
	text = sb.String()

	if last := len(b.spans) - 1; last >= 0 && b.spans[last].Emphasis == em && b.spans[last].Text != "\n" {
		b.spans[last].Text += text
		return
	}
	b.spans = append(b.spans, InlineSpan{Text: text, Emphasis: em})
}

// takeSpans returns accumulated spans cleaned of redundant whitespace.
func (b *builder) takeSpans() []InlineSpan {
	spans := b.spans
	b.spans = nil

	out := make([]InlineSpan, 0, len(spans))
	prevSpace := true // nothing before paragraph start
	for _, s := range spans {
		text := s.Text
		if text == "\n" {
			// line break swallows surrounding spaces
			if n := len(out); n > 0 {
				out[n-1].Text = strings.TrimRight(out[n-1].Text, " ")
			}
			prevSpace = true
		} else if prevSpace {
			text = strings.TrimLeft(text, " ")
		}
		if text == "" {
			continue
		}
		if text != "\n" {
			prevSpace = strings.HasSuffix(text, " ")
		}
		if n := len(out); n > 0 && out[n-1].Emphasis == s.Emphasis {
			out[n-1].Text += text
			continue
		}
		out = append(out, InlineSpan{Text: text, Emphasis: s.Emphasis})
	}

	// trim paragraph end, trailing breaks included
	for len(out) > 0 {
		n := len(out) - 1
		out[n].Text = strings.TrimRight(out[n].Text, " \n")
		if out[n].Text != "" {
			break
		}
		out = out[:n]
	}
	// leading breaks
	for len(out) > 0 {
		out[0].Text = strings.TrimLeft(out[0].Text, " \n")
		if out[0].Text != "" {
			break
		}
		out = out[1:]
	}
	return out
}

func (b *builder) flush() {
	spans := b.takeSpans()
	if len(spans) == 0 {
		return
	}
	b.blocks = append(b.blocks, Block{Kind: BlockParagraph, Spans: spans})
}

// isHTMLSpace reports ASCII whitespace, no-break space is kept as text.
func isHTMLSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\f':
		return true
	}
	return false
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// textOf collects text of the subtree iteratively, so it is safe on any
// nesting depth.
func textOf(n *html.Node) string {
	var sb strings.Builder
	stack := []*html.Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		switch cur.Type {
		case html.TextNode:
			sb.WriteString(cur.Data)
			continue
		case html.ElementNode:
			switch cur.Data {
			case "script", "style":
				continue
			case "br":
				sb.WriteByte('\n')
				continue
			}
		}
		// push children in reverse to keep document order
		var kids []*html.Node
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			kids = append(kids, c)
		}
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, kids[i])
		}
	}
	return sb.String()
}

func collapse(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}
