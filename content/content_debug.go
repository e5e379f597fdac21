package content

import (
	"maps"
	"slices"
	"sort"

	"github.com/maruel/natural"

	"epub2pdf/utils/debug"
)

// String returns a readable tree of prepared content. It exists solely for
// manual inspection in debug reports.
func (c *Content) String() string {
	if c == nil {
		return "<nil Content>"
	}

	tw := debug.NewLimitedTreeWriter(80)
	tw.TextBlock(0, "Title", c.Meta.Title)
	tw.TextBlock(0, "Author", c.Meta.Author)
	tw.TextBlock(0, "Description", c.Meta.Description)

	tw.Line(0, "Chapters: %d", len(c.Chapters))
	for i := range c.Chapters {
		ch := &c.Chapters[i]
		tw.Line(1, "Chapter[%d] key[%s] blocks[%d]", ch.Index, ch.BookmarkKey(), len(ch.Blocks))
		tw.TextBlock(2, "Title", ch.Title)
		for j := range ch.Blocks {
			writeBlock(tw, 2, &ch.Blocks[j])
		}
	}

	tw.Line(0, "Cover: %q", c.Cover)
	tw.Line(0, "Assets: %d", len(c.Assets))
	keys := slices.Collect(maps.Keys(c.Assets))
	sort.Sort(natural.StringSlice(keys))
	for _, k := range keys {
		a := c.Assets[k]
		tw.Line(1, "Asset[%q] format[%s] size[%d] dim[%dx%d]", k, a.Format, len(a.Data), a.Width, a.Height)
	}

	if len(c.Issues) > 0 {
		tw.Line(0, "Issues: %d", len(c.Issues))
		for _, issue := range c.Issues {
			tw.Line(1, "%s %q", issue.Kind, issue.Ref)
		}
	}
	return tw.String()
}

func writeBlock(tw *debug.TreeWriter, depth int, b *Block) {
	switch b.Kind {
	case BlockHeading:
		tw.Pairs(depth, "Heading", "level", b.Level)
		tw.TextBlock(depth+1, "Text", b.Text)
	case BlockParagraph:
		tw.Pairs(depth, "Paragraph", "spans", len(b.Spans))
		for _, s := range b.Spans {
			tw.TextBlock(depth+1, s.Emphasis.String(), s.Text)
		}
	case BlockImage:
		tw.Pairs(depth, "Image", "key", b.Image.Key, "w", b.Image.Width, "h", b.Image.Height)
	case BlockList:
		tw.Pairs(depth, "List", "ordered", b.Ordered, "items", len(b.Items))
		for _, item := range b.Items {
			tw.TextBlock(depth+1, "Item", joinSpans(item))
		}
	default:
		tw.Line(depth, "%s", b.Kind)
		if b.Text != "" {
			tw.TextBlock(depth+1, "Text", b.Text)
		}
	}
}
