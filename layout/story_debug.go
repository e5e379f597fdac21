package layout

import (
	"epub2pdf/utils/debug"
)

// String returns readable dump of the story. It exists solely for manual
// inspection in debug reports, both passes are stored there.
func (s *Story) String() string {
	if s == nil {
		return "<nil Story>"
	}
	tw := debug.NewLimitedTreeWriter(60)
	tw.Line(0, "Story: %d items, %d bookmarks", len(s.Items), len(s.Keys))
	for i := range s.Items {
		it := &s.Items[i]
		switch it.Kind {
		case ItemSwitch:
			tw.Pairs(1, "Switch", "templates", it.Templates)
		case ItemPageBreak:
			tw.Line(1, "PageBreak")
		case ItemBookmark:
			tw.Pairs(1, "Bookmark", "key", it.Key)
			tw.TextBlock(2, "Title", it.Text)
		case ItemSpacer:
			tw.Pairs(1, "Spacer", "h", it.Height)
		case ItemImage:
			tw.Pairs(1, "Image", "key", it.Key, "w", it.Width, "h", it.Height)
		case ItemTOCEntry:
			tw.Pairs(1, "TOCEntry", "key", it.Key, "page", it.Label)
			tw.TextBlock(2, "Title", it.Text)
		case ItemContent:
			if it.Block == nil {
				tw.Pairs(1, "Content", "role", it.Role)
				tw.TextBlock(2, "Text", it.Text)
				continue
			}
			tw.Pairs(1, "Content", "role", it.Role, "block", it.Block.Kind)
			tw.TextBlock(2, "Text", it.Block.PlainText())
		}
	}
	for _, issue := range s.Issues {
		tw.Line(0, "Issue: %s %q", issue.Kind, issue.Ref)
	}
	return tw.String()
}
