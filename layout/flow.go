package layout

import (
	"strconv"

	"epub2pdf/content"
)

// ItemKind is tag of Item union.
type ItemKind int

const (
	ItemSwitch ItemKind = iota
	ItemPageBreak
	ItemBookmark
	ItemContent
	ItemSpacer
	ItemImage
	ItemTOCEntry
)

func (k ItemKind) String() string {
	switch k {
	case ItemSwitch:
		return "switch"
	case ItemPageBreak:
		return "page_break"
	case ItemBookmark:
		return "bookmark"
	case ItemContent:
		return "content"
	case ItemSpacer:
		return "spacer"
	case ItemImage:
		return "image"
	case ItemTOCEntry:
		return "toc_entry"
	default:
		return "item(" + strconv.Itoa(int(k)) + ")"
	}
}

// Role tells renderer how to style content item.
type Role int

const (
	// RoleBody items carry chapter block.
	RoleBody Role = iota
	RoleBookTitle
	RoleBookAuthor
	RoleTOCHeader
	RoleChapterTitle
	RoleDescription
)

func (r Role) String() string {
	switch r {
	case RoleBookTitle:
		return "book_title"
	case RoleBookAuthor:
		return "book_author"
	case RoleTOCHeader:
		return "toc_header"
	case RoleChapterTitle:
		return "chapter_title"
	case RoleDescription:
		return "description"
	default:
		return "body"
	}
}

// Item is one unit of the story. Which fields are meaningful depends on
// Kind:
//
//	ItemSwitch    Templates
//	ItemBookmark  Key, Text
//	ItemContent   Role, Text or Block for RoleBody
//	ItemSpacer    Height
//	ItemImage     Key, Width, Height
//	ItemTOCEntry  Key, Text, Label (empty until page is known)
type Item struct {
	Kind      ItemKind
	Templates []TemplateID
	Key       string
	Text      string
	Label     string
	Role      Role
	Block     *content.Block
	Width     float64
	Height    float64
}

// Story is complete linear input of the renderer.
type Story struct {
	Items []Item
	// Keys lists bookmark keys in emission order.
	Keys   []string
	Issues []content.Issue
}

// Input holds everything assembly depends on. The same value must be used
// for both passes.
type Input struct {
	Content  *content.Content
	Geometry Geometry
	// ImageSpacing is vertical room kept free when fitting images.
	ImageSpacing float64
	TOCTitle     string
	HasFullImage bool
}

// Spacing between blocks, in points.
const (
	ParagraphSpacing = 0.1 * inch
	ImageGap         = 0.2 * inch
	TitleTopSpacing  = 3 * inch
	TitleGap         = 0.25 * inch
	TOCGap           = 0.25 * inch
)

// Assemble produces story from prepared content. When pages is nil TOC
// entries are left without page numbers, otherwise pages maps bookmark key
// to physical page. Assemble has no side effects so calling it twice with
// the same arguments gives the same story.
func Assemble(in Input, pages map[string]int) *Story {
	c := in.Content
	s := &Story{}
	add := func(items ...Item) {
		s.Items = append(s.Items, items...)
	}
	text := func(role Role, t string) Item {
		return Item{Kind: ItemContent, Role: role, Text: t}
	}

	// title page
	add(
		Item{Kind: ItemSwitch, Templates: []TemplateID{TemplateTitle}},
		Item{Kind: ItemPageBreak},
		Item{Kind: ItemSpacer, Height: TitleTopSpacing},
		text(RoleBookTitle, c.Meta.Title),
		Item{Kind: ItemSpacer, Height: TitleGap},
		text(RoleBookAuthor, c.Meta.Author),
	)

	// table of contents
	add(
		Item{Kind: ItemSwitch, Templates: []TemplateID{TemplateContentOdd, TemplateContentEven}},
		Item{Kind: ItemPageBreak},
		text(RoleTOCHeader, in.TOCTitle),
		Item{Kind: ItemSpacer, Height: TOCGap},
	)
	for i := range c.Chapters {
		ch := &c.Chapters[i]
		entry := Item{Kind: ItemTOCEntry, Key: ch.BookmarkKey(), Text: ch.Title}
		if p, ok := pages[entry.Key]; ok {
			if n, visible := in.Geometry.VisiblePage(p); visible {
				entry.Label = strconv.Itoa(n)
			}
		}
		add(entry)
	}

	frame := in.Geometry.ContentFrame(true)
	maxW, maxH := frame.W, frame.H-in.ImageSpacing

	for i := range c.Chapters {
		ch := &c.Chapters[i]
		key := ch.BookmarkKey()
		s.Keys = append(s.Keys, key)
		add(
			Item{Kind: ItemPageBreak},
			Item{Kind: ItemBookmark, Key: key, Text: ch.Title},
			text(RoleChapterTitle, ch.Title),
		)
		for j := range ch.Blocks {
			b := &ch.Blocks[j]
			if b.Kind != content.BlockImage {
				add(Item{Kind: ItemContent, Role: RoleBody, Block: b}, Item{Kind: ItemSpacer, Height: ParagraphSpacing})
				continue
			}
			w, h, err := Fit(b.Image.Width, b.Image.Height, maxW, maxH)
			if err != nil {
				s.Issues = append(s.Issues, content.Issue{Kind: content.IssueInvalidImageDimensions, Ref: b.Image.Key})
				continue
			}
			add(Item{Kind: ItemImage, Key: b.Image.Key, Width: w, Height: h}, Item{Kind: ItemSpacer, Height: ImageGap})
		}
	}

	if in.HasFullImage {
		add(Item{Kind: ItemSwitch, Templates: []TemplateID{TemplateFullImage}}, Item{Kind: ItemPageBreak})
	}

	// closing page, description sits in the middle
	add(
		Item{Kind: ItemSwitch, Templates: []TemplateID{TemplateFinal}},
		Item{Kind: ItemPageBreak},
		Item{Kind: ItemSpacer, Height: max(in.Geometry.PageH/2-2*inch, 0)},
		text(RoleDescription, c.Meta.Description),
	)
	return s
}

// TOCEntries returns TOC entry items of the story in order.
func (s *Story) TOCEntries() []Item {
	var out []Item
	for _, it := range s.Items {
		if it.Kind == ItemTOCEntry {
			out = append(out, it)
		}
	}
	return out
}
