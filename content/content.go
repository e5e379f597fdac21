// Package content turns EPUB chapters into the block model used for layout.
package content

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"

	"github.com/maruel/natural"
	"go.uber.org/zap"

	"epub2pdf/archive"
	"epub2pdf/utils/images"
)

// Chapter is prepared chapter ready for flow assembly.
type Chapter struct {
	Index  int
	Title  string
	Blocks []Block
}

// BookmarkKey is stable identifier of the chapter anchor. It does not depend
// on anything computed during layout so both passes agree on it.
func (c *Chapter) BookmarkKey() string {
	return fmt.Sprintf("chapter_%d", c.Index)
}

// Content is everything layout needs from the book.
type Content struct {
	Meta     archive.Metadata
	Chapters []Chapter
	Assets   Assets
	// Cover is key of book declared cover asset, empty when there is none
	// or it could not be prepared.
	Cover  string
	Issues []Issue
}

// Prepare normalizes book images and builds block model for every chapter.
// Recoverable problems are collected in Issues, error is returned only when
// context is done or markup could not be read at all.
func Prepare(ctx context.Context, book *archive.Book, log *zap.Logger) (*Content, error) {
	c := &Content{
		Meta:   book.Metadata,
		Assets: make(Assets, len(book.Images)),
	}

	// go over images in stable order so logs are reproducible
	names := slices.Collect(maps.Keys(book.Images))
	sort.Sort(natural.StringSlice(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img := book.Images[name]
		n, err := images.Normalize(img.Data)
		if err != nil {
			// asset is left out, references to it will be reported as missing
			log.Warn("Unable to prepare image, skipping", zap.String("image", img.Path), zap.Error(err))
			continue
		}
		c.Assets[name] = &Asset{
			Key:    name,
			Format: n.Format,
			Data:   n.Data,
			Width:  n.Width,
			Height: n.Height,
		}
	}
	if _, ok := c.Assets[book.Cover]; ok {
		c.Cover = book.Cover
	}

	for i := range book.Chapters {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		src := &book.Chapters[i]
		blocks, issues, err := Build(src.Markup, c.Assets)
		if err != nil {
			return nil, fmt.Errorf("unable to build chapter %q: %w", src.Href, err)
		}
		title := src.Title
		if title == "" {
			title = FirstHeading(blocks)
		}
		if title == "" {
			title = fmt.Sprintf("Chapter %d", src.Index+1)
		}
		for _, issue := range issues {
			log.Debug("Content issue", zap.String("chapter", src.Href), zap.Stringer("kind", issue.Kind), zap.String("ref", issue.Ref))
		}
		c.Issues = append(c.Issues, issues...)
		c.Chapters = append(c.Chapters, Chapter{Index: src.Index, Title: title, Blocks: blocks})
	}

	log.Debug("Content prepared",
		zap.Int("chapters", len(c.Chapters)),
		zap.Int("images", len(c.Assets)),
		zap.Int("issues", len(c.Issues)))
	return c, nil
}

// CountIssues returns number of issues of the given kind.
func (c *Content) CountIssues(kind IssueKind) int {
	n := 0
	for _, issue := range c.Issues {
		if issue.Kind == kind {
			n++
		}
	}
	return n
}
