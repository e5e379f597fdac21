// Package render draws assembled story into a paged document.
package render

import (
	"context"
	"errors"

	"epub2pdf/layout"
)

// ErrRenderFailure wraps any problem which prevented document from being
// produced.
var ErrRenderFailure = errors.New("render failure")

// Result of one render pass.
type Result struct {
	Artifact  []byte
	PageCount int
	// BookmarkPages maps bookmark key to 1-based physical page. It is nil
	// when renderer does not track bookmarks.
	BookmarkPages map[string]int
	// PageTemplates has template used by each physical page, index 0 is
	// page 1.
	PageTemplates []layout.TemplateID
}

// Renderer is anything able to lay story onto pages defined by the registry.
type Renderer interface {
	Render(ctx context.Context, story *layout.Story, reg *layout.Registry) (*Result, error)
}
