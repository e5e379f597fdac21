package render

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// OutlineEntry is top level document outline item.
type OutlineEntry struct {
	Title string
	Page  int
}

func readConf() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// ReadOutline parses produced document and returns its top level outline
// in document order.
func ReadOutline(artifact []byte) ([]OutlineEntry, error) {
	bms, err := api.Bookmarks(bytes.NewReader(artifact), readConf())
	if err != nil {
		return nil, fmt.Errorf("unable to read document outline: %w", err)
	}
	out := make([]OutlineEntry, 0, len(bms))
	for _, b := range bms {
		out = append(out, OutlineEntry{Title: b.Title, Page: b.PageFrom})
	}
	return out, nil
}

// PageCount parses produced document and returns number of its pages.
func PageCount(artifact []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(artifact), readConf())
	if err != nil {
		return 0, fmt.Errorf("unable to count document pages: %w", err)
	}
	return n, nil
}
