package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"epub2pdf/utils/testbook"
)

func testLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
}

func mustBytes(t *testing.T, b testbook.Book) []byte {
	t.Helper()
	data, err := b.Bytes()
	if err != nil {
		t.Fatalf("build epub: %v", err)
	}
	return data
}

func TestReadEPUB_SpineOrder(t *testing.T) {
	for _, nav := range []testbook.NavStyle{testbook.NavNCX, testbook.NavXHTML} {
		t.Run("nav", func(t *testing.T) {
			data := mustBytes(t, testbook.Book{
				Title:       "Sample",
				Author:      "Jane Roe",
				Description: "<p>A <b>short</b> &amp; sweet book.</p>",
				Nav:         nav,
				Chapters: []testbook.Chapter{
					{Title: "Cover", Body: "<p>cover</p>", Hidden: true},
					{Title: "One", Body: "<p>first</p>"},
					{Title: "Two", Body: "<p>second</p>"},
					{Title: "Three", Body: "<p>third</p>"},
				},
				Images: map[string][]byte{"cover.png": testbook.PNG(10, 20)},
				Cover:  "cover.png",
			})

			book, err := ReadEPUB(data, testLogger(t))
			if err != nil {
				t.Fatalf("ReadEPUB() error = %v", err)
			}
			if book.Title != "Sample" || book.Author != "Jane Roe" {
				t.Errorf("metadata = %+v", book.Metadata)
			}
			if book.Description != "A short & sweet book." {
				t.Errorf("description = %q", book.Description)
			}
			if len(book.Chapters) != 3 {
				t.Fatalf("chapters = %d, want 3 (hidden spine item skipped)", len(book.Chapters))
			}
			for i, want := range []string{"One", "Two", "Three"} {
				if book.Chapters[i].Title != want || book.Chapters[i].Index != i {
					t.Errorf("chapter %d = %q/%d, want %q", i, book.Chapters[i].Title, book.Chapters[i].Index, want)
				}
			}
			if book.Cover != "cover.png" {
				t.Errorf("cover = %q", book.Cover)
			}
			if img, ok := book.Images["cover.png"]; !ok || img.MediaType != "image/png" {
				t.Errorf("cover image not indexed by base name: %+v", img)
			}
		})
	}
}

func TestReadEPUB_NoNavigation(t *testing.T) {
	data := mustBytes(t, testbook.Book{
		Nav: testbook.NavNone,
		Chapters: []testbook.Chapter{
			{Title: "A", Body: "<p>a</p>"},
			{Title: "B", Body: "<p>b</p>"},
		},
	})
	book, err := ReadEPUB(data, testLogger(t))
	if err != nil {
		t.Fatalf("ReadEPUB() error = %v", err)
	}
	if len(book.Chapters) != 2 {
		t.Fatalf("chapters = %d, want every spine item", len(book.Chapters))
	}
	if book.Chapters[0].Title != "" {
		t.Errorf("untitled chapter got %q", book.Chapters[0].Title)
	}
	if book.Title != DefaultTitle || book.Author != DefaultAuthor || book.Description != DefaultDescription {
		t.Errorf("defaults not applied: %+v", book.Metadata)
	}
}

func TestReadEPUB_Unreadable(t *testing.T) {
	noContainer := new(bytes.Buffer)
	w := zip.NewWriter(noContainer)
	if _, err := w.Create("mimetype"); err != nil {
		t.Fatal(err)
	}
	w.Close()

	tests := []struct {
		name string
		data []byte
	}{
		{"not a zip", []byte("definitely not a zip archive")},
		{"empty", nil},
		{"no container", noContainer.Bytes()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadEPUB(tt.data, testLogger(t))
			if !errors.Is(err, ErrArchiveUnreadable) {
				t.Errorf("ReadEPUB() error = %v, want ErrArchiveUnreadable", err)
			}
		})
	}
}

func TestStripMarkup(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"<p>Hello <i>world</i></p>", "Hello world"},
		{"Tom &amp; Jerry", "Tom & Jerry"},
		{"  spaced\n\tout  ", "spaced out"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := StripMarkup(tt.in); got != tt.want {
				t.Errorf("StripMarkup(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
