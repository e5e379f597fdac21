// Package testbook assembles small EPUB containers in memory for tests.
package testbook

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"path"
	"strings"
)

type NavStyle int

const (
	NavNCX NavStyle = iota
	NavXHTML
	NavNone
)

type Chapter struct {
	Title string
	// Body is inner XHTML of the body element.
	Body string
	// Hidden chapters are in the spine but not in navigation.
	Hidden bool
}

type Book struct {
	Title       string
	Author      string
	Description string
	Chapters    []Chapter
	// Images are stored under OEBPS/images/ keyed by file name.
	Images map[string][]byte
	// Cover names one of Images.
	Cover string
	Nav   NavStyle
}

// Bytes produces complete EPUB container.
func (b Book) Bytes() ([]byte, error) {
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)

	add := func(name string, data []byte, method uint16) error {
		fw, err := w.CreateHeader(&zip.FileHeader{Name: name, Method: method})
		if err != nil {
			return err
		}
		_, err = fw.Write(data)
		return err
	}

	if err := add("mimetype", []byte("application/epub+zip"), zip.Store); err != nil {
		return nil, err
	}
	container := `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`
	if err := add("META-INF/container.xml", []byte(container), zip.Deflate); err != nil {
		return nil, err
	}

	var manifest, spine, ncx, nav strings.Builder
	for i, ch := range b.Chapters {
		id := fmt.Sprintf("ch%d", i+1)
		href := fmt.Sprintf("text/%s.xhtml", id)
		fmt.Fprintf(&manifest, `    <item id="%s" href="%s" media-type="application/xhtml+xml"/>`+"\n", id, href)
		fmt.Fprintf(&spine, `    <itemref idref="%s"/>`+"\n", id)
		if !ch.Hidden {
			title := html.EscapeString(ch.Title)
			fmt.Fprintf(&ncx, `    <navPoint id="np%d" playOrder="%d"><navLabel><text>%s</text></navLabel><content src="%s"/></navPoint>`+"\n", i+1, i+1, title, href)
			fmt.Fprintf(&nav, `      <li><a href="%s">%s</a></li>`+"\n", href, title)
		}
		doc := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml"><head><title>%s</title></head><body>%s</body></html>`, html.EscapeString(ch.Title), ch.Body)
		if err := add(path.Join("OEBPS", href), []byte(doc), zip.Deflate); err != nil {
			return nil, err
		}
	}

	var coverMeta string
	for name, data := range b.Images {
		id := "img-" + strings.ReplaceAll(name, ".", "-")
		props := ""
		if name == b.Cover {
			coverMeta = fmt.Sprintf(`    <meta name="cover" content="%s"/>`+"\n", id)
			props = ` properties="cover-image"`
		}
		fmt.Fprintf(&manifest, `    <item id="%s" href="images/%s" media-type="%s"%s/>`+"\n", id, name, mediaType(name), props)
		if err := add(path.Join("OEBPS/images", name), data, zip.Deflate); err != nil {
			return nil, err
		}
	}

	spineAttr := ""
	switch b.Nav {
	case NavNCX:
		manifest.WriteString(`    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>` + "\n")
		spineAttr = ` toc="ncx"`
		doc := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <navMap>
%s  </navMap>
</ncx>`, ncx.String())
		if err := add("OEBPS/toc.ncx", []byte(doc), zip.Deflate); err != nil {
			return nil, err
		}
	case NavXHTML:
		manifest.WriteString(`    <item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>` + "\n")
		doc := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops"><body>
  <nav epub:type="toc">
    <ol>
%s    </ol>
  </nav>
</body></html>`, nav.String())
		if err := add("OEBPS/nav.xhtml", []byte(doc), zip.Deflate); err != nil {
			return nil, err
		}
	}

	var meta strings.Builder
	if b.Title != "" {
		fmt.Fprintf(&meta, "    <dc:title>%s</dc:title>\n", html.EscapeString(b.Title))
	}
	if b.Author != "" {
		fmt.Fprintf(&meta, "    <dc:creator>%s</dc:creator>\n", html.EscapeString(b.Author))
	}
	if b.Description != "" {
		fmt.Fprintf(&meta, "    <dc:description>%s</dc:description>\n", html.EscapeString(b.Description))
	}
	meta.WriteString(coverMeta)

	opf := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="id">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
%s  </metadata>
  <manifest>
%s  </manifest>
  <spine%s>
%s  </spine>
</package>`, meta.String(), manifest.String(), spineAttr, spine.String())
	if err := add("OEBPS/content.opf", []byte(opf), zip.Deflate); err != nil {
		return nil, err
	}

	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func mediaType(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".svg":
		return "image/svg+xml"
	default:
		return "image/png"
	}
}

func solid(w, h int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.NRGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	return img
}

// PNG returns encoded image of requested size.
func PNG(w, h int) []byte {
	buf := new(bytes.Buffer)
	if err := png.Encode(buf, solid(w, h)); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// JPEG returns encoded image of requested size.
func JPEG(w, h int) []byte {
	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, solid(w, h), &jpeg.Options{Quality: 80}); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// Paragraphs returns n paragraphs of filler text, handy for multi page
// chapters.
func Paragraphs(n int) string {
	var sb strings.Builder
	for i := range n {
		fmt.Fprintf(&sb, "<p>Paragraph %d. The quick brown fox jumps over the lazy dog while the text keeps going long enough to wrap across several lines of the page.</p>", i+1)
	}
	return sb.String()
}
