package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// ErrArchiveUnreadable is returned when EPUB container cannot be used at all.
var ErrArchiveUnreadable = errors.New("archive unreadable")

const (
	DefaultTitle       = "Unknown Title"
	DefaultAuthor      = "Unknown Author"
	DefaultDescription = "No description found."
)

type Metadata struct {
	Title       string
	Author      string
	Description string
}

// Chapter is a single content document in reading order. Title is empty
// when navigation document does not name it.
type Chapter struct {
	Index  int
	Title  string
	Href   string
	Markup []byte
}

// Image is raw image resource from the container.
type Image struct {
	Name      string // base name, used as lookup key
	Path      string // full path inside container
	MediaType string
	Data      []byte
}

type Book struct {
	Metadata
	Chapters []Chapter
	// Images is keyed by base name of the resource.
	Images map[string]*Image
	// Cover is base name of the cover image declared by the package, if any.
	Cover string
}

type manifestItem struct {
	id, href, mediaType, properties string
}

type navEntry struct {
	title, href string
}

// entities covers named references most often found in EPUB2 navigation
// documents which are supposed to be XML.
var entities = map[string]string{
	"nbsp":   " ",
	"mdash":  "—",
	"ndash":  "–",
	"hellip": "…",
	"laquo":  "«",
	"raquo":  "»",
	"lsquo":  "‘",
	"rsquo":  "’",
	"ldquo":  "“",
	"rdquo":  "”",
	"copy":   "©",
	"shy":    "­",
}

func newDocument() *etree.Document {
	doc := etree.NewDocument()
	doc.ReadSettings = etree.ReadSettings{
		CharsetReader: charset.NewReaderLabel,
		Entity:        entities,
		Permissive:    true,
	}
	return doc
}

func unreadable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrArchiveUnreadable, fmt.Sprintf(format, args...))
}

// ReadEPUB parses EPUB container held in memory. Problems with individual
// resources are logged and skipped, only broken container structure is
// reported as ErrArchiveUnreadable.
func ReadEPUB(data []byte, log *zap.Logger) (*Book, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, unreadable("unable to open zip: %v", err)
	}

	files := make(map[string]*zip.File, len(zr.File))
	if err := Walk(zr, "", func(f *zip.File) error {
		files[f.Name] = f
		return nil
	}); err != nil {
		return nil, unreadable("%v", err)
	}

	read := func(name string) ([]byte, error) {
		f, ok := files[name]
		if !ok {
			return nil, fmt.Errorf("%q not found in container", name)
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}

	container, err := read("META-INF/container.xml")
	if err != nil {
		return nil, unreadable("unable to read container: %v", err)
	}
	doc := newDocument()
	if err := doc.ReadFromBytes(container); err != nil {
		return nil, unreadable("unable to parse container: %v", err)
	}
	var opfPath string
	if rf := firstElement(doc.Root(), "rootfile"); rf != nil {
		opfPath = rf.SelectAttrValue("full-path", "")
	}
	if opfPath == "" {
		return nil, unreadable("container does not reference package document")
	}

	opf, err := read(opfPath)
	if err != nil {
		return nil, unreadable("unable to read package document: %v", err)
	}
	pkg := newDocument()
	if err := pkg.ReadFromBytes(opf); err != nil {
		return nil, unreadable("unable to parse package document: %v", err)
	}
	if pkg.Root() == nil {
		return nil, unreadable("package document is empty")
	}

	base := path.Dir(opfPath)
	resolve := func(href string) string {
		return navHref(base, href)
	}

	book := &Book{Images: make(map[string]*Image)}
	book.Metadata, book.Cover = readMetadata(pkg.Root())

	var items []manifestItem
	manifest := make(map[string]manifestItem)
	for _, el := range allElements(pkg.Root(), "item") {
		it := manifestItem{
			id:         el.SelectAttrValue("id", ""),
			href:       el.SelectAttrValue("href", ""),
			mediaType:  el.SelectAttrValue("media-type", ""),
			properties: el.SelectAttrValue("properties", ""),
		}
		if it.id == "" || it.href == "" {
			continue
		}
		manifest[it.id] = it
		items = append(items, it)
	}

	// images
	coverID := book.Cover
	book.Cover = ""
	for _, it := range items {
		if !strings.HasPrefix(it.mediaType, "image/") {
			continue
		}
		full := resolve(it.href)
		data, err := read(full)
		if err != nil {
			log.Warn("Skipping image resource", zap.String("path", full), zap.Error(err))
			continue
		}
		name := path.Base(full)
		if _, exists := book.Images[name]; exists {
			log.Debug("Duplicate image base name, keeping first", zap.String("path", full))
			continue
		}
		book.Images[name] = &Image{Name: name, Path: full, MediaType: it.mediaType, Data: data}
		if it.id == coverID || strings.Contains(it.properties, "cover-image") {
			book.Cover = name
		}
	}

	// navigation
	var nav []navEntry
	spine := firstElement(pkg.Root(), "spine")
	if spine != nil {
		if it, ok := manifest[spine.SelectAttrValue("toc", "")]; ok {
			nav = readNCX(read, resolve(it.href), log)
		}
	}
	if len(nav) == 0 {
		for _, it := range items {
			if hasProperty(it.properties, "nav") {
				nav = readNav(read, resolve(it.href), log)
				break
			}
		}
	}
	titles := make(map[string]string, len(nav))
	for _, e := range nav {
		if _, exists := titles[e.href]; !exists {
			titles[e.href] = e.title
		}
	}

	// chapters in spine order
	if spine == nil {
		return nil, unreadable("package document has no spine")
	}
	for _, ref := range allElements(spine, "itemref") {
		if ref.SelectAttrValue("linear", "yes") == "no" {
			continue
		}
		it, ok := manifest[ref.SelectAttrValue("idref", "")]
		if !ok {
			log.Warn("Spine references unknown manifest item", zap.String("idref", ref.SelectAttrValue("idref", "")))
			continue
		}
		full := resolve(it.href)
		title, listed := titles[full]
		if len(titles) > 0 && !listed {
			log.Debug("Skipping spine item absent from navigation", zap.String("href", full))
			continue
		}
		markup, err := read(full)
		if err != nil {
			log.Warn("Skipping missing content document", zap.String("href", full), zap.Error(err))
			continue
		}
		book.Chapters = append(book.Chapters, Chapter{
			Index:  len(book.Chapters),
			Title:  title,
			Href:   full,
			Markup: markup,
		})
	}

	log.Debug("EPUB container read",
		zap.String("title", book.Title),
		zap.Int("chapters", len(book.Chapters)),
		zap.Int("images", len(book.Images)),
		zap.Int("nav", len(nav)))
	return book, nil
}

func readMetadata(root *etree.Element) (Metadata, string) {
	md := Metadata{Title: DefaultTitle, Author: DefaultAuthor, Description: DefaultDescription}
	var coverID string

	meta := firstElement(root, "metadata")
	if meta == nil {
		return md, ""
	}
	// first non empty value wins
	set := func(dst *string, def, value string) {
		if value = strings.TrimSpace(value); value != "" && *dst == def {
			*dst = value
		}
	}
	for _, el := range meta.ChildElements() {
		switch el.Tag {
		case "title":
			set(&md.Title, DefaultTitle, el.Text())
		case "creator":
			set(&md.Author, DefaultAuthor, el.Text())
		case "description":
			set(&md.Description, DefaultDescription, StripMarkup(el.Text()))
		case "meta":
			if el.SelectAttrValue("name", "") == "cover" {
				coverID = el.SelectAttrValue("content", "")
			}
		}
	}
	return md, coverID
}

// readNCX flattens EPUB2 navMap in document order.
func readNCX(read func(string) ([]byte, error), full string, log *zap.Logger) []navEntry {
	data, err := read(full)
	if err != nil {
		log.Warn("Unable to read NCX", zap.String("path", full), zap.Error(err))
		return nil
	}
	doc := newDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		log.Warn("Unable to parse NCX", zap.String("path", full), zap.Error(err))
		return nil
	}
	base := path.Dir(full)

	var entries []navEntry
	for _, np := range allElements(doc.Root(), "navPoint") {
		var title, src string
		for _, c := range np.ChildElements() {
			switch c.Tag {
			case "navLabel":
				if t := firstElement(c, "text"); t != nil {
					title = strings.TrimSpace(t.Text())
				}
			case "content":
				src = c.SelectAttrValue("src", "")
			}
		}
		if src == "" {
			continue
		}
		entries = append(entries, navEntry{title: title, href: navHref(base, src)})
	}
	return entries
}

// readNav flattens EPUB3 toc nav in document order.
func readNav(read func(string) ([]byte, error), full string, log *zap.Logger) []navEntry {
	data, err := read(full)
	if err != nil {
		log.Warn("Unable to read navigation document", zap.String("path", full), zap.Error(err))
		return nil
	}
	doc := newDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		log.Warn("Unable to parse navigation document", zap.String("path", full), zap.Error(err))
		return nil
	}
	base := path.Dir(full)

	var toc *etree.Element
	for _, n := range allElements(doc.Root(), "nav") {
		if a := n.SelectAttr("epub:type"); a != nil && a.Value == "toc" {
			toc = n
			break
		}
		if toc == nil {
			toc = n
		}
	}
	if toc == nil {
		return nil
	}

	var entries []navEntry
	for _, a := range allElements(toc, "a") {
		href := a.SelectAttrValue("href", "")
		if href == "" {
			continue
		}
		entries = append(entries, navEntry{title: strings.TrimSpace(elementText(a)), href: navHref(base, href)})
	}
	return entries
}

func navHref(base, href string) string {
	href, _, _ = strings.Cut(href, "#")
	if u, err := url.PathUnescape(href); err == nil {
		href = u
	}
	return path.Clean(path.Join(base, href))
}

func hasProperty(props, name string) bool {
	for _, p := range strings.Fields(props) {
		if p == name {
			return true
		}
	}
	return false
}

// firstElement finds first descendant with given local name ignoring
// namespace prefixes, which EPUB producers use inconsistently.
func firstElement(root *etree.Element, tag string) *etree.Element {
	if root == nil {
		return nil
	}
	for _, c := range root.ChildElements() {
		if c.Tag == tag {
			return c
		}
		if found := firstElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func allElements(root *etree.Element, tag string) []*etree.Element {
	var out []*etree.Element
	var walk func(*etree.Element)
	walk = func(e *etree.Element) {
		for _, c := range e.ChildElements() {
			if c.Tag == tag {
				out = append(out, c)
			}
			walk(c)
		}
	}
	if root != nil {
		walk(root)
	}
	return out
}

func elementText(e *etree.Element) string {
	var sb strings.Builder
	for _, t := range e.Child {
		switch v := t.(type) {
		case *etree.CharData:
			sb.WriteString(v.Data)
		case *etree.Element:
			sb.WriteString(elementText(v))
		}
	}
	return sb.String()
}

// StripMarkup removes tags and resolves entities, descriptions are often
// stored as escaped HTML.
func StripMarkup(s string) string {
	nodes, err := html.ParseFragment(strings.NewReader(s), nil)
	if err != nil {
		return strings.TrimSpace(html.UnescapeString(s))
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}
