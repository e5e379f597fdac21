package layout

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"testing"

	"epub2pdf/archive"
	"epub2pdf/content"
)

func para(text string) content.Block {
	return content.Block{Kind: content.BlockParagraph, Spans: []content.InlineSpan{{Text: text}}}
}

func image(key string, w, h float64) content.Block {
	return content.Block{Kind: content.BlockImage, Image: &content.ImageRef{Key: key, Width: w, Height: h}}
}

func testInput(chapters ...content.Chapter) Input {
	return Input{
		Content: &content.Content{
			Meta:     archive.Metadata{Title: "Book", Author: "Writer", Description: "About"},
			Chapters: chapters,
		},
		Geometry:     letterGeometry(),
		ImageSpacing: 72,
		TOCTitle:     "Contents",
	}
}

func threeChapters() []content.Chapter {
	var out []content.Chapter
	for i := range 3 {
		out = append(out, content.Chapter{
			Index:  i,
			Title:  fmt.Sprintf("Chapter %d", i+1),
			Blocks: []content.Block{para(fmt.Sprintf("c%d-a", i)), para(fmt.Sprintf("c%d-b", i))},
		})
	}
	return out
}

func kindsOf(items []Item) string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Kind.String())
	}
	return strings.Join(out, ",")
}

func TestAssemble_Structure(t *testing.T) {
	story := Assemble(testInput(threeChapters()[:1]...), nil)

	// title page, table of contents, chapter, final page
	want := strings.Join([]string{
		"switch,page_break,spacer,content,spacer,content",
		"switch,page_break,content,spacer,toc_entry",
		"page_break,bookmark,content,content,spacer,content,spacer",
		"switch,page_break,spacer,content",
	}, ",")
	if got := kindsOf(story.Items); got != want {
		t.Errorf("items =\n%s\nwant\n%s", got, want)
	}
	if !reflect.DeepEqual(story.Keys, []string{"chapter_0"}) {
		t.Errorf("keys = %v", story.Keys)
	}

	var switches [][]TemplateID
	for _, it := range story.Items {
		if it.Kind == ItemSwitch {
			switches = append(switches, it.Templates)
		}
	}
	wantSwitches := [][]TemplateID{{TemplateTitle}, {TemplateContentOdd, TemplateContentEven}, {TemplateFinal}}
	if !reflect.DeepEqual(switches, wantSwitches) {
		t.Errorf("switches = %v", switches)
	}
}

func TestAssemble_FullImage(t *testing.T) {
	in := testInput(threeChapters()...)
	in.HasFullImage = true
	story := Assemble(in, nil)

	var tail []TemplateID
	for _, it := range story.Items {
		if it.Kind == ItemSwitch {
			tail = append(tail, it.Templates[0])
		}
	}
	if !reflect.DeepEqual(tail[len(tail)-2:], []TemplateID{TemplateFullImage, TemplateFinal}) {
		t.Errorf("switch sequence = %v", tail)
	}
}

func TestAssemble_SpineOrder(t *testing.T) {
	story := Assemble(testInput(threeChapters()...), nil)

	seen := -1
	for _, it := range story.Items {
		switch {
		case it.Kind == ItemBookmark:
			var n int
			if _, err := fmt.Sscanf(it.Key, "chapter_%d", &n); err != nil {
				t.Fatalf("bad key %q", it.Key)
			}
			if n != seen+1 {
				t.Fatalf("bookmark %q after chapter %d", it.Key, seen)
			}
			seen = n
		case it.Kind == ItemContent && it.Block != nil:
			text := it.Block.PlainText()
			if !strings.HasPrefix(text, fmt.Sprintf("c%d-", seen)) {
				t.Errorf("block %q placed in chapter %d", text, seen)
			}
		}
	}
	if seen != 2 {
		t.Errorf("last chapter = %d", seen)
	}
}

func TestAssemble_TOC(t *testing.T) {
	in := testInput(threeChapters()...)

	placeholder := Assemble(in, nil).TOCEntries()
	if len(placeholder) != 3 {
		t.Fatalf("toc entries = %d", len(placeholder))
	}
	for i, e := range placeholder {
		if e.Label != "" || e.Key != fmt.Sprintf("chapter_%d", i) || e.Text != fmt.Sprintf("Chapter %d", i+1) {
			t.Errorf("placeholder %d = %+v", i, e)
		}
	}

	resolved := Assemble(in, map[string]int{"chapter_0": 4, "chapter_1": 6, "chapter_2": 9}).TOCEntries()
	for i, want := range []string{"1", "3", "6"} {
		if resolved[i].Label != want {
			t.Errorf("entry %d label = %q, want %q", i, resolved[i].Label, want)
		}
	}

	// resolution changes labels only
	a, b := Assemble(in, nil), Assemble(in, map[string]int{"chapter_0": 4})
	if kindsOf(a.Items) != kindsOf(b.Items) || !reflect.DeepEqual(a.Keys, b.Keys) {
		t.Error("passes produce different story structure")
	}
}

func TestAssemble_Pure(t *testing.T) {
	in := testInput(threeChapters()...)
	pages := map[string]int{"chapter_1": 5}
	if !reflect.DeepEqual(Assemble(in, pages), Assemble(in, pages)) {
		t.Error("Assemble is not deterministic")
	}
}

func TestAssemble_Images(t *testing.T) {
	g := letterGeometry()
	frame := g.ContentFrame(true)
	in := testInput(content.Chapter{
		Index: 0,
		Title: "Pictures",
		Blocks: []content.Block{
			image("small", 100, 80),
			image("wide", 4000, 1000),
			image("tall", 1000, 4000),
			image("broken", 0, 100),
		},
	})
	story := Assemble(in, nil)

	var imgs []Item
	for _, it := range story.Items {
		if it.Kind == ItemImage {
			imgs = append(imgs, it)
		}
	}
	if len(imgs) != 3 {
		t.Fatalf("images = %d", len(imgs))
	}
	if imgs[0].Width != 100 || imgs[0].Height != 80 {
		t.Errorf("small image resized to %gx%g", imgs[0].Width, imgs[0].Height)
	}
	if math.Abs(imgs[1].Width-frame.W) > 1e-9 {
		t.Errorf("wide image width = %g, want frame width %g", imgs[1].Width, frame.W)
	}
	if math.Abs(imgs[2].Height-(frame.H-in.ImageSpacing)) > 1e-9 {
		t.Errorf("tall image height = %g, want %g", imgs[2].Height, frame.H-in.ImageSpacing)
	}
	want := []content.Issue{{Kind: content.IssueInvalidImageDimensions, Ref: "broken"}}
	if !reflect.DeepEqual(story.Issues, want) {
		t.Errorf("issues = %+v", story.Issues)
	}

	dump := story.String()
	if !strings.Contains(dump, "Image: key=wide") || !strings.Contains(dump, "invalid_image_dimensions") {
		t.Errorf("dump:\n%s", dump)
	}
}
