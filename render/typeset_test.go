package render

import (
	"reflect"
	"testing"
	"unicode/utf8"

	"epub2pdf/content"
)

// monospace measures every character as 6 points regardless of style.
func monospace(text, _ string) float64 {
	return float64(utf8.RuneCountInString(text)) * 6
}

func lineText(ln line) []string {
	var out []string
	for _, w := range ln.words {
		s := ""
		for _, f := range w.frags {
			s += f.text
		}
		out = append(out, s)
	}
	return out
}

func TestTypesetter_Words(t *testing.T) {
	ts := newTypesetter(monospace)
	words := ts.words([]content.InlineSpan{
		{Text: "Hello wor"},
		{Text: "ld", Emphasis: content.EmphasisBold},
		{Text: " again\nnext"},
	})
	if len(words) != 4 {
		t.Fatalf("words = %d", len(words))
	}
	if len(words[1].frags) != 2 || words[1].frags[1].style != "B" || words[1].width != 30 {
		t.Errorf("mixed word = %+v", words[1])
	}
	if !words[2].breakAfter || words[3].breakAfter {
		t.Errorf("break flags = %v %v", words[2].breakAfter, words[3].breakAfter)
	}
}

func TestTypesetter_Lines(t *testing.T) {
	ts := newTypesetter(monospace)
	lines := ts.lines(ts.words([]content.InlineSpan{{Text: "Hello world again\nnext"}}), 70)

	want := [][]string{{"Hello", "world"}, {"again"}, {"next"}}
	if len(lines) != len(want) {
		t.Fatalf("lines = %d", len(lines))
	}
	for i, ln := range lines {
		if !reflect.DeepEqual(lineText(ln), want[i]) {
			t.Errorf("line %d = %v, want %v", i, lineText(ln), want[i])
		}
		if w := ln.width(ts.space); w > 70 {
			t.Errorf("line %d width %g overflows", i, w)
		}
	}
	if lines[0].hard || !lines[1].hard || !lines[2].hard {
		t.Errorf("hard flags = %v %v %v", lines[0].hard, lines[1].hard, lines[2].hard)
	}
}

func TestTypesetter_LongWord(t *testing.T) {
	ts := newTypesetter(monospace)
	lines := ts.lines(ts.words([]content.InlineSpan{{Text: "abcdefghij"}}), 24)

	var got []string
	for _, ln := range lines {
		got = append(got, lineText(ln)...)
	}
	if !reflect.DeepEqual(got, []string{"abcd", "efgh", "ij"}) {
		t.Errorf("pieces = %v", got)
	}
}

func TestTypesetter_Truncate(t *testing.T) {
	ts := newTypesetter(monospace)
	if got := ts.truncate("short", "", 48); got != "short" {
		t.Errorf("truncate(short) = %q", got)
	}
	if got := ts.truncate("abcdefghij", "", 48); got != "abcde..." {
		t.Errorf("truncate = %q", got)
	}
}
