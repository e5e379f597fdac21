package render

import (
	"strings"

	"epub2pdf/content"
)

type fragment struct {
	text  string
	style string
	width float64
}

// word is unbreakable run of fragments, emphasis may change inside it.
type word struct {
	frags      []fragment
	width      float64
	breakAfter bool
}

type line struct {
	words []word
	// natural is sum of word widths without inter word spaces
	natural float64
	// hard lines end paragraph or explicit break and are never justified
	hard bool
}

func (l *line) width(space float64) float64 {
	if len(l.words) == 0 {
		return 0
	}
	return l.natural + space*float64(len(l.words)-1)
}

// typesetter breaks inline spans into lines of given width. Measuring is
// injected so line breaking does not depend on the PDF writer.
type typesetter struct {
	measure func(text, style string) float64
	space   float64
}

func newTypesetter(measure func(text, style string) float64) *typesetter {
	return &typesetter{measure: measure, space: measure(" ", "")}
}

func fontStyle(e content.Emphasis) string {
	switch e {
	case content.EmphasisBold:
		return "B"
	case content.EmphasisItalic:
		return "I"
	case content.EmphasisBoldItalic:
		return "BI"
	default:
		return ""
	}
}

// words splits spans on spaces and line breaks. Span boundary without space
// does not split word, so "<b>bold</b>ness" stays together.
func (t *typesetter) words(spans []content.InlineSpan) []word {
	var (
		out []word
		cur word
		tok strings.Builder
	)
	emit := func(style string) {
		if tok.Len() == 0 {
			return
		}
		text := tok.String()
		w := t.measure(text, style)
		cur.frags = append(cur.frags, fragment{text: text, style: style, width: w})
		cur.width += w
		tok.Reset()
	}
	flush := func() {
		if len(cur.frags) > 0 {
			out = append(out, cur)
		}
		cur = word{}
	}

	for _, s := range spans {
		style := fontStyle(s.Emphasis)
		for _, r := range s.Text {
			switch r {
			case ' ':
				emit(style)
				flush()
			case '\n':
				emit(style)
				flush()
				if len(out) > 0 {
					out[len(out)-1].breakAfter = true
				}
			default:
				tok.WriteRune(r)
			}
		}
		emit(style)
	}
	flush()
	return out
}

// lines does greedy line filling. Words wider than the line are split.
func (t *typesetter) lines(words []word, maxW float64) []line {
	var (
		out []line
		cur line
	)
	push := func(hard bool) {
		if len(cur.words) > 0 {
			cur.hard = hard
			out = append(out, cur)
		}
		cur = line{}
	}
	for _, w := range words {
		pieces := []word{w}
		if w.width > maxW {
			pieces = t.split(w, maxW)
		}
		for _, p := range pieces {
			if len(cur.words) > 0 && cur.width(t.space)+t.space+p.width > maxW {
				push(false)
			}
			cur.words = append(cur.words, p)
			cur.natural += p.width
			if p.breakAfter {
				push(true)
			}
		}
	}
	push(true)
	return out
}

// split cuts too long word on character boundaries.
func (t *typesetter) split(w word, maxW float64) []word {
	var (
		out []word
		cur word
	)
	for _, f := range w.frags {
		var buf []rune
		for _, r := range f.text {
			next := append(buf, r)
			if cur.width+t.measure(string(next), f.style) > maxW && (len(buf) > 0 || len(cur.frags) > 0) {
				if len(buf) > 0 {
					text := string(buf)
					bw := t.measure(text, f.style)
					cur.frags = append(cur.frags, fragment{text: text, style: f.style, width: bw})
					cur.width += bw
				}
				out = append(out, cur)
				cur = word{}
				buf = []rune{r}
				continue
			}
			buf = next
		}
		if len(buf) > 0 {
			text := string(buf)
			bw := t.measure(text, f.style)
			cur.frags = append(cur.frags, fragment{text: text, style: f.style, width: bw})
			cur.width += bw
		}
	}
	cur.breakAfter = w.breakAfter
	return append(out, cur)
}

// truncate shortens single line text to fit width, adding ellipsis.
func (t *typesetter) truncate(text, style string, maxW float64) string {
	if t.measure(text, style) <= maxW {
		return text
	}
	runes := []rune(text)
	for n := len(runes) - 1; n > 0; n-- {
		s := strings.TrimRight(string(runes[:n]), " ") + "..."
		if t.measure(s, style) <= maxW {
			return s
		}
	}
	return "..."
}
