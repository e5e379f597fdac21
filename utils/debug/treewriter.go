// Package debug has helpers for human readable dumps stored in debug reports.
package debug

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

type TreeWriter struct {
	w *strings.Builder
	// limit caps quoted text values in runes, 0 means no limit
	limit int
}

func NewTreeWriter() *TreeWriter {
	return &TreeWriter{
		w: &strings.Builder{},
	}
}

// NewLimitedTreeWriter is used for book sized dumps where full paragraph text
// is noise.
func NewLimitedTreeWriter(limit int) *TreeWriter {
	return &TreeWriter{
		w:     &strings.Builder{},
		limit: limit,
	}
}

func (tw TreeWriter) String() string {
	return tw.w.String()
}

func (tw TreeWriter) indent(depth int) {
	for range depth {
		tw.w.WriteString("  ")
	}
}

func (tw TreeWriter) Line(depth int, format string, args ...any) {
	tw.indent(depth)
	fmt.Fprintf(tw.w, format, args...)
	tw.w.WriteByte('\n')
}

func (tw TreeWriter) TextBlock(depth int, label, value string) {
	tw.indent(depth)
	tw.w.WriteString(label)
	tw.w.WriteString(": ")
	tw.w.WriteString(encodeText(truncate(value, tw.limit)))
	tw.w.WriteByte('\n')
}

// Pairs writes "label: k=v k=v" line, keys are written in order given.
func (tw TreeWriter) Pairs(depth int, label string, kv ...any) {
	tw.indent(depth)
	tw.w.WriteString(label)
	tw.w.WriteByte(':')
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(tw.w, " %v=%v", kv[i], kv[i+1])
	}
	tw.w.WriteByte('\n')
}

func truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return fmt.Sprintf("%s...(+%d)", string(runes[:limit]), len(runes)-limit)
}

func encodeText(raw string) string {
	if raw == "" {
		return raw
	}
	return strconv.Quote(raw)
}
