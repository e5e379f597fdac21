package config

import (
	"regexp"
	"strings"
	"unicode"
)

var unsafeTitleChars = regexp.MustCompile(`[\\/*?:"<>|]`)

// SafeTitle turns book title into something usable as a download file name
// on any platform.
func SafeTitle(title string) string {
	out := strings.TrimSpace(unsafeTitleChars.ReplaceAllString(title, ""))
	if len(out) == 0 {
		out = "book"
	}
	return out
}

// CleanFileName drops characters current platform does not allow in a single
// path segment. Leading dots are removed so result is never hidden or
// relative.
func CleanFileName(in string) string {
	out := strings.TrimLeft(strings.Map(func(sym rune) rune {
		if unicode.IsControl(sym) || strings.ContainsRune(reservedNameChars, sym) {
			return -1
		}
		return sym
	}, in), ".")
	if len(strings.TrimSpace(out)) == 0 {
		out = "_bad_file_name_"
	}
	return out
}
