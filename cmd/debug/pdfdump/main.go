package main

import (
	"fmt"
	"os"

	"epub2pdf/render"
)

// pdfdump prints page count and outline of produced document, handy when
// checking TOC page numbers by hand.
func main() {
	if len(os.Args) != 2 {
		_, _ = fmt.Fprintf(os.Stderr, "usage: pdfdump <file.pdf>\n")
		os.Exit(2)
	}

	path := os.Args[1]
	b, err := os.ReadFile(path)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "read %s: %v\n", path, err)
		os.Exit(1)
	}

	pages, err := render.PageCount(b)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "page count %s: %v\n", path, err)
		os.Exit(1)
	}
	fmt.Printf("pages: %d\n", pages)

	outline, err := render.ReadOutline(b)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "outline %s: %v\n", path, err)
		os.Exit(1)
	}
	for i, e := range outline {
		fmt.Printf("%3d  page %4d  %s\n", i+1, e.Page, e.Title)
	}
}
