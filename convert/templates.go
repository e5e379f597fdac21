package convert

import (
	"bytes"
	"fmt"
	"path"
	"strings"
	"text/template"

	sprig "github.com/go-task/slim-sprig/v3"

	"epub2pdf/archive"
	"epub2pdf/config"
)

// Values is a struct that holds variables we make available for template expansion
type Values struct {
	Context    string
	Title      string
	Author     string
	SourceFile string
	JobID      string
	PageSize   string
}

func sourceBase(src string) string {
	// works for URLs and both kinds of separators
	base := path.Base(strings.ReplaceAll(src, "\\", "/"))
	if i := strings.IndexAny(base, "?#"); i >= 0 {
		base = base[:i]
	}
	return strings.TrimSuffix(base, path.Ext(base))
}

func expandTemplate(meta archive.Metadata, name config.TemplateFieldName, field string, values Values) (string, error) {
	funcMap := sprig.FuncMap()

	tmpl, err := template.New(string(name)).Funcs(funcMap).Parse(field)
	if err != nil {
		return "", fmt.Errorf("unable to parse template field %s: %w", name, err)
	}

	values.Context = string(name)
	values.Title = meta.Title
	values.Author = meta.Author

	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, values); err != nil {
		return "", err
	}
	return buf.String(), nil
}
