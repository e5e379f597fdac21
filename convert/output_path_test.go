package convert

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"

	"epub2pdf/archive"
	"epub2pdf/config"
)

func TestBuildOutputPath(t *testing.T) {
	dst := filepath.Join("out", "dir")
	tests := []struct {
		name     string
		meta     archive.Metadata
		template string
		translit bool
		want     string
	}{
		{
			name: "title",
			meta: archive.Metadata{Title: "My Book", Author: "Writer"},
			want: filepath.Join(dst, "My Book.pdf"),
		},
		{
			name: "unsafe title",
			meta: archive.Metadata{Title: `What? "Now": a/b`},
			want: filepath.Join(dst, "What Now ab.pdf"),
		},
		{
			name: "default title uses source",
			meta: archive.Metadata{Title: archive.DefaultTitle},
			want: filepath.Join(dst, "source-file.pdf"),
		},
		{
			name:     "template with subdirectory",
			meta:     archive.Metadata{Title: "My Book", Author: "Writer"},
			template: "{{ .Author }}/{{ .Title }}",
			want:     filepath.Join(dst, "Writer", "My Book.pdf"),
		},
		{
			name:     "template never leaves destination",
			meta:     archive.Metadata{Title: "My Book"},
			template: "../../{{ .Title }}",
			want:     filepath.Join(dst, "My Book.pdf"),
		},
		{
			name:     "template transliterated",
			meta:     archive.Metadata{Title: "Книга", Author: "Автор"},
			template: "{{ .Author }}/{{ .Title }}",
			translit: true,
			want:     filepath.Join(dst, "avtor", "kniga.pdf"),
		},
		{
			name:     "job id",
			meta:     archive.Metadata{Title: "My Book"},
			template: "{{ .JobID }}",
			want:     filepath.Join(dst, "job-1.pdf"),
		},
		{
			name:     "broken template falls back",
			meta:     archive.Metadata{Title: "My Book"},
			template: "{{ .Title ",
			want:     filepath.Join(dst, "My Book.pdf"),
		},
		{
			name:     "empty expansion falls back",
			meta:     archive.Metadata{Title: "My Book"},
			template: "  ",
			want:     filepath.Join(dst, "My Book.pdf"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.JobsConfig{OutputNameTemplate: tt.template, FileNameTransliterate: tt.translit}
			values := Values{SourceFile: "source-file", JobID: "job-1"}
			got := buildOutputPath(tt.meta, values, dst, cfg, zaptest.NewLogger(t))
			if got != tt.want {
				t.Errorf("buildOutputPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSplitAndCleanPath(t *testing.T) {
	got := splitAndCleanPath(filepath.Join("a", "b", "c"))
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("splitAndCleanPath() = %v", got)
	}
	if got := splitAndCleanPath(""); len(got) != 0 {
		t.Errorf("splitAndCleanPath(\"\") = %v", got)
	}
}
