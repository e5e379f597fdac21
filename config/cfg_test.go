package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rupor-github/gencfg"

	"epub2pdf/common"
)

func TestLoadConfiguration_NoFile(t *testing.T) {
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() with empty path error = %v", err)
	}

	if cfg == nil {
		t.Fatal("LoadConfiguration() returned nil config")
	}

	if cfg.Version != 1 {
		t.Errorf("Default config version = %d, want 1", cfg.Version)
	}
}

func TestConfig_DefaultValues(t *testing.T) {
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}

	l := cfg.Layout
	if l.PageSize != common.PageSizeLetter {
		t.Errorf("PageSize = %v, want letter", l.PageSize)
	}
	if l.FontSize != 13 {
		t.Errorf("FontSize = %v, want 13", l.FontSize)
	}
	if l.LineSpacing != 1.5 {
		t.Errorf("LineSpacing = %v, want 1.5", l.LineSpacing)
	}
	if l.Margin != 1.0 {
		t.Errorf("Margin = %v, want 1.0", l.Margin)
	}
	if l.ReservedPages != 3 {
		t.Errorf("ReservedPages = %d, want 3", l.ReservedPages)
	}
	if !l.MirroredMargins {
		t.Error("Expected mirrored margins by default")
	}
	if cfg.Fetch.BookTimeout != 60*time.Second || cfg.Fetch.ImageTimeout != 30*time.Second {
		t.Errorf("Fetch timeouts = %v/%v, want 60s/30s", cfg.Fetch.BookTimeout, cfg.Fetch.ImageTimeout)
	}
	if cfg.Jobs.Retention != time.Hour {
		t.Errorf("Retention = %v, want 1h", cfg.Jobs.Retention)
	}
	if cfg.Images.BlurSigma != 25 {
		t.Errorf("BlurSigma = %v, want 25", cfg.Images.BlurSigma)
	}
	if cfg.Server.Listen != "127.0.0.1:5000" {
		t.Errorf("Listen = %q, want 127.0.0.1:5000", cfg.Server.Listen)
	}
	if filepath.Base(cfg.Logging.FileLogger.Destination) != "epub2pdf.log" {
		t.Errorf("log destination = %q", cfg.Logging.FileLogger.Destination)
	}
	if filepath.Base(cfg.Reporting.Destination) != "epub2pdf-report.zip" {
		t.Errorf("report destination = %q", cfg.Reporting.Destination)
	}
}

func TestConfig_ListenFromEnvironment(t *testing.T) {
	t.Setenv("EPUB2PDF_LISTEN", "0.0.0.0:9090")
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	if cfg.Server.Listen != "0.0.0.0:9090" {
		t.Errorf("Listen = %q, want 0.0.0.0:9090", cfg.Server.Listen)
	}
}

func TestLoadConfiguration_WithFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `version: 1
layout:
  page_size: a4
  font_size: 11
  line_spacing: 1.2
  mirrored_margins: false
  toc_title: "Содержание"
jobs:
  retention: 2h
server:
  listen: "0.0.0.0:8080"
logging:
  console:
    level: normal
    encoding: json
  file:
    level: debug
    destination: ` + filepath.Join(tmpDir, "test.log") + `
    mode: append
reporting:
  destination: ` + filepath.Join(tmpDir, "report.zip") + `
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := LoadConfiguration(configPath)
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}

	if cfg.Layout.PageSize != common.PageSizeA4 {
		t.Errorf("PageSize = %v, want a4", cfg.Layout.PageSize)
	}
	if cfg.Layout.FontSize != 11 {
		t.Errorf("FontSize = %v, want 11", cfg.Layout.FontSize)
	}
	if cfg.Layout.MirroredMargins {
		t.Error("Expected mirrored margins to be disabled")
	}
	if cfg.Layout.TOCTitle != "Содержание" {
		t.Errorf("TOCTitle = %q", cfg.Layout.TOCTitle)
	}
	// values absent from the file keep template defaults
	if cfg.Layout.ReservedPages != 3 {
		t.Errorf("ReservedPages = %d, want 3", cfg.Layout.ReservedPages)
	}
	if cfg.Jobs.Retention != 2*time.Hour {
		t.Errorf("Retention = %v, want 2h", cfg.Jobs.Retention)
	}
	if cfg.Server.Listen != "0.0.0.0:8080" {
		t.Errorf("Listen = %q", cfg.Server.Listen)
	}
	if cfg.Logging.ConsoleLogger.Encoding != "json" {
		t.Errorf("console encoding = %q, want json", cfg.Logging.ConsoleLogger.Encoding)
	}
}

func TestLoadConfiguration_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "invalid yaml",
			content: `version: 1
layout:
  font_size: 13
  invalid indent
`,
		},
		{
			name: "unknown field",
			content: `version: 1
unknown_field: value
`,
		},
		{
			name:    "bad version",
			content: "version: 2\n",
		},
		{
			name: "bad page size",
			content: `version: 1
layout:
  page_size: tabloid
`,
		},
		{
			name: "line spacing out of range",
			content: `version: 1
layout:
  line_spacing: 0.5
`,
		},
		{
			name: "empty toc title",
			content: `version: 1
layout:
  toc_title: ""
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(configPath, []byte(tt.content), 0644); err != nil {
				t.Fatalf("Failed to write config file: %v", err)
			}
			if _, err := LoadConfiguration(configPath); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestLoadConfiguration_NonExistentFile(t *testing.T) {
	_, err := LoadConfiguration("/nonexistent/config.yaml")
	if err == nil {
		t.Error("Expected error for nonexistent file")
	}
}

func TestLoadConfiguration_WithOptions(t *testing.T) {
	option := func(opts *gencfg.ProcessingOptions) {
		// Options are opaque, just test that we can pass them
	}

	cfg, err := LoadConfiguration("", option)
	if err != nil {
		t.Fatalf("LoadConfiguration() with options error = %v", err)
	}
	if cfg == nil {
		t.Fatal("LoadConfiguration() returned nil config")
	}
}

func TestPrepare(t *testing.T) {
	data, err := Prepare()
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if len(data) == 0 {
		t.Fatal("Prepare() returned empty data")
	}

	// Verify it's valid YAML by trying to unmarshal
	if _, err = unmarshalConfig(data, &Config{}, true); err != nil {
		t.Errorf("Prepared config is not valid: %v", err)
	}
}

func TestDump(t *testing.T) {
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	data, err := Dump(cfg)
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}
	out := string(data)
	for _, want := range []string{"page_size: letter", "reserved_pages: 3", "retention: 1h0m0s"} {
		if !strings.Contains(out, want) {
			t.Errorf("Dump() output missing %q", want)
		}
	}

	// dump must load back
	if _, err := unmarshalConfig(data, &Config{}, true); err != nil {
		t.Errorf("Dumped config is not valid: %v", err)
	}
}

func TestPoints(t *testing.T) {
	if got := Points(1.5); got != 108 {
		t.Errorf("Points(1.5) = %v, want 108", got)
	}
}
