package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"

	"epub2pdf/common"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	TemplateFieldName string

	FontsConfig struct {
		Regular    string `yaml:"regular" sanitize:"assure_file_access"`
		Bold       string `yaml:"bold" sanitize:"assure_file_access"`
		Italic     string `yaml:"italic" sanitize:"assure_file_access"`
		BoldItalic string `yaml:"bold_italic" sanitize:"assure_file_access"`
	}

	// LayoutConfig holds defaults for page geometry and typography. Margins
	// and spacing are in inches, font size is in points.
	LayoutConfig struct {
		PageSize         common.PageSize `yaml:"page_size"`
		FontSize         float64         `yaml:"font_size" validate:"gt=0,lte=72"`
		LineSpacing      float64         `yaml:"line_spacing" validate:"gte=1,lte=4"`
		Margin           float64         `yaml:"margin" validate:"gte=0,lte=3"`
		OuterMarginExtra float64         `yaml:"outer_margin_extra" validate:"gte=0,lte=2"`
		MirroredMargins  bool            `yaml:"mirrored_margins"`
		ReservedPages    int             `yaml:"reserved_pages" validate:"gte=0"`
		ImageSpacing     float64         `yaml:"image_spacing" validate:"gte=0"`
		TOCTitle         string          `yaml:"toc_title" validate:"required"`
		Fonts            FontsConfig     `yaml:"fonts"`
	}

	ImagesConfig struct {
		JPEGQuality int     `yaml:"jpeg_quality_level" validate:"min=40,max=100"`
		BlurSigma   float64 `yaml:"blur_sigma" validate:"gte=0"`
	}

	FetchConfig struct {
		BookTimeout  time.Duration `yaml:"book_timeout" validate:"gt=0"`
		ImageTimeout time.Duration `yaml:"image_timeout" validate:"gt=0"`
		MaxSize      int64         `yaml:"max_size" validate:"gt=0"`
		UserAgent    string        `yaml:"user_agent"`
	}

	JobsConfig struct {
		WorkDir               string        `yaml:"work_dir" sanitize:"path_clean"`
		Retention             time.Duration `yaml:"retention" validate:"gt=0"`
		SweepInterval         time.Duration `yaml:"sweep_interval" validate:"gt=0"`
		OutputNameTemplate    string        `yaml:"output_name_template"`
		FileNameTransliterate bool          `yaml:"file_name_transliterate"`
	}

	ServerConfig struct {
		Listen          string        `yaml:"listen" validate:"required,hostname_port"`
		RequestLimit    int           `yaml:"request_limit" validate:"gte=0"`
		RequestWindow   time.Duration `yaml:"request_window" validate:"gte=0"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
	}

	Config struct {
		Version   int            `yaml:"version" validate:"eq=1"`
		Layout    LayoutConfig   `yaml:"layout"`
		Images    ImagesConfig   `yaml:"images"`
		Fetch     FetchConfig    `yaml:"fetch"`
		Jobs      JobsConfig     `yaml:"jobs"`
		Server    ServerConfig   `yaml:"server"`
		Logging   LoggingConfig  `yaml:"logging"`
		Reporting ReporterConfig `yaml:"reporting"`
	}
)

const (
	// NOTE: must match yaml field name above, alternative is to use struct
	// field name and reflection which I want to avoid for now
	OutputNameTemplateFieldName TemplateFieldName = "output_name_template"
)

var requiredOptions = append([]func(*gencfg.ProcessingOptions){},
	gencfg.WithDoNotExpandField(string(OutputNameTemplateFieldName)),
)

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		// sanitize and validate what has been loaded
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, err
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration tamplate to provide
// sane defaults and performs validation.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, append(requiredOptions, options...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	// overwrite cfg values with values from the file
	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare generates configuration file from template and returns it as a byte
// slice.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl, requiredOptions...)
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %v", err)
	}
	return data, nil
}

// Points converts inches to PDF points.
func Points(inches float64) float64 {
	return inches * 72
}
