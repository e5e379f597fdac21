package convert

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"epub2pdf/archive"
	"epub2pdf/config"
)

const outputExt = ".pdf"

// buildOutputPath returns constructed output file path based on book
// metadata and configuration. It uses either default naming scheme (book
// title) or user-defined template which may add subdirectories. It cleans up
// path and if requested transliterates it.
func buildOutputPath(meta archive.Metadata, values Values, dst string, cfg *config.JobsConfig, log *zap.Logger) string {
	defaultFile := buildDefaultFileName(meta, values.SourceFile, cfg)

	if cfg.OutputNameTemplate == "" {
		return filepath.Join(dst, defaultFile)
	}

	expanded, err := expandTemplate(meta, config.OutputNameTemplateFieldName, cfg.OutputNameTemplate, values)
	if err != nil || strings.TrimSpace(expanded) == "" {
		log.Warn("Unable to prepare output filename, using default", zap.Error(err))
		return filepath.Join(dst, defaultFile)
	}
	return assemblePathWithSubdirs(dst, filepath.FromSlash(expanded), cfg)
}

func buildDefaultFileName(meta archive.Metadata, src string, cfg *config.JobsConfig) string {
	baseName := meta.Title
	if baseName == "" || baseName == archive.DefaultTitle {
		baseName = src
	}
	return cleanPathSegment(config.SafeTitle(baseName), cfg) + outputExt
}

// assemblePathWithSubdirs takes an expanded template name (which may contain
// path separators for subdirectories) and assembles it into a full output path,
// cleaning and transliterating segments as needed
func assemblePathWithSubdirs(outDir, expandedName string, cfg *config.JobsConfig) string {
	pathSegments := splitAndCleanPath(expandedName)
	if len(pathSegments) == 0 {
		return filepath.Join(outDir, "book"+outputExt)
	}

	fileName := cleanPathSegment(pathSegments[len(pathSegments)-1], cfg) + outputExt
	dirParts := make([]string, 0, len(pathSegments)+1)
	dirParts = append(dirParts, outDir)

	for _, segment := range pathSegments[:len(pathSegments)-1] {
		// never leave output directory
		if segment == ".." || segment == "." {
			continue
		}
		dirParts = append(dirParts, cleanPathSegment(segment, cfg))
	}

	dirParts = append(dirParts, fileName)
	return filepath.Join(dirParts...)
}

func splitAndCleanPath(path string) []string {
	path = strings.TrimSuffix(path, string(os.PathSeparator))
	segments := make([]string, 0, 8)

	for head, tail := filepath.Split(path); tail != ""; head, tail = filepath.Split(head) {
		segments = slices.Insert(segments, 0, tail)
		head = strings.TrimSuffix(head, string(os.PathSeparator))
		if head == "" {
			break
		}
	}
	return segments
}

func cleanPathSegment(segment string, cfg *config.JobsConfig) string {
	if cfg.FileNameTransliterate {
		segment = slug.Make(segment)
	}
	return config.CleanFileName(segment)
}
