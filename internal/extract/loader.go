// Package extract loads documents from a source directory and extracts their text.
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/shiori/internal/models"
	"go.uber.org/zap"
)

// ParsePolicy decides what happens when a supported file cannot be parsed.
type ParsePolicy string

const (
	// PolicyAbort fails the whole load with the ParseError.
	PolicyAbort ParsePolicy = "abort"
	// PolicySkip logs the failure and continues with the next file.
	PolicySkip ParsePolicy = "skip"
)

// DefaultExtensions are loaded when no extensions are configured.
var DefaultExtensions = []string{".txt", ".pdf"}

// section is one unit of extracted text plus format-specific metadata (page, sheet, slide).
type section struct {
	text string
	meta map[string]string
}

type parseFunc func(path string) ([]section, error)

var parsers = map[string]parseFunc{
	".txt":  parsePlain,
	".md":   parsePlain,
	".pdf":  parsePDF,
	".docx": parseDOCX,
	".odt":  parseWithCat,
	".rtf":  parseWithCat,
	".xlsx": parseExcel,
	".pptx": parsePPTX,
}

// Loader turns the files of a directory into Documents.
type Loader struct {
	extensions map[string]bool
	policy     ParsePolicy
	logger     *zap.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithExtensions sets which file extensions are loaded (case-insensitive, leading dot optional).
func WithExtensions(exts []string) LoaderOption {
	return func(l *Loader) {
		l.extensions = normalizeExtensions(exts)
	}
}

// WithParsePolicy sets the parse failure policy. Unknown values fall back to PolicyAbort.
func WithParsePolicy(p ParsePolicy) LoaderOption {
	return func(l *Loader) {
		if p == PolicySkip {
			l.policy = PolicySkip
			return
		}
		l.policy = PolicyAbort
	}
}

// WithLogger sets a logger for skip diagnostics.
func WithLogger(logger *zap.Logger) LoaderOption {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLoader returns a Loader for DefaultExtensions with PolicyAbort.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		extensions: normalizeExtensions(DefaultExtensions),
		policy:     PolicyAbort,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Supports reports whether path has an extension this loader will parse.
func (l *Loader) Supports(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if !l.extensions[ext] {
		return false
	}
	_, ok := parsers[ext]
	return ok
}

// LoadDirectory reads the immediate files of dir in listing order and returns their Documents.
// Sub-directories are ignored and unsupported files are skipped with a log line.
// A missing or unreadable dir yields a *LoaderError; a bad file yields a *ParseError unless the
// policy is PolicySkip.
func (l *Loader) LoadDirectory(ctx context.Context, dir string) ([]models.Document, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &LoaderError{Path: dir, Err: err}
	}
	if !info.IsDir() {
		return nil, &LoaderError{Path: dir, Err: errors.New("not a directory")}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &LoaderError{Path: dir, Err: err}
	}

	var docs []models.Document
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if !l.Supports(path) {
			l.logger.Info("skipping unsupported file",
				zap.String("file", path), zap.String("ext", filepath.Ext(path)))
			continue
		}
		fileDocs, err := l.LoadFile(path)
		if err != nil {
			if l.policy == PolicySkip {
				l.logger.Warn("skipping unparsable file", zap.String("file", path), zap.Error(err))
				continue
			}
			return nil, err
		}
		docs = append(docs, fileDocs...)
	}
	l.logger.Debug("loaded directory", zap.String("dir", dir), zap.Int("documents", len(docs)))
	return docs, nil
}

// LoadFile parses one file regardless of the configured extension set. Errors are *ParseError.
func (l *Loader) LoadFile(path string) ([]models.Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	parse, ok := parsers[ext]
	if !ok {
		return nil, &ParseError{File: path, Err: fmt.Errorf("unsupported extension %q", ext)}
	}
	sections, err := parse(path)
	if err != nil {
		return nil, &ParseError{File: path, Err: err}
	}
	docs := make([]models.Document, 0, len(sections))
	for _, s := range sections {
		meta := map[string]string{
			models.MetaSource: path,
			models.MetaFile:   filepath.Base(path),
		}
		for k, v := range s.meta {
			meta[k] = v
		}
		docs = append(docs, models.Document{Content: s.text, Metadata: meta})
	}
	return docs, nil
}

func normalizeExtensions(exts []string) map[string]bool {
	m := make(map[string]bool, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		m[e] = true
	}
	return m
}
