// Package model defines the core data structures for soundloop.
package model

import (
	"errors"
	"fmt"
)

// SourceKind discriminates the Source variants.
type SourceKind string

const (
	// KindFile is a local audio asset.
	KindFile SourceKind = "file"
	// KindURL is a remote or file:// URL.
	KindURL SourceKind = "url"
)

// Validation errors.
var (
	ErrEmptySourceID   = errors.New("source id cannot be empty")
	ErrEmptySourcePath = errors.New("file source requires a path")
	ErrEmptySourceURL  = errors.New("url source requires a url")
	ErrUnknownKind     = errors.New("unknown source kind")
)

// Source is one independently addressable audio item.
// It is implemented by FileSource and URLSource only.
type Source interface {
	SourceID() string
	Kind() SourceKind
	// Gain is the per-source volume multiplier (0.0 to 1.0).
	Gain() float64
	isSource()
}

// FileSource is an audio asset on the local filesystem.
type FileSource struct {
	ID     string  `json:"id" yaml:"id"`
	Path   string  `json:"path" yaml:"path"`
	Volume float64 `json:"volume" yaml:"volume"`
}

// URLSource is an audio item addressed by URL.
type URLSource struct {
	ID     string  `json:"id" yaml:"id"`
	URL    string  `json:"url" yaml:"url"`
	Volume float64 `json:"volume" yaml:"volume"`
}

func (s FileSource) SourceID() string { return s.ID }
func (s FileSource) Kind() SourceKind { return KindFile }
func (s FileSource) Gain() float64 { return clampUnit(s.Volume) }
func (FileSource) isSource() {}

func (s URLSource) SourceID() string { return s.ID }
func (s URLSource) Kind() SourceKind { return KindURL }
func (s URLSource) Gain() float64 { return clampUnit(s.Volume) }
func (URLSource) isSource() {}

// NewSource builds the variant named by kind.
// Only the fields relevant to that variant are consulted.
func NewSource(kind SourceKind, id, path, url string, volume float64) (Source, error) {
	if id == "" {
		return nil, ErrEmptySourceID
	}

	switch kind {
	case KindFile:
		if path == "" {
			return nil, fmt.Errorf("source %q: %w", id, ErrEmptySourcePath)
		}
		return FileSource{ID: id, Path: path, Volume: volume}, nil
	case KindURL:
		if url == "" {
			return nil, fmt.Errorf("source %q: %w", id, ErrEmptySourceURL)
		}
		return URLSource{ID: id, URL: url, Volume: volume}, nil
	default:
		return nil, fmt.Errorf("source %q: %w %q", id, ErrUnknownKind, kind)
	}
}

// Describe returns the locator-ish field of a source for display.
func Describe(s Source) string {
	switch v := s.(type) {
	case FileSource:
		return v.Path
	case URLSource:
		return v.URL
	default:
		return ""
	}
}

// ClampVolume limits v to [0, 1].
func ClampVolume(v float64) float64 {
	return clampUnit(v)
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
