// Package output provides output formatters for source statuses and events.
package output

import (
	"fmt"
	"io"

	"github.com/jmylchreest/soundloop/internal/core"
	"github.com/jmylchreest/soundloop/internal/model"
)

// Formatter formats sources and trigger events for output.
type Formatter interface {
	// FormatSources writes source statuses to the writer.
	FormatSources(w io.Writer, sources []core.SourceStatus) error
	// FormatEvents writes trigger events to the writer.
	FormatEvents(w io.Writer, events []model.Event) error
}

// FormatType represents an output format type.
type FormatType string

const (
	FormatPlain FormatType = "plain"
	FormatJSON  FormatType = "json"
	FormatYAML  FormatType = "yaml"
)

// ParseFormat validates a user supplied format name.
func ParseFormat(s string) (FormatType, error) {
	switch f := FormatType(s); f {
	case FormatPlain, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatPlain, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want plain, json or yaml)", s)
	}
}

// NewFormatter creates a formatter for the specified format type.
func NewFormatter(format FormatType, opts FormatterOptions) Formatter {
	switch format {
	case FormatJSON:
		return NewJSONFormatter(opts)
	case FormatYAML:
		return NewYAMLFormatter(opts)
	case FormatPlain:
		fallthrough
	default:
		return NewPlainFormatter(opts)
	}
}

// FormatterOptions configures formatter behavior.
type FormatterOptions struct {
	Template    string // Custom template for plain source lines
	ShowIndex   bool   // Show 1-based index prefix
	ShowLocator bool   // Show the resolved path or URL
	ShowTime    bool   // Show relative event time
}

// DefaultFormatterOptions returns sensible defaults for terminal output.
func DefaultFormatterOptions() FormatterOptions {
	return FormatterOptions{
		ShowIndex:   true,
		ShowLocator: true,
		ShowTime:    true,
	}
}
