package output

import (
	"encoding/json"
	"io"

	"github.com/jmylchreest/soundloop/internal/core"
	"github.com/jmylchreest/soundloop/internal/model"
)

// JSONFormatter formats sources and events as JSON.
type JSONFormatter struct {
	opts FormatterOptions
}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter(opts FormatterOptions) *JSONFormatter {
	return &JSONFormatter{opts: opts}
}

// FormatSources writes sources as a JSON array.
func (f *JSONFormatter) FormatSources(w io.Writer, sources []core.SourceStatus) error {
	return f.encode(w, nonNil(sources))
}

// FormatEvents writes events as a JSON array.
func (f *JSONFormatter) FormatEvents(w io.Writer, events []model.Event) error {
	return f.encode(w, nonNil(events))
}

func (f *JSONFormatter) encode(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// nonNil makes empty results encode as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
