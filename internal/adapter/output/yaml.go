package output

import (
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/soundloop/internal/core"
	"github.com/jmylchreest/soundloop/internal/model"
)

// YAMLFormatter formats sources and events as YAML documents.
type YAMLFormatter struct {
	opts FormatterOptions
}

// NewYAMLFormatter creates a new YAML formatter.
func NewYAMLFormatter(opts FormatterOptions) *YAMLFormatter {
	return &YAMLFormatter{opts: opts}
}

// yamlEvent adds a readable timestamp; model.Event carries json tags only.
type yamlEvent struct {
	ID       string `yaml:"id"`
	Kind     string `yaml:"kind"`
	SourceID string `yaml:"source_id"`
	Time     string `yaml:"time"`
}

// FormatSources writes sources as a YAML sequence.
func (f *YAMLFormatter) FormatSources(w io.Writer, sources []core.SourceStatus) error {
	return f.encode(w, nonNil(sources))
}

// FormatEvents writes events as a YAML sequence.
func (f *YAMLFormatter) FormatEvents(w io.Writer, events []model.Event) error {
	out := make([]yamlEvent, 0, len(events))
	for _, ev := range events {
		out = append(out, yamlEvent{
			ID:       ev.ID,
			Kind:     string(ev.Kind),
			SourceID: ev.SourceID,
			Time:     ev.Time().UTC().Format(time.RFC3339Nano),
		})
	}
	return f.encode(w, out)
}

func (f *YAMLFormatter) encode(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
