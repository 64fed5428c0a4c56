package output

import (
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/soundloop/internal/core"
	"github.com/jmylchreest/soundloop/internal/model"
)

// PlainFormatter formats sources and events as plain text.
type PlainFormatter struct {
	opts     FormatterOptions
	template *template.Template
}

// NewPlainFormatter creates a new plain text formatter.
func NewPlainFormatter(opts FormatterOptions) *PlainFormatter {
	f := &PlainFormatter{opts: opts}

	// Parse custom template if provided
	if opts.Template != "" {
		tmpl, err := template.New("plain").Funcs(templateFuncs()).Parse(opts.Template)
		if err == nil {
			f.template = tmpl
		}
	}

	return f
}

// templateData provides data for custom templates.
type templateData struct {
	Index  int
	Source core.SourceStatus
	State  string
}

// FormatSources writes one line per source.
func (f *PlainFormatter) FormatSources(w io.Writer, sources []core.SourceStatus) error {
	for i, s := range sources {
		if err := f.formatSource(w, i+1, s); err != nil {
			return err
		}
	}
	return nil
}

func (f *PlainFormatter) formatSource(w io.Writer, index int, s core.SourceStatus) error {
	if f.template != nil {
		if err := f.template.Execute(w, templateData{Index: index, Source: s, State: sourceState(s)}); err != nil {
			return err
		}
		_, err := io.WriteString(w, "\n")
		return err
	}

	var sb strings.Builder

	if f.opts.ShowIndex {
		sb.WriteString(fmt.Sprintf("[%d] ", index))
	}

	sb.WriteString(s.ID)
	if s.Title != "" {
		sb.WriteString(fmt.Sprintf(" %q", s.Title))
	}
	sb.WriteString(fmt.Sprintf(" (%s) %s", s.Kind, sourceState(s)))

	if s.Resolved {
		sb.WriteString(fmt.Sprintf(" vol=%d%%", int(s.Volume*100+0.5)))
	}
	if s.InPlaylist {
		sb.WriteString(" [playlist]")
	}
	if f.opts.ShowLocator && s.Locator != "" {
		sb.WriteString("\n    " + s.Locator)
		if s.Size > 0 {
			sb.WriteString(" (" + humanize.Bytes(s.Size) + ")")
		}
	}
	if s.Error != "" {
		sb.WriteString("\n    error: " + s.Error)
	}
	sb.WriteString("\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

// FormatEvents writes one line per event, oldest first.
func (f *PlainFormatter) FormatEvents(w io.Writer, events []model.Event) error {
	for _, ev := range events {
		line := ev.String()
		if f.opts.ShowTime {
			line = fmt.Sprintf("%s (%s)", line, relativeTime(ev.Time()))
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// sourceState returns a one-word state for a source.
func sourceState(s core.SourceStatus) string {
	switch {
	case !s.Resolved:
		return "unavailable"
	case s.Playing:
		return "playing"
	default:
		return "idle"
	}
}

// templateFuncs returns template helper functions.
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"truncate": func(s string, maxLen int) string {
			if maxLen <= 0 || len(s) <= maxLen {
				return s
			}
			if maxLen <= 3 {
				return s[:maxLen]
			}
			return s[:maxLen-3] + "..."
		},
		"percent": func(v float64) string {
			return fmt.Sprintf("%d%%", int(v*100+0.5))
		},
		"upper": strings.ToUpper,
		"bytes": humanize.Bytes,
	}
}

// relativeTime returns a human-readable relative time string.
func relativeTime(t time.Time) string {
	if t.IsZero() || t.UnixMilli() == 0 {
		return "unknown"
	}
	return humanize.Time(t)
}
