// Package store persists trigger events and the state shared between the
// daemon and the CLI.
package store

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jmylchreest/soundloop/internal/model"
)

// SchemaVersion is the current event log schema version.
const SchemaVersion = 1

// maxLineSize bounds a single JSONL line.
const maxLineSize = 64 * 1024

// pruneEvery is how many appends pass between automatic retention passes.
const pruneEvery = 500

// ErrEventLogClosed is returned when operations are attempted on a closed log.
var ErrEventLogClosed = errors.New("event log is closed")

// schemaHeader is the first line of the JSONL file.
type schemaHeader struct {
	SoundloopSchemaVersion int   `json:"soundloop_schema_version"`
	CreatedAt              int64 `json:"created_at"`
}

// Retention bounds the event log. Zero values disable a limit.
type Retention struct {
	MaxAge    time.Duration // drop events older than now-MaxAge
	MaxEvents int           // keep only the newest MaxEvents
}

// Enabled reports whether any limit is set.
func (r Retention) Enabled() bool {
	return r.MaxAge > 0 || r.MaxEvents > 0
}

// EventLog is an append-only JSONL record of trigger events.
// It implements trigger.Sink.
type EventLog struct {
	mu     sync.Mutex
	logger *slog.Logger
	path   string
	file   *os.File
	closed bool

	retention  Retention
	sincePrune int
}

// OpenEventLog opens or creates the log at path.
func OpenEventLog(path string, logger *slog.Logger) (*EventLog, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}

	l := &EventLog{
		logger: logger,
		path:   path,
		file:   file,
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, err
	}

	if info.Size() == 0 {
		if err := l.writeHeader(); err != nil {
			_ = file.Close()
			return nil, err
		}
	}

	return l, nil
}

func (l *EventLog) writeHeader() error {
	header := schemaHeader{
		SoundloopSchemaVersion: SchemaVersion,
		CreatedAt:              time.Now().Unix(),
	}

	data, err := json.Marshal(header)
	if err != nil {
		return err
	}

	_, err = l.file.Write(append(data, '\n'))
	return err
}

// Path returns the file backing the log.
func (l *EventLog) Path() string {
	return l.path
}

// Append writes one event.
func (l *EventLog) Append(ev model.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed || l.file == nil {
		return ErrEventLogClosed
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	if _, err := l.file.Write(append(data, '\n')); err != nil {
		return err
	}

	l.sincePrune++
	if l.retention.Enabled() && l.sincePrune >= pruneEvery {
		if _, err := l.pruneLocked(l.retention, time.Now()); err != nil {
			l.logger.Warn("failed to prune event log", "path", l.path, "error", err)
		}
	}
	return nil
}

// SetRetention applies r every few hundred appends. Call Prune to apply it
// immediately.
func (l *EventLog) SetRetention(r Retention) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.retention = r
}

// Prune drops events outside r and rewrites the file. It returns the number
// of events removed.
func (l *EventLog) Prune(r Retention) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed || l.file == nil {
		return 0, ErrEventLogClosed
	}
	return l.pruneLocked(r, time.Now())
}

func (l *EventLog) pruneLocked(r Retention, now time.Time) (int, error) {
	l.sincePrune = 0
	if !r.Enabled() {
		return 0, nil
	}

	if _, err := l.file.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("seek %s: %w", l.path, err)
	}
	events, err := parseEvents(l.file)
	if err != nil {
		return 0, err
	}

	kept := retain(events, r, now)
	removed := len(events) - len(kept)
	if removed == 0 {
		return 0, nil
	}

	if err := l.rewriteLocked(kept); err != nil {
		return 0, err
	}
	l.logger.Debug("pruned event log", "path", l.path, "removed", removed, "kept", len(kept))
	return removed, nil
}

// rewriteLocked replaces the file with a header and events, via a temp file
// so a failed write leaves the old log in place.
func (l *EventLog) rewriteLocked(events []model.Event) error {
	tmpPath := l.path + ".tmp"
	tmp, err := os.OpenFile(tmpPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmpPath, err)
	}

	w := bufio.NewWriter(tmp)
	err = writeEvents(w, events)
	if err == nil {
		err = w.Flush()
	}
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, l.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace %s: %w", l.path, err)
	}

	file, err := os.OpenFile(l.path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("failed to reopen %s: %w", l.path, err)
	}
	_ = l.file.Close()
	l.file = file
	return nil
}

func writeEvents(w io.Writer, events []model.Event) error {
	header, err := json.Marshal(schemaHeader{
		SoundloopSchemaVersion: SchemaVersion,
		CreatedAt:              time.Now().Unix(),
	})
	if err != nil {
		return err
	}
	if _, err := w.Write(append(header, '\n')); err != nil {
		return err
	}

	for _, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			return err
		}
	}
	return nil
}

// retain returns the events of events (oldest first) that r keeps at now.
func retain(events []model.Event, r Retention, now time.Time) []model.Event {
	kept := events
	if r.MaxAge > 0 {
		cutoff := now.Add(-r.MaxAge)
		kept = kept[:0:0]
		for _, ev := range events {
			if !ev.Time().Before(cutoff) {
				kept = append(kept, ev)
			}
		}
	}
	return tail(kept, r.MaxEvents)
}

// Emit implements trigger.Sink. Write failures are logged.
func (l *EventLog) Emit(ev model.Event) {
	if err := l.Append(ev); err != nil {
		l.logger.Warn("failed to record trigger event", "event_id", ev.ID, "source_id", ev.SourceID, "error", err)
	}
}

// Load reads every event in the log.
func (l *EventLog) Load() ([]model.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed || l.file == nil {
		return nil, ErrEventLogClosed
	}

	if _, err := l.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek %s: %w", l.path, err)
	}

	events, err := parseEvents(l.file)
	if err != nil {
		return events, err
	}

	if _, err := l.file.Seek(0, io.SeekEnd); err != nil {
		return events, err
	}
	return events, nil
}

// Recent returns the last n events, oldest first. n <= 0 returns all.
func (l *EventLog) Recent(n int) ([]model.Event, error) {
	events, err := l.Load()
	if err != nil {
		return nil, err
	}
	return tail(events, n), nil
}

// Clear truncates the log back to a bare header.
func (l *EventLog) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed || l.file == nil {
		return ErrEventLogClosed
	}

	if err := l.file.Truncate(0); err != nil {
		return fmt.Errorf("truncate %s: %w", l.path, err)
	}
	if _, err := l.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	return l.writeHeader()
}

// Close flushes and releases the file.
func (l *EventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	if l.file != nil {
		_ = l.file.Sync()
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

// ReadEventLog reads the log at path without opening it for writing.
// A missing file yields no events.
func ReadEventLog(path string, limit int) ([]model.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer func() { _ = f.Close() }()

	events, err := parseEvents(f)
	if err != nil {
		return nil, err
	}
	return tail(events, limit), nil
}

// parseEvents decodes a JSONL stream. Malformed lines are skipped.
func parseEvents(r io.Reader) ([]model.Event, error) {
	var events []model.Event
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 4096), maxLineSize)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()

		if len(line) == 0 {
			continue
		}

		// First line is the header
		if lineNum == 1 {
			var header schemaHeader
			if err := json.Unmarshal(line, &header); err == nil && header.SoundloopSchemaVersion > 0 {
				if header.SoundloopSchemaVersion > SchemaVersion {
					return nil, fmt.Errorf("unsupported schema version %d (max: %d)",
						header.SoundloopSchemaVersion, SchemaVersion)
				}
				continue
			}
		}

		var ev model.Event
		if err := json.Unmarshal(line, &ev); err != nil {
			continue
		}
		if ev.ID != "" {
			events = append(events, ev)
		}
	}

	if err := scanner.Err(); err != nil {
		return events, fmt.Errorf("error reading event log: %w", err)
	}
	return events, nil
}

func tail(events []model.Event, n int) []model.Event {
	if n <= 0 || n >= len(events) {
		return events
	}
	return events[len(events)-n:]
}
