// Package telemetry provides a JSONL event stream recording what the
// patching system loaded, toggled and wrote, so a session can be audited
// after the fact.
package telemetry

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Event kinds identify the type of telemetry event.
const (
	KindLoadDone     = "load_done"
	KindReload       = "reload"
	KindFileRejected = "file_rejected"
	KindPatchApplied = "patch_applied"
	KindWriteFailed  = "write_failed"
	KindToggle       = "toggle"
)

// Event represents a single telemetry record. Each event carries a timestamp,
// a kind tag, and optional title and patch identifiers along with arbitrary
// structured data.
type Event struct {
	Timestamp time.Time `json:"ts"`
	Kind      string    `json:"kind"`
	TitleID   uint32    `json:"title,omitempty"`
	PatchID   uint32    `json:"patch,omitempty"`
	Source    string    `json:"source,omitempty"`
	Data      any       `json:"data,omitempty"`
}

// Emitter writes telemetry events as JSON lines. It is safe for concurrent
// use by multiple goroutines. A nil *Emitter is a valid no-op emitter.
type Emitter struct {
	closer io.Closer
	enc    *json.Encoder
	mu     sync.Mutex
}

// NewEmitter creates a new Emitter that writes JSONL events to the file at
// path. The file is created if it does not exist, or appended to if it does.
func NewEmitter(path string) (*Emitter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("telemetry: open %s: %w", path, err)
	}
	return &Emitter{
		closer: f,
		enc:    json.NewEncoder(f),
	}, nil
}

// NewStreamEmitter creates an Emitter writing to w. Close does not close w.
func NewStreamEmitter(w io.Writer) *Emitter {
	return &Emitter{enc: json.NewEncoder(w)}
}

// Emit writes a single event. A zero Timestamp is set to the current time.
// Calling Emit on a nil Emitter is a no-op.
func (e *Emitter) Emit(evt Event) error {
	if e == nil {
		return nil
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enc.Encode(evt); err != nil {
		return fmt.Errorf("telemetry: encode event: %w", err)
	}
	return nil
}

// Close closes the underlying file, if any. Calling Close on a nil Emitter
// is a no-op.
func (e *Emitter) Close() error {
	if e == nil || e.closer == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.closer.Close(); err != nil {
		return fmt.Errorf("telemetry: close: %w", err)
	}
	return nil
}
