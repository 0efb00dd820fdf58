// Package patcher owns the loaded patch files, answers per-title lookups,
// and applies enabled patches through a memory-write capability.
package patcher

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/papapumpkin/titlepatch/internal/logging"
	"github.com/papapumpkin/titlepatch/internal/patch"
	"github.com/papapumpkin/titlepatch/internal/telemetry"
)

// MemoryWriter writes the low width bytes of value at address. Byte order is
// the writer's concern.
type MemoryWriter interface {
	Write(address uint32, width patch.Width, value uint64) error
}

// LoadReport summarizes one LoadAll or Reload call.
type LoadReport struct {
	Loaded      int // files added to the collection
	Rejected    int // sources that contributed nothing
	Diagnostics []patch.Diagnostic
}

// System is the patching orchestrator. The loaded collection is a snapshot
// that loads replace wholesale under mu; lookups and applies read it under
// the read lock.
type System struct {
	mu     sync.RWMutex
	loaded []*patch.File
	diags  []patch.Diagnostic

	anyApplied atomic.Bool

	logger *slog.Logger
	events *telemetry.Emitter
}

// Option configures a System.
type Option func(*System)

// WithLogger sets the logger used for load and apply diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *System) { s.logger = l }
}

// WithEmitter sets the telemetry emitter. A nil emitter is a no-op.
func WithEmitter(e *telemetry.Emitter) Option {
	return func(s *System) { s.events = e }
}

// New returns an empty System.
func New(opts ...Option) *System {
	s := &System{logger: logging.Discard()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadAll parses every source and adds the resulting files to the
// collection. Sources that cannot be read or parsed are skipped.
func (s *System) LoadAll(sources []Source) LoadReport {
	return s.load(sources, false)
}

// Reload parses every source and replaces the whole collection with the
// result. It also clears the applied flag, since the new snapshot has never
// been written.
func (s *System) Reload(sources []Source) LoadReport {
	return s.load(sources, true)
}

func (s *System) load(sources []Source, replace bool) LoadReport {
	var report LoadReport
	var files []*patch.File

	for _, src := range sources {
		f, diags, err := s.parseSource(src)
		report.Diagnostics = append(report.Diagnostics, diags...)
		if err != nil {
			var d *patch.Diagnostic
			if !errors.As(err, &d) {
				d = &patch.Diagnostic{Source: src.Name(), Edit: -1, Err: err}
			}
			d.Category = patch.CategoryFor(err)
			report.Diagnostics = append(report.Diagnostics, *d)
			report.Rejected++
			s.logger.Warn("patch file skipped", "source", src.Name(), "error", err)
			_ = s.events.Emit(telemetry.Event{
				Kind:   telemetry.KindFileRejected,
				Source: src.Name(),
				Data:   map[string]string{"error": err.Error()},
			})
			continue
		}
		for _, d := range diags {
			s.logger.Warn("patch entry skipped", "source", d.Source, "category", string(d.Category), "error", d.Error())
		}
		files = append(files, f)
	}
	report.Loaded = len(files)

	s.mu.Lock()
	var next []*patch.File
	if !replace {
		next = append(next, s.loaded...)
	}
	report.Diagnostics = append(report.Diagnostics, s.titleCollisions(next, files)...)
	next = append(next, files...)
	s.loaded = next
	s.diags = report.Diagnostics
	if replace {
		s.anyApplied.Store(false)
	}
	total := len(next)
	s.mu.Unlock()

	kind := telemetry.KindLoadDone
	if replace {
		kind = telemetry.KindReload
	}
	_ = s.events.Emit(telemetry.Event{
		Kind: kind,
		Data: map[string]int{
			"loaded":      report.Loaded,
			"rejected":    report.Rejected,
			"diagnostics": len(report.Diagnostics),
			"total":       total,
		},
	})
	s.logger.Info("patch files loaded", "loaded", report.Loaded, "rejected", report.Rejected, "total", total)
	return report
}

func (s *System) parseSource(src Source) (*patch.File, []patch.Diagnostic, error) {
	data, err := src.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", patch.ErrSourceUnreadable, err)
	}
	return patch.Decode(data, src.Name())
}

// titleCollisions reports each added file sharing a title id with an
// already loaded file or an earlier added one. Collisions among loaded
// files were reported when they were added. All files stay loaded and are
// all applied.
func (s *System) titleCollisions(loaded, added []*patch.File) []patch.Diagnostic {
	var diags []patch.Diagnostic
	first := make(map[uint32]string, len(loaded)+len(added))
	for _, f := range loaded {
		if _, ok := first[f.TitleID]; !ok {
			first[f.TitleID] = f.Source
		}
	}
	for _, f := range added {
		prev, ok := first[f.TitleID]
		if !ok {
			first[f.TitleID] = f.Source
			continue
		}
		d := patch.Diagnostic{
			Category: patch.CatDuplicateTitleID,
			Source:   f.Source,
			Edit:     -1,
			Field:    "title_id",
			Err:      fmt.Errorf("%w: %08X already loaded from %s", patch.ErrDuplicateTitleID, f.TitleID, prev),
		}
		s.logger.Warn("duplicate title id", "title", fmt.Sprintf("%08X", f.TitleID), "source", f.Source, "first", prev)
		diags = append(diags, d)
	}
	return diags
}

// Files returns every loaded patch file in load order.
func (s *System) Files() []*patch.File {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*patch.File, len(s.loaded))
	copy(out, s.loaded)
	return out
}

// PatchesForTitle returns every loaded file whose title id matches.
func (s *System) PatchesForTitle(titleID uint32) []*patch.File {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.forTitle(titleID)
}

// forTitle is PatchesForTitle without locking. Caller holds mu.
func (s *System) forTitle(titleID uint32) []*patch.File {
	var out []*patch.File
	for _, f := range s.loaded {
		if f.TitleID == titleID {
			out = append(out, f)
		}
	}
	return out
}

// Diagnostics returns the diagnostics of the most recent load.
func (s *System) Diagnostics() []patch.Diagnostic {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]patch.Diagnostic, len(s.diags))
	copy(out, s.diags)
	return out
}

// AnyApplied reports whether any edit has been written since the last
// Reload.
func (s *System) AnyApplied() bool {
	return s.anyApplied.Load()
}

// SetEnabled toggles every definition with patchID in files for titleID and
// returns how many matched.
func (s *System) SetEnabled(titleID, patchID uint32, enabled bool) int {
	s.mu.Lock()
	n := 0
	for _, f := range s.forTitle(titleID) {
		for _, d := range f.Definitions {
			if d.ID == patchID {
				d.Enabled = enabled
				n++
			}
		}
	}
	s.mu.Unlock()

	if n > 0 {
		_ = s.events.Emit(telemetry.Event{
			Kind:    telemetry.KindToggle,
			TitleID: titleID,
			PatchID: patchID,
			Data:    map[string]bool{"enabled": enabled},
		})
	}
	return n
}

// Apply writes every edit of def in order and returns how many writes
// succeeded. A disabled definition writes nothing. Failed writes do not stop
// the remaining edits; they are returned joined in the error.
func (s *System) Apply(w MemoryWriter, def *patch.Definition) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.apply(w, 0, "", def)
}

// ApplyForTitle applies every definition of every file loaded for titleID.
func (s *System) ApplyForTitle(w MemoryWriter, titleID uint32) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	files := s.forTitle(titleID)
	if len(files) == 0 {
		s.logger.Debug("no patches for title", "title", fmt.Sprintf("%08X", titleID))
		return 0, nil
	}

	total := 0
	var errs []error
	for _, f := range files {
		for _, def := range f.Definitions {
			n, err := s.apply(w, f.TitleID, f.Source, def)
			total += n
			if err != nil {
				errs = append(errs, err)
			}
		}
	}
	s.logger.Info("title patched", "title", fmt.Sprintf("%08X", titleID), "writes", total, "failures", len(errs))
	return total, errors.Join(errs...)
}

// apply is the shared body of Apply and ApplyForTitle. Caller holds mu.
func (s *System) apply(w MemoryWriter, titleID uint32, source string, def *patch.Definition) (int, error) {
	if def == nil || !def.Enabled {
		return 0, nil
	}

	written := 0
	var errs []error
	for i, e := range def.Edits {
		if err := w.Write(e.Address(), e.Width(), e.Value()); err != nil {
			d := &patch.Diagnostic{
				Category: patch.CatWriteFailed,
				Source:   source,
				PatchID:  def.ID,
				HasPatch: true,
				Edit:     i,
				Err:      fmt.Errorf("%w at 0x%08x: %w", patch.ErrWriteFailed, e.Address(), err),
			}
			errs = append(errs, d)
			s.logger.Warn("patch write failed", "patch", def.ID, "name", def.Name, "error", d.Error())
			_ = s.events.Emit(telemetry.Event{
				Kind:    telemetry.KindWriteFailed,
				TitleID: titleID,
				PatchID: def.ID,
				Source:  source,
				Data:    map[string]string{"error": err.Error()},
			})
			continue
		}
		written++
		s.anyApplied.Store(true)
	}

	if written > 0 {
		s.logger.Debug("patch applied", "patch", def.ID, "name", def.Name, "writes", written)
		_ = s.events.Emit(telemetry.Event{
			Kind:    telemetry.KindPatchApplied,
			TitleID: titleID,
			PatchID: def.ID,
			Source:  source,
			Data:    map[string]int{"writes": written, "edits": len(def.Edits)},
		})
	}
	return written, errors.Join(errs...)
}
