// Package importer selects and drives trace importers. There is no
// process-wide registry: a Session carries an explicit, ordered list of
// format descriptors, which keeps import composition testable and free
// of hidden global state.
package importer

import (
	"fmt"

	"github.com/traceboard/traceboard/internal/core/model"
	"github.com/traceboard/traceboard/internal/data/importer/linuxperf"
	"github.com/traceboard/traceboard/internal/data/importer/traceevent"
	"github.com/traceboard/traceboard/internal/util"
)

// boundsBoostFraction is how much of the data span is added on each
// side of the reported bounds after a zero-and-boost import, purely for
// display convenience.
const boundsBoostFraction = 0.15

// Importer consumes one raw trace and mutates the model it was built
// for. An import pass is synchronous and, except for the Linux-perf
// additional-import rollback, not transactional: on a hard error the
// partially built state is left in place.
type Importer interface {
	ImportEvents() error
}

// Format describes one supported trace encoding. CanImport is a cheap
// predicate over the raw bytes; New builds an importer bound to a
// model. The additional flag marks traces imported after the primary
// one, which may need cross-trace clock alignment.
type Format struct {
	Name      string
	CanImport func(data []byte) bool
	New       func(m *model.Model, data []byte, additional bool) Importer
}

// DefaultFormats returns the built-in formats in probe order: the
// Linux-perf text format first, then JSON trace events.
func DefaultFormats() []Format {
	return []Format{
		{
			Name:      "linux-perf",
			CanImport: linuxperf.CanImport,
			New: func(m *model.Model, data []byte, additional bool) Importer {
				return linuxperf.New(m, data, additional)
			},
		},
		{
			Name:      "trace-event",
			CanImport: traceevent.CanImport,
			New: func(m *model.Model, data []byte, additional bool) Importer {
				return traceevent.New(m, data, additional)
			},
		},
	}
}

// Session imports one primary trace and any number of additional
// traces into a model, then normalizes the result.
type Session struct {
	Formats      []Format
	ZeroAndBoost bool
}

// NewSession returns a session over the given ordered format list.
func NewSession(formats []Format, zeroAndBoost bool) *Session {
	return &Session{Formats: formats, ZeroAndBoost: zeroAndBoost}
}

// Import runs the whole session. The primary trace is imported first,
// then each additional trace in order; each trace is handled by the
// first format whose predicate matches, and a trace no format matches
// is a hard error. Afterwards empty threads are pruned, bounds are
// recomputed and, when ZeroAndBoost is set, every timestamp is shifted
// so the minimum becomes zero and the reported bounds are widened by
// 15% of the span on each side.
func (s *Session) Import(m *model.Model, primary []byte, additional ...[]byte) error {
	if err := s.importOne(m, primary, false); err != nil {
		return err
	}
	for _, data := range additional {
		if err := s.importOne(m, data, true); err != nil {
			return err
		}
	}

	m.PruneEmptyThreads()
	if err := m.UpdateBounds(); err != nil {
		return err
	}
	if s.ZeroAndBoost && m.Bounds.Set {
		m.ShiftTimestampsForward(-m.Bounds.Min)
		if err := m.UpdateBounds(); err != nil {
			return err
		}
		boost := m.Bounds.Range() * boundsBoostFraction
		m.Bounds.Min -= boost
		m.Bounds.Max += boost
	}
	return nil
}

func (s *Session) importOne(m *model.Model, data []byte, additional bool) error {
	for _, f := range s.Formats {
		if !f.CanImport(data) {
			continue
		}
		util.LogDebugf("importing %d bytes as %s (additional=%v)", len(data), f.Name, additional)
		if err := f.New(m, data, additional).ImportEvents(); err != nil {
			return fmt.Errorf("%s import: %w", f.Name, err)
		}
		return nil
	}
	return fmt.Errorf("no importer found for the given trace")
}
