// Package session owns the engine process lifetime: at most one persistent
// worker shared across calls, plus ephemeral workers for single calls.
package session

import (
	"sync"

	"github.com/przemyslawpluta/extractd/internal/engine"
	"github.com/przemyslawpluta/extractd/internal/metrics"
	"github.com/przemyslawpluta/extractd/pkg/types"
)

// Session decides per call whether to reuse, create or promote a worker.
// Once a persistent worker exists every call reuses it until Desist.
type Session struct {
	mu         sync.Mutex
	factory    engine.Factory
	persistent engine.Worker
}

func New(factory engine.Factory) *Session {
	return &Session{factory: factory}
}

// Lease is a worker handed to one call.
type Lease struct {
	Worker     engine.Worker
	Persistent bool
	// ephemeral is set when the worker was started for this call and must be
	// ended on Release.
	ephemeral bool
}

// Acquire returns the persistent worker if one exists and is still alive.
// Otherwise it starts a persistent worker when persist is set, reuses supplied
// (owned by the caller) or starts an ephemeral one.
func (s *Session) Acquire(persist bool, supplied engine.Worker) (*Lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dropClosed()
	if s.persistent != nil {
		return &Lease{Worker: s.persistent, Persistent: true}, nil
	}

	if persist {
		w, err := s.factory()
		if err != nil {
			return nil, err
		}
		s.persistent = engine.Serialize(w)
		metrics.EngineStarts.WithLabelValues(metrics.ModePersistent).Inc()
		metrics.PersistentSession.Set(1)
		return &Lease{Worker: s.persistent, Persistent: true}, nil
	}

	if supplied != nil {
		return &Lease{Worker: supplied}, nil
	}

	w, err := s.factory()
	if err != nil {
		return nil, err
	}
	metrics.EngineStarts.WithLabelValues(metrics.ModeEphemeral).Inc()
	return &Lease{Worker: w, ephemeral: true}, nil
}

// Release ends the leased worker only if it was started for this call.
func (s *Session) Release(lease *Lease) error {
	if lease == nil || !lease.ephemeral {
		return nil
	}
	lease.ephemeral = false
	metrics.EngineStops.WithLabelValues(metrics.ModeEphemeral).Inc()
	return lease.Worker.End()
}

func (s *Session) Status() types.Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dropClosed()
	return types.Status{Persistent: s.persistent != nil}
}

// Desist ends the persistent worker if there is one. The singleton is cleared
// even when ending the process fails.
func (s *Session) Desist() (types.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.persistent == nil {
		return types.Status{Persistent: false}, nil
	}

	w := s.persistent
	s.persistent = nil
	metrics.PersistentSession.Set(0)
	metrics.EngineStops.WithLabelValues(metrics.ModePersistent).Inc()

	return types.Status{Persistent: false}, w.End()
}

// dropClosed forgets a persistent worker whose process has gone away. The
// caller holds s.mu.
func (s *Session) dropClosed() {
	if s.persistent == nil || !engine.IsClosed(s.persistent) {
		return
	}

	w := s.persistent
	s.persistent = nil
	metrics.PersistentSession.Set(0)
	metrics.EngineStops.WithLabelValues(metrics.ModePersistent).Inc()
	// Reap the process; its exit error is expected.
	_ = w.End()
}
