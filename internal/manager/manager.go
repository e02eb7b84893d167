package manager

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"workerd/internal/metrics"
	"workerd/internal/worker"
	"workerd/pkg/types"
)

// Manager holds one LLM worker per descriptor for the lifetime of the service.
type Manager struct {
	descriptors []types.Descriptor
	workers     map[string]*worker.LLM
	recorders   map[string]*metrics.Recorder
	log         zerolog.Logger

	readyTimeout        time.Duration
	startupReadyTimeout time.Duration
	startTime           time.Time

	ctx    context.Context
	cancel context.CancelFunc
	bg     sync.WaitGroup
	once   sync.Once
}

func newManager(cfg ManagerConfig) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		descriptors:         append([]types.Descriptor(nil), cfg.Descriptors...),
		workers:             make(map[string]*worker.LLM, len(cfg.Descriptors)),
		recorders:           make(map[string]*metrics.Recorder, len(cfg.Descriptors)),
		log:                 log.With().Str("component", "manager").Logger(),
		readyTimeout:        cfg.ReadyTimeout,
		startupReadyTimeout: cfg.StartupReadyTimeout,
		startTime:           time.Now(),
		ctx:                 ctx,
		cancel:              cancel,
	}
	for _, d := range m.descriptors {
		rec := metrics.NewRecorder(d.Name, cfg.MetricsDir, m.log)
		var coord *worker.Coordinator
		if cfg.Dependency != nil {
			if client := cfg.Dependency(d); client != nil {
				coord = worker.NewCoordinator(client, cfg.DependencyPoll, m.log)
			}
		}
		m.recorders[d.Name] = rec
		m.workers[d.Name] = worker.NewLLM(worker.LLMConfig{
			Name:            d.Name,
			Executable:      d.Executable,
			WorkingDir:      d.WorkingDir,
			Tokenizer:       d.Name,
			TokenizerPort:   d.TokenizerPort,
			IncludeThinking: d.IncludeThinking,
			PromptTimeout:   cfg.PromptTimeout,
			Coordinator:     coord,
			Metrics:         rec,
			Publisher:       cfg.Publisher,
		})
		m.log.Info().Str("model", d.Name).Msg("created llm worker")
	}
	return m
}

func (m *Manager) get(name string) (*worker.LLM, error) {
	w, ok := m.workers[name]
	if !ok {
		return nil, ErrModelNotFound(name)
	}
	return w, nil
}

// HasModel reports whether a descriptor with this name exists.
func (m *Manager) HasModel(name string) bool {
	_, ok := m.workers[name]
	return ok
}

// ListModels returns a copy of the descriptors in file order.
func (m *Manager) ListModels() []types.Descriptor {
	out := make([]types.Descriptor, len(m.descriptors))
	copy(out, m.descriptors)
	return out
}

// Status returns the current status of a model's worker.
func (m *Manager) Status(name string) (worker.Status, error) {
	w, err := m.get(name)
	if err != nil {
		return "", err
	}
	return w.Status(), nil
}

// StatusHistory returns every status a model's worker has entered.
func (m *Manager) StatusHistory(name string) ([]worker.Status, error) {
	w, err := m.get(name)
	if err != nil {
		return nil, err
	}
	return w.History(), nil
}

// LastMetrics returns the figures of a model's most recent prompt.
func (m *Manager) LastMetrics(name string) (metrics.Snapshot, error) {
	rec, ok := m.recorders[name]
	if !ok {
		return metrics.Snapshot{}, ErrModelNotFound(name)
	}
	return rec.Last(), nil
}

// Ready reports whether at least one worker has finished initialization and
// has not failed since.
func (m *Manager) Ready() bool {
	for _, w := range m.workers {
		switch w.Status() {
		case worker.StatusReady, worker.StatusAnswering, worker.StatusAnsweringDone:
			return true
		}
	}
	return false
}

// Uptime returns the time since construction.
func (m *Manager) Uptime() time.Duration { return time.Since(m.startTime) }

// Close cancels background starts and stops every child process.
func (m *Manager) Close() error {
	var errs []error
	m.once.Do(func() {
		m.cancel()
		m.bg.Wait()
		for name, w := range m.workers {
			if err := w.Stop(); err != nil {
				m.log.Warn().Err(err).Str("model", name).Msg("stop worker")
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}
