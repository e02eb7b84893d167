package manager

import (
	"time"

	"workerd/internal/worker"
	"workerd/pkg/types"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultReadyTimeout        = 300 * time.Second
	defaultStartupReadyTimeout = 120 * time.Second
)

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	Descriptors []types.Descriptor
	// MetricsDir receives one textfile per model; empty keeps metrics in memory.
	MetricsDir          string
	ReadyTimeout        time.Duration
	StartupReadyTimeout time.Duration
	PromptTimeout       time.Duration
	DependencyPoll      time.Duration
	// Dependency returns the client for a model's tokenizer service. Nil, or
	// a nil result, starts the model without waiting for a tokenizer.
	Dependency func(d types.Descriptor) worker.DependencyClient
	Publisher  worker.EventPublisher
}

// NewWithConfig constructs a Manager from ManagerConfig.
func NewWithConfig(cfg ManagerConfig) *Manager {
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = defaultReadyTimeout
	}
	if cfg.StartupReadyTimeout <= 0 {
		cfg.StartupReadyTimeout = defaultStartupReadyTimeout
	}
	return newManager(cfg)
}

// TokenizerManagerConfig encapsulates the tunables of a TokenizerManager.
type TokenizerManagerConfig struct {
	Descriptors []types.Descriptor
	SettleDelay time.Duration
	Publisher   worker.EventPublisher
}
