package manager

import (
	"errors"

	"github.com/rs/zerolog/log"

	"workerd/internal/worker"
)

// TokenizerManager holds one tokenizer worker per descriptor, keyed by the
// model name.
type TokenizerManager struct {
	names      []string
	tokenizers map[string]*worker.Tokenizer
}

// NewTokenizerManager creates an IDLE tokenizer for every descriptor.
func NewTokenizerManager(cfg TokenizerManagerConfig) *TokenizerManager {
	tm := &TokenizerManager{tokenizers: make(map[string]*worker.Tokenizer, len(cfg.Descriptors))}
	for _, d := range cfg.Descriptors {
		tm.names = append(tm.names, d.Name)
		tm.tokenizers[d.Name] = worker.NewTokenizer(worker.TokenizerConfig{
			Name:        d.Name,
			Executable:  d.TokenizerExecutable,
			Interpreter: d.TokenizerInterpreter,
			WorkingDir:  d.TokenizerWorkingDir,
			Port:        d.TokenizerPort,
			SettleDelay: cfg.SettleDelay,
			Publisher:   cfg.Publisher,
		})
		log.Info().Str("model", d.Name).Int("port", d.TokenizerPort).Msg("created tokenizer worker")
	}
	return tm
}

func (tm *TokenizerManager) get(name string) (*worker.Tokenizer, error) {
	t, ok := tm.tokenizers[name]
	if !ok {
		return nil, ErrModelNotFound(name)
	}
	return t, nil
}

// StartTokenizer spawns the named tokenizer. A second call fails with
// worker.AlreadyStartedError.
func (tm *TokenizerManager) StartTokenizer(name string) error {
	t, err := tm.get(name)
	if err != nil {
		return err
	}
	return t.Start()
}

// Status returns the current status of the named tokenizer.
func (tm *TokenizerManager) Status(name string) (worker.Status, error) {
	t, err := tm.get(name)
	if err != nil {
		return "", err
	}
	return t.Status(), nil
}

// StatusHistory returns every status the named tokenizer has entered.
func (tm *TokenizerManager) StatusHistory(name string) ([]worker.Status, error) {
	t, err := tm.get(name)
	if err != nil {
		return nil, err
	}
	return t.History(), nil
}

// Names lists the tokenizers in descriptor order.
func (tm *TokenizerManager) Names() []string {
	return append([]string(nil), tm.names...)
}

// Ready reports whether every started tokenizer is READY. Tokenizers that
// were never started do not count against readiness.
func (tm *TokenizerManager) Ready() bool {
	for _, t := range tm.tokenizers {
		if s := t.Status(); s != worker.StatusIdle && s != worker.StatusReady {
			return false
		}
	}
	return true
}

// Close stops every tokenizer child.
func (tm *TokenizerManager) Close() error {
	var errs []error
	for _, t := range tm.tokenizers {
		if err := t.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

