package manager

import (
	"context"
	"errors"
	"time"

	"workerd/internal/worker"
)

// Generate answers one prompt on the named model. An IDLE worker is started
// first; the start and the readiness wait share the ready timeout.
func (m *Manager) Generate(ctx context.Context, name, prompt string) (string, error) {
	w, err := m.get(name)
	if err != nil {
		return "", err
	}
	if err := m.ensureReady(ctx, w, m.readyTimeout); err != nil {
		return "", err
	}
	return w.Prompt(ctx, prompt)
}

// ensureReady starts w if it is IDLE and waits up to timeout for READY. A
// worker that is answering is not waited on; the prompt gate rejects the
// caller instead.
func (m *Manager) ensureReady(ctx context.Context, w *worker.LLM, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	switch w.Status() {
	case worker.StatusAnswering, worker.StatusAnsweringDone:
		return nil
	case worker.StatusIdle:
		m.log.Info().Str("model", w.Name()).Msg("prompt for idle model, starting it")
		sctx, cancel := context.WithDeadline(ctx, deadline)
		err := w.Start(sctx)
		cancel()
		switch {
		case err == nil, worker.IsAlreadyStarted(err):
		case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
			return &worker.ReadinessTimeoutError{Worker: w.Name(), Timeout: timeout}
		default:
			return err
		}
	}
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return &worker.ReadinessTimeoutError{Worker: w.Name(), Timeout: timeout}
	}
	return w.AwaitReady(ctx, remaining)
}
