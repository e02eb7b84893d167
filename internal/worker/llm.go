package worker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"workerd/internal/metrics"
)

const (
	// DefaultPromptTimeout bounds the wait for the answer-complete marker.
	DefaultPromptTimeout = 500 * time.Second
	// DefaultStopGrace is how long a child gets between SIGTERM and SIGKILL.
	DefaultStopGrace = 2 * time.Second
)

// MetricsSink receives every raw output line and the figures of each
// completed prompt.
type MetricsSink interface {
	OnOutputLine(line string)
	RecordPrompt(d time.Duration, response string)
}

// LLMConfig describes one LLM worker.
type LLMConfig struct {
	Name       string
	Executable string
	WorkingDir string
	// Tokenizer is the name of the dependency awaited by Coordinator.
	Tokenizer string
	// TokenizerPort is passed to the child as its only argument when set.
	TokenizerPort   int
	IncludeThinking bool

	PromptTimeout time.Duration
	StopGrace     time.Duration

	Coordinator *Coordinator
	Metrics     MetricsSink
	Publisher   EventPublisher
	Logger      *zerolog.Logger
}

// LLM supervises one LLM child and runs the prompt exchange against it.
type LLM struct {
	cfg     LLMConfig
	log     zerolog.Logger
	pub     EventPublisher
	machine *Machine
	demux   *Demux
	gate    *semaphore.Weighted

	mu         sync.Mutex
	proc       *Process
	failReason string

	bufMu sync.Mutex
	buf   strings.Builder
}

// NewLLM returns an IDLE worker. Nothing is spawned until Start.
func NewLLM(cfg LLMConfig) *LLM {
	if cfg.PromptTimeout <= 0 {
		cfg.PromptTimeout = DefaultPromptTimeout
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = DefaultStopGrace
	}
	base := log.Logger
	if cfg.Logger != nil {
		base = *cfg.Logger
	}
	w := &LLM{
		cfg:  cfg,
		log:  base.With().Str("worker", cfg.Name).Str("kind", "llm").Logger(),
		pub:  cfg.Publisher,
		gate: semaphore.NewWeighted(1),
	}
	if w.pub == nil {
		w.pub = noopPublisher{}
	}
	w.machine = NewMachine(MachineConfig{
		Initial:      StatusIdle,
		Ready:        StatusReady,
		Done:         StatusAnsweringDone,
		Failed:       StatusInitFailed,
		OnTransition: w.onTransition,
	})
	w.demux = NewDemux(w.log)
	if cfg.Metrics != nil {
		sink := cfg.Metrics
		w.demux.Register(ObserverFunc(func(_ Stream, line string) error {
			sink.OnOutputLine(line)
			return nil
		}))
	}
	w.demux.Register(ObserverFunc(w.observe))
	return w
}

// Name returns the model name.
func (w *LLM) Name() string { return w.cfg.Name }

// Status returns the current status.
func (w *LLM) Status() Status { return w.machine.Status() }

// History returns every status entered so far.
func (w *LLM) History() []Status { return w.machine.History() }

func (w *LLM) onTransition(from, to Status) {
	ev := w.log.Info()
	if to == StatusInitFailed {
		ev = w.log.Error()
	}
	ev.Str("from", string(from)).Str("to", string(to)).Msg("status")
	metrics.ObserveTransition("llm", w.cfg.Name, string(to))
	w.pub.Publish(Event{Name: "status", Worker: w.cfg.Name, Fields: map[string]any{"from": from, "to": to}})
}

// observe turns one classified line into a transition or buffered answer text.
func (w *LLM) observe(_ Stream, line string) error {
	switch Classify(line) {
	case SignalFatal:
		w.fail(line)
	case SignalInitStarted:
		w.machine.CompareAndApply([]Status{StatusStarting, StatusInitializing}, StatusInitializing)
	case SignalInitOK:
		w.machine.CompareAndApply([]Status{StatusStarting, StatusInitializing}, StatusReady)
	case SignalAnswerComplete:
		if !w.machine.CompareAndApply([]Status{StatusAnswering}, StatusAnsweringDone) {
			w.log.Debug().Str("status", string(w.Status())).Msg("end of answer outside a prompt")
		}
	default:
		if line == "" {
			return nil
		}
		if w.Status() != StatusAnswering {
			w.log.Debug().Str("line", line).Msg("discarded")
			return nil
		}
		w.bufMu.Lock()
		w.buf.WriteString(line)
		w.bufMu.Unlock()
	}
	return nil
}

func (w *LLM) fail(reason string) {
	w.mu.Lock()
	if w.failReason == "" {
		w.failReason = reason
	}
	w.mu.Unlock()
	w.machine.Apply(StatusInitFailed)
}

func (w *LLM) initFailed() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return &InitFailedError{Worker: w.cfg.Name, Reason: w.failReason}
}

func (w *LLM) process() *Process {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.proc
}

// Start waits for the tokenizer dependency and spawns the child. It returns
// once the child is running; use AwaitReady to wait for initialization. A
// failed dependency wait leaves the worker IDLE so it can be started again.
func (w *LLM) Start(ctx context.Context) error {
	if !w.machine.CompareAndApply([]Status{StatusIdle}, StatusWaitForDependency) {
		return &AlreadyStartedError{Worker: w.cfg.Name, Status: w.Status()}
	}
	if w.cfg.Coordinator != nil && w.cfg.Tokenizer != "" {
		if err := w.cfg.Coordinator.EnsureReady(ctx, w.cfg.Tokenizer); err != nil {
			w.machine.CompareAndApply([]Status{StatusWaitForDependency}, StatusIdle)
			return fmt.Errorf("wait for tokenizer %s: %w", w.cfg.Tokenizer, err)
		}
	}
	if !w.machine.CompareAndApply([]Status{StatusWaitForDependency}, StatusStarting) {
		return w.initFailed()
	}
	var args []string
	if w.cfg.TokenizerPort > 0 {
		args = append(args, strconv.Itoa(w.cfg.TokenizerPort))
	}
	w.pub.Publish(Event{Name: "spawn_start", Worker: w.cfg.Name, Fields: map[string]any{"executable": w.cfg.Executable}})
	proc, err := StartProcess(w.cfg.Name, Command{Executable: w.cfg.Executable, Args: args, Dir: w.cfg.WorkingDir}, w.demux, w.log, w.onExit)
	if err != nil {
		metrics.ObserveSpawn("llm", w.cfg.Name, "error")
		w.fail(err.Error())
		return err
	}
	metrics.ObserveSpawn("llm", w.cfg.Name, "ok")
	w.mu.Lock()
	w.proc = proc
	w.mu.Unlock()
	return nil
}

func (w *LLM) onExit(err error, stopped bool) {
	fields := map[string]any{"stopped": stopped}
	if err != nil {
		fields["error"] = err.Error()
	}
	w.pub.Publish(Event{Name: "spawn_exit", Worker: w.cfg.Name, Fields: fields})
	if stopped {
		return
	}
	reason := "process exited"
	if err != nil {
		reason = "process exited: " + err.Error()
	}
	w.fail(reason)
}

// AwaitReady blocks until the worker is READY. A non-positive timeout waits
// until ctx is done.
func (w *LLM) AwaitReady(ctx context.Context, timeout time.Duration) error {
	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}
	select {
	case <-w.machine.Ready():
		return nil
	case <-w.machine.Failed():
		return w.initFailed()
	case <-expired:
		return &ReadinessTimeoutError{Worker: w.cfg.Name, Timeout: timeout}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Prompt submits one prompt and returns the answer. Only one prompt may be in
// flight; a concurrent call fails with BusyError. On PromptTimeoutError the
// worker stays in ANSWERING and refuses further prompts until restarted.
//
// If ctx ends first, Prompt returns ctx.Err() while the exchange keeps
// running in the background: the answer is drained and discarded, and the
// worker stays busy until then.
func (w *LLM) Prompt(ctx context.Context, text string) (string, error) {
	if !w.gate.TryAcquire(1) {
		return "", &BusyError{Worker: w.cfg.Name}
	}
	release := true
	defer func() {
		if release {
			w.gate.Release(1)
		}
	}()

	w.bufMu.Lock()
	w.buf.Reset()
	w.bufMu.Unlock()
	w.machine.ClearCompletion()

	if !w.machine.CompareAndApply([]Status{StatusReady}, StatusAnswering) {
		if w.Status() == StatusInitFailed {
			return "", w.initFailed()
		}
		return "", &NotReadyError{Worker: w.cfg.Name, Status: w.Status()}
	}
	id := uuid.NewString()
	plog := w.log.With().Str("prompt_id", id).Logger()
	proc := w.process()
	if proc == nil {
		w.machine.CompareAndApply([]Status{StatusAnswering}, StatusReady)
		return "", &BrokenPipeError{Worker: w.cfg.Name, Err: errors.New("no process")}
	}
	start := time.Now()
	// One prompt per line.
	if err := proc.WriteLine(strings.ReplaceAll(text, "\n", " ")); err != nil {
		w.machine.CompareAndApply([]Status{StatusAnswering}, StatusReady)
		metrics.ObservePrompt(w.cfg.Name, "failed", time.Since(start))
		return "", err
	}
	plog.Debug().Int("chars", len(text)).Msg("prompt written")

	timer := time.NewTimer(w.cfg.PromptTimeout)
	select {
	case <-w.machine.Completed():
		timer.Stop()
		return w.finish(id, start)
	case <-w.machine.Failed():
		timer.Stop()
		metrics.ObservePrompt(w.cfg.Name, "failed", time.Since(start))
		return "", w.initFailed()
	case <-timer.C:
		plog.Error().Dur("timeout", w.cfg.PromptTimeout).Msg("no end of answer, worker left in ANSWERING")
		metrics.ObservePrompt(w.cfg.Name, "timeout", time.Since(start))
		return "", &PromptTimeoutError{Worker: w.cfg.Name, Timeout: w.cfg.PromptTimeout}
	case <-ctx.Done():
		release = false
		plog.Warn().Err(ctx.Err()).Msg("caller gone, draining answer in background")
		metrics.ObservePrompt(w.cfg.Name, "canceled", time.Since(start))
		go w.drain(timer, id, start)
		return "", ctx.Err()
	}
}

func (w *LLM) drain(timer *time.Timer, id string, start time.Time) {
	defer w.gate.Release(1)
	defer timer.Stop()
	select {
	case <-w.machine.Completed():
		_, _ = w.finish(id, start)
	case <-w.machine.Failed():
	case <-timer.C:
	}
}

// finish consumes the completion, drains the buffer and returns to READY.
func (w *LLM) finish(id string, start time.Time) (string, error) {
	w.machine.ClearCompletion()
	w.bufMu.Lock()
	raw := w.buf.String()
	w.buf.Reset()
	w.bufMu.Unlock()

	d := time.Since(start)
	if w.cfg.Metrics != nil {
		w.cfg.Metrics.RecordPrompt(d, raw)
	}
	metrics.ObservePrompt(w.cfg.Name, "ok", d)
	resp := raw
	if !w.cfg.IncludeThinking {
		resp = stripThinking(raw)
	}
	w.machine.CompareAndApply([]Status{StatusAnsweringDone}, StatusReady)
	w.pub.Publish(Event{Name: "prompt_done", Worker: w.cfg.Name, Fields: map[string]any{"prompt_id": id, "duration": d}})
	w.log.Info().Str("prompt_id", id).Dur("dur", d).Int("chars", len(resp)).Msg("prompt done")
	return resp, nil
}

// Stop terminates the child, if any. The status is left unchanged.
func (w *LLM) Stop() error {
	proc := w.process()
	if proc == nil {
		return nil
	}
	return proc.Stop(w.cfg.StopGrace)
}
