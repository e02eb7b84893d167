package worker

import (
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"workerd/internal/metrics"
)

// DefaultSettleDelay is the pause between the tokenizer's ready line and
// READY, covering the gap until its socket accepts connections.
const DefaultSettleDelay = 1500 * time.Millisecond

// TokenizerConfig describes one tokenizer worker.
type TokenizerConfig struct {
	Name       string
	Executable string
	// Interpreter, when set, runs Executable as a script (e.g. python3).
	Interpreter string
	WorkingDir  string
	Port        int

	SettleDelay time.Duration // zero disables the pause
	StopGrace   time.Duration
	Publisher   EventPublisher
	Logger      *zerolog.Logger
}

// Tokenizer supervises a tokenizer child: IDLE -> INITIALIZING -> READY.
type Tokenizer struct {
	cfg     TokenizerConfig
	log     zerolog.Logger
	pub     EventPublisher
	machine *Machine
	demux   *Demux

	mu   sync.Mutex
	proc *Process
}

// NewTokenizer returns an IDLE tokenizer worker.
func NewTokenizer(cfg TokenizerConfig) *Tokenizer {
	if cfg.SettleDelay < 0 {
		cfg.SettleDelay = 0
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = DefaultStopGrace
	}
	base := log.Logger
	if cfg.Logger != nil {
		base = *cfg.Logger
	}
	t := &Tokenizer{
		cfg: cfg,
		log: base.With().Str("worker", cfg.Name).Str("kind", "tokenizer").Logger(),
		pub: cfg.Publisher,
	}
	if t.pub == nil {
		t.pub = noopPublisher{}
	}
	t.machine = NewMachine(MachineConfig{
		Initial: StatusIdle,
		Ready:   StatusReady,
		OnTransition: func(from, to Status) {
			t.log.Info().Str("from", string(from)).Str("to", string(to)).Msg("status")
			metrics.ObserveTransition("tokenizer", cfg.Name, string(to))
			t.pub.Publish(Event{Name: "status", Worker: cfg.Name, Fields: map[string]any{"from": from, "to": to}})
		},
	})
	t.demux = NewDemux(t.log, ObserverFunc(t.observe))
	return t
}

// Name returns the tokenizer name.
func (t *Tokenizer) Name() string { return t.cfg.Name }

// Status returns the current status.
func (t *Tokenizer) Status() Status { return t.machine.Status() }

// History returns every status entered so far.
func (t *Tokenizer) History() []Status { return t.machine.History() }

// Ready is closed while the tokenizer is READY.
func (t *Tokenizer) Ready() <-chan struct{} { return t.machine.Ready() }

func (t *Tokenizer) observe(_ Stream, line string) error {
	if ClassifyTokenizer(line) != SignalTokenizerReady {
		return nil
	}
	if t.cfg.SettleDelay > 0 {
		time.Sleep(t.cfg.SettleDelay)
	}
	t.machine.CompareAndApply([]Status{StatusInitializing}, StatusReady)
	return nil
}

// command builds the child invocation: [interpreter] executable [--port N].
func (t *Tokenizer) command() Command {
	exe := t.cfg.Executable
	var args []string
	if t.cfg.Interpreter != "" {
		exe = t.cfg.Interpreter
		args = append(args, t.cfg.Executable)
	}
	if t.cfg.Port > 0 {
		args = append(args, "--port", strconv.Itoa(t.cfg.Port))
	}
	return Command{Executable: exe, Args: args, Dir: t.cfg.WorkingDir}
}

// Start spawns the tokenizer. It may succeed once per service lifetime; any
// later call fails with AlreadyStartedError. A spawn failure leaves the
// tokenizer in INITIALIZING.
func (t *Tokenizer) Start() error {
	if !t.machine.CompareAndApply([]Status{StatusIdle}, StatusInitializing) {
		return &AlreadyStartedError{Worker: t.cfg.Name, Status: t.Status()}
	}
	t.pub.Publish(Event{Name: "spawn_start", Worker: t.cfg.Name, Fields: map[string]any{"executable": t.cfg.Executable}})
	proc, err := StartProcess(t.cfg.Name, t.command(), t.demux, t.log, func(err error, stopped bool) {
		fields := map[string]any{"stopped": stopped}
		if err != nil {
			fields["error"] = err.Error()
		}
		t.pub.Publish(Event{Name: "spawn_exit", Worker: t.cfg.Name, Fields: fields})
	})
	if err != nil {
		metrics.ObserveSpawn("tokenizer", t.cfg.Name, "error")
		t.log.Error().Err(err).Msg("spawn failed")
		return err
	}
	metrics.ObserveSpawn("tokenizer", t.cfg.Name, "ok")
	t.mu.Lock()
	t.proc = proc
	t.mu.Unlock()
	return nil
}

// Stop terminates the child, if any.
func (t *Tokenizer) Stop() error {
	t.mu.Lock()
	proc := t.proc
	t.mu.Unlock()
	if proc == nil {
		return nil
	}
	return proc.Stop(t.cfg.StopGrace)
}
