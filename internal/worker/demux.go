package worker

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Stream names which child pipe a line came from.
type Stream string

const (
	Stdout Stream = "stdout"
	Stderr Stream = "stderr"
)

// Observer receives every output line of a worker.
type Observer interface {
	Observe(stream Stream, line string) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(stream Stream, line string) error

func (f ObserverFunc) Observe(stream Stream, line string) error { return f(stream, line) }

// Demux fans lines out to its observers in registration order. A failing or
// panicking observer is logged and skipped; it never stops the reader.
type Demux struct {
	mu        sync.RWMutex
	observers []Observer
	log       zerolog.Logger
}

// NewDemux returns a demultiplexer with the given observers.
func NewDemux(log zerolog.Logger, observers ...Observer) *Demux {
	return &Demux{observers: observers, log: log}
}

// Register appends an observer.
func (d *Demux) Register(o Observer) {
	d.mu.Lock()
	d.observers = append(d.observers, o)
	d.mu.Unlock()
}

// Dispatch delivers one line to every observer.
func (d *Demux) Dispatch(stream Stream, line string) {
	d.mu.RLock()
	observers := d.observers
	d.mu.RUnlock()
	d.log.Debug().Str("stream", string(stream)).Str("line", line).Msg("worker output")
	for i, o := range observers {
		if err := d.safeObserve(o, stream, line); err != nil {
			d.log.Error().Err(err).Int("observer", i).Str("stream", string(stream)).Str("line", line).Msg("observer failed")
		}
	}
}

func (d *Demux) safeObserve(o Observer, stream Stream, line string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("observer panic: %v", r)
		}
	}()
	return o.Observe(stream, line)
}

// Run reads r line by line until it is closed, dispatching each line with
// its trailing line break and surrounding whitespace removed.
func (d *Demux) Run(stream Stream, r io.Reader) {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			d.Dispatch(stream, strings.TrimSpace(line))
		}
		if err != nil {
			if err != io.EOF {
				d.log.Debug().Err(err).Str("stream", string(stream)).Msg("reader stopped")
			}
			return
		}
	}
}
