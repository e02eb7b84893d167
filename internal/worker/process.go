package worker

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// Command describes how to launch a worker child.
type Command struct {
	Executable string
	Args       []string
	Dir        string
}

// resolve returns the executable path, preferring one relative to Dir.
func (c Command) resolve() string {
	if c.Dir == "" || filepath.IsAbs(c.Executable) {
		return c.Executable
	}
	p := filepath.Join(c.Dir, c.Executable)
	if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
		return p
	}
	return c.Executable
}

// Process owns one child process: its identity, the write side of stdin, and
// two background readers feeding stdout and stderr into a Demux. It does not
// interpret output.
type Process struct {
	name  string
	cmd   *exec.Cmd
	demux *Demux
	log   zerolog.Logger

	wmu   sync.Mutex
	stdin io.WriteCloser

	done     chan struct{}
	exitErr  error
	stopping atomic.Bool
	onExit   func(err error, stopped bool)
}

// StartProcess spawns c with all three standard streams piped and starts one
// reader per output stream. onExit, if set, runs once after both streams have
// closed and the child has been reaped.
func StartProcess(name string, c Command, demux *Demux, log zerolog.Logger, onExit func(err error, stopped bool)) (*Process, error) {
	exe := c.resolve()
	cmd := exec.Command(exe, c.Args...)
	cmd.Dir = c.Dir
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &SpawnError{Executable: exe, Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &SpawnError{Executable: exe, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &SpawnError{Executable: exe, Err: err}
	}
	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Executable: exe, Err: err}
	}
	p := &Process{
		name:   name,
		cmd:    cmd,
		demux:  demux,
		log:    log,
		stdin:  stdin,
		done:   make(chan struct{}),
		onExit: onExit,
	}
	log.Info().Int("pid", cmd.Process.Pid).Str("exe", exe).Strs("args", c.Args).Str("dir", c.Dir).Msg("process started")

	var readers sync.WaitGroup
	readers.Add(2)
	go func() { defer readers.Done(); demux.Run(Stdout, stdout) }()
	go func() { defer readers.Done(); demux.Run(Stderr, stderr) }()
	go func() {
		// Wait must not be called before the pipes are drained.
		readers.Wait()
		werr := cmd.Wait()
		p.exitErr = werr
		close(p.done)
		stopped := p.stopping.Load()
		log.Info().Int("pid", cmd.Process.Pid).Int("exit_code", cmd.ProcessState.ExitCode()).Bool("stopped", stopped).Msg("process exited")
		if p.onExit != nil {
			p.onExit(werr, stopped)
		}
	}()
	return p, nil
}

// PID returns the child's process id.
func (p *Process) PID() int { return p.cmd.Process.Pid }

// Done is closed once the child has exited and both readers have finished.
func (p *Process) Done() <-chan struct{} { return p.done }

// ExitErr returns the error reported by Wait. Only valid after Done is closed.
func (p *Process) ExitErr() error {
	<-p.done
	return p.exitErr
}

// WriteLine writes text plus a newline to the child's stdin. The pipe is
// unbuffered, so the line is delivered immediately.
func (p *Process) WriteLine(text string) error {
	p.wmu.Lock()
	defer p.wmu.Unlock()
	select {
	case <-p.done:
		return &BrokenPipeError{Worker: p.name, Err: errors.New("process has exited")}
	default:
	}
	if _, err := io.WriteString(p.stdin, text+"\n"); err != nil {
		return &BrokenPipeError{Worker: p.name, Err: err}
	}
	return nil
}

// Stop sends SIGTERM and kills the child if it has not exited after grace.
func (p *Process) Stop(grace time.Duration) error {
	p.stopping.Store(true)
	select {
	case <-p.done:
		return nil
	default:
	}
	_ = p.stdin.Close()
	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		p.log.Debug().Err(err).Msg("sigterm failed, process may have exited")
	}
	select {
	case <-p.done:
		return nil
	case <-time.After(grace):
		p.log.Warn().Int("pid", p.PID()).Msg("process ignored SIGTERM, killing")
		if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return fmt.Errorf("kill %s: %w", p.name, err)
		}
		<-p.done
		return nil
	}
}
