package worker

import (
	"errors"
	"fmt"
	"time"
)

// SpawnError signals that the child process could not be launched.
type SpawnError struct {
	Executable string
	Err        error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %v", e.Executable, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// BrokenPipeError signals a write to a child that has exited.
type BrokenPipeError struct {
	Worker string
	Err    error
}

func (e *BrokenPipeError) Error() string {
	return fmt.Sprintf("write to %s: broken pipe: %v", e.Worker, e.Err)
}

func (e *BrokenPipeError) Unwrap() error { return e.Err }

// NotReadyError signals a prompt submitted while the worker is not READY.
type NotReadyError struct {
	Worker string
	Status Status
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("model %s not ready, status: %s", e.Worker, e.Status)
}

// ReadinessTimeoutError signals that a worker did not become READY in time.
type ReadinessTimeoutError struct {
	Worker  string
	Timeout time.Duration
}

func (e *ReadinessTimeoutError) Error() string {
	return fmt.Sprintf("%s did not become ready within %s", e.Worker, e.Timeout)
}

// PromptTimeoutError signals that the worker did not finish an answer in time.
type PromptTimeoutError struct {
	Worker  string
	Timeout time.Duration
}

func (e *PromptTimeoutError) Error() string {
	return fmt.Sprintf("%s did not answer within %s", e.Worker, e.Timeout)
}

// InitFailedError signals that the worker reported or suffered a fatal fault.
type InitFailedError struct {
	Worker string
	Reason string
}

func (e *InitFailedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s failed to initialize", e.Worker)
	}
	return fmt.Sprintf("%s failed to initialize: %s", e.Worker, e.Reason)
}

// AlreadyStartedError signals a start request for a worker that left IDLE.
type AlreadyStartedError struct {
	Worker string
	Status Status
}

func (e *AlreadyStartedError) Error() string {
	return fmt.Sprintf("%s already started, status: %s", e.Worker, e.Status)
}

// BusyError signals that another prompt is in flight on the same worker.
type BusyError struct{ Worker string }

func (e *BusyError) Error() string { return "busy: " + e.Worker + " is answering another prompt" }

func isType[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}

// IsSpawn reports whether err is a SpawnError.
func IsSpawn(err error) bool { return isType[*SpawnError](err) }

// IsBrokenPipe reports whether err is a BrokenPipeError.
func IsBrokenPipe(err error) bool { return isType[*BrokenPipeError](err) }

// IsNotReady reports whether err is a NotReadyError.
func IsNotReady(err error) bool { return isType[*NotReadyError](err) }

// IsReadinessTimeout reports whether err is a ReadinessTimeoutError.
func IsReadinessTimeout(err error) bool { return isType[*ReadinessTimeoutError](err) }

// IsPromptTimeout reports whether err is a PromptTimeoutError.
func IsPromptTimeout(err error) bool { return isType[*PromptTimeoutError](err) }

// IsInitFailed reports whether err is an InitFailedError.
func IsInitFailed(err error) bool { return isType[*InitFailedError](err) }

// IsAlreadyStarted reports whether err is an AlreadyStartedError.
func IsAlreadyStarted(err error) bool { return isType[*AlreadyStartedError](err) }

// IsBusy reports whether err is a BusyError (map to 429).
func IsBusy(err error) bool { return isType[*BusyError](err) }
