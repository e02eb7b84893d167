package worker

// Status is the lifecycle status of a supervised worker.
type Status string

const (
	StatusIdle              Status = "IDLE"
	StatusWaitForDependency Status = "WAIT_FOR_DEPENDENCY"
	StatusStarting          Status = "STARTING"
	StatusInitializing      Status = "INITIALIZING"
	StatusReady             Status = "READY"
	StatusAnswering         Status = "ANSWERING"
	StatusAnsweringDone     Status = "ANSWERING_DONE"
	StatusInitFailed        Status = "INIT_FAILED"
)

func (s Status) String() string { return string(s) }
