// Package worker supervises long-lived inference worker processes and drives
// their lifecycle from the text they print. It is structured into small files
// by concern:
//
//   - classify.go: pure line classification into lifecycle signals.
//   - latch.go: broadcast latch used for readiness and completion.
//   - machine.go: Machine holds status, history and the latches under one lock.
//   - demux.go: Demux fans each output line out to registered observers.
//   - process.go: Process owns the child, its pipes and the background readers.
//   - coordinator.go: Coordinator waits for a dependency worker to report READY.
//   - llm.go: LLM worker start sequence, readiness wait and prompt exchange.
//   - tokenizer.go: the simpler tokenizer worker.
//   - errors.go: error types and Is helpers.
//   - events.go: lifecycle events for observers outside the package.
//
// A worker's child process is started at most once. Failure is terminal until
// the service itself is restarted.
package worker
