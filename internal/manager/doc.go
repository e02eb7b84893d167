// Package manager owns the supervised workers of one service and is the
// boundary the HTTP layer calls into. It is structured by concern:
//
//   - config.go: ManagerConfig and package defaults; NewWithConfig applies defaults.
//   - manager.go: Manager (LLM workers by model name), lookups and shutdown.
//   - generate.go: Generate, the start-if-idle, await, prompt sequence.
//   - startup.go: background start of run_on_startup models.
//   - tokenizer.go: TokenizerManager (tokenizer workers by model name).
//   - errors.go: error types and helpers (IsModelNotFound).
//   - sanity.go: executable and working directory checks.
//
// Both managers are constructed explicitly from descriptors; there is no
// process-wide instance.
package manager
