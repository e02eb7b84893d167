package types

// GenerateRequest is the body of POST /api/generate.
type GenerateRequest struct {
	// Model name from the descriptor file.
	// example: qwen2.5-1.5b
	Model string `json:"model" example:"qwen2.5-1.5b"`
	// Prompt text. Line breaks are sent to the worker as spaces.
	// example: What is the capital of France?
	Prompt string `json:"prompt" example:"What is the capital of France?"`
	// Accepted for client compatibility and ignored.
	Images []string `json:"images,omitempty"`
	// Accepted for client compatibility and ignored.
	Options map[string]any `json:"options,omitempty"`
}

// GenerateResponse is returned by POST /api/generate.
type GenerateResponse struct {
	// example: Paris.
	Response string `json:"response" example:"Paris."`
}

// StatusResponse reports the current status of one worker.
type StatusResponse struct {
	// example: READY
	Status string `json:"status" example:"READY"`
}

// StatusHistoryResponse lists every status a worker has entered, oldest first.
type StatusHistoryResponse struct {
	StatusHistory []string `json:"status_history"`
}

// TagsResponse is returned by GET /api/tags.
type TagsResponse struct {
	Models []Descriptor `json:"models"`
}

// ShowRequest is the body of POST /api/show.
type ShowRequest struct {
	// example: qwen2.5-1.5b
	Name string `json:"name" example:"qwen2.5-1.5b"`
}

// StartTokenizerRequest is the body of POST /start_tokenizer.
type StartTokenizerRequest struct {
	// example: qwen2.5-1.5b
	Name string `json:"name" example:"qwen2.5-1.5b"`
	// Sent by older clients; the descriptor is authoritative.
	Port int `json:"port,omitempty"`
}

// StartTokenizerResponse is returned by POST /start_tokenizer.
type StartTokenizerResponse struct {
	// example: ok
	Response string `json:"response" example:"ok"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: model not found: foo
	Error string `json:"error" example:"model not found: foo"`
	// HTTP status code.
	// example: 404
	Code int `json:"code" example:"404"`
}
