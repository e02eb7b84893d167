package types

// Descriptor describes one model: the LLM worker and the tokenizer worker it
// depends on. Descriptors are loaded once and never change afterwards.
type Descriptor struct {
	// Model name, also the name of its tokenizer.
	// example: qwen2.5-1.5b
	Name string `json:"name" yaml:"name" toml:"name" example:"qwen2.5-1.5b"`
	// LLM executable, resolved against WorkingDir when relative.
	// example: run_qwen2.5_1.5b_ctx_ax650.sh
	Executable string `json:"executable" yaml:"executable" toml:"executable" example:"run_qwen2.5_1.5b_ctx_ax650.sh"`
	// Working directory of the LLM process.
	// example: /app/models/qwen2.5-1.5b
	WorkingDir string `json:"working_dir" yaml:"working_dir" toml:"working_dir" example:"/app/models/qwen2.5-1.5b"`
	// Base URL of the tokenizer service that owns this model's tokenizer.
	// example: http://127.0.0.1:8101
	TokenizerURL string `json:"tokenizer_url,omitempty" yaml:"tokenizer_url" toml:"tokenizer_url" example:"http://127.0.0.1:8101"`
	// Tokenizer executable or script.
	// example: qwen2.5_tokenizer.py
	TokenizerExecutable string `json:"tokenizer_executable,omitempty" yaml:"tokenizer_executable" toml:"tokenizer_executable" example:"qwen2.5_tokenizer.py"`
	// Optional interpreter for a script tokenizer.
	// example: python3
	TokenizerInterpreter string `json:"tokenizer_interpreter,omitempty" yaml:"tokenizer_interpreter" toml:"tokenizer_interpreter" example:"python3"`
	// Working directory of the tokenizer process.
	// example: /app/models/qwen2.5-1.5b/tokenizer
	TokenizerWorkingDir string `json:"tokenizer_working_dir,omitempty" yaml:"tokenizer_working_dir" toml:"tokenizer_working_dir"`
	// Port the tokenizer process listens on; passed to both children.
	// example: 12345
	TokenizerPort int `json:"tokenizer_port,omitempty" yaml:"tokenizer_port" toml:"tokenizer_port" example:"12345"`
	// Keep the text before the closing think marker in responses.
	IncludeThinking bool `json:"include_thinking" yaml:"include_thinking" toml:"include_thinking"`
	// Start the LLM worker when the service boots.
	RunOnStartup bool `json:"run_on_startup" yaml:"run_on_startup" toml:"run_on_startup"`
}
