package manager

import (
	"os"
	"os/exec"
	"path/filepath"

	"workerd/internal/common/fsutil"
	"workerd/pkg/types"
)

// SanityReport describes whether a descriptor's executables can be launched.
type SanityReport struct {
	Model          string `json:"model"`
	LLMFound       bool   `json:"llm_found"`
	LLMPath        string `json:"llm_path,omitempty"`
	TokenizerFound bool   `json:"tokenizer_found"`
	TokenizerPath  string `json:"tokenizer_path,omitempty"`
	Error          string `json:"error,omitempty"`
}

// SanityCheck validates every descriptor against the filesystem.
// It does not mutate state and is safe to call at any time.
func SanityCheck(descs []types.Descriptor) []SanityReport {
	out := make([]SanityReport, 0, len(descs))
	for _, d := range descs {
		r := SanityReport{Model: d.Name}
		var err error
		r.LLMPath, err = locate(d.Executable, d.WorkingDir)
		r.LLMFound = err == nil
		if err != nil {
			r.Error = "llm: " + err.Error()
		}
		if d.TokenizerExecutable != "" {
			r.TokenizerPath, err = locate(d.TokenizerExecutable, d.TokenizerWorkingDir)
			r.TokenizerFound = err == nil
			if err != nil && r.Error == "" {
				r.Error = "tokenizer: " + err.Error()
			}
		}
		out = append(out, r)
	}
	return out
}

// locate mirrors how the supervisor resolves executables: relative to the
// working directory first, then through PATH.
func locate(exe, dir string) (string, error) {
	if dir != "" && !fsutil.IsDir(dir) {
		return "", &os.PathError{Op: "stat", Path: dir, Err: os.ErrNotExist}
	}
	if !filepath.IsAbs(exe) && dir != "" {
		p := filepath.Join(dir, exe)
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p, nil
		}
	}
	if filepath.IsAbs(exe) {
		fi, err := os.Stat(exe)
		if err != nil {
			return exe, err
		}
		if fi.IsDir() {
			return exe, &os.PathError{Op: "exec", Path: exe, Err: os.ErrInvalid}
		}
		return exe, nil
	}
	return exec.LookPath(exe)
}
