package registry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadFormats(t *testing.T) {
	d := t.TempDir()
	files := map[string]string{
		"list.json": `[{"name":"qwen","executable":"run.sh","working_dir":"qwen","tokenizer_url":"http://127.0.0.1:8101","tokenizer_executable":"tok.py","tokenizer_interpreter":"python3","tokenizer_working_dir":"/srv/tok","tokenizer_port":12345,"include_thinking":true,"run_on_startup":true}]`,
		"wrapped.json": `{"models":[{"name":"qwen","executable":"run.sh","working_dir":"qwen","tokenizer_url":"http://127.0.0.1:8101","tokenizer_executable":"tok.py","tokenizer_interpreter":"python3","tokenizer_working_dir":"/srv/tok","tokenizer_port":12345,"include_thinking":true,"run_on_startup":true}]}`,
		"list.yaml": `- name: qwen
  executable: run.sh
  working_dir: qwen
  tokenizer_url: http://127.0.0.1:8101
  tokenizer_executable: tok.py
  tokenizer_interpreter: python3
  tokenizer_working_dir: /srv/tok
  tokenizer_port: 12345
  include_thinking: true
  run_on_startup: true
`,
		"models.toml": `[[models]]
name = "qwen"
executable = "run.sh"
working_dir = "qwen"
tokenizer_url = "http://127.0.0.1:8101"
tokenizer_executable = "tok.py"
tokenizer_interpreter = "python3"
tokenizer_working_dir = "/srv/tok"
tokenizer_port = 12345
include_thinking = true
run_on_startup = true
`,
	}
	for name, body := range files {
		t.Run(name, func(t *testing.T) {
			list, err := Load(writeFile(t, d, name, body))
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if len(list) != 1 {
				t.Fatalf("got %d descriptors", len(list))
			}
			got := list[0]
			if got.Name != "qwen" || got.Executable != "run.sh" || got.TokenizerPort != 12345 ||
				!got.IncludeThinking || !got.RunOnStartup || got.TokenizerInterpreter != "python3" ||
				got.TokenizerURL != "http://127.0.0.1:8101" || got.TokenizerExecutable != "tok.py" {
				t.Fatalf("unexpected descriptor: %+v", got)
			}
			if got.WorkingDir != filepath.Join(d, "qwen") {
				t.Fatalf("working dir not resolved against file: %s", got.WorkingDir)
			}
			if got.TokenizerWorkingDir != "/srv/tok" {
				t.Fatalf("absolute dir changed: %s", got.TokenizerWorkingDir)
			}
		})
	}
}

func TestLoadErrors(t *testing.T) {
	d := t.TempDir()
	cases := map[string]string{
		"noname.json": `[{"executable":"x"}]`,
		"noexec.json": `[{"name":"a"}]`,
		"dup.json":    `[{"name":"a","executable":"x"},{"name":"a","executable":"y"}]`,
		"port.json":   `[{"name":"a","executable":"x","tokenizer_port":70000}]`,
		"broken.json": `[{`,
		"unknown.ini": `name=a`,
	}
	for name, body := range cases {
		if _, err := Load(writeFile(t, d, name, body)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
	if _, err := Load(filepath.Join(d, "missing.json")); err == nil || !strings.Contains(err.Error(), "load descriptors") {
		t.Errorf("missing file: got %v", err)
	}
}
