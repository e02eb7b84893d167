package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"
)

// findFreePort picks an available TCP port on localhost.
func findFreePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func goBuild(t *testing.T, out, pkg string) {
	t.Helper()
	cmd := exec.Command("go", "build", "-o", out, pkg)
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0")
	if b, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("go build %s: %v\n%s", pkg, err, b)
	}
}

type serverProc struct {
	cmd  *exec.Cmd
	base string
	tok  string
}

// startServer runs `workerd serve --with-tokenizer` with one echo model.
func startServer(t *testing.T) *serverProc {
	t.Helper()
	if testing.Short() {
		t.Skip("builds binaries")
	}
	bins := t.TempDir()
	bin := filepath.Join(bins, "workerd")
	goBuild(t, bin, ".")
	fake := filepath.Join(bins, "fake_worker")
	goBuild(t, fake, "../../internal/worker/testdata/fake_worker.go")

	models := t.TempDir()
	dir := filepath.Join(models, "qwen")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for _, exe := range []string{"llm-echo", "tokenizer"} {
		if err := os.Symlink(fake, filepath.Join(dir, exe)); err != nil {
			t.Fatalf("symlink: %v", err)
		}
	}
	descs := filepath.Join(models, "model-descriptors.json")
	body := `{"models":[{"name":"qwen","executable":"llm-echo","working_dir":"qwen","tokenizer_executable":"tokenizer","tokenizer_working_dir":"qwen","tokenizer_port":12345}]}`
	if err := os.WriteFile(descs, []byte(body), 0o644); err != nil {
		t.Fatalf("write descriptors: %v", err)
	}

	llmPort, tokPort := findFreePort(t), findFreePort(t)
	cmd := exec.Command(bin, "serve", "--with-tokenizer",
		"--addr", fmt.Sprintf("127.0.0.1:%d", llmPort),
		"--tokenizer-addr", fmt.Sprintf("127.0.0.1:%d", tokPort),
		"--descriptors", descs,
		"--metrics-dir", t.TempDir(),
		"--log-format", "console",
	)
	cmd.Env = append(os.Environ(), "WORKERD_TOKENIZER_SETTLE_MS=10")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() { _ = cmd.Process.Kill(); _ = cmd.Wait() })

	sp := &serverProc{
		cmd:  cmd,
		base: fmt.Sprintf("http://127.0.0.1:%d", llmPort),
		tok:  fmt.Sprintf("http://127.0.0.1:%d", tokPort),
	}
	deadline := time.Now().Add(10 * time.Second)
	for {
		resp, err := http.Get(sp.base + "/healthz")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not become healthy in time")
		}
		time.Sleep(50 * time.Millisecond)
	}
	return sp
}

func do(t *testing.T, method, url, payload string) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if payload != "" {
		rd = bytes.NewReader([]byte(payload))
	}
	req, err := http.NewRequestWithContext(context.Background(), method, url, rd)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	if payload != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, b
}

func TestBlackbox_Flow(t *testing.T) {
	sp := startServer(t)

	resp, body := do(t, http.MethodGet, sp.base+"/api/tags", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"qwen"`) {
		t.Fatalf("/api/tags %d %s", resp.StatusCode, body)
	}

	resp, body = do(t, http.MethodPost, sp.base+"/api/generate", `{"model":"qwen","prompt":"hello"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/api/generate %d %s", resp.StatusCode, body)
	}
	if !strings.Contains(string(body), `"response":"Echo: hello"`) {
		t.Fatalf("/api/generate body=%s", body)
	}

	_, body = do(t, http.MethodGet, sp.tok+"/status/qwen", "")
	if !strings.Contains(string(body), `"READY"`) {
		t.Fatalf("tokenizer status=%s", body)
	}
	if resp, _ := do(t, http.MethodGet, sp.base+"/readyz", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("/readyz %d", resp.StatusCode)
	}

	resp, body = do(t, http.MethodPost, sp.base+"/api/generate", `{"model":"missing","prompt":"hi"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d, body=%s", resp.StatusCode, body)
	}
}

func TestBlackbox_GracefulShutdown(t *testing.T) {
	sp := startServer(t)
	if resp, body := do(t, http.MethodPost, sp.base+"/api/generate", `{"model":"qwen","prompt":"hi"}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("/api/generate %d %s", resp.StatusCode, body)
	}
	if err := sp.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		t.Fatalf("signal: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- sp.cmd.Wait() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("exit: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("server did not exit after SIGTERM")
	}
}
