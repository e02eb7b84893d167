package manager

import (
	"testing"
	"time"

	"workerd/internal/worker"
	"workerd/pkg/types"
)

func TestTokenizerManager(t *testing.T) {
	d := descriptor(t, "qwen", "llm-echo")
	tm := NewTokenizerManager(TokenizerManagerConfig{Descriptors: []types.Descriptor{d}})
	defer tm.Close()

	if names := tm.Names(); len(names) != 1 || names[0] != "qwen" {
		t.Fatalf("names = %v", names)
	}
	if !tm.Ready() {
		t.Fatal("unstarted tokenizers should not block readiness")
	}
	if err := tm.StartTokenizer("qwen"); err != nil {
		t.Fatalf("StartTokenizer: %v", err)
	}
	waitFor(t, func() bool {
		s, _ := tm.Status("qwen")
		return s == worker.StatusReady
	}, 5*time.Second)
	if !tm.Ready() {
		t.Fatal("ready tokenizer not reported")
	}
	if err := tm.StartTokenizer("qwen"); !worker.IsAlreadyStarted(err) {
		t.Fatalf("got %v, want AlreadyStartedError", err)
	}
	if h, _ := tm.StatusHistory("qwen"); len(h) != 3 {
		t.Fatalf("history = %v", h)
	}
}

func TestTokenizerManagerNotFound(t *testing.T) {
	tm := NewTokenizerManager(TokenizerManagerConfig{})
	if err := tm.StartTokenizer("nope"); !IsModelNotFound(err) {
		t.Fatalf("got %v", err)
	}
	if _, err := tm.Status("nope"); !IsModelNotFound(err) {
		t.Fatalf("got %v", err)
	}
	if _, err := tm.StatusHistory("nope"); !IsModelNotFound(err) {
		t.Fatalf("got %v", err)
	}
}
