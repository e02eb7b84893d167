package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// The behavior is picked by the executable's base name so one binary can be
// symlinked under several names.
func main() {
	mode := filepath.Base(os.Args[0])
	_ = os.WriteFile("argv.txt", []byte(strings.Join(os.Args[1:], " ")), 0o644)

	switch mode {
	case "tokenizer":
		fmt.Println("loading tokenizer assets")
		fmt.Println("None of PyTorch, TensorFlow >= 2.0, or Flax have been found. Models won't be available and only tokenizers, configuration and file/data utilities can be used.")
		waitStdin()
	case "llm-echo":
		fmt.Println("runtime banner")
		fmt.Println("LLM init start")
		fmt.Fprintln(os.Stderr, "loading weights 100%")
		fmt.Println("LLM init ok")
		answer()
	case "llm-fatal":
		fmt.Println("LLM init start")
		fmt.Fprintln(os.Stderr, "lLaMa.Init failed")
		waitStdin()
	case "llm-device":
		fmt.Fprintln(os.Stderr, "Set AXCL device failed, devid 0")
		waitStdin()
	case "llm-crash":
		fmt.Println("LLM init start")
		os.Exit(3)
	case "llm-slow":
		fmt.Println("LLM init start")
		waitStdin()
	case "stubborn":
		signal.Ignore(syscall.SIGTERM)
		fmt.Println("ignoring SIGTERM")
		time.Sleep(time.Hour)
	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q\n", mode)
		os.Exit(2)
	}
}

func waitStdin() {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
	}
}

func answer() {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		prompt := strings.TrimSpace(sc.Text())
		switch prompt {
		case "hang":
			fmt.Println("still thinking")
		case "crash":
			fmt.Fprintln(os.Stderr, "Segmentation fault (core dumped)")
			os.Exit(139)
		case "slow":
			fmt.Println("Slow")
			time.Sleep(300 * time.Millisecond)
			fmt.Println("answer.")
			fmt.Println("hit eos")
		default:
			fmt.Println("Let me think.</think>Echo: " + prompt)
			fmt.Println("hit eos")
			fmt.Println("avg 42.50 token/s")
		}
	}
}
