package worker

import "strings"

// Signal is a lifecycle event derived from one line of worker output.
type Signal int

const (
	SignalNone Signal = iota
	SignalFatal
	SignalInitStarted
	SignalInitOK
	SignalAnswerComplete
	SignalTokenizerReady
)

func (s Signal) String() string {
	switch s {
	case SignalFatal:
		return "fatal"
	case SignalInitStarted:
		return "init-started"
	case SignalInitOK:
		return "init-ok"
	case SignalAnswerComplete:
		return "answer-complete"
	case SignalTokenizerReady:
		return "tokenizer-ready"
	default:
		return "none"
	}
}

type linePattern struct {
	marker string
	signal Signal
}

// Order matters: first match wins, fatal markers first.
var llmPatterns = []linePattern{
	{"Set AXCL device failed", SignalFatal},
	{"lLaMa.Init failed", SignalFatal},
	{"Segmentation fault", SignalFatal},
	{"LLM init start", SignalInitStarted},
	{"LLM init ok", SignalInitOK},
	{"hit eos", SignalAnswerComplete},
}

var tokenizerPatterns = []linePattern{
	{"Models won't be available and only tokenizers", SignalTokenizerReady},
}

// Classify maps a raw LLM output line to at most one signal.
func Classify(line string) Signal {
	return classifyWith(llmPatterns, line)
}

// ClassifyTokenizer maps a raw tokenizer output line to at most one signal.
func ClassifyTokenizer(line string) Signal {
	return classifyWith(tokenizerPatterns, line)
}

func classifyWith(patterns []linePattern, line string) Signal {
	if strings.TrimSpace(line) == "" {
		return SignalNone
	}
	for _, p := range patterns {
		if strings.Contains(line, p.marker) {
			return p.signal
		}
	}
	return SignalNone
}
