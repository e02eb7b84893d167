package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

var (
	tokenRatePattern = regexp.MustCompile(`avg[:=\s]*([0-9]+(?:\.[0-9]+)?)\s*token/s$`)
	unsafeNameChars  = regexp.MustCompile(`[^a-zA-Z0-9_]`)
)

// ParseTokenRate extracts the throughput a worker reports at the end of an
// answer ("... avg 12.34 token/s").
func ParseTokenRate(line string) (float64, bool) {
	m := tokenRatePattern.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// SanitizeName maps a model name onto the Prometheus metric name alphabet.
func SanitizeName(name string) string {
	s := unsafeNameChars.ReplaceAllString(name, "_")
	if s == "" || (s[0] >= '0' && s[0] <= '9') {
		s = "_" + s
	}
	return s
}

// Recorder keeps the last inference figures of one model and mirrors them to
// a node-exporter style textfile.
type Recorder struct {
	model string
	path  string
	log   zerolog.Logger

	reg       *prometheus.Registry
	duration  prometheus.Gauge
	tokens    prometheus.Gauge
	tokenRate prometheus.Gauge

	mu       sync.Mutex
	lastRate float64
	haveRate bool
}

// NewRecorder returns a recorder writing to dir/axm1-llm-<model>-metrics.prom.
// An empty dir keeps the figures in memory only.
func NewRecorder(model, dir string, log zerolog.Logger) *Recorder {
	metric := SanitizeName(model)
	r := &Recorder{
		model: model,
		log:   log,
		reg:   prometheus.NewRegistry(),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("axm1_llm_inference_%s_duration_seconds", metric),
			Help: "Duration of the last inference in seconds",
		}),
		tokens: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("axm1_llm_inference_%s_tokens_generated", metric),
			Help: "Tokens generated by the last inference",
		}),
		tokenRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("axm1_llm_inference_%s_tokens_per_second", metric),
			Help: "Throughput of the last inference",
		}),
	}
	r.reg.MustRegister(r.duration, r.tokens, r.tokenRate)
	if dir != "" {
		r.path = filepath.Join(dir, fmt.Sprintf("axm1-llm-%s-metrics.prom", strings.ReplaceAll(model, string(filepath.Separator), "_")))
	}
	return r
}

// Path returns the textfile location, or "" when none is written.
func (r *Recorder) Path() string { return r.path }

// OnOutputLine receives every raw line of the worker and remembers the most
// recent self-reported throughput.
func (r *Recorder) OnOutputLine(line string) {
	if v, ok := ParseTokenRate(line); ok {
		r.mu.Lock()
		r.lastRate, r.haveRate = v, true
		r.mu.Unlock()
	}
}

// Snapshot is the figures of the last recorded prompt.
type Snapshot struct {
	Duration        time.Duration
	TokensGenerated int
	TokensPerSecond float64
}

// RecordPrompt stores the figures of one completed prompt. Tokens are counted
// as whitespace separated words; when the worker did not report a rate, the
// rate is derived from the count and duration.
func (r *Recorder) RecordPrompt(d time.Duration, response string) {
	tokens := len(strings.Fields(response))
	r.mu.Lock()
	rate, ok := r.lastRate, r.haveRate
	r.haveRate = false
	r.mu.Unlock()
	if !ok && d > 0 {
		rate = float64(tokens) / d.Seconds()
	}
	r.duration.Set(d.Seconds())
	r.tokens.Set(float64(tokens))
	r.tokenRate.Set(rate)
	if r.path == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		r.log.Warn().Err(err).Str("path", r.path).Msg("metrics dir")
		return
	}
	if err := prometheus.WriteToTextfile(r.path, r.reg); err != nil {
		r.log.Warn().Err(err).Str("path", r.path).Msg("write metrics textfile")
	}
}

// Last returns the figures of the most recent prompt.
func (r *Recorder) Last() Snapshot {
	mfs, err := r.reg.Gather()
	var s Snapshot
	if err != nil {
		return s
	}
	for _, mf := range mfs {
		if len(mf.GetMetric()) == 0 {
			continue
		}
		v := mf.GetMetric()[0].GetGauge().GetValue()
		switch {
		case strings.HasSuffix(mf.GetName(), "_duration_seconds"):
			s.Duration = time.Duration(v * float64(time.Second))
		case strings.HasSuffix(mf.GetName(), "_tokens_generated"):
			s.TokensGenerated = int(v)
		case strings.HasSuffix(mf.GetName(), "_tokens_per_second"):
			s.TokensPerSecond = v
		}
	}
	return s
}
