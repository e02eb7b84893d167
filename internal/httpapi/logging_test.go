package httpapi

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func newBufferLogger(w io.Writer) zerolog.Logger { return zerolog.New(w) }

func testDiscardLogger() zerolog.Logger { return zerolog.Nop() }

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"off":     LevelOff,
		"":        LevelOff,
		"ERROR":   LevelError,
		" info ":  LevelInfo,
		"debug":   LevelDebug,
		"verbose": LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q)=%d want %d", in, got, want)
		}
	}
}

func TestRequestLogLevel_Overrides(t *testing.T) {
	SetRequestLogLevel("error")
	defer SetRequestLogLevel("info")

	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	if got := requestLogLevel(r); got != LevelError {
		t.Fatalf("default=%d", got)
	}
	r.Header.Set("X-Log-Level", "debug")
	if got := requestLogLevel(r); got != LevelDebug {
		t.Fatalf("header=%d", got)
	}
	r = httptest.NewRequest(http.MethodGet, "/x?log=off", nil)
	r.Header.Set("X-Log-Level", "debug")
	if got := requestLogLevel(r); got != LevelOff {
		t.Fatalf("query should win, got %d", got)
	}
}

func TestRequestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(newBufferLogger(&buf))
	defer SetLogger(testDiscardLogger())

	ok := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("hi"))
	}))
	fail := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	ok.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/a?log=off", nil))
	if buf.Len() != 0 {
		t.Fatalf("off should not log: %s", buf.String())
	}
	ok.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/a?log=error", nil))
	if buf.Len() != 0 {
		t.Fatalf("error level should skip 200: %s", buf.String())
	}
	fail.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/b?log=error", nil))
	if !strings.Contains(buf.String(), `"status":500`) || !strings.Contains(buf.String(), `"level":"error"`) {
		t.Fatalf("log=%s", buf.String())
	}
	buf.Reset()
	ok.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/c", nil))
	if !strings.Contains(buf.String(), `"path":"/c"`) || !strings.Contains(buf.String(), `"bytes":2`) {
		t.Fatalf("log=%s", buf.String())
	}
}
