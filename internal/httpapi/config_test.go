package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"workerd/internal/worker"
)

func busyErr() error { return &worker.BusyError{Worker: "m1"} }

func TestCORS_OptIn(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/tags", nil)
	req.Header.Set("Origin", "http://ui.local")

	w := httptest.NewRecorder()
	NewMux(newMock()).ServeHTTP(w, req)
	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("CORS should be off by default")
	}

	SetCORSOptions(true, []string{"http://ui.local"})
	defer SetCORSOptions(false, nil)
	w = httptest.NewRecorder()
	NewMux(newMock()).ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://ui.local" {
		t.Fatalf("allow-origin=%q", got)
	}
}

func TestRequestContext_CanceledByBase(t *testing.T) {
	base, cancelBase := context.WithCancel(context.Background())
	SetBaseContext(base)
	defer SetBaseContext(nil)

	ctx, cancel := requestContext(httptest.NewRequest(http.MethodGet, "/", nil))
	defer cancel()
	cancelBase()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatalf("request context not canceled with base")
	}
}

func TestSetMaxBodyBytes_Default(t *testing.T) {
	SetMaxBodyBytes(10)
	if maxBodyBytes != 10 {
		t.Fatalf("got %d", maxBodyBytes)
	}
	SetMaxBodyBytes(-1)
	if maxBodyBytes != 1<<20 {
		t.Fatalf("got %d", maxBodyBytes)
	}
}
