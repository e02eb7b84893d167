package httpapi

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsMiddleware_EmitsRequestCounters(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	MetricsMiddleware(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test", nil))

	mrr := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(mrr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !bytes.Contains(mrr.Body.Bytes(), []byte("workerd_http_requests_total")) {
		t.Fatalf("expected workerd_http_requests_total in metrics")
	}
}

func TestMetrics_UsesRoutePattern(t *testing.T) {
	h := NewMux(newMock())
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/api/status/{model}", http.MethodGet, "200"))
	get(h, "/api/status/m1")
	get(h, "/api/status/m2")
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/api/status/{model}", http.MethodGet, "200"))
	if after-before != 2 {
		t.Fatalf("pattern counter delta=%v", after-before)
	}
}

func TestRoutePatternOrPath_Fallback(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/plain", nil)
	if got := routePatternOrPath(r); got != "/plain" {
		t.Fatalf("got %q", got)
	}
	router := chi.NewRouter()
	var seen string
	router.Get("/x/{id}", func(w http.ResponseWriter, r *http.Request) { seen = routePatternOrPath(r) })
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x/42", nil))
	if seen != "/x/{id}" {
		t.Fatalf("pattern=%q", seen)
	}
}

func TestBackpressureCountedOnBusy(t *testing.T) {
	before := testutil.ToFloat64(backpressureTotal.WithLabelValues("busy"))
	svc := newMock()
	svc.generateErr = busyErr()
	if w := post(NewMux(svc), "/api/generate", `{"model":"m1","prompt":"hi"}`); w.Code != http.StatusTooManyRequests {
		t.Fatalf("status=%d", w.Code)
	}
	if got := testutil.ToFloat64(backpressureTotal.WithLabelValues("busy")) - before; got != 1 {
		t.Fatalf("backpressure delta=%v", got)
	}
	IncrementBackpressure("")
	if testutil.ToFloat64(backpressureTotal.WithLabelValues("unspecified")) < 1 {
		t.Fatalf("empty reason should be unspecified")
	}
}
