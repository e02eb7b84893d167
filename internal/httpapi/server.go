package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"workerd/internal/worker"
	"workerd/pkg/types"
)

// Service defines the methods required by the LLM HTTP API.
type Service interface {
	ListModels() []types.Descriptor
	HasModel(name string) bool
	Generate(ctx context.Context, model, prompt string) (string, error)
	Status(model string) (worker.Status, error)
	StatusHistory(model string) ([]worker.Status, error)
	Ready() bool
}

// baseRouter returns a router with the middleware shared by both services.
func baseRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	r.Use(middleware.Compress(5))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	useCORS(r)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	MountSwagger(r)
	return r
}

// decodeJSON enforces the JSON content type and body limit.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct != "" && !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// pathParam returns the unescaped URL parameter, so model names may contain
// escaped slashes.
func pathParam(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}

func statusStrings(h []worker.Status) []string {
	out := make([]string, len(h))
	for i, s := range h {
		out[i] = string(s)
	}
	return out
}

// NewMux returns the LLM service router.
func NewMux(svc Service) http.Handler {
	r := baseRouter()

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("loading"))
	})

	// @Summary      Generate a response
	// @Description  Starts the model if it is idle, waits for readiness and returns the full answer.
	// @Tags         llm
	// @Accept       json
	// @Produce      json
	// @Param        request  body      types.GenerateRequest  true  "Prompt"
	// @Success      200      {object}  types.GenerateResponse
	// @Failure      400      {object}  types.ErrorResponse
	// @Failure      404      {object}  types.ErrorResponse
	// @Failure      429      {object}  types.ErrorResponse
	// @Failure      500      {object}  types.ErrorResponse
	// @Router       /api/generate [post]
	r.With(inflightMiddleware).Post("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		var req types.GenerateRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Model) == "" {
			writeJSONError(w, http.StatusBadRequest, "model is required")
			return
		}
		if strings.TrimSpace(req.Prompt) == "" {
			writeJSONError(w, http.StatusBadRequest, "prompt is required")
			return
		}
		lvl := requestLogLevel(r)
		rid := middleware.GetReqID(r.Context())
		if lvl >= LevelDebug {
			zlog.Debug().Str("request_id", rid).Str("model", req.Model).Str("prompt", req.Prompt).Msg("generate")
		}
		ctx, cancel := requestContext(r)
		defer cancel()
		start := time.Now()
		resp, err := svc.Generate(ctx, req.Model, req.Prompt)
		if err != nil {
			if r.Context().Err() != nil {
				return
			}
			code := statusFor(err)
			if code == http.StatusTooManyRequests {
				IncrementBackpressure("busy")
			}
			if lvl >= LevelError {
				zlog.Error().Err(err).Str("request_id", rid).Str("model", req.Model).Int("status", code).Dur("dur", time.Since(start)).Msg("generate failed")
			}
			writeJSONError(w, code, err.Error())
			return
		}
		if lvl >= LevelDebug {
			zlog.Debug().Str("request_id", rid).Str("model", req.Model).Str("response", resp).Msg("generate done")
		}
		writeJSON(w, http.StatusOK, types.GenerateResponse{Response: resp})
	})

	// @Summary  Current status of a model
	// @Tags     llm
	// @Produce  json
	// @Param    model  path      string  true  "Model name"
	// @Success  200    {object}  types.StatusResponse
	// @Failure  404    {object}  types.ErrorResponse
	// @Router   /api/status/{model} [get]
	r.Get("/api/status/{model}", func(w http.ResponseWriter, r *http.Request) {
		st, err := svc.Status(pathParam(r, "model"))
		if err != nil {
			writeJSONError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, types.StatusResponse{Status: string(st)})
	})

	// @Summary  Every status a model has entered
	// @Tags     llm
	// @Produce  json
	// @Param    model  path      string  true  "Model name"
	// @Success  200    {object}  types.StatusHistoryResponse
	// @Failure  404    {object}  types.ErrorResponse
	// @Router   /api/status_history/{model} [get]
	r.Get("/api/status_history/{model}", func(w http.ResponseWriter, r *http.Request) {
		h, err := svc.StatusHistory(pathParam(r, "model"))
		if err != nil {
			writeJSONError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, types.StatusHistoryResponse{StatusHistory: statusStrings(h)})
	})

	// @Summary  List models
	// @Tags     ollama
	// @Produce  json
	// @Success  200  {object}  types.TagsResponse
	// @Router   /api/tags [get]
	r.Get("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, types.TagsResponse{Models: svc.ListModels()})
	})

	// @Summary      Check that a model exists
	// @Description  Answers "ok", or an error object with status 200 as Ollama clients expect.
	// @Tags         ollama
	// @Accept       json
	// @Produce      json
	// @Param        request  body  types.ShowRequest  true  "Model"
	// @Router       /api/show [post]
	r.Post("/api/show", func(w http.ResponseWriter, r *http.Request) {
		var req types.ShowRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if !svc.HasModel(req.Name) {
			writeJSON(w, http.StatusOK, map[string]string{"error": "model '" + req.Name + "' not found"})
			return
		}
		writeJSON(w, http.StatusOK, "ok")
	})

	return r
}
