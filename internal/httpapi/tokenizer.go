package httpapi

import (
	"net/http"
	"strings"

	"workerd/internal/worker"
	"workerd/pkg/types"
)

// TokenizerService defines the methods required by the tokenizer HTTP API.
type TokenizerService interface {
	StartTokenizer(name string) error
	Status(name string) (worker.Status, error)
	StatusHistory(name string) ([]worker.Status, error)
	Ready() bool
}

// NewTokenizerMux returns the tokenizer service router.
func NewTokenizerMux(svc TokenizerService) http.Handler {
	r := baseRouter()

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("starting"))
	})

	// @Summary      Start a tokenizer
	// @Description  Spawns the tokenizer for a model. Only the first call succeeds.
	// @Tags         tokenizer
	// @Accept       json
	// @Produce      json
	// @Param        request  body      types.StartTokenizerRequest  true  "Tokenizer"
	// @Success      200      {object}  types.StartTokenizerResponse
	// @Failure      404      {object}  types.ErrorResponse
	// @Failure      409      {object}  types.ErrorResponse
	// @Failure      500      {object}  types.ErrorResponse
	// @Router       /start_tokenizer [post]
	r.Post("/start_tokenizer", func(w http.ResponseWriter, r *http.Request) {
		var req types.StartTokenizerRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			writeJSONError(w, http.StatusBadRequest, "name is required")
			return
		}
		if err := svc.StartTokenizer(req.Name); err != nil {
			code := statusFor(err)
			if code >= http.StatusInternalServerError {
				zlog.Error().Err(err).Str("tokenizer", req.Name).Msg("start failed")
			}
			writeJSONError(w, code, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, types.StartTokenizerResponse{Response: "Tokenizer started"})
	})

	// @Summary  Current status of a tokenizer
	// @Tags     tokenizer
	// @Produce  json
	// @Param    name  path      string  true  "Model name"
	// @Success  200   {object}  types.StatusResponse
	// @Failure  404   {object}  types.ErrorResponse
	// @Router   /status/{name} [get]
	r.Get("/status/{name}", func(w http.ResponseWriter, r *http.Request) {
		st, err := svc.Status(pathParam(r, "name"))
		if err != nil {
			writeJSONError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, types.StatusResponse{Status: string(st)})
	})

	// @Summary  Every status a tokenizer has entered
	// @Tags     tokenizer
	// @Produce  json
	// @Param    name  path      string  true  "Model name"
	// @Success  200   {object}  types.StatusHistoryResponse
	// @Failure  404   {object}  types.ErrorResponse
	// @Router   /status_history/{name} [get]
	r.Get("/status_history/{name}", func(w http.ResponseWriter, r *http.Request) {
		h, err := svc.StatusHistory(pathParam(r, "name"))
		if err != nil {
			writeJSONError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, types.StatusHistoryResponse{StatusHistory: statusStrings(h)})
	})

	return r
}
