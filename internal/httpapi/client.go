package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"workerd/internal/worker"
	"workerd/pkg/types"
)

// TokenizerClient talks to a tokenizer service over HTTP. It satisfies
// worker.DependencyClient.
type TokenizerClient struct {
	base string
	hc   *http.Client
}

var _ worker.DependencyClient = (*TokenizerClient)(nil)

// NewTokenizerClient returns a client for the tokenizer service at baseURL,
// e.g. "http://127.0.0.1:8101". A nil hc uses a client with a 10s timeout.
func NewTokenizerClient(baseURL string, hc *http.Client) *TokenizerClient {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &TokenizerClient{base: strings.TrimRight(baseURL, "/"), hc: hc}
}

// remoteError carries a non-2xx response from the tokenizer service.
type remoteError struct {
	Op     string
	Code   int
	Detail string
}

func (e *remoteError) Error() string {
	return fmt.Sprintf("tokenizer %s: status %d: %s", e.Op, e.Code, e.Detail)
}

func (e *remoteError) StatusCode() int { return http.StatusBadGateway }

func readRemoteError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var er types.ErrorResponse
	detail := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &er) == nil && er.Error != "" {
		detail = er.Error
	}
	return &remoteError{Op: op, Code: resp.StatusCode, Detail: detail}
}

// Status returns the tokenizer status for the named model.
func (c *TokenizerClient) Status(ctx context.Context, name string) (worker.Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/status/"+url.PathEscape(name), nil)
	if err != nil {
		return "", err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", readRemoteError("status", resp)
	}
	var sr types.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return "", fmt.Errorf("tokenizer status: decode: %w", err)
	}
	return worker.Status(sr.Status), nil
}

// Start asks the service to spawn the named tokenizer. A 409 means it was
// already started and counts as success.
func (c *TokenizerClient) Start(ctx context.Context, name string) error {
	body, _ := json.Marshal(types.StartTokenizerRequest{Name: name})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/start_tokenizer", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK, http.StatusConflict:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	default:
		return readRemoteError("start", resp)
	}
}
