package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/chatflow/chatflow/logger"
	"go.uber.org/zap"
)

var _ Executor = new(httpCallExecutor)

const defaultHttpCallTimeout = 10 * time.Second

// httpCallExecutor calls the business backend. Config keys: method, url,
// body (map, template resolved), headers (map), timeoutSeconds. The decoded
// JSON response becomes the executor result; the engine stores it under the
// action's output key. The backend is treated as possibly slow and possibly
// failing; an error here fails the action and the engine marks the run
// failed.
type httpCallExecutor struct {
	client *http.Client
}

func NewHttpCallExecutor() *httpCallExecutor {
	return &httpCallExecutor{
		client: &http.Client{},
	}
}

func (e *httpCallExecutor) Name() string {
	return "http_call"
}

func (e *httpCallExecutor) Execute(ctx context.Context, in Input) (Output, error) {
	url, _ := in.Config["url"].(string)
	if url == "" {
		return Output{}, fmt.Errorf("http_call requires a url config value")
	}
	method, _ := in.Config["method"].(string)
	if method == "" {
		method = http.MethodGet
	}
	timeout := defaultHttpCallTimeout
	if secs, ok := in.Config["timeoutSeconds"].(float64); ok && secs > 0 {
		timeout = time.Duration(secs) * time.Second
	}
	var body io.Reader
	if payload, ok := in.Config["body"]; ok {
		data, err := json.Marshal(payload)
		if err != nil {
			return Output{}, fmt.Errorf("error encoding http_call body %w", err)
		}
		body = bytes.NewReader(data)
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(callCtx, method, url, body)
	if err != nil {
		return Output{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if headers, ok := in.Config["headers"].(map[string]any); ok {
		for k, v := range headers {
			req.Header.Set(k, stringValue(v))
		}
	}
	resp, err := e.client.Do(req)
	if err != nil {
		logger.Error("http_call failed", zap.String("url", url), zap.Error(err))
		return Output{}, fmt.Errorf("backend call failed %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return Output{}, fmt.Errorf("backend returned status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Output{}, err
	}
	var decoded any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			decoded = string(raw)
		}
	}
	return Output{Data: map[string]any{"response": decoded}}, nil
}
