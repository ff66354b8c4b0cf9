package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/chatflow/chatflow/logger"
	"github.com/chatflow/chatflow/metrics"
	"github.com/chatflow/chatflow/model"
	"github.com/chatflow/chatflow/util"
	"go.uber.org/zap"
)

const DEFAULT_MODEL_TIMEOUT = 3 * time.Second
const DEFAULT_HEALTH_CHECK_INTERVAL = 30 * time.Second
const modelRetryInterval = 200 * time.Millisecond

// endpointState is the one piece of shared cross request mutable state in
// the classifier. It is an immutable value swapped atomically; a race on
// failure detection costs at most one extra probe, switching is idempotent.
type endpointState struct {
	activePrimary bool
	degradedSince time.Time
}

type classifyRequest struct {
	Text string `json:"text"`
}

type classifyResponse struct {
	Intent     string         `json:"intent"`
	Confidence float64        `json:"confidence"`
	Entities   []model.Entity `json:"entities"`
}

// ModelClient talks to the two deployments of the intent model. It is a two
// node active/standby failover, not a load balanced pool: requests go to the
// active endpoint, a transport failure fails over to the other one, and
// while degraded a tick worker probes the primary's health endpoint to swap
// back.
type ModelClient struct {
	primaryURL   string
	secondaryURL string
	httpClient   *http.Client
	timeout      time.Duration
	state        atomic.Pointer[endpointState]
	probe        *util.TickWorker
}

func NewModelClient(primaryURL string, secondaryURL string, timeout time.Duration) *ModelClient {
	if timeout <= 0 {
		timeout = DEFAULT_MODEL_TIMEOUT
	}
	mc := &ModelClient{
		primaryURL:   primaryURL,
		secondaryURL: secondaryURL,
		httpClient:   &http.Client{Timeout: timeout},
		timeout:      timeout,
	}
	mc.state.Store(&endpointState{activePrimary: true})
	return mc
}

// StartHealthProbe begins the periodic primary health check that swaps the
// client back once the primary recovers. The probe only fires while
// degraded.
func (mc *ModelClient) StartHealthProbe(interval time.Duration, stop chan struct{}, wg *sync.WaitGroup) {
	if interval <= 0 {
		interval = DEFAULT_HEALTH_CHECK_INTERVAL
	}
	mc.probe = util.NewTickWorker("model-health-probe", interval, stop, mc.probePrimary, wg)
	mc.probe.Start()
}

func (mc *ModelClient) probePrimary() {
	state := mc.state.Load()
	if state.activePrimary {
		return
	}
	if mc.healthy(mc.primaryURL) {
		mc.swap(state, &endpointState{activePrimary: true})
		logger.Info("model primary healthy again, switching back")
	}
}

func (mc *ModelClient) healthy(baseURL string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), mc.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := mc.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Classify calls the active endpoint, retrying once before failing over to
// the standby for this and subsequent requests. Both endpoints failing
// returns an error: the caller treats it as this tier abstaining.
func (mc *ModelClient) Classify(ctx context.Context, text string) (*model.ClassificationResult, error) {
	state := mc.state.Load()
	activeURL, activeProvider := mc.active(state)
	result, err := mc.call(ctx, activeURL, text)
	if err == nil {
		result.Provider = activeProvider
		return result, nil
	}
	logger.Warn("model endpoint failed, failing over", zap.String("endpoint", activeURL), zap.Error(err))
	metrics.ClassifierFailover.Inc()
	next := &endpointState{activePrimary: !state.activePrimary, degradedSince: time.Now()}
	mc.swap(state, next)
	standbyURL, standbyProvider := mc.active(next)
	result, err = mc.call(ctx, standbyURL, text)
	if err != nil {
		return nil, fmt.Errorf("both model endpoints unavailable: %w", err)
	}
	result.Provider = standbyProvider
	return result, nil
}

func (mc *ModelClient) active(state *endpointState) (string, model.Provider) {
	if state.activePrimary {
		return mc.primaryURL, model.PROVIDER_MODEL_PRIMARY
	}
	return mc.secondaryURL, model.PROVIDER_MODEL_SECONDARY
}

func (mc *ModelClient) swap(old *endpointState, next *endpointState) {
	mc.state.CompareAndSwap(old, next)
}

func (mc *ModelClient) call(ctx context.Context, baseURL string, text string) (*model.ClassificationResult, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("model endpoint not configured")
	}
	var result *model.ClassificationResult
	operation := func() error {
		payload, err := json.Marshal(classifyRequest{Text: text})
		if err != nil {
			return backoff.Permanent(err)
		}
		callCtx, cancel := context.WithTimeout(ctx, mc.timeout)
		defer cancel()
		req, err := http.NewRequestWithContext(callCtx, http.MethodPost, baseURL+"/classify", bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := mc.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("model service returned status %d", resp.StatusCode)
		}
		var decoded classifyResponse
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return err
		}
		result = &model.ClassificationResult{
			Intent:     decoded.Intent,
			Confidence: decoded.Confidence,
			Entities:   decoded.Entities,
		}
		return nil
	}
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(modelRetryInterval), 1)
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}
	return result, nil
}
