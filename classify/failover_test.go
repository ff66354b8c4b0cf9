package classify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chatflow/chatflow/model"
	"github.com/stretchr/testify/require"
)

func TestFailoverSticksToSecondary(t *testing.T) {
	primary := deadService(t)
	secondary := modelService(t, "greet", 0.9)
	defer secondary.Close()

	mc := NewModelClient(primary.URL, secondary.URL, 300*time.Millisecond)

	_, err := mc.Classify(context.Background(), "hello there")
	require.NoError(t, err)
	require.False(t, mc.state.Load().activePrimary)

	// subsequent calls go straight to the secondary
	result, err := mc.Classify(context.Background(), "hello again")
	require.NoError(t, err)
	require.Equal(t, model.PROVIDER_MODEL_SECONDARY, result.Provider)
}

func TestProbeSwitchesBackWhenPrimaryRecovers(t *testing.T) {
	var healthy atomic.Bool
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		switch r.URL.Path {
		case "/classify":
			json.NewEncoder(w).Encode(classifyResponse{Intent: "greet", Confidence: 0.9})
		case "/health":
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer primary.Close()
	secondary := modelService(t, "greet", 0.9)
	defer secondary.Close()

	mc := NewModelClient(primary.URL, secondary.URL, 300*time.Millisecond)

	result, err := mc.Classify(context.Background(), "hi")
	require.NoError(t, err)
	require.Equal(t, model.PROVIDER_MODEL_SECONDARY, result.Provider)
	require.False(t, mc.state.Load().activePrimary)

	// primary recovers; a probe swaps the client back
	healthy.Store(true)
	mc.probePrimary()
	require.True(t, mc.state.Load().activePrimary)

	result, err = mc.Classify(context.Background(), "hi")
	require.NoError(t, err)
	require.Equal(t, model.PROVIDER_MODEL_PRIMARY, result.Provider)
}

func TestProbeIsNoopWhileHealthy(t *testing.T) {
	mc := NewModelClient("http://127.0.0.1:1", "http://127.0.0.1:1", 100*time.Millisecond)
	before := mc.state.Load()
	mc.probePrimary()
	require.Same(t, before, mc.state.Load())
}

func TestSwapIsIdempotentUnderRace(t *testing.T) {
	mc := NewModelClient("http://a", "http://b", time.Second)
	old := mc.state.Load()
	next := &endpointState{activePrimary: false, degradedSince: time.Now()}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mc.swap(old, next)
		}()
	}
	wg.Wait()
	require.False(t, mc.state.Load().activePrimary)
}

func TestHealthProbeWorker(t *testing.T) {
	secondary := modelService(t, "greet", 0.9)
	defer secondary.Close()
	primary := modelService(t, "greet", 0.9)
	defer primary.Close()

	mc := NewModelClient(primary.URL, secondary.URL, 300*time.Millisecond)
	mc.state.Store(&endpointState{activePrimary: false, degradedSince: time.Now()})

	stop := make(chan struct{})
	var wg sync.WaitGroup
	mc.StartHealthProbe(20*time.Millisecond, stop, &wg)

	require.Eventually(t, func() bool {
		return mc.state.Load().activePrimary
	}, time.Second, 10*time.Millisecond)

	close(stop)
	wg.Wait()
}
