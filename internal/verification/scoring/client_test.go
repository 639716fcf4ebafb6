package scoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustex/internal/verification/models"
	"trustex/internal/verification/providers"
	"trustex/pkg/platform/circuit"
)

func testBundle() models.FeatureBundle {
	return models.FeatureBundle{
		CompanyName: "Acme",
		Description: "Anvils and rockets",
		Signals:     []string{"has_website"},
		Snippets:    []string{"Anvils and rockets"},
		Context:     "symbol=ACME",
	}
}

func newServer(t *testing.T, hits *atomic.Int32, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(url string) Config {
	return Config{
		URL:              url,
		Token:            "secret-token",
		Timeout:          time.Second,
		MaxRetries:       2,
		RetryBackoff:     time.Millisecond,
		MaxResponseBytes: 4096,
	}
}

func writeScore(w http.ResponseWriter, score int) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"score":` + itoa(score) + `,"status":"verified","confidence":0.9,"reasons":["registered"],"riskFactors":[],"fraudKeywords":[],"processingTimeMs":12}`))
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestScore_Success(t *testing.T) {
	var hits atomic.Int32
	srv := newServer(t, &hits, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, scorePath, r.URL.Path)
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Acme", body["companyName"])
		assert.Contains(t, body, "signals")
		assert.Contains(t, body, "snippets")
		assert.NotContains(t, body, "registrationYear")
		writeScore(w, 81)
	})

	result, err := New(testConfig(srv.URL)).Score(context.Background(), testBundle())
	require.NoError(t, err)
	assert.Equal(t, 81, *result.Score)
	assert.Equal(t, []string{"registered"}, result.Reasons)
	assert.EqualValues(t, 1, hits.Load())
}

func TestScore_RetriesTransientFailures(t *testing.T) {
	var hits atomic.Int32
	srv := newServer(t, &hits, func(w http.ResponseWriter, _ *http.Request) {
		if hits.Load() < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeScore(w, 50)
	})

	result, err := New(testConfig(srv.URL)).Score(context.Background(), testBundle())
	require.NoError(t, err)
	assert.Equal(t, 50, *result.Score)
	assert.EqualValues(t, 3, hits.Load())
}

func TestScore_RetryBudgetIsBounded(t *testing.T) {
	var hits atomic.Int32
	srv := newServer(t, &hits, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := New(testConfig(srv.URL)).Score(context.Background(), testBundle())
	require.Error(t, err)
	assert.Equal(t, providers.ErrorProviderOutage, providers.GetCategory(err))
	assert.EqualValues(t, 3, hits.Load())
}

func TestScore_NoRetryForPermanentFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   providers.ErrorCategory
	}{
		{"authentication", http.StatusUnauthorized, providers.ErrorAuthentication},
		{"malformed request", http.StatusBadRequest, providers.ErrorContractMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			srv := newServer(t, &hits, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			})

			_, err := New(testConfig(srv.URL)).Score(context.Background(), testBundle())
			require.Error(t, err)
			assert.Equal(t, tt.want, providers.GetCategory(err))
			assert.False(t, providers.IsRetryable(err))
			assert.EqualValues(t, 1, hits.Load())
		})
	}
}

func TestScore_BadResponses(t *testing.T) {
	tests := []struct {
		name string
		body string
		want providers.ErrorCategory
	}{
		{"malformed json", `{"score":`, providers.ErrorBadData},
		{"missing score", `{"status":"verified"}`, providers.ErrorContractMismatch},
		{"score out of range", `{"score":140}`, providers.ErrorContractMismatch},
		{"oversized body", `{"score":50,"reasons":["` + strings.Repeat("x", 8192) + `"]}`, providers.ErrorBudgetExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			srv := newServer(t, &hits, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := New(testConfig(srv.URL)).Score(context.Background(), testBundle())
			require.Error(t, err)
			assert.Equal(t, tt.want, providers.GetCategory(err))
			assert.EqualValues(t, 1, hits.Load())
		})
	}
}

func TestScore_Timeout(t *testing.T) {
	var hits atomic.Int32
	srv := newServer(t, &hits, func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		writeScore(w, 90)
	})
	cfg := testConfig(srv.URL)
	cfg.Timeout = 20 * time.Millisecond
	cfg.MaxRetries = 1

	_, err := New(cfg).Score(context.Background(), testBundle())
	require.Error(t, err)
	assert.Equal(t, providers.ErrorTimeout, providers.GetCategory(err))
	assert.EqualValues(t, 2, hits.Load())
}

func TestScore_NotConfigured(t *testing.T) {
	_, err := New(Config{}).Score(context.Background(), testBundle())
	require.Error(t, err)
	assert.ErrorIs(t, err, providers.ErrNotConfigured)
}

func TestScore_CircuitBreakerFailsFast(t *testing.T) {
	var hits atomic.Int32
	srv := newServer(t, &hits, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	cfg := testConfig(srv.URL)
	cfg.MaxRetries = 0
	breaker := circuit.New("scoring", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Hour))
	client := New(cfg, WithBreaker(breaker))

	for range 2 {
		_, err := client.Score(context.Background(), testBundle())
		require.Error(t, err)
	}
	assert.True(t, breaker.IsOpen())

	_, err := client.Score(context.Background(), testBundle())
	require.ErrorIs(t, err, providers.ErrCircuitOpen)
	assert.EqualValues(t, 2, hits.Load())
}
