package inference

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chatServer answers /chat/completions per model using the handlers map.
func chatServer(t *testing.T, handlers map[string]http.HandlerFunc) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/api/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		var req struct {
			Model       string  `json:"model"`
			MaxTokens   int     `json:"max_tokens"`
			Temperature float64 `json:"temperature"`
			Messages    []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if !assert.NoError(t, json.Unmarshal(body, &req)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.Equal(t, 500, req.MaxTokens)
		assert.InDelta(t, 0.7, req.Temperature, 1e-9)
		if assert.Len(t, req.Messages, 1) {
			assert.Equal(t, "user", req.Messages[0].Role)
		}

		h, ok := handlers[req.Model]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func completion(content string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "cmpl-1",
			"object":  "chat.completion",
			"created": time.Now().Unix(),
			"model":   "m",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
	}
}

func status(code int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream said no"}}`))
	}
}

func newCompatible(srv *httptest.Server) Provider {
	p, err := NewProvider(Config{Provider: ProviderCompatible, APIKey: "test-key", BaseURL: srv.URL + "/api/v1"})
	if err != nil {
		panic(err)
	}
	return p
}

func TestOpenAIProvider_Complete(t *testing.T) {
	srv, _ := chatServer(t, map[string]http.HandlerFunc{"v/A": completion(longJoke)})

	content, err := newCompatible(srv).Complete(context.Background(), "v/A", "prompt", DefaultParams)
	require.NoError(t, err)
	require.Equal(t, longJoke, content)
}

func TestOpenAIProvider_StatusErrorsAreNotRetried(t *testing.T) {
	srv, hits := chatServer(t, map[string]http.HandlerFunc{"v/A": status(http.StatusTooManyRequests)})

	_, err := newCompatible(srv).Complete(context.Background(), "v/A", "prompt", DefaultParams)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
	require.Equal(t, int32(1), hits.Load())
}

func TestSequencer_AgainstCompatibleAPI(t *testing.T) {
	srv, hits := chatServer(t, map[string]http.HandlerFunc{
		"v/A": status(http.StatusTooManyRequests),
		"v/B": status(http.StatusServiceUnavailable),
		"v/C": status(http.StatusBadGateway),
		"v/D": completion("ok"),
		"v/E": completion(longJoke),
	})
	models := mustModels(t, "v/A", "v/B", "v/C", "v/D", "v/E")
	seq := NewSequencer(newCompatible(srv), models, SequencerConfig{AttemptTimeout: 5 * time.Second, Params: DefaultParams})

	res := seq.Translate(context.Background(), "joke", "Gen Z", 5, nil)

	require.True(t, res.OK())
	require.Equal(t, "v/E", res.Model)
	require.Equal(t, longJoke, res.Text)
	got := make([]Outcome, 0, len(res.Attempts))
	for _, a := range res.Attempts {
		got = append(got, a.Outcome)
	}
	require.Equal(t, []Outcome{OutcomeRateLimited, OutcomeOverloaded, OutcomeHTTPError, OutcomeEmptyResponse, OutcomeSuccess}, got)
	require.Equal(t, int32(5), hits.Load())
}

func TestSequencer_AgainstCompatibleAPI_TimeoutAndBadJSON(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	srv, _ := chatServer(t, map[string]http.HandlerFunc{
		"v/slow": func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		},
		"v/garbled": func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"choices": [`))
		},
	})
	seq := NewSequencer(newCompatible(srv), mustModels(t, "v/slow", "v/garbled"), SequencerConfig{
		AttemptTimeout: 100 * time.Millisecond,
		Params:         DefaultParams,
	})

	res := seq.Translate(context.Background(), "joke", "x", 2, nil)

	require.False(t, res.OK())
	require.Len(t, res.Attempts, 2)
	require.Equal(t, OutcomeTimeout, res.Attempts[0].Outcome)
	require.Equal(t, OutcomeException, res.Attempts[1].Outcome)
}

func TestNewProvider_Validation(t *testing.T) {
	_, err := NewProvider(Config{Provider: ProviderCompatible})
	require.ErrorIs(t, err, ErrMissingAPIKey)

	_, err = NewProvider(Config{Provider: ProviderCompatible, APIKey: "k"})
	require.ErrorIs(t, err, ErrMissingBaseURL)

	_, err = NewProvider(Config{Provider: "llamas", APIKey: "k"})
	require.ErrorIs(t, err, ErrInvalidProvider)

	p, err := NewProvider(Config{Provider: ProviderAnthropic, APIKey: "k"})
	require.NoError(t, err)
	require.Equal(t, ProviderAnthropic, p.Name())

	p, err = NewProvider(Config{Provider: ProviderOpenAI, APIKey: "k"})
	require.NoError(t, err)
	require.Equal(t, ProviderOpenAI, p.Name())
}

func TestBuildHumorPrompt(t *testing.T) {
	prompt := BuildHumorPrompt("Why did the chicken cross the road?", "Japanese")
	require.Equal(t,
		"Translate or adapt the following joke or phrase into humor suitable for Japanese culture. "+
			"Maintain the spirit of the joke but make it funny and understandable to that culture.\n\n"+
			"Input: Why did the chicken cross the road?\n\nTranslated Humor:",
		prompt)
}

func TestStatusError_Message(t *testing.T) {
	require.Equal(t, "compatible: HTTP 429", (&StatusError{Provider: "compatible", StatusCode: 429}).Error())
	require.Equal(t, "x: HTTP 500: boom", (&StatusError{Provider: "x", StatusCode: 500, Message: "boom"}).Error())
}
