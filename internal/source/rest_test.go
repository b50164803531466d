package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/tasksync/internal/model"
)

func TestRESTClient_RetriesOnRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "v", body["k"])
		_ = json.NewEncoder(w).Encode(map[string]string{"ok": "yes"})
	}))
	defer srv.Close()

	c := NewRESTClient(model.ProviderJira, srv.URL+"/", nil)
	var out map[string]string
	err := c.Do(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/x",
		Token:  "tok",
		Body:   map[string]string{"k": "v"},
	}, &out)

	require.NoError(t, err)
	assert.Equal(t, "yes", out["ok"])
	assert.Equal(t, int32(2), calls.Load())
}

func TestRESTClient_AuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewRESTClient(model.ProviderGitHub, srv.URL, nil)
	err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/"}, nil)

	require.Error(t, err)
	assert.True(t, IsAuthError(err))
}

func TestRESTClient_ProviderErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"bad field"}`))
	}))
	defer srv.Close()

	c := NewRESTClient(model.ProviderAzure, srv.URL, nil)
	c.ErrorMessage = func(body []byte) string {
		var e struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(body, &e)
		return e.Message
	}
	err := c.Do(context.Background(), Request{Method: http.MethodPatch, Path: "/wi"}, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad field")
	assert.Contains(t, err.Error(), "400")
	assert.False(t, IsAuthError(err))
}
