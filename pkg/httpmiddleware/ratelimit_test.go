package httpmiddleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func request(remote string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.RemoteAddr = remote
	return req
}

func TestLimiter_Burst(t *testing.T) {
	h := NewLimiter(RateLimitConfig{Rate: 0.001, Burst: 3}).Middleware()(okHandler())

	for i := range 3 {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, request("10.0.0.1:1000"))
		require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
		assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, request("10.0.0.1:1001"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	var body struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.False(t, body.Success)
	assert.NotEmpty(t, body.Message)
}

func TestLimiter_PerClient(t *testing.T) {
	h := NewLimiter(RateLimitConfig{Rate: 0.001, Burst: 1}).Middleware()(okHandler())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, request("10.0.0.1:1"))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, request("10.0.0.2:1"))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, request("10.0.0.1:2"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestLimiter_CustomKey(t *testing.T) {
	lim := NewLimiter(RateLimitConfig{
		Rate:    0.001,
		Burst:   1,
		KeyFunc: func(r *http.Request) string { return r.Header.Get("api_key") },
	})
	h := lim.Middleware()(okHandler())

	send := func(key string) int {
		req := request("10.0.0.1:1")
		req.Header.Set("api_key", key)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w.Code
	}
	assert.Equal(t, http.StatusOK, send("a"))
	assert.Equal(t, http.StatusTooManyRequests, send("a"))
	assert.Equal(t, http.StatusOK, send("b"))
}

func TestLimiter_Evict(t *testing.T) {
	lim := NewLimiter(RateLimitConfig{Rate: 1, Burst: 1, IdleTTL: time.Minute})
	now := time.Now()
	lim.reserve("a", now)
	lim.reserve("b", now.Add(50*time.Second))

	assert.Equal(t, 1, lim.Evict(now.Add(70*time.Second)))
	assert.Len(t, lim.clients, 1)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{name: "forwarded first hop", header: map[string]string{"X-Forwarded-For": "203.0.113.50, 70.41.3.18"}, remote: "1.1.1.1:1", want: "203.0.113.50"},
		{name: "real ip", header: map[string]string{"X-Real-IP": "198.51.100.7"}, remote: "1.1.1.1:1", want: "198.51.100.7"},
		{name: "remote addr", remote: "192.0.2.1:4444", want: "192.0.2.1"},
		{name: "remote without port", remote: "192.0.2.1", want: "192.0.2.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := request(tt.remote)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}
