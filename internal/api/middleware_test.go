package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitMiddleware(t *testing.T) {
	limiter := NewRateLimiter()
	defer limiter.Close()

	r := gin.New()
	r.Use(RequestID())
	r.GET("/ai", AIRateLimit(limiter, 2, time.Minute), func(c *gin.Context) { c.Status(http.StatusOK) })

	call := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/ai", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	first := call()
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))

	require.Equal(t, http.StatusOK, call().Code)

	blocked := call()
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.Equal(t, "0", blocked.Header().Get("X-RateLimit-Remaining"))
	assert.Contains(t, blocked.Body.String(), ErrorRateLimitExceeded)
	assert.NotEmpty(t, blocked.Header().Get("Retry-After"))
}

func TestRateLimiterWindowReset(t *testing.T) {
	limiter := NewRateLimiter()
	defer limiter.Close()

	ok, _ := limiter.Allow("k", 1, 20*time.Millisecond)
	require.True(t, ok)
	ok, _ = limiter.Allow("k", 1, 20*time.Millisecond)
	require.False(t, ok)

	time.Sleep(30 * time.Millisecond)
	ok, state := limiter.Allow("k", 1, 20*time.Millisecond)
	assert.True(t, ok)
	assert.Equal(t, 0, state.Remaining)

	limiter.cleanup(time.Now().Add(time.Second))
	limiter.mu.Lock()
	assert.Empty(t, limiter.visitors)
	limiter.mu.Unlock()
}

func TestAuthOptional(t *testing.T) {
	a := newTestAPI(t, false)

	// invalid tokens fall back to guest when auth is optional
	rec, _ := a.do(t, http.MethodPost, "/v1/projects", map[string]interface{}{
		"name": "Guest Project", "movieFormat": "short-film", "movieStyle": "noir",
	}, "garbage")
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec, resp := a.do(t, http.MethodGet, "/v1/users/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, ErrorAuthRequired, resp.Error.Code)
}

func TestAuthRequired(t *testing.T) {
	a := newTestAPI(t, true)
	project := map[string]interface{}{"name": "Locked", "movieFormat": "short-film", "movieStyle": "noir"}

	rec, resp := a.do(t, http.MethodPost, "/v1/projects", project)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, ErrorAuthRequired, resp.Error.Code)

	rec, _ = a.do(t, http.MethodGet, "/v1/projects", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = a.do(t, http.MethodGet, "/v1/projects", nil, "garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = a.do(t, http.MethodPost, "/v1/users", map[string]interface{}{
		"email": "ada@example.com", "password": "long-password", "name": "Ada",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, resp = a.do(t, http.MethodPost, "/v1/users/login", map[string]interface{}{
		"email": "ada@example.com", "password": "long-password",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	token, ok := dataMap(t, resp)["token"].(string)
	require.True(t, ok)

	rec, _ = a.do(t, http.MethodPost, "/v1/projects", project, token)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec, resp = a.do(t, http.MethodGet, "/v1/users/me", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin", dataMap(t, resp)["role"])

	rec, _ = a.do(t, http.MethodGet, "/v1/settings/llm", nil, token)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = a.do(t, http.MethodPost, "/v1/users", map[string]interface{}{
		"email": "bo@example.com", "password": "long-password",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	_, resp = a.do(t, http.MethodPost, "/v1/users/login", map[string]interface{}{
		"email": "bo@example.com", "password": "long-password",
	})
	userToken := dataMap(t, resp)["token"].(string)

	rec, _ = a.do(t, http.MethodGet, "/v1/settings/llm", nil, userToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
