package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitMiddleware_GeneralBudget(t *testing.T) {
	t.Parallel()

	handler := NewRateLimitMiddleware(5, 1).Handler(okHandler())

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/messages/conversation/7", nil))
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/messages/conversation/7", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestRateLimitMiddleware_LimitedAuth(t *testing.T) {
	t.Parallel()

	handler := NewRateLimitMiddleware(100, 1).Handler(okHandler())

	rec1 := httptest.NewRecorder()
	handler.ServeHTTP(rec1, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil))
	assert.Equal(t, http.StatusOK, rec1.Code)

	// Burst of 1: the second immediate attempt has no token left.
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, httptest.NewRequest(http.MethodPost, "/api/v1/users/register", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec2.Code)

	// The general budget is separate.
	rec3 := httptest.NewRecorder()
	handler.ServeHTTP(rec3, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, http.StatusOK, rec3.Code)
}

func TestRateLimitMiddleware_PerClient(t *testing.T) {
	t.Parallel()

	handler := NewRateLimitMiddleware(100, 1).Handler(okHandler())

	for _, ip := range []string{"203.0.113.1", "203.0.113.2"} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		req.Header.Set("X-Forwarded-For", ip)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, ip)
	}
}

func TestRateLimitMiddleware_Configuration(t *testing.T) {
	t.Parallel()

	mw := NewRateLimitMiddleware(-1, 0)
	assert.Equal(t, 100, mw.generalRPM)
	assert.Equal(t, 10, mw.authRPM)
}

func TestRateLimitMiddleware_SweepsIdleClients(t *testing.T) {
	t.Parallel()

	mw := NewRateLimitMiddleware(100, 10)
	require.True(t, mw.allow("203.0.113.9", generalBudget))

	mw.mu.Lock()
	mw.visitors["203.0.113.9"].lastSeen = time.Now().Add(-2 * visitorIdleAfter)
	mw.lastSweep = time.Now().Add(-2 * sweepEvery)
	mw.mu.Unlock()

	require.True(t, mw.allow("203.0.113.10", generalBudget))

	mw.mu.Lock()
	defer mw.mu.Unlock()
	require.NotContains(t, mw.visitors, "203.0.113.9")
	require.Contains(t, mw.visitors, "203.0.113.10")
}

func TestBudgetFor(t *testing.T) {
	t.Parallel()

	require.Equal(t, credentialBudget, budgetFor("/api/v1/auth/login"))
	require.Equal(t, credentialBudget, budgetFor("/API/V1/USERS/REGISTER"))
	require.Equal(t, generalBudget, budgetFor("/api/v1/auth/me"))
	require.Equal(t, generalBudget, budgetFor("/api/v1/messages/send"))
}
