package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"go-messenger/internal/trust"
)

// credentialPaths get the stricter per-client budget.
var credentialPaths = []string{"/api/v1/auth/login", "/api/v1/auth/refresh", "/api/v1/users/register"}

const (
	visitorIdleAfter = 10 * time.Minute
	sweepEvery       = time.Minute
)

type budget int

const (
	generalBudget budget = iota
	credentialBudget
)

type visitor struct {
	limiters [2]*rate.Limiter
	lastSeen time.Time
}

// RateLimitMiddleware keeps a token bucket pair per client address. Idle
// clients are dropped by a lazy sweep on the request path.
type RateLimitMiddleware struct {
	generalRPM int
	authRPM    int

	mu        sync.Mutex
	visitors  map[string]*visitor
	lastSweep time.Time
}

func NewRateLimitMiddleware(generalRPM int, authRPM int) *RateLimitMiddleware {
	if generalRPM <= 0 {
		generalRPM = 100
	}
	if authRPM <= 0 {
		authRPM = 10
	}

	return &RateLimitMiddleware{
		generalRPM: generalRPM,
		authRPM:    authRPM,
		visitors:   map[string]*visitor{},
		lastSweep:  time.Now(),
	}
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := trust.ClientIP(r)
		b := budgetFor(r.URL.Path)

		if !m.allow(clientIP, b) {
			w.Header().Set("Retry-After", "60")
			writeJSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func budgetFor(path string) budget {
	path = strings.ToLower(path)
	for _, p := range credentialPaths {
		if strings.HasPrefix(path, p) {
			return credentialBudget
		}
	}
	return generalBudget
}

func (m *RateLimitMiddleware) allow(clientIP string, b budget) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	v, ok := m.visitors[clientIP]
	if !ok {
		v = &visitor{limiters: [2]*rate.Limiter{
			generalBudget:    perMinute(m.generalRPM),
			credentialBudget: perMinute(m.authRPM),
		}}
		m.visitors[clientIP] = v
	}
	v.lastSeen = now

	if now.Sub(m.lastSweep) >= sweepEvery {
		m.sweepLocked(now)
	}

	return v.limiters[b].AllowN(now, 1)
}

func perMinute(rpm int) *rate.Limiter {
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), rpm)
}

func (m *RateLimitMiddleware) sweepLocked(now time.Time) {
	m.lastSweep = now
	for ip, v := range m.visitors {
		if now.Sub(v.lastSeen) > visitorIdleAfter {
			delete(m.visitors, ip)
		}
	}
}
