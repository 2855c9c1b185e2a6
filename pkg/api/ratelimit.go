package api

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	limiterCleanupInterval = time.Minute
	limiterIdleTimeout     = 3 * time.Minute
)

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type rateLimiterMap struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiter
	rps      rate.Limit
	burst    int
}

func newRateLimiterMap(requestsPerMinute int) *rateLimiterMap {
	m := &rateLimiterMap{
		limiters: make(map[string]*ipLimiter),
		rps:      rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:    requestsPerMinute,
	}

	go m.cleanup()

	return m
}

func (m *rateLimiterMap) get(ip string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.limiters[ip]
	if !ok {
		l = &ipLimiter{limiter: rate.NewLimiter(m.rps, m.burst)}
		m.limiters[ip] = l
	}

	l.lastSeen = time.Now()

	return l.limiter
}

func (m *rateLimiterMap) cleanup() {
	for range time.Tick(limiterCleanupInterval) {
		m.mu.Lock()

		for ip, l := range m.limiters {
			if time.Since(l.lastSeen) > limiterIdleTimeout {
				delete(m.limiters, ip)
			}
		}

		m.mu.Unlock()
	}
}

// rateLimitMiddleware enforces a per-IP request budget.
func rateLimitMiddleware(log logrus.FieldLogger, requestsPerMinute int) func(http.Handler) http.Handler {
	limiters := newRateLimiterMap(requestsPerMinute)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}

			if !limiters.get(ip).Allow() {
				log.WithField("ip", ip).Debug("Rate limit exceeded")
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
