package middlewares

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"agroguard/internal/utils"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps a token bucket per client IP, or per user once a
// request carries an authenticated user. Authenticator.Optional has to run
// before Limit for the per-user buckets to apply.
type RateLimiter struct {
	rps   rate.Limit
	burst int

	mu           sync.Mutex
	ipVisitors   map[string]*visitor
	userVisitors map[string]*visitor
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		rps:          rate.Limit(rps),
		burst:        burst,
		ipVisitors:   make(map[string]*visitor),
		userVisitors: make(map[string]*visitor),
	}
}

func (l *RateLimiter) getLimiter(key string, isUser bool) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	visitors := l.ipVisitors
	if isUser {
		visitors = l.userVisitors
	}

	v, exists := visitors[key]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(l.rps, l.burst)}
		visitors[key] = v
	}
	v.lastSeen = time.Now()

	return v.limiter
}

// Cleanup drops visitors idle for longer than ttl, checking every interval,
// until ctx is done.
func (l *RateLimiter) Cleanup(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.evict(ttl)
		}
	}
}

func (l *RateLimiter) evict(ttl time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, v := range l.ipVisitors {
		if time.Since(v.lastSeen) > ttl {
			delete(l.ipVisitors, ip)
		}
	}
	for userID, v := range l.userVisitors {
		if time.Since(v.lastSeen) > ttl {
			delete(l.userVisitors, userID)
		}
	}
}

func (l *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var limiter *rate.Limiter

		if userID, ok := utils.UserFromContext(r.Context()); ok {
			limiter = l.getLimiter(userID.Hex(), true)
		} else {
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}
			limiter = l.getLimiter(ip, false)
		}

		if !limiter.Allow() {
			utils.SendJSONError(w, "Too many requests, please try again later.", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}
