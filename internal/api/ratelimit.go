package api

import (
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// actorLimiter holds one token bucket per authenticated actor.
type actorLimiter struct {
	limit rate.Limit
	burst int
	log   *zap.Logger

	mu       sync.Mutex
	limiters map[string]*limiterEntry
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const limiterIdle = 10 * time.Minute

func newActorLimiter(limit rate.Limit, burst int, log *zap.Logger) *actorLimiter {
	return &actorLimiter{
		limit:    limit,
		burst:    burst,
		log:      log,
		limiters: make(map[string]*limiterEntry),
	}
}

func (l *actorLimiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	for k, e := range l.limiters {
		if now.Sub(e.lastSeen) > limiterIdle {
			delete(l.limiters, k)
		}
	}

	e, ok := l.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = e
	}
	e.lastSeen = now
	return e.limiter
}

// Middleware must run after AuthMiddleware.
func (l *actorLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := actorFrom(r).String()
		if !l.get(key).Allow() {
			l.log.Warn("rate limit exceeded", zap.String("actor", key))
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests, try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}
