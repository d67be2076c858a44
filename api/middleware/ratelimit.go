package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/scrapekit/config"
	"github.com/use-agent/scrapekit/models"
	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL    = time.Hour
	limiterSweepEvery = 5 * time.Minute
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterStore keeps one token bucket per identity. Idle entries are swept
// lazily on access, so no background goroutine outlives the router.
type limiterStore struct {
	mu        sync.Mutex
	entries   map[string]*limiterEntry
	limit     rate.Limit
	burst     int
	lastSweep time.Time
}

func newLimiterStore(cfg config.RateLimitConfig) *limiterStore {
	return &limiterStore{
		entries:   make(map[string]*limiterEntry),
		limit:     rate.Limit(cfg.RequestsPerSecond),
		burst:     cfg.Burst,
		lastSweep: time.Now(),
	}
}

func (s *limiterStore) get(identity string, now time.Time) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.lastSweep) >= limiterSweepEvery {
		cutoff := now.Add(-limiterIdleTTL)
		for id, entry := range s.entries {
			if entry.lastSeen.Before(cutoff) {
				delete(s.entries, id)
			}
		}
		s.lastSweep = now
	}

	entry, ok := s.entries[identity]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.entries[identity] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

// RateLimit returns per-identity (API key or IP) token-bucket rate limiting
// middleware powered by golang.org/x/time/rate. Rejected requests get a 429
// with a Retry-After hint.
func RateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	store := newLimiterStore(cfg)

	return func(c *gin.Context) {
		// Prefer API key as identity (set by auth middleware); fall back to IP.
		identity := c.ClientIP()
		if key := c.GetString(apiKeyContextKey); key != "" {
			identity = "key:" + key
		}

		now := time.Now()
		res := store.get(identity, now).ReserveN(now, 1)
		if !res.OK() {
			abortWithError(c, http.StatusTooManyRequests, models.ErrCodeRateLimited,
				"rate limit exceeded, please slow down")
			return
		}
		if delay := res.DelayFrom(now); delay > 0 {
			res.CancelAt(now)
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
			abortWithError(c, http.StatusTooManyRequests, models.ErrCodeRateLimited,
				"rate limit exceeded, please slow down")
			return
		}

		c.Next()
	}
}
