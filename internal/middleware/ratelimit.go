package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/jengzang/photomap-backend-go/pkg/response"
)

// maxTrackedClients bounds the per-client table; the least recently seen client is evicted
const maxTrackedClients = 10000

// RateLimiter implements a sliding-window limit per client key
type RateLimiter struct {
	clients *expirable.LRU[string, *clientWindow]
	mu      sync.Mutex
	limit   int           // Maximum requests per window
	window  time.Duration // Time window
	now     func() time.Time
}

type clientWindow struct {
	hits []time.Time
}

// NewRateLimiter creates a new rate limiter. Idle clients expire after one window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		clients: expirable.NewLRU[string, *clientWindow](maxTrackedClients, nil, window),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

// Allow checks if a request from the given key is allowed. The second value
// is how long the client should wait when it is not.
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cw, ok := rl.clients.Get(key)
	if !ok {
		cw = &clientWindow{}
	}

	// Drop hits older than the window
	valid := cw.hits[:0]
	for _, t := range cw.hits {
		if now.Sub(t) < rl.window {
			valid = append(valid, t)
		}
	}
	cw.hits = valid

	if len(cw.hits) >= rl.limit {
		rl.clients.Add(key, cw)
		return false, rl.window - now.Sub(cw.hits[0])
	}

	cw.hits = append(cw.hits, now)
	rl.clients.Add(key, cw)
	return true, 0
}

// RateLimit middleware limits requests per client IP. limit <= 0 disables it.
func RateLimit(limit int, window time.Duration) gin.HandlerFunc {
	if limit <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	limiter := NewRateLimiter(limit, window)

	return func(c *gin.Context) {
		ok, retry := limiter.Allow(c.ClientIP())
		if !ok {
			c.Header("Retry-After", strconv.Itoa(int(retry.Round(time.Second)/time.Second)+1))
			response.Error(c, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
			c.Abort()
			return
		}

		c.Next()
	}
}
