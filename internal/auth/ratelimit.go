package auth

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"relay/internal/api"
)

type window struct {
	count   int
	resetAt time.Time
}

// RateLimiter is a per-user sliding fixed-window counter. Counters live in
// process memory only; a background sweep drops expired entries so the map
// stays bounded by the number of users active within one window.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*window

	max    int
	length time.Duration

	stop chan struct{}
	once sync.Once
}

// NewRateLimiter creates a limiter allowing max requests per window length
// and starts its sweep loop.
func NewRateLimiter(max int, length time.Duration) *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*window),
		max:      max,
		length:   length,
		stop:     make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

// Allow records a request for the given key. When the limit is exceeded it
// returns false and the time remaining until the window resets.
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.visitors[key]
	if !ok || now.After(w.resetAt) {
		rl.visitors[key] = &window{count: 1, resetAt: now.Add(rl.length)}
		return true, 0
	}

	if w.count >= rl.max {
		return false, time.Until(w.resetAt)
	}

	w.count++
	return true, 0
}

// Stop terminates the sweep loop.
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(rl.length)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case now := <-ticker.C:
			rl.mu.Lock()
			for key, w := range rl.visitors {
				if now.After(w.resetAt) {
					delete(rl.visitors, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// LimitByUser applies the limiter to the authenticated identity. Requests
// without an identity pass through; RequireAuth in front of this middleware
// keeps anonymous traffic out of limited endpoints.
func (rl *RateLimiter) LimitByUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := IdentityFromContext(r.Context())
		if identity == nil {
			next.ServeHTTP(w, r)
			return
		}

		ok, retryAfter := rl.Allow(identity.UserID)
		if !ok {
			seconds := int(retryAfter.Seconds() + 0.5)
			if seconds < 1 {
				seconds = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
			api.JSON(w, http.StatusTooManyRequests, api.Response{
				Success:    false,
				Message:    "Too many requests. Please try again later.",
				Error:      "RATE_LIMIT_EXCEEDED",
				RetryAfter: seconds,
			})
			return
		}

		next.ServeHTTP(w, r)
	}
}
