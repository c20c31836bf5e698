package server

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/54b3r/resumechat/internal/logging"
)

const (
	// defaultRateLimit is the sustained requests/second allowed per client on
	// /upload and /chat.
	defaultRateLimit = 10
	// defaultRateBurst is the per-client burst allowance.
	defaultRateBurst = 20
	// limiterIdleTTL is how long a client's bucket survives without traffic.
	limiterIdleTTL = 5 * time.Minute
	// limiterSweepEvery is the eviction cadence.
	limiterSweepEvery = time.Minute
)

// bucket is one client's token bucket plus its last use.
type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// rateLimiter throttles each client independently. Buckets idle for longer
// than limiterIdleTTL are swept so the map stays bounded.
type rateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
	// trustProxy selects the first X-Forwarded-For hop as the client key.
	trustProxy bool
	// onReject is called once per rejected request. May be nil.
	onReject func(r *http.Request)
	log      *slog.Logger
	now      func() time.Time
}

// newRateLimiter builds a limiter and starts its sweeper. The returned stop
// function ends the sweeper and is safe to call once.
func newRateLimiter(rps float64, burst int, log *slog.Logger) (*rateLimiter, func()) {
	rl := &rateLimiter{
		buckets: make(map[string]*bucket),
		limit:   rate.Limit(rps),
		burst:   burst,
		log:     log,
		now:     time.Now,
	}

	done := make(chan struct{})
	go func() {
		t := time.NewTicker(limiterSweepEvery)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				rl.sweep()
			}
		}
	}()

	var once sync.Once
	return rl, func() { once.Do(func() { close(done) }) }
}

// take consumes one token for key. When the bucket is empty it returns
// false and how long until a token is available.
func (rl *rateLimiter) take(key string) (bool, time.Duration) {
	now := rl.now()

	rl.mu.Lock()
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	rl.mu.Unlock()

	res := b.lim.ReserveN(now, 1)
	if !res.OK() {
		return false, time.Second
	}
	delay := res.DelayFrom(now)
	if delay == 0 {
		return true, 0
	}
	// Give the token back; rejected requests must not drain the bucket.
	res.CancelAt(now)
	return false, delay
}

// sweep drops buckets idle for longer than limiterIdleTTL.
func (rl *rateLimiter) sweep() {
	cutoff := rl.now().Add(-limiterIdleTTL)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, key)
		}
	}
}

// size returns the number of tracked clients.
func (rl *rateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// middleware rejects over-limit requests with 429, a Retry-After header in
// whole seconds, and a JSON error body.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r, rl.trustProxy)
		ok, wait := rl.take(key)
		if ok {
			next.ServeHTTP(w, r)
			return
		}

		logging.FromContext(r.Context()).Warn("rate limit exceeded",
			slog.String("client", key),
			slog.Duration("retry_after", wait),
		)
		if rl.onReject != nil {
			rl.onReject(r)
		}
		secs := int(math.Ceil(wait.Seconds()))
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
	})
}

// clientKey identifies the caller. Without trustProxy it is the TCP peer
// address; with it, the left-most X-Forwarded-For entry when present.
func clientKey(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
