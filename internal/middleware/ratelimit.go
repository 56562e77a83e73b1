package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const visitorTTL = 3 * time.Minute

// RateLimiter ограничивает число запросов с одного IP за минуту (token bucket).
type RateLimiter struct {
	mu          sync.Mutex
	visitors    map[string]*visitor
	limit       rate.Limit
	burst       int
	exempt      map[string]struct{}
	lastCleanup time.Time
	now         func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter создаёт ограничитель на perMinute запросов в минуту с одного IP.
// Пути из exempt не ограничиваются.
func NewRateLimiter(perMinute int, exempt ...string) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 100
	}
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
		exempt:   make(map[string]struct{}, len(exempt)),
		now:      time.Now,
	}
	for _, p := range exempt {
		rl.exempt[p] = struct{}{}
	}
	return rl
}

// Middleware отклоняет запросы сверх лимита ответом 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := rl.exempt[r.URL.Path]; ok {
			next.ServeHTTP(w, r)
			return
		}

		now := rl.now()
		lim := rl.visitor(ClientIP(r), now)

		allowed := lim.AllowN(now, 1)
		remaining := int(math.Max(0, math.Floor(lim.TokensAt(now))))

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.burst))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			retry := int(math.Ceil(time.Duration(float64(time.Second) / float64(rl.limit)).Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(max(retry, 1)))
			writeError(w, http.StatusTooManyRequests, "rate_limited", "Too many requests, try again later")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) visitor(ip string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastCleanup) > time.Minute {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) > visitorTTL {
				delete(rl.visitors, k)
			}
		}
		rl.lastCleanup = now
	}

	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter
}
