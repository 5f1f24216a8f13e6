package httpx

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/clipshare/pkg/slogx"
	"golang.org/x/time/rate"
)

// RateLimit is a token bucket that refills Requests tokens per Window and
// holds at most Burst.
type RateLimit struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
	Burst    int           `yaml:"burst"`
}

func (l RateLimit) valid() bool {
	return l.Requests > 0 && l.Window > 0 && l.Burst > 0
}

// RateLimits are the per-route budgets of the accounts API.
type RateLimits struct {
	// Credentials covers register, login, refresh-token and change-password.
	// Failed logins are also locked out per account by the service.
	Credentials RateLimit `yaml:"credentials"`
	Writes      RateLimit `yaml:"writes"` // profile and image updates, logout
	Reads       RateLimit `yaml:"reads"`  // current user and health checks
	Public      RateLimit `yaml:"public"` // media and swagger
}

func DefaultRateLimits() RateLimits {
	return RateLimits{
		Credentials: RateLimit{Requests: 10, Window: time.Minute, Burst: 10},
		Writes:      RateLimit{Requests: 20, Window: time.Minute, Burst: 20},
		Reads:       RateLimit{Requests: 100, Window: time.Minute, Burst: 100},
		Public:      RateLimit{Requests: 1000, Window: time.Minute, Burst: 1000},
	}
}

// KeyFunc buckets requests. An empty key skips limiting for that request.
type KeyFunc func(*http.Request) string

// ClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then the
// connection's address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// SubjectKey keys authenticated requests by user id and anonymous ones by
// client IP. Use it behind AuthnMiddleware.
func SubjectKey(r *http.Request) string {
	if id, ok := UserIDFromContext(r.Context()); ok {
		return "user:" + id
	}
	return "ip:" + ClientIP(r)
}

// IPKey keys requests by client IP.
func IPKey(r *http.Request) string {
	return "ip:" + ClientIP(r)
}

// maxKeyBody is how much of a JSON body JSONFieldKey will buffer.
const maxKeyBody = 16 << 10

// JSONFieldKey keys requests by client IP plus the first non-empty string
// among fields in a JSON body, trimmed and lowercased. The body is restored
// for the handler. Bodies that are not JSON objects, or larger than 16 KiB,
// are keyed by IP alone.
func JSONFieldKey(fields ...string) KeyFunc {
	return func(r *http.Request) string {
		key := IPKey(r)
		if r.Body == nil || r.Body == http.NoBody {
			return key
		}

		head, err := io.ReadAll(io.LimitReader(r.Body, maxKeyBody+1))
		r.Body = readCloser{io.MultiReader(bytes.NewReader(head), r.Body), r.Body}
		if err != nil || len(head) > maxKeyBody {
			return key
		}

		var doc map[string]json.RawMessage
		if json.Unmarshal(head, &doc) != nil {
			return key
		}
		for _, f := range fields {
			var v string
			if json.Unmarshal(doc[f], &v) != nil {
				continue
			}
			if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
				return key + "|" + f + ":" + v
			}
		}
		return key
	}
}

type readCloser struct {
	io.Reader
	io.Closer
}

// RateLimitBy returns middleware that answers 429 with a Retry-After header
// once a key's bucket is empty.
func RateLimitBy(limit RateLimit, key KeyFunc) Middleware {
	buckets := newBuckets(limit)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" {
				next.ServeHTTP(w, r)
				return
			}

			wait, ok := buckets.take(k, time.Now())
			if !ok {
				retryAfter := max(int(wait.Round(time.Second)/time.Second), 1)
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				slogx.FromContext(r.Context()).Warn("rate limit exceeded",
					"key", k,
					"path", r.URL.Path,
					"retry_after", retryAfter,
				)
				WriteError(w, http.StatusTooManyRequests, "too many requests, please try again later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// buckets holds one limiter per key. Entries idle for longer than it takes
// to refill a full burst are dropped on the next sweep.
type buckets struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	idle      time.Duration
	entries   map[string]*bucket
	nextSweep time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newBuckets(l RateLimit) *buckets {
	if !l.valid() {
		l = DefaultRateLimits().Public
	}
	every := l.Window / time.Duration(l.Requests)
	return &buckets{
		limit:   rate.Every(every),
		burst:   l.Burst,
		idle:    every * time.Duration(l.Burst),
		entries: make(map[string]*bucket),
	}
}

// take spends a token for key. When none is left it reports how long until
// the next one.
func (b *buckets) take(key string, now time.Time) (time.Duration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if now.After(b.nextSweep) {
		for k, e := range b.entries {
			if now.Sub(e.lastSeen) > b.idle {
				delete(b.entries, k)
			}
		}
		b.nextSweep = now.Add(b.idle)
	}

	e, ok := b.entries[key]
	if !ok {
		e = &bucket{limiter: rate.NewLimiter(b.limit, b.burst)}
		b.entries[key] = e
	}
	e.lastSeen = now

	if e.limiter.AllowN(now, 1) {
		return 0, true
	}
	res := e.limiter.ReserveN(now, 1)
	wait := res.DelayFrom(now)
	res.CancelAt(now)
	return wait, false
}
