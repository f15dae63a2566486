package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"
)

// maxTrackedOrgs caps the number of buckets held at once.
const maxTrackedOrgs = 4096

type orgBucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// orgLimiter keeps one token bucket per organization so a tenant running a
// large import cannot starve the others. A bucket that has refilled is
// indistinguishable from a new one, so full buckets are dropped once the
// map reaches its cap.
type orgLimiter struct {
	mu      sync.Mutex
	buckets map[string]*orgBucket
	limit   rate.Limit
	burst   int
	max     int
	nowFunc func() time.Time
}

func newOrgLimiter(limit rate.Limit, burst int) *orgLimiter {
	return &orgLimiter{
		buckets: make(map[string]*orgBucket),
		limit:   limit,
		burst:   burst,
		max:     maxTrackedOrgs,
		nowFunc: time.Now,
	}
}

func (l *orgLimiter) allow(orgID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	b, ok := l.buckets[orgID]
	if !ok {
		if len(l.buckets) >= l.max {
			l.evict(now)
		}
		b = &orgBucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[orgID] = b
	}
	b.lastSeen = now
	return b.lim.AllowN(now, 1)
}

// evict drops every refilled bucket. When all buckets are still draining,
// the least recently seen one goes.
func (l *orgLimiter) evict(now time.Time) {
	var (
		oldestID string
		oldest   time.Time
	)
	for id, b := range l.buckets {
		if b.lim.TokensAt(now) >= float64(l.burst) {
			delete(l.buckets, id)
			continue
		}
		if oldestID == "" || b.lastSeen.Before(oldest) {
			oldestID, oldest = id, b.lastSeen
		}
	}
	if len(l.buckets) >= l.max && oldestID != "" {
		delete(l.buckets, oldestID)
	}
}

func (l *orgLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *orgLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(chi.URLParam(r, "orgID")) {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
