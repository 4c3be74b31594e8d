package httphandler

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// defaultMaxTracked bounds how many usernames the limiter remembers.
const defaultMaxTracked = 10000

// LoginLimiter throttles login attempts per username so a credential cannot
// be guessed at wire speed. Idle entries are dropped by a background sweep.
// Once maxTracked usernames are tracked, attempts for new usernames are
// refused until idle entries expire.
type LoginLimiter struct {
	limit           rate.Limit
	burst           int
	cleanupInterval time.Duration
	maxTracked      int

	mu       sync.Mutex
	limiters map[string]*usernameLimiter

	stopCh   chan struct{}
	stopOnce sync.Once
}

type usernameLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// NewLoginLimiter allows perMinute attempts per username with an equal burst
// and starts the background cleanup. Call Stop to end it.
func NewLoginLimiter(perMinute int) *LoginLimiter {
	l := &LoginLimiter{
		limit:           rate.Limit(float64(perMinute) / 60.0),
		burst:           perMinute,
		cleanupInterval: 5 * time.Minute,
		maxTracked:      defaultMaxTracked,
		limiters:        make(map[string]*usernameLimiter),
		stopCh:          make(chan struct{}),
	}

	go l.cleanupLoop()

	return l
}

// Allow reports whether another attempt for username may proceed now.
func (l *LoginLimiter) Allow(username string) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	ul, ok := l.limiters[username]
	if !ok {
		if len(l.limiters) >= l.maxTracked {
			l.pruneLocked(now)
			if len(l.limiters) >= l.maxTracked {
				return false
			}
		}
		ul = &usernameLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[username] = ul
	}
	ul.lastAccess = now
	return ul.limiter.AllowN(now, 1)
}

// Stop ends the background cleanup. Safe to call more than once.
func (l *LoginLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

func (l *LoginLimiter) cleanupLoop() {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup(time.Now())
		case <-l.stopCh:
			return
		}
	}
}

func (l *LoginLimiter) cleanup(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pruneLocked(now)
}

// pruneLocked drops entries idle for more than twice the cleanup interval.
// Callers hold l.mu.
func (l *LoginLimiter) pruneLocked(now time.Time) {
	ttl := l.cleanupInterval * 2
	for username, ul := range l.limiters {
		if now.Sub(ul.lastAccess) > ttl {
			delete(l.limiters, username)
		}
	}
}

// writeRateLimitResponse writes a 429 with a Retry-After estimate of the
// seconds until one token is refilled.
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	retryAfterSec := int(math.Ceil(1.0 / float64(r)))
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	writeError(w, http.StatusTooManyRequests, "too many login attempts, try again later")
}
