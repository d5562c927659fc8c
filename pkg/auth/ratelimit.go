package auth

import (
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RegistrationLimiter caps how many parties a single IP can register per
// rolling window. It keeps the timestamps of recent admitted attempts per
// IP and prunes anything older than the window, so the cap holds over any
// window-sized span rather than refilling gradually.
type RegistrationLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	max      int
	window   time.Duration
	clock    func() time.Time
}

// NewRegistrationLimiter allows max registrations per rolling window from
// one IP.
func NewRegistrationLimiter(max int, window time.Duration) *RegistrationLimiter {
	rl := &RegistrationLimiter{
		requests: make(map[string][]time.Time),
		max:      max,
		window:   window,
		clock:    time.Now,
	}
	go rl.cleanup()
	return rl
}

// WithClock overrides the clock for tests.
func (rl *RegistrationLimiter) WithClock(clock func() time.Time) *RegistrationLimiter {
	rl.clock = clock
	return rl
}

// Allow reports whether the given remote address may register now and
// records the attempt when it may. Denied attempts are not recorded.
func (rl *RegistrationLimiter) Allow(remoteAddr string) bool {
	ip := ClientIP(remoteAddr)
	now := rl.clock()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	recent := pruneOlder(rl.requests[ip], now.Add(-rl.window))
	if len(recent) >= rl.max {
		rl.requests[ip] = recent
		return false
	}
	rl.requests[ip] = append(recent, now)
	return true
}

func pruneOlder(ts []time.Time, cutoff time.Time) []time.Time {
	kept := ts[:0]
	for _, t := range ts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}

// cleanup drops IPs whose every attempt has aged out of the window.
// Checks every minute.
func (rl *RegistrationLimiter) cleanup() {
	for {
		time.Sleep(1 * time.Minute)
		now := rl.clock()
		rl.mu.Lock()
		for ip, ts := range rl.requests {
			if kept := pruneOlder(ts, now.Add(-rl.window)); len(kept) == 0 {
				delete(rl.requests, ip)
			} else {
				rl.requests[ip] = kept
			}
		}
		rl.mu.Unlock()
	}
}

// Reset drops all recorded attempts. Demo only.
func (rl *RegistrationLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.requests = make(map[string][]time.Time)
}

// GlobalRateLimiter smooths overall request load per client IP with a
// token bucket. Burst absorbs short spikes; sustained traffic beyond the
// refill rate is rejected. Registration has its own stricter limiter.
type GlobalRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewGlobalRateLimiter allows rps sustained requests per IP with the
// given burst.
func NewGlobalRateLimiter(rps float64, burst int) *GlobalRateLimiter {
	g := &GlobalRateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(rps),
		burst:    burst,
	}
	go g.cleanupVisitors()
	return g
}

// Allow reports whether the given remote address is within its budget.
func (g *GlobalRateLimiter) Allow(remoteAddr string) bool {
	return g.getVisitor(ClientIP(remoteAddr)).Allow()
}

func (g *GlobalRateLimiter) getVisitor(ip string) *rate.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()

	v, exists := g.visitors[ip]
	if !exists {
		limiter := rate.NewLimiter(g.limit, g.burst)
		g.visitors[ip] = &visitor{limiter, time.Now()}
		return limiter
	}
	v.lastSeen = time.Now()
	return v.limiter
}

// cleanupVisitors removes stale visitor entries to prevent memory leaks.
// Checks every minute, removes entries older than 3 minutes.
func (g *GlobalRateLimiter) cleanupVisitors() {
	for {
		time.Sleep(1 * time.Minute)
		g.mu.Lock()
		for ip, v := range g.visitors {
			if time.Since(v.lastSeen) > 3*time.Minute {
				delete(g.visitors, ip)
			}
		}
		g.mu.Unlock()
	}
}

// ClientIP extracts the host part of a RemoteAddr, tolerating addresses
// without a port and bracketed IPv6 literals.
func ClientIP(remoteAddr string) string {
	ip, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		ip = strings.TrimSuffix(strings.TrimPrefix(remoteAddr, "["), "]")
	}
	return ip
}
