package limits

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
)

// ConnectionLimiter caps concurrent connections per IP address.
type ConnectionLimiter struct {
	maxPerIP    int
	connections sync.Map // ip -> *atomic.Int32

	totalBlocked atomic.Int64
	totalAllowed atomic.Int64
}

// NewConnectionLimiter creates a per-IP connection limiter.
func NewConnectionLimiter(maxPerIP int) *ConnectionLimiter {
	if maxPerIP <= 0 {
		maxPerIP = 16
	}
	return &ConnectionLimiter{
		maxPerIP: maxPerIP,
	}
}

// Acquire claims a slot for an IP. Returns false when the IP is at its
// cap.
func (cl *ConnectionLimiter) Acquire(ip string) bool {
	counter, _ := cl.connections.LoadOrStore(ip, &atomic.Int32{})
	c := counter.(*atomic.Int32)

	for {
		cur := c.Load()
		if int(cur) >= cl.maxPerIP {
			cl.totalBlocked.Add(1)
			return false
		}
		if c.CompareAndSwap(cur, cur+1) {
			cl.totalAllowed.Add(1)
			return true
		}
	}
}

// Release frees a slot for an IP.
func (cl *ConnectionLimiter) Release(ip string) {
	if counter, ok := cl.connections.Load(ip); ok {
		c := counter.(*atomic.Int32)
		if c.Add(-1) <= 0 {
			cl.connections.Delete(ip)
		}
	}
}

// Count returns the live connection count for an IP.
func (cl *ConnectionLimiter) Count(ip string) int {
	if counter, ok := cl.connections.Load(ip); ok {
		return int(counter.(*atomic.Int32).Load())
	}
	return 0
}

// TotalBlocked returns how many acquisitions were rejected.
func (cl *ConnectionLimiter) TotalBlocked() int64 {
	return cl.totalBlocked.Load()
}

// TotalAllowed returns how many acquisitions succeeded.
func (cl *ConnectionLimiter) TotalAllowed() int64 {
	return cl.totalAllowed.Load()
}

// GlobalConnectionLimiter caps total concurrent connections.
type GlobalConnectionLimiter struct {
	max     int32
	current atomic.Int32
}

// NewGlobalConnectionLimiter creates a global connection limiter.
func NewGlobalConnectionLimiter(max int) *GlobalConnectionLimiter {
	return &GlobalConnectionLimiter{
		max: int32(max),
	}
}

// Acquire claims a slot. Returns false at capacity.
func (gl *GlobalConnectionLimiter) Acquire() bool {
	for {
		cur := gl.current.Load()
		if cur >= gl.max {
			return false
		}
		if gl.current.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// Release frees a slot.
func (gl *GlobalConnectionLimiter) Release() {
	gl.current.Add(-1)
}

// Count returns the live connection count.
func (gl *GlobalConnectionLimiter) Count() int {
	return int(gl.current.Load())
}

// Available returns the number of free slots.
func (gl *GlobalConnectionLimiter) Available() int {
	return int(gl.max - gl.current.Load())
}

// CompositeConnectionLimiter enforces both the per-IP and the global
// cap. The websocket endpoint admits sessions through one of these.
type CompositeConnectionLimiter struct {
	perIP  *ConnectionLimiter
	global *GlobalConnectionLimiter
}

// NewCompositeConnectionLimiter creates a limiter enforcing both caps.
func NewCompositeConnectionLimiter(maxPerIP, maxGlobal int) *CompositeConnectionLimiter {
	return &CompositeConnectionLimiter{
		perIP:  NewConnectionLimiter(maxPerIP),
		global: NewGlobalConnectionLimiter(maxGlobal),
	}
}

// Acquire claims a slot under both caps, or neither.
func (cl *CompositeConnectionLimiter) Acquire(ip string) bool {
	if !cl.global.Acquire() {
		return false
	}
	if !cl.perIP.Acquire(ip) {
		cl.global.Release()
		return false
	}
	return true
}

// Release frees both slots.
func (cl *CompositeConnectionLimiter) Release(ip string) {
	cl.perIP.Release(ip)
	cl.global.Release()
}

// Count returns the global live connection count.
func (cl *CompositeConnectionLimiter) Count() int {
	return cl.global.Count()
}

// Middleware returns HTTP middleware that holds a connection slot for
// the duration of each request.
func (cl *CompositeConnectionLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			if !cl.Acquire(ip) {
				http.Error(w, "Too Many Connections", http.StatusTooManyRequests)
				return
			}
			defer cl.Release(ip)

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP extracts the client IP from a request, honoring
// X-Forwarded-For and X-Real-IP before falling back to RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
