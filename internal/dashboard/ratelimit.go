package dashboard

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// ipLimiter keeps one token bucket per client IP.
type ipLimiter struct {
	mu  sync.RWMutex
	ips map[string]*rate.Limiter
	r   rate.Limit
	b   int
}

func newIPLimiter(r rate.Limit, b int) *ipLimiter {
	return &ipLimiter{ips: make(map[string]*rate.Limiter), r: r, b: b}
}

func (l *ipLimiter) get(ip string) *rate.Limiter {
	l.mu.RLock()
	lim, ok := l.ips[ip]
	l.mu.RUnlock()
	if ok {
		return lim
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.ips[ip]; ok {
		return lim
	}
	lim = rate.NewLimiter(l.r, l.b)
	l.ips[ip] = lim
	return lim
}

// RateLimiter rejects requests beyond r per second (burst b) from one
// client IP with 429.
func RateLimiter(r rate.Limit, b int) gin.HandlerFunc {
	limiter := newIPLimiter(r, b)
	return func(c *gin.Context) {
		if !limiter.get(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
