package main

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// rateLimiter is a fixed-window per-IP counter. Windows reset lazily on
// the first request after expiry, and expired entries for idle clients are
// swept at most once per window so the map does not grow unbounded.
type rateLimiter struct {
	mu        sync.Mutex
	window    time.Duration
	max       int
	clients   map[string]*clientWindow
	nextSweep time.Time
}

type clientWindow struct {
	count     int
	windowEnd time.Time
}

func newRateLimiter(window time.Duration, max int) *rateLimiter {
	return &rateLimiter{
		window:  window,
		max:     max,
		clients: make(map[string]*clientWindow),
	}
}

func (r *rateLimiter) allow(ip string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if now.After(r.nextSweep) {
		for addr, cw := range r.clients {
			if now.After(cw.windowEnd) {
				delete(r.clients, addr)
			}
		}
		r.nextSweep = now.Add(r.window)
	}

	cw, ok := r.clients[ip]
	if !ok || now.After(cw.windowEnd) {
		r.clients[ip] = &clientWindow{count: 1, windowEnd: now.Add(r.window)}
		return true
	}
	if cw.count >= r.max {
		return false
	}
	cw.count++
	return true
}

func rateLimitMiddleware(limiter *rateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limited",
				"message": "Too many requests, slow down.",
			})
			return
		}
		c.Next()
	}
}
