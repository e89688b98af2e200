package ratelimit

import (
	"context"
	"sync"
	"time"
)

// memorySweepEvery is the number of Allow calls between stale window sweeps.
const memorySweepEvery = 1024

type memoryWindow struct {
	start int64
	used  int
}

// MemoryLimiter counts requests per key in fixed one-second windows held in process memory.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow
	calls   int
}

// NewMemoryLimiter constructs an empty MemoryLimiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{windows: make(map[string]*memoryWindow)}
}

// Allow consumes one request from the window containing now.
func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int, now time.Time) (Result, error) {
	if l == nil || limit <= 0 || key == "" {
		return Result{Allowed: true}, nil
	}
	start := now.Unix()
	reset := time.Unix(start+1, 0).UTC()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.calls++
	if l.calls >= memorySweepEvery {
		l.calls = 0
		l.sweep(start)
	}

	w, ok := l.windows[key]
	if !ok || w.start != start {
		w = &memoryWindow{start: start}
		l.windows[key] = w
	}
	if w.used >= limit {
		return Result{Allowed: false, Reset: reset}, nil
	}
	w.used++
	return Result{Allowed: true, Remaining: limit - w.used, Reset: reset}, nil
}

// Len reports the number of tracked keys.
func (l *MemoryLimiter) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// sweep drops windows older than current. Callers hold l.mu.
func (l *MemoryLimiter) sweep(current int64) {
	for key, w := range l.windows {
		if w.start < current {
			delete(l.windows, key)
		}
	}
}
