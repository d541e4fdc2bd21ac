package logging

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// everyLimiter remembers when each key last logged, bounded to max keys.
type everyLimiter struct {
	mu   sync.Mutex
	last map[string]time.Time
	max  int
}

var every = &everyLimiter{last: map[string]time.Time{}, max: 512}

// LogEvery emits at most one record per key per interval. Poll loops use it
// for repeated host failures.
func LogEvery(ctx context.Context, key string, interval time.Duration, level slog.Level, msg string, attrs ...slog.Attr) {
	if !slog.Default().Enabled(ctx, level) {
		return
	}
	if key != "" && interval > 0 && !every.allow(key, interval, time.Now()) {
		return
	}
	slog.LogAttrs(ctx, level, msg, attrs...)
}

func (l *everyLimiter) allow(key string, interval time.Duration, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if last, ok := l.last[key]; ok && now.Sub(last) < interval {
		return false
	}
	l.last[key] = now
	if len(l.last) > l.max {
		l.prune()
	}
	return true
}

func (l *everyLimiter) prune() {
	keys := make([]string, 0, len(l.last))
	for k := range l.last {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return l.last[keys[i]].Before(l.last[keys[j]]) })
	for _, k := range keys[:len(keys)-l.max] {
		delete(l.last, k)
	}
}
