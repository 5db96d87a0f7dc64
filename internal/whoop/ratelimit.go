// ABOUTME: Sliding-window rate limiter for the vendor API quota.
// ABOUTME: Per-minute window, per-day counter, fixed request spacing.
package whoop

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Vendor quota: 100 requests per minute, 10,000 per day. The spacing
// limiter keeps a 600ms gap between requests as a safety margin under
// the per-minute cap.
const (
	perMinuteLimit     = 100
	perDayLimit        = 10000
	minRequestInterval = 600 * time.Millisecond
)

// Limiter enforces the vendor's request quotas. One Limiter is shared
// by every fetch made through a client instance, including concurrent
// syncs for different users, so all state is mutex-guarded.
type Limiter struct {
	mu         sync.Mutex
	perMinute  int
	perDay     int
	window     []time.Time
	dailyCount int
	dayReset   time.Time

	pacer *rate.Limiter

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewLimiter returns a limiter configured for the vendor quotas.
func NewLimiter() *Limiter {
	l := &Limiter{
		perMinute: perMinuteLimit,
		perDay:    perDayLimit,
		pacer:     rate.NewLimiter(rate.Every(minRequestInterval), 1),
		now:       time.Now,
		sleep:     sleepContext,
	}
	l.dayReset = nextUTCMidnight(l.now())
	return l
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextUTCMidnight(now time.Time) time.Time {
	utc := now.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
}

// Wait blocks until a request may be sent without breaching any quota:
// the daily cap (sleeping to the next UTC midnight if exhausted), then
// the one-minute sliding window, then the fixed inter-request spacing.
// The request slot is claimed before Wait returns.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	now := l.now()

	if !now.Before(l.dayReset) {
		l.dailyCount = 0
		l.dayReset = nextUTCMidnight(now)
	}
	// Re-check after every sleep: another goroutine blocked on the same
	// cap may have claimed the freed slot while the mutex was released.
	for l.dailyCount >= l.perDay {
		wait := l.dayReset.Sub(now) + time.Second
		l.mu.Unlock()
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
		l.mu.Lock()
		now = l.now()
		if !now.Before(l.dayReset) {
			l.dailyCount = 0
			l.dayReset = nextUTCMidnight(now)
		}
	}

	l.prune(now)
	for len(l.window) >= l.perMinute {
		wait := l.window[0].Add(time.Minute).Sub(now) + 100*time.Millisecond
		l.mu.Unlock()
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
		l.mu.Lock()
		now = l.now()
		l.prune(now)
	}

	l.window = append(l.window, now)
	l.dailyCount++
	l.mu.Unlock()

	return l.pacer.Wait(ctx)
}

// prune drops window timestamps older than one minute. Caller holds mu.
func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-time.Minute)
	i := 0
	for i < len(l.window) && !l.window[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.window = append(l.window[:0], l.window[i:]...)
	}
}
