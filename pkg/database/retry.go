package database

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Retrier re-runs operations that lost a SQLite lock race, backing off
// exponentially with jitter. A nil Retrier runs the operation once.
type Retrier struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

func NewRetrier(maxRetries int) *Retrier {
	return &Retrier{
		MaxRetries: maxRetries,
		BaseDelay:  50 * time.Millisecond,
		MaxDelay:   2 * time.Second,
	}
}

func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if r == nil {
		return fn(ctx)
	}

	var err error
	for attempt := 0; attempt <= r.MaxRetries; attempt++ {
		err = fn(ctx)
		if err == nil || !IsBusy(err) || attempt == r.MaxRetries {
			return err
		}

		select {
		case <-ctx.Done():
			return errors.WithStack(ctx.Err())
		case <-time.After(r.delay(attempt)):
		}
	}
	return err
}

func (r *Retrier) delay(attempt int) time.Duration {
	d := r.BaseDelay << attempt
	if d <= 0 || d > r.MaxDelay {
		d = r.MaxDelay
	}
	if q := int64(d / 4); q > 0 {
		d += time.Duration(rand.Int63n(q))
	}
	if d > r.MaxDelay {
		d = r.MaxDelay
	}
	return d
}

// IsBusy reports whether err is SQLite lock contention. Both the cgo and
// pure-Go drivers are matched by message since they share no error type.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, pattern := range []string{
		"database is locked",
		"database table is locked",
		"SQLITE_BUSY",
		"SQLITE_LOCKED",
		"(5)",
		"(6)",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
