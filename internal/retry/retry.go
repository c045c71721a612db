// Package retry wraps fallible store calls with bounded exponential backoff.
// Only transient infrastructure errors are retried; everything else
// propagates immediately.
package retry

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

type Config struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2,
	}
}

func (c Config) normalized() Config {
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 5 * time.Second
	}
	if c.Multiplier < 1 {
		c.Multiplier = 2
	}
	return c
}

// Do runs op up to cfg.MaxAttempts times. The name only labels log output.
func Do(ctx context.Context, name string, cfg Config, op func() error) error {
	_, err := DoValue(ctx, name, cfg, func() (struct{}, error) {
		return struct{}{}, op()
	})
	return err
}

// DoValue is Do for operations that return a value.
func DoValue[T any](ctx context.Context, name string, cfg Config, op func() (T, error)) (T, error) {
	cfg = cfg.normalized()
	delay := cfg.InitialDelay

	var zero T
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		result, err := op()
		if err == nil {
			if attempt > 1 {
				log.Info().Str("op", name).Int("attempt", attempt).Msg("operation recovered after retry")
			}
			return result, nil
		}
		lastErr = err

		if attempt == cfg.MaxAttempts || !IsTransient(err) {
			return zero, err
		}

		log.Warn().Str("op", name).Int("attempt", attempt).Dur("delay", delay).Err(err).
			Msg("transient error, retrying")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	return zero, lastErr
}

// IsTransient reports whether err looks like a temporary network or storage
// failure worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}

	// postgres class 08 = connection exceptions; 57P03 = cannot_connect_now.
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code.Class() == "08" || pqErr.Code == "57P03" {
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	for _, hint := range []string{"timeout", "connection", "network"} {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}
