package channel

import (
	"context"
	"fmt"
	"time"
)

type Settings struct {
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration
	Multiplier       float64
	MaxRetries       int
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		InitialBackoff:   500 * time.Millisecond,
		MaxBackoff:       30 * time.Second,
		Multiplier:       2,
		MaxRetries:       8,
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
	}
}

// Backoff returns the wait before retry number attempt (0 based).
func (s Settings) Backoff(attempt int) time.Duration {
	d := float64(s.InitialBackoff)
	mult := s.Multiplier
	if mult < 1 {
		mult = 1
	}
	for i := 0; i < attempt; i++ {
		d *= mult
		if s.MaxBackoff > 0 && d >= float64(s.MaxBackoff) {
			return s.MaxBackoff
		}
	}
	if s.MaxBackoff > 0 && time.Duration(d) > s.MaxBackoff {
		return s.MaxBackoff
	}
	return time.Duration(d)
}

// Run keeps the channel connected until ctx is done. A dropped connection
// is re-dialled with exponential backoff; once MaxRetries consecutive
// attempts fail Run returns ErrGaveUp. MaxRetries <= 0 retries forever.
func (c *Channel) Run(ctx context.Context) error {
	failures := 0
	for {
		done, err := c.Open(ctx)
		if err == nil {
			failures = 0
			err = <-done
		} else {
			failures++
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if c.settings.MaxRetries > 0 && failures > c.settings.MaxRetries {
			return fmt.Errorf("%w after %d attempts: %v", ErrGaveUp, failures, err)
		}

		wait := c.settings.Backoff(max(failures-1, 0))
		c.logger.Warn("connection lost, reconnecting", "err", err, "in", wait, "attempt", failures)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
