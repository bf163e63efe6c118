package database

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// baseBackoff is doubled after every failed attempt: 1s, 2s, 4s, 8s, ...
var baseBackoff = time.Second

// withRetry runs connect until it succeeds, the attempts run out or ctx is done.
// At least one attempt is always made.
func withRetry(ctx context.Context, target string, maxRetries int, connect func(context.Context) error) error {
	attempts := maxRetries
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = connect(ctx); err == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}

		backoff := baseBackoff << attempt
		log.Warn().
			Err(err).
			Str("target", target).
			Int("attempt", attempt+1).
			Int("max_retries", maxRetries).
			Dur("next_retry_in", backoff).
			Msg("connection failed, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	return fmt.Errorf("%s: failed to connect after %d attempts: %w", target, attempts, err)
}
