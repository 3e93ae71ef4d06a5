// Package retry runs fallible operations with bounded attempts and an
// optional doubling delay between them.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// Options controls how an operation is retried.
type Options struct {
	MaxAttempts int
	Delay       time.Duration
	Backoff     bool
}

// DefaultOptions matches the behaviour used for artifact writes and email
// dispatch: three attempts, one second apart, doubling each time.
var DefaultOptions = Options{
	MaxAttempts: 3,
	Delay:       time.Second,
	Backoff:     true,
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultOptions.MaxAttempts
	}
	if o.Delay < 0 {
		o.Delay = 0
	}
	return o
}

func (o Options) policy(ctx context.Context) backoff.BackOff {
	var b backoff.BackOff
	if o.Backoff {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = o.Delay
		eb.Multiplier = 2
		eb.RandomizationFactor = 0
		eb.MaxInterval = o.Delay << uint(min(o.MaxAttempts, 16))
		eb.MaxElapsedTime = 0
		eb.Reset()
		b = eb
	} else {
		b = backoff.NewConstantBackOff(o.Delay)
	}
	b = backoff.WithMaxRetries(b, uint64(o.MaxAttempts-1))
	return backoff.WithContext(b, ctx)
}

// Do invokes fn until it succeeds, returns a Permanent error, the attempts
// are exhausted or ctx is done. The last error is returned.
func Do(ctx context.Context, opts Options, op string, fn func(ctx context.Context) error) error {
	_, err := DoValue(ctx, opts, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, opts Options, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	opts = opts.withDefaults()

	attempt := 0
	var result T
	operation := func() error {
		attempt++
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	}
	notify := func(err error, next time.Duration) {
		log.Warn().
			Err(err).
			Str("component", "retry").
			Str("op", op).
			Int("attempt", attempt).
			Int("max_attempts", opts.MaxAttempts).
			Dur("next_delay", next).
			Msg("Attempt failed, retrying")
	}

	if err := backoff.RetryNotify(operation, opts.policy(ctx), notify); err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}
