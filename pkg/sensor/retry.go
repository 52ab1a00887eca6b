package sensor

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/ericogr/adt7410-to-mqtt/pkg/adt7410"
	"github.com/ericogr/adt7410-to-mqtt/pkg/i2cbus"
)

// RetryPolicy controls ReadWithRetry. The bus itself never retries.
type RetryPolicy struct {
	MaxRetries int
	Initial    time.Duration
}

// ReadWithRetry reads s, retrying failed reads with exponential backoff up to
// p.MaxRetries times or until ctx is done. Argument and framing errors are
// returned immediately.
func ReadWithRetry(ctx context.Context, s Sensor, p RetryPolicy) ([]Reading, error) {
	if p.MaxRetries <= 0 {
		return s.Read()
	}
	var out []Reading
	op := func() error {
		r, err := s.Read()
		if err != nil {
			if permanent(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		out = r
		return nil
	}
	eb := backoff.NewExponentialBackOff()
	if p.Initial > 0 {
		eb.InitialInterval = p.Initial
	}
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(p.MaxRetries)), ctx)
	err := backoff.RetryNotify(op, b, func(err error, next time.Duration) {
		log.Printf("read failed, retrying in %s: %v", next.Round(time.Millisecond), err)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func permanent(err error) bool {
	return errors.Is(err, i2cbus.ErrInvalidAddress) ||
		errors.Is(err, i2cbus.ErrInvalidLength) ||
		errors.Is(err, adt7410.ErrTooShort)
}
