package compensate

import (
	"context"
	"expvar"
	"time"

	"github.com/airstudent2/Tournament-200-26/internal/config"
	"github.com/airstudent2/Tournament-200-26/internal/events"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

var (
	metricAttempts  = expvar.NewInt("compensation_attempts")
	metricExhausted = expvar.NewInt("compensation_exhausted")
)

// Runner retries corrective actions with bounded exponential backoff. When
// every attempt fails it logs, counts and publishes the failure so an
// operator or the reconciler can finish the job.
type Runner struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Events      events.Publisher
}

func NewRunner(cfg config.SagaConfig, pub events.Publisher) *Runner {
	return &Runner{
		MaxAttempts: cfg.CompensationMaxAttempts,
		BaseDelay:   cfg.CompensationBaseDelay,
		Events:      pub,
	}
}

// Exhausted is the payload of a compensation.exhausted event.
type Exhausted struct {
	Action   string            `json:"action"`
	Attempts int               `json:"attempts"`
	Error    string            `json:"error"`
	Fields   map[string]string `json:"fields,omitempty"`
}

// Do runs fn until it succeeds or attempts run out. fn may return
// backoff.Permanent to stop early.
func (r *Runner) Do(ctx context.Context, action string, fields map[string]string, fn func(ctx context.Context) error) error {
	attempts := r.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	base := r.BaseDelay
	if base <= 0 {
		base = 10 * time.Millisecond
	}
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = base
	exp.Multiplier = 2
	exp.RandomizationFactor = 0.2
	exp.MaxInterval = base * time.Duration(1<<min(attempts, 10))
	exp.MaxElapsedTime = 0
	exp.Reset()
	b := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(attempts-1)), ctx)

	tried := 0
	op := func() error {
		tried++
		metricAttempts.Add(1)
		return fn(ctx)
	}
	notify := func(err error, next time.Duration) {
		ev := log.Warn().Err(err).Str("action", action).Int("attempt", tried).Dur("retry_in", next)
		for k, v := range fields {
			ev = ev.Str(k, v)
		}
		ev.Msg("compensation attempt failed")
	}
	err := backoff.RetryNotify(op, b, notify)
	if err == nil {
		return nil
	}

	metricExhausted.Add(1)
	ev := log.Error().Err(err).Str("action", action).Int("attempts", tried)
	for k, v := range fields {
		ev = ev.Str(k, v)
	}
	ev.Msg("compensation exhausted")
	events.Emit(context.WithoutCancel(ctx), r.Events, events.SubjectCompensationExhausted, Exhausted{
		Action:   action,
		Attempts: tried,
		Error:    err.Error(),
		Fields:   fields,
	})
	return err
}
