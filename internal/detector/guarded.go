package detector

import (
	"context"
	"log/slog"
	"time"

	"github.com/eapache/go-resiliency/breaker"
)

// ErrBreakerOpen is returned while the breaker rejects calls.
var ErrBreakerOpen = breaker.ErrBreakerOpen

// Guarded bounds every call with a timeout and stops calling a detector
// that keeps failing until the cooldown passes.
type Guarded struct {
	next    Detector
	timeout time.Duration
	breaker *breaker.Breaker
	logger  *slog.Logger
}

type GuardOptions struct {
	Timeout          time.Duration
	ErrorThreshold   int
	SuccessThreshold int
	Cooldown         time.Duration
}

func NewGuarded(next Detector, opts GuardOptions, logger *slog.Logger) *Guarded {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.ErrorThreshold <= 0 {
		opts.ErrorThreshold = 5
	}
	if opts.SuccessThreshold <= 0 {
		opts.SuccessThreshold = 1
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = 30 * time.Second
	}
	return &Guarded{
		next:    next,
		timeout: opts.Timeout,
		breaker: breaker.New(opts.ErrorThreshold, opts.SuccessThreshold, opts.Cooldown),
		logger:  logger,
	}
}

func (g *Guarded) Classify(ctx context.Context, segment []byte) (*Result, error) {
	var result *Result
	err := g.breaker.Run(func() error {
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		r, err := g.next.Classify(callCtx, segment)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		if err == breaker.ErrBreakerOpen {
			g.logger.Debug("Detector breaker open, skipping segment")
		}
		return nil, err
	}
	return result, nil
}
