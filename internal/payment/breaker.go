package payment

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// ErrCircuitOpen is returned without calling the provider while the breaker is open
var ErrCircuitOpen = errors.New("payment processor circuit open")

// BreakerConfig tunes the circuit breaker around a Processor
type BreakerConfig struct {
	Name             string
	FailureThreshold uint32        // consecutive failures before opening
	Timeout          time.Duration // open -> half-open delay
}

type breakerProcessor struct {
	next    Processor
	breaker *gobreaker.CircuitBreaker[*CheckoutSession]
}

// NewBreakerProcessor wraps next in a circuit breaker that opens after
// FailureThreshold consecutive errors.
func NewBreakerProcessor(next Processor, cfg BreakerConfig, logger *zap.Logger) Processor {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Payment circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		// a cancelled request says nothing about the provider's health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}

	return &breakerProcessor{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[*CheckoutSession](settings),
	}
}

func (p *breakerProcessor) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	session, err := p.breaker.Execute(func() (*CheckoutSession, error) {
		return p.next.CreateCheckoutSession(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrCircuitOpen
	}
	return session, err
}
