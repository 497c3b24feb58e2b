// Package payment creates hosted checkout sessions for orders.
package payment

import (
	"context"

	"marketplace/internal/config"

	"go.uber.org/zap"
)

// CheckoutRequest describes a single-line-item hosted checkout
type CheckoutRequest struct {
	Currency   string
	ItemTitle  string
	UnitAmount int64 // minor units
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string
}

// CheckoutSession is the processor's answer to a CheckoutRequest
type CheckoutSession struct {
	ID  string
	URL string
}

// Processor creates checkout sessions with an external payment provider
type Processor interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
}

// FromConfig builds the configured processor wrapped in a circuit breaker.
// It returns nil when no secret key is set, which callers treat as demo mode.
func FromConfig(cfg config.PaymentConfig, logger *zap.Logger) Processor {
	if !cfg.Enabled() {
		logger.Warn("Payment processor not configured, orders run in demo mode")
		return nil
	}

	return NewBreakerProcessor(
		NewStripeProcessor(cfg.StripeSecretKey),
		BreakerConfig{
			Name:             "stripe-checkout",
			FailureThreshold: cfg.BreakerFailures,
			Timeout:          cfg.BreakerTimeout,
		},
		logger,
	)
}
