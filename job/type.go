package job

import (
	"context"
	"time"

	"recurpay/lnurl"
	"recurpay/node"
)

// Error marks the class of a failure so callers can test it with errors.Is.
type Error string

func (e Error) Error() string { return string(e) }

// ErrInvalidDefinition is returned by New for a definition that can never run:
// bad cron expression, non positive amount, negative max fee.
const ErrInvalidDefinition = Error("invalid job definition")

// Schedule describes a job's execute cycle.
type Schedule interface {
	// Next returns the first activation strictly later than the given time,
	// or the zero time when the schedule has no further activation.
	Next(time.Time) time.Time
}

// Negotiator obtains an invoice from a payee endpoint.
type Negotiator interface {
	Invoice(ctx context.Context, endpoint string, amountSats int64, memo string) (lnurl.Invoice, error)
}

// Payer pays an invoice through the payment node.
type Payer interface {
	Pay(ctx context.Context, payment node.Payment) (node.Outcome, error)
}

// Publisher ships encoded firing events, see mq.Producer.
type Publisher interface {
	Product(ctx context.Context, value []byte) error
}
