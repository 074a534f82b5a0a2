package node

import (
	"context"
	"io"
	"time"

	"recurpay/lnurl"
	"recurpay/metrics"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

const (
	// PaymentTimeout is how long the node may spend finding a route.
	PaymentTimeout = 30 * time.Second

	// FallbackFeePercent caps routing fees, as a percentage of the amount,
	// for jobs that configure no max fee. Earlier releases used 5.
	FallbackFeePercent = 1
)

// Payment is one invoice to pay on behalf of a job.
type Payment struct {
	// Job names the job for logging.
	Job        string
	Invoice    lnurl.Invoice
	AmountSats int64
	// MaxFeeSats overrides the fallback fee ceiling when set.
	MaxFeeSats *int64
}

// Outcome is the classification of the last update of a payment stream.
type Outcome struct {
	Status        Status
	FailureReason string
	// Updates counts the entries received from the stream.
	Updates int
}

// FeeLimit returns the fee ceiling in satoshi for a payment.
func FeeLimit(amountSats int64, maxFeeSats *int64) int64 {
	if maxFeeSats != nil {
		return *maxFeeSats
	}
	// ceil(amount * pct / 100)
	return (amountSats*FallbackFeePercent + 99) / 100
}

// Payer submits invoices to the payment node. A new connection is opened for
// every payment so concurrent firings share no connection state.
type Payer struct {
	dial   Dialer
	cfg    ConnectionConfig
	logger *zap.Logger
}

// NewPayer creates a Payer.
func NewPayer(dial Dialer, cfg ConnectionConfig, logger *zap.Logger) *Payer {
	return &Payer{
		dial:   dial,
		cfg:    cfg,
		logger: logger,
	}
}

// Pay submits the payment and consumes its status stream to the end. A failed
// payment is an Outcome, not an error: the error is reserved for transport
// problems and is marked ErrConnection.
func (p *Payer) Pay(ctx context.Context, payment Payment) (Outcome, error) {
	client, err := p.dial(ctx, p.cfg)
	if err != nil {
		return Outcome{}, errors.Mark(errors.Wrap(err, "connect to payment node"), ErrConnection)
	}
	defer func() {
		if err := client.Close(); err != nil {
			p.logger.Warn("[Payer] close node connection", zap.Error(err))
		}
	}()

	feeLimit := FeeLimit(payment.AmountSats, payment.MaxFeeSats)
	stream, err := client.SendPayment(ctx, Instruction{
		PaymentRequest: payment.Invoice.PaymentRequest,
		Timeout:        PaymentTimeout,
		FeeLimitSats:   feeLimit,
	})
	if err != nil {
		return Outcome{}, errors.Mark(errors.Wrap(err, "submit payment"), ErrConnection)
	}

	logger := p.logger.With(zap.String("job", payment.Job), zap.Int64("amount_sats", payment.AmountSats))
	logger.Debug("[Payer] payment submitted", zap.Int64("fee_limit_sats", feeLimit))

	outcome := Outcome{Status: StatusFailed, FailureReason: "no status received"}
	for {
		update, err := stream.Recv()
		if err == io.EOF {
			return outcome, nil
		}
		if err != nil {
			return outcome, errors.Mark(errors.Wrap(err, "receive payment update"), ErrConnection)
		}

		outcome.Status = update.Status
		outcome.FailureReason = update.FailureReason
		outcome.Updates++
		metrics.PaymentUpdates.WithLabelValues(update.Status.String()).Inc()

		switch update.Status {
		case StatusSucceeded:
			fields := []zap.Field{zap.String("payment_hash", update.PaymentHash), zap.Int64("fee_sats", update.FeeSats)}
			if payment.Invoice.SuccessMessage != "" {
				fields = append(fields, zap.String("message", payment.Invoice.SuccessMessage))
			}
			logger.Info("[Payer] payment succeeded", fields...)
		case StatusInFlight:
			logger.Info("[Payer] payment in progress", zap.String("payment_hash", update.PaymentHash))
		default:
			logger.Warn("[Payer] payment failed", zap.String("reason", update.FailureReason))
		}
	}
}

// Verify opens a connection and asks the node for its identity. It is meant
// to run once before scheduling starts.
func Verify(ctx context.Context, dial Dialer, cfg ConnectionConfig) (Info, error) {
	client, err := dial(ctx, cfg)
	if err != nil {
		return Info{}, errors.Mark(errors.Wrapf(err, "connect to payment node %s", cfg.ServerURL), ErrConnection)
	}
	defer client.Close()

	info, err := client.GetInfo(ctx)
	if err != nil {
		return Info{}, errors.Mark(errors.Wrapf(err, "verify payment node %s", cfg.ServerURL), ErrConnection)
	}
	return info, nil
}
