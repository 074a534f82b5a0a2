package job

import (
	"context"
	"time"

	"recurpay/metrics"
	"recurpay/node"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Result values of a firing, as used in events and metrics.
const (
	ResultSucceeded = "succeeded"
	ResultFailed    = "failed"
	ResultInFlight  = "in_flight"
	ResultError     = "error"
)

// Event describes one finished firing.
type Event struct {
	FiringID      string    `json:"firing_id"`
	Job           string    `json:"job"`
	Destination   string    `json:"destination"`
	AmountSats    int64     `json:"amount_sats"`
	ScheduledAt   time.Time `json:"scheduled_at"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	Result        string    `json:"result"`
	FailureReason string    `json:"failure_reason,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// Runner executes firings: negotiate an invoice, then pay it.
type Runner struct {
	negotiator Negotiator
	payer      Payer
	publisher  Publisher
	logger     *zap.Logger
	now        func() time.Time
}

type RunnerOption func(r *Runner)

// WithPublisher ships an Event for every firing.
func WithPublisher(p Publisher) RunnerOption {
	return func(r *Runner) {
		r.publisher = p
	}
}

// WithRunnerClock replaces time.Now.
func WithRunnerClock(now func() time.Time) RunnerOption {
	return func(r *Runner) {
		r.now = now
	}
}

// NewRunner creates a Runner.
func NewRunner(negotiator Negotiator, payer Payer, logger *zap.Logger, options ...RunnerOption) *Runner {
	r := &Runner{
		negotiator: negotiator,
		payer:      payer,
		logger:     logger,
		now:        time.Now,
	}
	for _, option := range options {
		option(r)
	}
	return r
}

// Execute runs one firing of j. Every failure is logged and swallowed: the
// job keeps its schedule and nothing is retried.
func (r *Runner) Execute(ctx context.Context, j Job) {
	def := j.Definition()
	event := Event{
		FiringID:    uuid.New().String(),
		Job:         j.Name(),
		Destination: def.Destination,
		AmountSats:  def.AmountSats,
		ScheduledAt: j.LastRun,
		StartedAt:   r.now().UTC(),
	}
	logger := r.logger.With(zap.String("job", event.Job), zap.String("firing_id", event.FiringID))
	logger.Info("[Runner] job started", zap.Time("scheduled_at", event.ScheduledAt), zap.Int64("amount_sats", def.AmountSats))

	outcome, err := r.fire(ctx, j, def)

	event.FinishedAt = r.now().UTC()
	if err != nil {
		event.Result = ResultError
		event.Error = err.Error()
		logger.Error("[Runner] job failed", zap.Error(err))
	} else {
		event.Result = outcome.Status.String()
		event.FailureReason = outcome.FailureReason
		logger.Info("[Runner] job finished", zap.String("result", event.Result),
			zap.Duration("took", event.FinishedAt.Sub(event.StartedAt)))
	}

	metrics.Firings.WithLabelValues(event.Job, event.Result).Inc()
	metrics.FiringDuration.WithLabelValues(event.Job).Observe(event.FinishedAt.Sub(event.StartedAt).Seconds())
	r.publish(ctx, logger, event)
}

func (r *Runner) fire(ctx context.Context, j Job, def Definition) (node.Outcome, error) {
	endpoint, err := j.Endpoint()
	if err != nil {
		return node.Outcome{}, err
	}

	invoice, err := r.negotiator.Invoice(ctx, endpoint, def.AmountSats, def.Memo)
	if err != nil {
		return node.Outcome{}, err
	}

	return r.payer.Pay(ctx, node.Payment{
		Job:        j.Name(),
		Invoice:    invoice,
		AmountSats: def.AmountSats,
		MaxFeeSats: def.MaxFeeSats,
	})
}

func (r *Runner) publish(ctx context.Context, logger *zap.Logger, event Event) {
	if r.publisher == nil {
		return
	}
	value, err := json.Marshal(event)
	if err != nil {
		logger.Error("[Runner] encode event", zap.Error(err))
		return
	}
	if err := r.publisher.Product(ctx, value); err != nil {
		logger.Error("[Runner] publish event", zap.Error(err))
	}
}

// DecodeEvent parses a value written by the Runner.
func DecodeEvent(value []byte) (Event, error) {
	var e Event
	err := json.Unmarshal(value, &e)
	return e, err
}
