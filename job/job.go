package job

import (
	"time"

	"recurpay/lnurl"

	"github.com/cockroachdb/errors"
)

// Definition is a recurring payment as written in the configuration file.
type Definition struct {
	// Name is optional, used in logs and metrics.
	Name string `mapstructure:"name"`
	// CronExpression has six or seven fields, the first being seconds.
	CronExpression string `mapstructure:"cron_expression"`
	// AmountSats is paid on every firing.
	AmountSats int64 `mapstructure:"amount_sats"`
	// Destination is a lightning address or a bech32 LNURL.
	Destination string `mapstructure:"ln_address_or_lnurl"`
	// MaxFeeSats caps routing fees, the payer's fallback applies when nil.
	MaxFeeSats *int64 `mapstructure:"max_fee_sats"`
	// Memo is sent to the payee as the payment comment.
	Memo string `mapstructure:"memo"`
}

// Validate checks the invariants that do not depend on parsing.
func (d Definition) Validate() error {
	if d.AmountSats <= 0 {
		return errors.Mark(errors.Newf("job %q: amount_sats must be positive, got %d", d.Name, d.AmountSats), ErrInvalidDefinition)
	}
	if d.MaxFeeSats != nil && *d.MaxFeeSats < 0 {
		return errors.Mark(errors.Newf("job %q: max_fee_sats must not be negative, got %d", d.Name, *d.MaxFeeSats), ErrInvalidDefinition)
	}
	if d.Destination == "" {
		return errors.Mark(errors.Newf("job %q: ln_address_or_lnurl is required", d.Name), ErrInvalidDefinition)
	}
	return nil
}

// Job is the unit of scheduling. Only the scheduler mutates NextRun and
// LastRun; executions work on a Snapshot.
type Job struct {
	definition Definition
	schedule   Schedule

	// endpoint is resolved once; resolveErr fails every firing when set.
	endpoint   string
	resolveErr error

	// NextRun is the next activation, zero when the schedule is exhausted.
	NextRun time.Time
	// LastRun is the most recent activation, zero until the first firing.
	LastRun time.Time
}

type FuncOption func(job *Job)

// WithSchedule replaces the schedule parsed from the cron expression.
func WithSchedule(schedule Schedule) FuncOption {
	return func(job *Job) {
		job.schedule = schedule
	}
}

// New builds a job from its definition: parses the schedule, resolves the
// destination and computes the first activation after now.
//
// A destination that does not resolve is not an error here; it is kept and
// reported by every firing of the job.
func New(def Definition, now time.Time, options ...FuncOption) (Job, error) {
	if err := def.Validate(); err != nil {
		return Job{}, err
	}

	j := Job{definition: def}
	for _, option := range options {
		option(&j)
	}

	if j.schedule == nil {
		schedule, err := ParseCron(def.CronExpression)
		if err != nil {
			return Job{}, errors.Wrapf(err, "job %q", def.Name)
		}
		j.schedule = schedule
	}

	j.endpoint, j.resolveErr = lnurl.Resolve(def.Destination)
	j.NextRun = j.schedule.Next(now)
	return j, nil
}

// Name returns the configured name, or the destination when none is set.
func (j Job) Name() string {
	if j.definition.Name != "" {
		return j.definition.Name
	}
	return j.definition.Destination
}

// Definition returns a copy of the job's definition.
func (j Job) Definition() Definition {
	def := j.definition
	if def.MaxFeeSats != nil {
		maxFee := *def.MaxFeeSats
		def.MaxFeeSats = &maxFee
	}
	return def
}

// Endpoint returns the resolved LNURL-pay endpoint, or the resolution error.
func (j Job) Endpoint() (string, error) {
	return j.endpoint, j.resolveErr
}

// Due reports whether the job has a pending activation.
func (j Job) Due() bool {
	return !j.NextRun.IsZero() && !j.NextRun.Equal(j.LastRun)
}

// Advance records NextRun as fired and moves NextRun to the first activation
// strictly after both now and the new LastRun. The schedule is queried from
// now rather than from LastRun, so activations missed while the host was
// suspended are skipped instead of replayed.
func (j *Job) Advance(now time.Time) {
	j.LastRun = j.NextRun

	anchor := now
	if anchor.Before(j.LastRun) {
		anchor = j.LastRun
	}

	next := j.schedule.Next(anchor)
	if !next.IsZero() && !next.After(j.LastRun) {
		// Schedules with sub-second or duplicate entries may re-emit LastRun.
		next = j.schedule.Next(j.LastRun)
		if !next.After(j.LastRun) {
			next = time.Time{}
		}
	}
	j.NextRun = next
}

// Snapshot returns a deep copy safe to hand to another goroutine.
func (j Job) Snapshot() Job {
	j.definition = j.Definition()
	return j
}
