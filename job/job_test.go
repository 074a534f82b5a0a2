package job

import (
	"math/rand"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2030, 5, 6, 10, 0, 30, 0, time.UTC)

func definition(spec string) Definition {
	return Definition{
		Name:           "coffee",
		CronExpression: spec,
		AmountSats:     10000,
		Destination:    "alice@example.com",
		Memo:           "hi",
	}
}

func TestNew(t *testing.T) {
	j, err := New(definition("0 * * * * *"), t0)
	require.NoError(t, err)
	require.Equal(t, "coffee", j.Name())
	require.Equal(t, t0.Truncate(time.Minute).Add(time.Minute), j.NextRun)
	require.True(t, j.LastRun.IsZero())
	require.True(t, j.Due())

	endpoint, err := j.Endpoint()
	require.NoError(t, err)
	require.Equal(t, "https://example.com/.well-known/lnurlp/alice", endpoint)
}

func TestNewInvalidDefinition(t *testing.T) {
	cases := map[string]Definition{
		"bad cron":       definition("every tuesday"),
		"five fields":    definition("* * * * *"),
		"out of range":   definition("99 * * * * *"),
		"zero amount":    {CronExpression: "* * * * * *", Destination: "a@b.c"},
		"no destination": {CronExpression: "* * * * * *", AmountSats: 1},
	}
	negative := int64(-1)
	withFee := definition("* * * * * *")
	withFee.MaxFeeSats = &negative
	cases["negative fee"] = withFee

	for name, def := range cases {
		_, err := New(def, t0)
		require.Error(t, err, name)
		require.True(t, errors.Is(err, ErrInvalidDefinition), name)
	}
}

func TestNewUnresolvableDestination(t *testing.T) {
	def := definition("* * * * * *")
	def.Destination = "lnurl1notvalid"

	j, err := New(def, t0)
	require.NoError(t, err)
	_, err = j.Endpoint()
	require.Error(t, err)
}

func TestNameFallsBackToDestination(t *testing.T) {
	def := definition("* * * * * *")
	def.Name = ""
	j, err := New(def, t0)
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", j.Name())
}

func TestAdvance(t *testing.T) {
	j, err := New(definition("* * * * * *"), t0)
	require.NoError(t, err)
	first := j.NextRun
	require.Equal(t, t0.Add(time.Second), first)

	j.Advance(first)
	require.Equal(t, first, j.LastRun)
	require.Equal(t, first.Add(time.Second), j.NextRun)
	require.True(t, j.Due())
}

func TestAdvanceSkipsMissedActivations(t *testing.T) {
	j, err := New(definition("0 * * * * *"), t0)
	require.NoError(t, err)
	require.Equal(t, time.Date(2030, 5, 6, 10, 1, 0, 0, time.UTC), j.NextRun)

	// The host slept through four activations.
	j.Advance(time.Date(2030, 5, 6, 10, 5, 30, 0, time.UTC))
	require.Equal(t, time.Date(2030, 5, 6, 10, 1, 0, 0, time.UTC), j.LastRun)
	require.Equal(t, time.Date(2030, 5, 6, 10, 6, 0, 0, time.UTC), j.NextRun)

	// The clock went backwards: never schedule at or before LastRun.
	j.Advance(time.Date(2030, 5, 6, 9, 0, 0, 0, time.UTC))
	require.Equal(t, time.Date(2030, 5, 6, 10, 6, 0, 0, time.UTC), j.LastRun)
	require.Equal(t, time.Date(2030, 5, 6, 10, 7, 0, 0, time.UTC), j.NextRun)
}

func TestAdvanceStrictlyAfterLastRun(t *testing.T) {
	specs := []string{
		"* * * * * *",
		"*/5 * * * * *",
		"0 */15 * * * *",
		"30 0 9 * * 1-5",
		"0 0 0 1 * *",
		"0 30 9,12,15 1,15 * *",
		"0 0 12 * * * 2031-2040",
	}
	rnd := rand.New(rand.NewSource(42))

	for _, spec := range specs {
		now := t0
		j, err := New(definition(spec), now)
		require.NoError(t, err, spec)

		for i := 0; i < 20 && j.Due(); i++ {
			// Wake up anywhere between a little early and well after the activation.
			now = j.NextRun.Add(time.Duration(rnd.Int63n(int64(3*time.Second))) - time.Second)
			j.Advance(now)
			if !j.NextRun.IsZero() {
				require.True(t, j.NextRun.After(j.LastRun), "%s: next %s last %s", spec, j.NextRun, j.LastRun)
			}
		}
	}
}

// stuckSchedule re-emits the same instant whatever it is asked.
type stuckSchedule struct{ at time.Time }

func (s stuckSchedule) Next(time.Time) time.Time { return s.at }

// truncatingSchedule drops sub-second precision and may return its input.
type truncatingSchedule struct{}

func (truncatingSchedule) Next(t time.Time) time.Time { return t.Truncate(time.Second) }

func TestAdvanceGuardsAgainstDuplicates(t *testing.T) {
	j, err := New(definition(""), t0, WithSchedule(stuckSchedule{at: t0}))
	require.NoError(t, err)
	require.Equal(t, t0, j.NextRun)

	j.Advance(t0.Add(-time.Minute))
	require.Equal(t, t0, j.LastRun)
	require.True(t, j.NextRun.IsZero())
	require.False(t, j.Due())

	j, err = New(definition(""), t0, WithSchedule(truncatingSchedule{}))
	require.NoError(t, err)
	j.Advance(t0)
	require.True(t, j.NextRun.IsZero())
}

func TestOnceSchedule(t *testing.T) {
	j, err := New(definition(""), t0, WithSchedule(OnceSchedule{At: t0.Add(time.Hour)}))
	require.NoError(t, err)
	require.Equal(t, t0.Add(time.Hour), j.NextRun)

	j.Advance(t0.Add(time.Hour))
	require.Equal(t, t0.Add(time.Hour), j.LastRun)
	require.True(t, j.NextRun.IsZero())
	require.False(t, j.Due())
}

func TestSnapshotIsIndependent(t *testing.T) {
	maxFee := int64(5)
	def := definition("* * * * * *")
	def.MaxFeeSats = &maxFee

	j, err := New(def, t0)
	require.NoError(t, err)

	snap := j.Snapshot()
	j.Advance(j.NextRun)
	*j.definition.MaxFeeSats = 99

	require.True(t, snap.LastRun.IsZero())
	require.Equal(t, int64(5), *snap.Definition().MaxFeeSats)
}
