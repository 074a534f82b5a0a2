package main

import (
	"bytes"
	"testing"
	"time"

	"recurpay/job"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var t0 = time.Date(2030, 5, 6, 10, 0, 30, 0, time.UTC)

func TestBuildJobs(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	jobs, err := buildJobs([]job.Definition{
		{Name: "ok", CronExpression: "0 * * * * *", AmountSats: 1, Destination: "a@pay.example"},
		{Name: "broken", CronExpression: "0 * * * * *", AmountSats: 1, Destination: "lnurl1notvalid"},
	}, t0, zap.New(core))
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	require.Equal(t, 1, logs.FilterField(zap.String("job", "broken")).Len())

	_, err = buildJobs([]job.Definition{
		{Name: "bad", CronExpression: "nope", AmountSats: 1, Destination: "a@pay.example"},
	}, t0, zap.NewNop())
	require.True(t, errors.Is(err, job.ErrInvalidDefinition))
}

func TestPrintActivations(t *testing.T) {
	jobs, err := buildJobs([]job.Definition{
		{Name: "daily", CronExpression: "0 0 9 * * *", AmountSats: 500, Destination: "a@pay.example"},
		{Name: "past", CronExpression: "0 0 0 1 1 * 2020", AmountSats: 1, Destination: "a@pay.example"},
	}, t0, zap.NewNop())
	require.NoError(t, err)

	var out bytes.Buffer
	printActivations(&out, jobs, 2)
	require.Equal(t, `daily: 500 sats every "0 0 9 * * *"
  endpoint: https://pay.example/.well-known/lnurlp/a
  2030-05-07T09:00:00Z
  2030-05-08T09:00:00Z
past: 1 sats every "0 0 0 1 1 * 2020"
  endpoint: https://pay.example/.well-known/lnurlp/a
  no upcoming activation
`, out.String())
	require.Equal(t, t0.Add(22*time.Hour+59*time.Minute+30*time.Second), jobs[0].NextRun)
}

func TestPrintEvent(t *testing.T) {
	var out bytes.Buffer
	printEvent(&out, job.Event{
		Job:           "rent",
		Destination:   "landlord@pay.example",
		AmountSats:    10000,
		FinishedAt:    t0,
		Result:        job.ResultFailed,
		FailureReason: "no_route",
	})
	require.Equal(t, "2030-05-06T10:00:30Z rent failed 10000 sats -> landlord@pay.example (no_route)\n", out.String())
}
