package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

const sample = `macaroon_path: "~/lnd/admin.macaroon"
cert_path: "/etc/lnd/tls.cert"
server_url: "https://node.internal:10009"
http_timeout: 5s
events:
  brokers: ["kafka-1:9092", "kafka-2:9092"]
jobs:
  - name: "rent"
    cron_expression: "0 0 9 1 * *"
    amount_sats: 10000
    ln_address_or_lnurl: "landlord@pay.example"
    max_fee_sats: 5
    memo: "May rent"
  - cron_expression: "*/10 * * * * *"
    amount_sats: 21
    ln_address_or_lnurl: "tips@pay.example"
`

func writeFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("HOME", "/home/alice")

	cfg, err := Load(writeFile(t, sample))
	require.NoError(t, err)

	require.Equal(t, "/home/alice/lnd/admin.macaroon", cfg.MacaroonPath)
	require.Equal(t, "/etc/lnd/tls.cert", cfg.CertPath)
	require.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	require.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Events.Brokers)
	require.Equal(t, "recurpay.firings", cfg.Events.Topic)
	require.Equal(t, "https://node.internal:10009", cfg.Connection().ServerURL)

	require.Len(t, cfg.Jobs, 2)
	require.Equal(t, "rent", cfg.Jobs[0].Name)
	require.Equal(t, int64(10000), cfg.Jobs[0].AmountSats)
	require.NotNil(t, cfg.Jobs[0].MaxFeeSats)
	require.Equal(t, int64(5), *cfg.Jobs[0].MaxFeeSats)
	require.Equal(t, "May rent", cfg.Jobs[0].Memo)
	require.Nil(t, cfg.Jobs[1].MaxFeeSats)
	require.Empty(t, cfg.Jobs[1].Name)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeFile(t, `jobs:
  - cron_expression: "0 * * * * *"
    amount_sats: 1
    ln_address_or_lnurl: "a@b.example"
`))
	require.NoError(t, err)
	require.Equal(t, "https://localhost:10009", cfg.ServerURL)
	require.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	require.False(t, cfg.Events.Enabled())
	require.Empty(t, cfg.MetricsListen)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("RECURPAY_SERVER_URL", "https://override:10009")

	cfg, err := Load(writeFile(t, sample))
	require.NoError(t, err)
	require.Equal(t, "https://override:10009", cfg.ServerURL)
}

func TestLoadCreatesTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	_, err := Load(path)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrConfiguration))
	require.Contains(t, err.Error(), "no jobs to run")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `server_url: "https://localhost:10009"`)
}

func TestLoadInvalid(t *testing.T) {
	_, err := Load(writeFile(t, "jobs: [unterminated"))
	require.True(t, errors.Is(err, ErrConfiguration))

	_, err = Load(writeFile(t, "server_url: x\njobs: []\n"))
	require.True(t, errors.Is(err, ErrConfiguration))

	_, err = Load(writeFile(t, `http_timeout: 0s
jobs:
  - cron_expression: "0 * * * * *"
    amount_sats: 1
    ln_address_or_lnurl: "a@b.example"
`))
	require.True(t, errors.Is(err, ErrConfiguration))
}

func TestExpandHome(t *testing.T) {
	require.Equal(t, "/root/.lnd/tls.cert", ExpandHome("~/.lnd/tls.cert", "/root"))
	require.Equal(t, "/abs/tls.cert", ExpandHome("/abs/tls.cert", "/root"))
	require.Equal(t, "~/tls.cert", ExpandHome("~/tls.cert", ""))
}
