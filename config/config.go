// Package config loads the scheduler configuration from a YAML file.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"

	"recurpay/job"
	"recurpay/mq"
	"recurpay/node"
)

// DefaultPath is read when no path is given on the command line.
const DefaultPath = "config.yaml"

// ErrConfiguration marks every error returned by Load.
var ErrConfiguration = errors.New("invalid configuration")

const defaultTemplate = `macaroon_path: "~/.lnd/data/chain/bitcoin/mainnet/admin.macaroon"
cert_path: "~/.lnd/tls.cert"
server_url: "https://localhost:10009"
# http_timeout: 30s
# metrics_listen: "127.0.0.1:9464"
# events:
#   brokers: ["localhost:9092"]
#   topic: "recurpay.firings"
jobs:
#  - name: "My first job"
#    cron_expression: "0 30 9,12,15 1,15 5-8 1,3,5 2030"
#    amount_sats: 10000
#    ln_address_or_lnurl: "nick@domain.com"
#    max_fee_sats: 5
#    memo: "Scheduled payment coming your way!"
`

type Config struct {
	MacaroonPath  string           `mapstructure:"macaroon_path"`
	CertPath      string           `mapstructure:"cert_path"`
	ServerURL     string           `mapstructure:"server_url"`
	HTTPTimeout   time.Duration    `mapstructure:"http_timeout"`
	MetricsListen string           `mapstructure:"metrics_listen"`
	Events        mq.Config        `mapstructure:"events"`
	Jobs          []job.Definition `mapstructure:"jobs"`
}

// Connection returns the payment node coordinates.
func (c Config) Connection() node.ConnectionConfig {
	return node.ConnectionConfig{
		ServerURL:    c.ServerURL,
		CertPath:     c.CertPath,
		MacaroonPath: c.MacaroonPath,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server_url", "https://localhost:10009")
	v.SetDefault("http_timeout", 30*time.Second)
	v.SetDefault("events.topic", mq.DefaultTopic)
}

// Load reads path, writing the commented default template first when the
// file does not exist. Values may be overridden with RECURPAY_ environment
// variables, for example RECURPAY_SERVER_URL.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultPath
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := writeTemplate(path); err != nil {
			return Config{}, errors.Mark(errors.Wrapf(err, "create default config %s", path), ErrConfiguration)
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("RECURPAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, errors.Mark(errors.Wrapf(err, "read config %s", path), ErrConfiguration)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Mark(errors.Wrapf(err, "parse config %s", path), ErrConfiguration)
	}

	if len(cfg.Jobs) == 0 {
		return Config{}, errors.Mark(errors.Newf("no jobs to run, add a job in %s", path), ErrConfiguration)
	}
	if cfg.HTTPTimeout <= 0 {
		return Config{}, errors.Mark(errors.Newf("http_timeout must be positive, got %s", cfg.HTTPTimeout), ErrConfiguration)
	}

	home := os.Getenv("HOME")
	cfg.CertPath = ExpandHome(cfg.CertPath, home)
	cfg.MacaroonPath = ExpandHome(cfg.MacaroonPath, home)
	return cfg, nil
}

// ExpandHome replaces a leading ~ with home. Paths are returned unchanged
// when home is empty.
func ExpandHome(path, home string) string {
	if home == "" || !strings.HasPrefix(path, "~") {
		return path
	}
	return home + strings.TrimPrefix(path, "~")
}

func writeTemplate(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(defaultTemplate), 0o600)
}
