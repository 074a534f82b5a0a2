package mq

import (
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/scram"
	"go.uber.org/zap"
)

// DefaultTopic receives firing events when the configuration names none.
const DefaultTopic = "recurpay.firings"

type infoLogger struct {
	internal *zap.Logger
}

func (l infoLogger) Printf(format string, v ...interface{}) {
	l.internal.Debug(fmt.Sprintf(format, v...))
}

type errorLogger struct {
	internal *zap.Logger
}

func (l errorLogger) Printf(format string, v ...interface{}) {
	l.internal.Error(fmt.Sprintf(format, v...))
}

// Config locates the Kafka cluster. Events are disabled while Brokers is empty.
type Config struct {
	Brokers  []string `mapstructure:"brokers"`
	Topic    string   `mapstructure:"topic"`
	GroupId  string   `mapstructure:"group_id"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
}

// Enabled reports whether events should be published.
func (c Config) Enabled() bool {
	return len(c.Brokers) > 0
}

func (c Config) topic() string {
	if c.Topic == "" {
		return DefaultTopic
	}
	return c.Topic
}

// newDialer adds SCRAM-SHA-256 authentication when credentials are set.
func newDialer(cfg Config) (*kafka.Dialer, error) {
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	if cfg.Username != "" && cfg.Password != "" {
		mechanism, err := scram.Mechanism(scram.SHA256, cfg.Username, cfg.Password)
		if err != nil {
			return nil, err
		}

		dialer.SASLMechanism = mechanism
	}
	return dialer, nil
}
