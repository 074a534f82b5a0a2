package mq

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func envConfig(t *testing.T) Config {
	if os.Getenv("KAFKA_BROKERS") == "" {
		t.Skip("KAFKA_BROKERS not set")
	}
	return Config{
		Brokers:  strings.Split(os.Getenv("KAFKA_BROKERS"), ","),
		Topic:    os.Getenv("KAFKA_TOPIC"),
		GroupId:  os.Getenv("KAFKA_GROUP_ID"),
		Username: os.Getenv("KAFKA_USERNAME"),
		Password: os.Getenv("KAFKA_PASSWORD"),
	}
}

func TestDisabledConfig(t *testing.T) {
	require.False(t, Config{}.Enabled())
	require.Equal(t, DefaultTopic, Config{}.topic())
	require.Equal(t, "payments", Config{Topic: "payments"}.topic())

	_, err := NewProducer(Config{}, zap.NewNop())
	require.Error(t, err)
	_, err = NewConsumer(Config{}, zap.NewNop())
	require.Error(t, err)
}

func TestDialerAuthentication(t *testing.T) {
	dialer, err := newDialer(Config{Brokers: []string{"localhost:9092"}})
	require.NoError(t, err)
	require.Nil(t, dialer.SASLMechanism)

	dialer, err = newDialer(Config{Brokers: []string{"localhost:9092"}, Username: "u", Password: "p"})
	require.NoError(t, err)
	require.NotNil(t, dialer.SASLMechanism)
	require.Equal(t, "SCRAM-SHA-256", dialer.SASLMechanism.Name())
}

func TestProductAndConsume(t *testing.T) {
	cfg := envConfig(t)
	logger := zap.NewExample()

	c, err := NewConsumer(cfg, logger)
	require.NoError(t, err)
	defer c.Close()

	p, err := NewProducer(cfg, logger)
	require.NoError(t, err)
	require.NoError(t, p.Product(context.Background(), []byte("world")))
	require.NoError(t, p.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	received := make(chan []byte, 1)
	go c.Consume(ctx, func(value []byte) error {
		select {
		case received <- value:
		default:
		}
		return nil
	})

	select {
	case value := <-received:
		require.NotEmpty(t, value)
	case <-ctx.Done():
		t.Fatal("no message received")
	}
}
