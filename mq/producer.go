package mq

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// NewProducer creates an asynchronous Kafka writer on cfg's topic.
func NewProducer(cfg Config, l *zap.Logger) (Producer, error) {
	if !cfg.Enabled() {
		return nil, errors.New("mq: no brokers configured")
	}

	dialer, err := newDialer(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "mq: build sasl mechanism")
	}

	return &producer{writer: kafka.NewWriter(kafka.WriterConfig{
		Brokers: cfg.Brokers,
		Topic:   cfg.topic(),

		Dialer:       dialer,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: int(kafka.RequireAll),
		Async:        true,
		Logger:       infoLogger{l},
		ErrorLogger:  errorLogger{l},
	})}, nil
}

type producer struct {
	writer *kafka.Writer
}

func (p *producer) Product(ctx context.Context, value []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Value: value,
	})
}

func (p *producer) Close() error {
	return p.writer.Close()
}
