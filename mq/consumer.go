package mq

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type consumer struct {
	reader *kafka.Reader
	logger *zap.Logger
}

// NewConsumer creates a reader on cfg's topic. With a GroupId offsets are
// committed for the group, without one the reader starts at the newest message.
func NewConsumer(cfg Config, l *zap.Logger) (Consumer, error) {
	if !cfg.Enabled() {
		return nil, errors.New("mq: no brokers configured")
	}

	dialer, err := newDialer(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "mq: build sasl mechanism")
	}

	readerCfg := kafka.ReaderConfig{
		Dialer:      dialer,
		Brokers:     cfg.Brokers,
		Topic:       cfg.topic(),
		GroupID:     cfg.GroupId,
		Logger:      infoLogger{l},
		ErrorLogger: errorLogger{l},
	}
	if cfg.GroupId == "" {
		readerCfg.StartOffset = kafka.LastOffset
	}

	return &consumer{
		reader: kafka.NewReader(readerCfg),
		logger: l,
	}, nil
}

func (c *consumer) Consume(ctx context.Context, callback func(value []byte) error) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("[Consumer] exit")
				return nil
			}
			return errors.Wrap(err, "mq: read message")
		}

		c.logger.Debug("[Consumer] received message",
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Time("time", msg.Time))

		if err := callback(msg.Value); err != nil {
			c.logger.Error("[Consumer] callback invoke", zap.Error(err))
		}
	}
}

func (c *consumer) Close() error {
	return c.reader.Close()
}
