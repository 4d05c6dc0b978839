package notifier

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/rl1809/cartstore/internal/core/domain"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaNotifier publishes notices to a topic. Failures are logged and the
// notice is dropped.
type KafkaNotifier struct {
	writer messageWriter
	logger *zap.Logger
}

// NewKafkaWriter builds an async writer, so Notify never waits on the broker.
func NewKafkaWriter(brokers []string, topic string, logger *zap.Logger) *kafka.Writer {
	l := logger.Named("notice.kafka")
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		Async:                  true,
		AllowAutoTopicCreation: true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				l.Warn("notice delivery failed", zap.Int("messages", len(messages)), zap.Error(err))
			}
		},
	}
}

func NewKafkaNotifier(writer messageWriter, logger *zap.Logger) *KafkaNotifier {
	return &KafkaNotifier{writer: writer, logger: logger.Named("notice.kafka")}
}

func (n *KafkaNotifier) Notify(ctx context.Context, notice domain.Notice) {
	msg, err := noticeMessage(notice)
	if err != nil {
		n.logger.Error("encode notice", zap.String("notice_id", notice.ID.String()), zap.Error(err))
		return
	}

	if err := n.writer.WriteMessages(context.WithoutCancel(ctx), msg); err != nil {
		n.logger.Warn("publish notice", zap.String("notice_id", notice.ID.String()), zap.Error(err))
	}
}

func noticeMessage(notice domain.Notice) (kafka.Message, error) {
	payload, err := json.Marshal(notice)
	if err != nil {
		return kafka.Message{}, err
	}

	return kafka.Message{
		Key:   []byte(notice.ID.String()),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "notice_kind", Value: []byte(notice.Kind)},
			{Key: "operation", Value: []byte(notice.Operation)},
		},
	}, nil
}
