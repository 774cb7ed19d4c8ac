package eventhandlers

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"sentinel-backend/models"
	"sentinel-backend/services"
)

// KafkaHandler consumes confirmed violation fingerprints reported by other
// pipeline instances and trusted external databases, and appends them to the
// shared violation store.
type KafkaHandler struct {
	Reader *kafka.Reader
	Hashes services.HashStore
	Log    *zap.SugaredLogger
}

func NewKafkaHandler(brokers []string, topic, groupID string, hashes services.HashStore, log *zap.SugaredLogger) *KafkaHandler {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	return &KafkaHandler{Reader: reader, Hashes: hashes, Log: log}
}

func (kh *KafkaHandler) Start(ctx context.Context) {
	defer kh.Reader.Close()

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 0

	for {
		m, err := kh.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			wait := policy.NextBackOff()
			kh.Log.Warnw("[Kafka] read failed, backing off", "wait", wait, "error", err)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return
			}
			continue
		}
		policy.Reset()
		kh.processMessage(ctx, string(m.Value))
	}
}

// Message format: ViolationHash:<fingerprint>:<violation_type>
func (kh *KafkaHandler) processMessage(ctx context.Context, message string) {
	const prefix = "ViolationHash:"
	if !strings.HasPrefix(message, prefix) {
		return
	}
	parts := strings.Split(message[len(prefix):], ":")
	if len(parts) < 2 {
		kh.Log.Warnw("[Kafka] invalid violation hash message", "message", message)
		return
	}
	fingerprint := parts[0]
	vtype := models.ViolationType(parts[1])
	if fingerprint == "" {
		kh.Log.Warnw("[Kafka] empty fingerprint in message", "message", message)
		return
	}
	if err := kh.Hashes.Record(ctx, fingerprint, vtype); err != nil {
		kh.Log.Errorw("[Kafka] failed to record violation hash", "fingerprint", fingerprint, "error", err)
		return
	}
	kh.Log.Infow("[Kafka] recorded confirmed violation hash", "fingerprint", fingerprint, "violation_type", vtype)
}

// FeedbackWriter publishes human-review feedback events for collector
// calibration consumers.
type FeedbackWriter struct {
	writer *kafka.Writer
}

func NewFeedbackWriter(brokers []string, topic string) *FeedbackWriter {
	return &FeedbackWriter{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

func (fw *FeedbackWriter) Publish(ctx context.Context, event services.FeedbackEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return fw.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.ResultID),
		Value: body,
	})
}

func (fw *FeedbackWriter) Close() error {
	return fw.writer.Close()
}
