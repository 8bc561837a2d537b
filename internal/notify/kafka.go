// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squadz Contributors

package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"github.com/segmentio/kafka-go"
	"github.com/sethvargo/go-retry"
)

// Delivery limits. Publishing is retried here, never by the caller.
const (
	DefaultPublishTimeout = 10 * time.Second
	DefaultPublishRetries = 3
	defaultRetryBackoff   = 200 * time.Millisecond
)

// messageWriter is the part of *kafka.Writer the notifier uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Recorder counts delivery outcomes.
type Recorder interface {
	RecordNotification(kind, status string)
}

// KafkaConfig configures a KafkaNotifier.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	Timeout time.Duration
	Retries uint64
	Logger  *slog.Logger
	Metrics Recorder
}

// KafkaNotifier publishes Message values as JSON, keyed by email so every
// notification for one address lands on one partition in order.
type KafkaNotifier struct {
	w       messageWriter
	timeout time.Duration
	retries uint64
	backoff time.Duration
	logger  *slog.Logger
	metrics Recorder
	now     func() time.Time
}

// NewKafkaNotifier creates a notifier writing to cfg.Topic.
func NewKafkaNotifier(cfg KafkaConfig) (*KafkaNotifier, error) {
	if len(cfg.Brokers) == 0 {
		return nil, oops.Code("NOTIFY_INVALID_CONFIG").Errorf("at least one kafka broker is required")
	}
	if cfg.Topic == "" {
		return nil, oops.Code("NOTIFY_INVALID_CONFIG").Errorf("kafka topic is required")
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: false,
		WriteTimeout:           DefaultPublishTimeout,
	}
	return newKafkaNotifier(w, cfg), nil
}

func newKafkaNotifier(w messageWriter, cfg KafkaConfig) *KafkaNotifier {
	n := &KafkaNotifier{
		w:       w,
		timeout: cfg.Timeout,
		retries: cfg.Retries,
		backoff: defaultRetryBackoff,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		now:     time.Now,
	}
	if n.timeout <= 0 {
		n.timeout = DefaultPublishTimeout
	}
	if n.retries == 0 {
		n.retries = DefaultPublishRetries
	}
	if n.logger == nil {
		n.logger = slog.Default()
	}
	return n
}

// SendVerificationCode implements Notifier.
func (n *KafkaNotifier) SendVerificationCode(ctx context.Context, email, code, publicID string) error {
	return n.publish(ctx, Message{Kind: KindVerificationCode, Email: email, Code: code, PublicID: publicID})
}

// SendPasswordReset implements Notifier.
func (n *KafkaNotifier) SendPasswordReset(ctx context.Context, email, rawToken string) error {
	return n.publish(ctx, Message{Kind: KindPasswordReset, Email: email, ResetToken: rawToken})
}

// SendLockoutNotice implements Notifier.
func (n *KafkaNotifier) SendLockoutNotice(ctx context.Context, email string, unlockAt time.Time) error {
	return n.publish(ctx, Message{Kind: KindLockoutNotice, Email: email, UnlockAt: &unlockAt})
}

// Close flushes pending writes and closes the writer.
func (n *KafkaNotifier) Close() error {
	if err := n.w.Close(); err != nil {
		return oops.Code("NOTIFY_CLOSE_FAILED").Wrap(err)
	}
	return nil
}

func (n *KafkaNotifier) publish(ctx context.Context, msg Message) error {
	msg.OccurredAt = n.now().UTC()
	body, err := json.Marshal(msg)
	if err != nil {
		return oops.Code("NOTIFY_ENCODE_FAILED").With("kind", msg.Kind).Wrap(err)
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	attempt := 0
	backoff := retry.WithMaxRetries(n.retries, retry.NewExponential(n.backoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		werr := n.w.WriteMessages(ctx, kafka.Message{
			Key:     []byte(msg.Email),
			Value:   body,
			Headers: []kafka.Header{{Key: "kind", Value: []byte(msg.Kind)}},
		})
		if werr != nil {
			n.logger.WarnContext(ctx, "notification publish failed",
				"kind", msg.Kind, "attempt", attempt, "error", werr)
			return retry.RetryableError(werr)
		}
		return nil
	})
	if err != nil {
		n.record(msg.Kind, "failed")
		return oops.Code("NOTIFY_PUBLISH_FAILED").
			With("kind", msg.Kind).
			With("attempts", attempt).
			Wrap(err)
	}
	n.record(msg.Kind, "sent")
	return nil
}

func (n *KafkaNotifier) record(kind Kind, status string) {
	if n.metrics != nil {
		n.metrics.RecordNotification(string(kind), status)
	}
}

var _ Notifier = (*KafkaNotifier)(nil)
