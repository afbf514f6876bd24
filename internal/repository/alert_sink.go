package repository

import (
	"context"
	"fmt"

	"MandiWatch/internal/domain/models"
	"MandiWatch/internal/domain/repository"
	pkghttp "MandiWatch/pkg/http"
	pkgkafka "MandiWatch/pkg/kafka"
)

// KafkaAlertSink publishes alert events to the notification collaborator's
// alerts topic, keyed by commodity|region so a consumer sees one key's
// alerts in order.
type KafkaAlertSink struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaAlertSink(producer *pkgkafka.Producer, topic string) repository.AlertSink {
	return &KafkaAlertSink{producer: producer, topic: topic}
}

func (s *KafkaAlertSink) Emit(ctx context.Context, ev *models.AlertEvent) error {
	key := []byte(fmt.Sprintf("%s|%s", ev.Commodity, ev.Region))
	if err := s.producer.Publish(ctx, s.topic, key, ev); err != nil {
		return fmt.Errorf("publish alert: %w", err)
	}
	return nil
}

func (s *KafkaAlertSink) Close() error {
	if s.producer != nil {
		return s.producer.Close()
	}
	return nil
}

// WebhookAlertSink posts alert events to an HTTP endpoint, for deployments
// without a broker between this service and the notification collaborator.
type WebhookAlertSink struct {
	client *pkghttp.Client
	url    string
	token  string
}

func NewWebhookAlertSink(client *pkghttp.Client, url, token string) repository.AlertSink {
	return &WebhookAlertSink{client: client, url: url, token: token}
}

func (s *WebhookAlertSink) Emit(ctx context.Context, ev *models.AlertEvent) error {
	headers := map[string]string{"Content-Type": "application/json"}
	if s.token != "" {
		headers["Authorization"] = "Bearer " + s.token
	}
	err := s.client.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method:  pkghttp.MethodPost,
		URL:     s.url,
		Headers: headers,
		Body:    ev,
	}, nil)
	if err != nil {
		return fmt.Errorf("post alert: %w", err)
	}
	return nil
}

func (s *WebhookAlertSink) Close() error { return nil }
