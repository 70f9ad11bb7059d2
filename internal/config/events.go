package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/SAP-F-2025/proctoring-service/internal/events"
)

// EventConfig holds configuration for event publishing
type EventConfig struct {
	Enabled         bool
	Publisher       string // kafka or mock
	KafkaBrokers    string
	ProctoringTopic string
}

// GetKafkaBrokers returns Kafka brokers as a slice
func (c *EventConfig) GetKafkaBrokers() []string {
	return splitList(strings.TrimSpace(c.KafkaBrokers))
}

// CreateEventPublisher returns the sink for violation, start and submission
// events. Every attempt's events share one partition key, so a Kafka topic
// keeps them in order per attempt. Without Kafka the events are only logged.
func (c *EventConfig) CreateEventPublisher(logger *slog.Logger) (events.EventPublisher, error) {
	logger = logger.With("component", "event_publisher", "topic", c.ProctoringTopic)

	if !c.Enabled || c.Publisher == "mock" {
		logger.Info("Proctoring events are logged only", "enabled", c.Enabled)
		return events.NewMockEventPublisher(logger), nil
	}
	if c.Publisher != "kafka" {
		logger.Warn("Unknown event publisher type, proctoring events are logged only", "publisher", c.Publisher)
		return events.NewMockEventPublisher(logger), nil
	}

	brokers := c.GetKafkaBrokers()
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher for topic %q: no brokers configured", c.ProctoringTopic)
	}
	if strings.TrimSpace(c.ProctoringTopic) == "" {
		return nil, errors.New("kafka publisher: proctoring topic is empty")
	}

	logger.Info("Publishing proctoring events to Kafka", "brokers", brokers)
	return events.NewKafkaEventPublisher(events.PublisherConfig{
		KafkaBrokers: brokers,
		TopicName:    c.ProctoringTopic,
		Logger:       logger,
	})
}
