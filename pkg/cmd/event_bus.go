package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/stagehandhq/stagehand/pkg/channels/gochannel"
	"github.com/stagehandhq/stagehand/pkg/channels/kafka"
	"github.com/stagehandhq/stagehand/pkg/eventbus"
	kafkabus "github.com/stagehandhq/stagehand/pkg/eventbus/kafka"
)

// NewEventBus creates the execution lifecycle event bus. The memory
// provider is an in-process channel for local development; anything
// observing events must then run inside the same process.
func NewEventBus(logger *slog.Logger, provider string, brokers []string, serviceName string) (eventbus.EventBus, error) {
	switch provider {
	case "kafka":
		return kafkabus.NewEventBus(logger, brokers, serviceName)
	case "memory":
		pub, sub, err := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
		if err != nil {
			return nil, err
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	default:
		return nil, fmt.Errorf("unsupported event bus provider %q", provider)
	}
}

// NewJobsChannel creates the publisher and subscriber the job dispatcher and
// the delivery worker ride on. serviceName scopes the Kafka consumer group
// so each worker kind tracks its own offsets.
func NewJobsChannel(logger *slog.Logger, provider string, brokers []string, serviceName string) (message.Publisher, message.Subscriber, error) {
	switch provider {
	case "kafka":
		return kafka.CreateChannel(watermill.NewSlogLogger(logger), brokers, serviceName)
	case "memory":
		return gochannel.CreateChannel(watermill.NewSlogLogger(logger))
	default:
		return nil, nil, fmt.Errorf("unsupported event bus provider %q", provider)
	}
}
