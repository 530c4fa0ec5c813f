// Package kafka wires the lifecycle event bus to Kafka.
package kafka

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/stagehandhq/stagehand/pkg/channels/kafka"
	"github.com/stagehandhq/stagehand/pkg/eventbus"
)

// NewEventBus builds a watermill event bus over a Kafka publisher and a
// consumer-group subscriber named after serviceName.
func NewEventBus(logger *slog.Logger, brokers []string, serviceName string) (eventbus.EventBus, error) {
	pub, sub, err := kafka.CreateChannel(watermill.NewSlogLogger(logger), brokers, serviceName)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka channel: %w", err)
	}

	return eventbus.NewWatermillEventBus(pub, sub), nil
}
