package service

import (
	"context"
	"encoding/json"
	"time"

	"ai-docassist-be/internal/dto"
	"ai-docassist-be/internal/pkg/logger"
	"ai-docassist-be/pkg/events"
	pkgnats "ai-docassist-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IEventRelayService interface {
	Relay(ctx context.Context) error
}

// eventRelayService drains run events off the in-process bus and
// forwards them to NATS JetStream so external consumers (analytics,
// alerting) see every pipeline run without coupling to this process.
type eventRelayService struct {
	pubSub    *gochannel.GoChannel
	topicName string
	natsPub   *pkgnats.Publisher
	logger    logger.ILogger
}

func NewEventRelayService(
	pubSub *gochannel.GoChannel,
	topicName string,
	natsPub *pkgnats.Publisher,
	logger logger.ILogger,
) IEventRelayService {
	return &eventRelayService{
		pubSub:    pubSub,
		topicName: topicName,
		natsPub:   natsPub,
		logger:    logger,
	}
}

func (rs *eventRelayService) Relay(ctx context.Context) error {
	messages, err := rs.pubSub.Subscribe(ctx, rs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			rs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (rs *eventRelayService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.PublishRunMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		rs.logger.Error("relay", "failed to unmarshal run message", map[string]interface{}{
			"error": err.Error(),
		})
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	// NATS may be down or never configured; the bus must keep draining.
	if rs.natsPub == nil {
		msg.Ack()
		return
	}

	event := events.BaseEvent{
		Type: events.TypePipelineRun,
		Data: map[string]interface{}{
			"run_id":      payload.RunID,
			"kind":        payload.Kind,
			"file_id":     payload.FileID,
			"lang":        payload.Lang,
			"error":       payload.Error,
			"duration_ms": payload.DurationMs,
		},
		OccurredAt: time.Now(),
	}

	if err := rs.natsPub.Publish(ctx, event); err != nil {
		rs.logger.Warn("relay", "failed to forward run event to NATS", map[string]interface{}{
			"run_id": payload.RunID,
			"error":  err.Error(),
		})
		msg.Nack()
		return
	}

	rs.logger.Info("relay", "run event forwarded", map[string]interface{}{
		"run_id": payload.RunID,
		"kind":   payload.Kind,
	})
	msg.Ack()
}
