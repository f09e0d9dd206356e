package intake

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/go-playground/validator/v10"

	"github.com/gridpoint-energy/postoffice-backend/pkg/logger"
)

// DeadLetterPublisher parks messages the engine refuses to process.
type DeadLetterPublisher interface {
	PublishDeadLetter(ctx context.Context, data []byte, reason string) error
}

// Consumer pumps the intake subscription into the ingestion service.
// Malformed batches and rejected notifications go to the dead-letter topic,
// never silently to the floor; infrastructure failures are nacked for
// redelivery.
type Consumer struct {
	service      *Service
	subscription *pubsub.Subscriber
	deadLetters  DeadLetterPublisher
	seen         SeenGuard
	validate     *validator.Validate
	logg         *logger.Logger
}

func NewConsumer(service *Service, subscription *pubsub.Subscriber, deadLetters DeadLetterPublisher, seen SeenGuard, logg *logger.Logger) (*Consumer, error) {
	if service == nil {
		return nil, fmt.Errorf("intake service required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("intake subscription required")
	}
	if deadLetters == nil {
		return nil, fmt.Errorf("dead letter publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		service:      service,
		subscription: subscription,
		deadLetters:  deadLetters,
		seen:         seen,
		validate:     validator.New(),
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg.ID, msg.Data) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// process reports whether the message should be acked.
func (c *Consumer) process(ctx context.Context, messageID string, data []byte) bool {
	logCtx := c.logg.WithField(ctx, "message_id", messageID)

	if c.seen != nil {
		first, err := c.seen.FirstDelivery(ctx, messageID)
		if err != nil {
			c.logg.Warn(c.logg.WithField(logCtx, "error", err), "delivery guard unavailable, proceeding")
		} else if !first {
			c.logg.Info(logCtx, "skipping redelivered intake message")
			return true
		}
	}

	var batch BatchMessage
	if err := json.Unmarshal(data, &batch); err != nil {
		c.logg.Error(logCtx, "failed to decode intake batch", err)
		c.deadLetter(logCtx, data, "malformed batch: "+err.Error())
		return true
	}
	if err := c.validate.Struct(batch); err != nil {
		c.logg.Error(logCtx, "intake batch failed validation", err)
		c.deadLetter(logCtx, data, "invalid batch: "+err.Error())
		return true
	}

	rejections, err := c.service.IngestBatch(ctx, batch)
	if err != nil {
		c.logg.Error(logCtx, "ingesting intake batch failed", err)
		return false
	}

	for _, rejection := range rejections {
		payload, marshalErr := json.Marshal(rejection.Notification)
		if marshalErr != nil {
			payload = data
		}
		c.deadLetter(logCtx, payload, rejection.Reason)
	}
	return true
}

func (c *Consumer) deadLetter(ctx context.Context, data []byte, reason string) {
	if err := c.deadLetters.PublishDeadLetter(ctx, data, reason); err != nil {
		c.logg.Error(ctx, "publishing to dead letter topic failed", err)
	}
}
