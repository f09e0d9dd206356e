package intake

import (
	"context"
	"fmt"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/gridpoint-energy/postoffice-backend/pkg/pubsub"
)

type pubsubDeadLetters struct {
	client *pubsub.Client
}

// NewPubSubDeadLetters returns a DeadLetterPublisher backed by the
// configured dead-letter topic.
func NewPubSubDeadLetters(client *pubsub.Client) DeadLetterPublisher {
	return &pubsubDeadLetters{client: client}
}

func (p *pubsubDeadLetters) PublishDeadLetter(ctx context.Context, data []byte, reason string) error {
	publisher := p.client.DeadLetterPublisher()
	if publisher == nil {
		return fmt.Errorf("dead letter topic not configured")
	}
	result := publisher.Publish(ctx, &gcppubsub.Message{
		Data:       data,
		Attributes: map[string]string{"reason": reason},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish dead letter: %w", err)
	}
	return nil
}
