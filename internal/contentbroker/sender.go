package contentbroker

import (
	"context"
	"encoding/json"
	"fmt"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/gridpoint-energy/postoffice-backend/pkg/enums"
	"github.com/gridpoint-energy/postoffice-backend/pkg/pubsub"
)

type pubsubSender struct {
	client *pubsub.Client
}

// NewPubSubSender returns a RequestSender publishing to the per-origin
// content request topics.
func NewPubSubSender(client *pubsub.Client) RequestSender {
	return &pubsubSender{client: client}
}

func (s *pubsubSender) SendContentRequest(ctx context.Context, origin enums.Origin, request ContentRequest) error {
	publisher := s.client.ContentRequestPublisher(origin)
	if publisher == nil {
		return fmt.Errorf("no content request topic configured for origin %q", origin)
	}

	payload, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("encode content request: %w", err)
	}

	result := publisher.Publish(ctx, &gcppubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			CorrelationIDAttribute: request.CorrelationID,
		},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish content request: %w", err)
	}
	return nil
}
