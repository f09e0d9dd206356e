package contentbroker

import (
	"context"
	"time"

	"github.com/gridpoint-energy/postoffice-backend/pkg/db/models"
	"github.com/gridpoint-energy/postoffice-backend/pkg/enums"
	"github.com/gridpoint-energy/postoffice-backend/pkg/logger"
	"github.com/gridpoint-energy/postoffice-backend/pkg/metrics"
)

const (
	outcomeSuccess = "success"
	outcomeTimeout = "timeout"
)

// RequestSender publishes a content request on the queue owned by the
// origin's sub-domain.
type RequestSender interface {
	SendContentRequest(ctx context.Context, origin enums.Origin, request ContentRequest) error
}

// Broker asks a bundle's sub-domain for the bundle payload and waits for the
// correlated reply under a fixed time bound. Timeouts and application errors
// from the sub-domain both come back as "no content yet", never as errors;
// re-peeking is always safe.
type Broker struct {
	sender     RequestSender
	dispatcher *Dispatcher
	timeout    time.Duration
	metrics    *metrics.BrokerMetrics
	log        *logger.Logger
}

func NewBroker(sender RequestSender, dispatcher *Dispatcher, timeout time.Duration, brokerMetrics *metrics.BrokerMetrics, log *logger.Logger) *Broker {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Broker{
		sender:     sender,
		dispatcher: dispatcher,
		timeout:    timeout,
		metrics:    brokerMetrics,
		log:        log,
	}
}

// RequestContent resolves the bundle's content reference. A nil result with
// a nil error means the content is not ready yet.
func (b *Broker) RequestContent(ctx context.Context, bundle *models.Bundle) (*BundleContent, error) {
	correlationID := bundle.ID.String()
	ctx = b.log.WithBundleID(ctx, correlationID)
	ctx = b.log.WithOrigin(ctx, string(bundle.Origin))

	replies := b.dispatcher.Register(correlationID)
	defer b.dispatcher.Release(correlationID)

	request := ContentRequest{
		CorrelationID:   correlationID,
		ContentType:     bundle.ContentType,
		ResponseFormat:  bundle.ResponseFormat,
		ResponseVersion: bundle.ResponseVersion,
	}

	started := time.Now()
	if err := b.sender.SendContentRequest(ctx, bundle.Origin, request); err != nil {
		return nil, err
	}

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case reply := <-replies:
		b.observe(bundle.Origin, started, replyOutcome(reply))
		if reply.Failed() {
			ctx = b.log.WithField(ctx, "reason", string(reply.Reason))
			b.log.Warn(ctx, "sub-domain declined content request: "+reply.Description)
			return nil, nil
		}
		return &BundleContent{URI: reply.ContentURI}, nil
	case <-timer.C:
		b.observe(bundle.Origin, started, outcomeTimeout)
		b.log.Warn(ctx, "content request timed out")
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *Broker) observe(origin enums.Origin, started time.Time, outcome string) {
	if b.metrics == nil {
		return
	}
	b.metrics.ObserveDuration(string(origin), time.Since(started))
	b.metrics.IncOutcome(string(origin), outcome)
}

func replyOutcome(reply ContentReply) string {
	if reply.Failed() {
		return string(reply.Reason)
	}
	return outcomeSuccess
}
