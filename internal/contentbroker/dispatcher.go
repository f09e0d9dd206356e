package contentbroker

import (
	"context"
	"encoding/json"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/gridpoint-energy/postoffice-backend/pkg/logger"
)

// Dispatcher routes content replies arriving on the shared reply
// subscription to the in-flight request waiting on the matching correlation
// id. Replies with no waiter are acked and dropped; a late reply after a
// timeout is a normal occurrence, the next peek simply asks again.
type Dispatcher struct {
	mu      sync.Mutex
	waiters map[string]chan ContentReply
	log     *logger.Logger
}

func NewDispatcher(log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		waiters: make(map[string]chan ContentReply),
		log:     log,
	}
}

// Register opens a reply slot for the correlation id. The caller must
// Release it when done waiting.
func (d *Dispatcher) Register(correlationID string) <-chan ContentReply {
	ch := make(chan ContentReply, 1)
	d.mu.Lock()
	d.waiters[correlationID] = ch
	d.mu.Unlock()
	return ch
}

// Release discards the reply slot for the correlation id.
func (d *Dispatcher) Release(correlationID string) {
	d.mu.Lock()
	delete(d.waiters, correlationID)
	d.mu.Unlock()
}

// Deliver hands the reply to its waiter, reporting whether one was found.
func (d *Dispatcher) Deliver(reply ContentReply) bool {
	d.mu.Lock()
	ch, ok := d.waiters[reply.CorrelationID]
	if ok {
		delete(d.waiters, reply.CorrelationID)
	}
	d.mu.Unlock()
	if !ok {
		return false
	}
	ch <- reply
	return true
}

// Run pumps the reply subscription until the context is canceled. Every
// message is acked: replies are at-most-once from the waiter's point of
// view, and an unroutable reply must not be redelivered forever.
func (d *Dispatcher) Run(ctx context.Context, sub *pubsub.Subscriber) error {
	return sub.Receive(ctx, func(_ context.Context, msg *pubsub.Message) {
		d.dispatch(ctx, msg.Data, msg.Attributes)
		msg.Ack()
	})
}

func (d *Dispatcher) dispatch(ctx context.Context, data []byte, attributes map[string]string) {
	var reply ContentReply
	if err := json.Unmarshal(data, &reply); err != nil {
		d.log.Error(ctx, "discarding malformed content reply", err)
		return
	}
	if reply.CorrelationID == "" {
		reply.CorrelationID = attributes[CorrelationIDAttribute]
	}
	if reply.CorrelationID == "" {
		d.log.Warn(ctx, "discarding content reply without correlation id")
		return
	}

	if !d.Deliver(reply) {
		// Late replies after a waiter timed out are expected; the next
		// peek issues a fresh request.
		ctx = d.log.WithField(ctx, "correlation_id", reply.CorrelationID)
		d.log.Info(ctx, "no waiter for content reply")
	}
}
