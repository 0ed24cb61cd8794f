package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/estate-claims/internal/metrics"
	"github.com/iliyamo/estate-claims/internal/model"
	"github.com/iliyamo/estate-claims/internal/queue"
)

// NotificationGateway delivers offer events to sellers and buyers.
// queue.Publisher is the RabbitMQ implementation.
type NotificationGateway interface {
	Notify(ctx context.Context, ev queue.OfferEvent) error
}

// ContactDeliveryService sends a one-time code to a buyer's email or phone.
// queue.CodeSender is the RabbitMQ implementation.
type ContactDeliveryService interface {
	Send(ctx context.Context, method model.ContactMethod, destination, code string) error
}

// Notifier is the post-commit hook the ledger fires events into.  Publish
// must not block on delivery.
type Notifier interface {
	Publish(ev queue.OfferEvent)
}

// AsyncNotifier hands each event to the gateway on its own goroutine.
// Failures are logged and counted, never returned.
type AsyncNotifier struct {
	gw      NotificationGateway
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewAsyncNotifier wraps gw.  A nil gw drops events silently.
func NewAsyncNotifier(gw NotificationGateway, timeout time.Duration) *AsyncNotifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AsyncNotifier{gw: gw, timeout: timeout}
}

// Publish fires ev without waiting for the gateway.
func (n *AsyncNotifier) Publish(ev queue.OfferEvent) {
	if n == nil || n.gw == nil {
		return
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()
		if err := n.gw.Notify(ctx, ev); err != nil {
			metrics.NotificationFailures.WithLabelValues(string(ev.Type)).Inc()
			log.Printf("notify: %s for offer %d failed: %v", ev.Type, ev.OfferID, err)
		}
	}()
}

// Wait blocks until in-flight notifications finish.  Used at shutdown.
func (n *AsyncNotifier) Wait() { n.wg.Wait() }
