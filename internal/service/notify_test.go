package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/iliyamo/estate-claims/internal/queue"
)

type fakeGateway struct {
	mu   sync.Mutex
	got  []queue.OfferEvent
	fail bool
}

func (g *fakeGateway) Notify(_ context.Context, ev queue.OfferEvent) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.got = append(g.got, ev)
	if g.fail {
		return errors.New("broker unavailable")
	}
	return nil
}

func TestAsyncNotifier(t *testing.T) {
	gw := &fakeGateway{}
	n := NewAsyncNotifier(gw, 0)
	n.Publish(queue.OfferEvent{Type: queue.EventNewOffer, OfferID: 1})
	n.Publish(queue.OfferEvent{ID: "fixed", Type: queue.EventOfferAccepted, OfferID: 2})
	n.Wait()

	if len(gw.got) != 2 {
		t.Fatalf("gateway got %d events, want 2", len(gw.got))
	}
	ids := map[string]bool{}
	for _, ev := range gw.got {
		if ev.ID == "" {
			t.Errorf("event for offer %d has no id", ev.OfferID)
		}
		ids[ev.ID] = true
	}
	if !ids["fixed"] {
		t.Error("preset event id was overwritten")
	}
}

func TestAsyncNotifierSwallowsFailures(t *testing.T) {
	gw := &fakeGateway{fail: true}
	n := NewAsyncNotifier(gw, 0)
	n.Publish(queue.OfferEvent{Type: queue.EventNewOffer, OfferID: 1})
	n.Wait()
	if len(gw.got) != 1 {
		t.Fatalf("gateway got %d events, want 1", len(gw.got))
	}

	var nilNotifier *AsyncNotifier
	nilNotifier.Publish(queue.OfferEvent{})
	NewAsyncNotifier(nil, 0).Publish(queue.OfferEvent{})
}
