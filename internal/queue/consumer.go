package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// NotificationLogFile is the file, under the consumer's log directory, that
// receives one line per offer event.
const NotificationLogFile = "notifications.log"

// StartNotificationConsumer consumes OfferEventsQueue and appends a line per
// event to logDir/notifications.log, standing in for the seller/buyer
// messaging channel.  It reconnects with backoff until ctx is cancelled,
// then returns ctx.Err().
func StartNotificationConsumer(ctx context.Context, url, logDir string) error {
	if url == "" {
		url = defaultURL
	}
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Printf("notify-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			if !sleepCtx(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, logDir)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("notify-consumer: consume loop ended: %v; reconnecting", err)
		if !sleepCtx(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, logDir string) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("notify-consumer: set QoS failed: %v", err)
	}
	if _, err := ch.QueueDeclare(OfferEventsQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(OfferEventsQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := HandleOfferEvent(d.Body, logDir); err != nil {
				log.Printf("notify-consumer: handle message failed: %v", err)
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// HandleOfferEvent decodes one message body and appends its line to the
// notification log.
func HandleOfferEvent(body []byte, logDir string) error {
	var ev OfferEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" || ev.OfferID == 0 {
		return errors.New("event without type or offer id")
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(logDir, NotificationLogFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatOfferEvent(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatOfferEvent renders ev as a single newline-terminated log line.
func FormatOfferEvent(ev OfferEvent) string {
	var what, to string
	switch ev.Type {
	case EventNewOffer:
		what, to = "New offer", fmt.Sprintf("seller_id=%d", ev.SellerID)
	case EventOfferIncreased:
		what, to = "Offer increased", fmt.Sprintf("seller_id=%d", ev.SellerID)
	case EventOfferAccepted:
		what, to = "Offer accepted", fmt.Sprintf("buyer_id=%d", ev.BuyerID)
	default:
		what, to = string(ev.Type), fmt.Sprintf("seller_id=%d", ev.SellerID)
	}
	return fmt.Sprintf("[%s] %s | to %s | event_id=%s | sale_id=%d | item_id=%d | item=%q | offer_id=%d | buyer_id=%d | amount=%d cents\n",
		ev.OccurredAt.UTC().Format(time.RFC3339), what, to, ev.ID, ev.SaleID, ev.ItemID, ev.ItemTitle, ev.OfferID, ev.BuyerID, ev.AmountCents)
}
