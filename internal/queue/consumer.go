package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// StartNotificationConsumer connects to RabbitMQ, declares the booking
// event queues (durable) and starts consuming.  Each message becomes
// one or more lines in logs/notifications.log: one per email that
// would be sent and one per calendar event that would be created.
// The function runs a reconnect loop with backoff and keeps running
// indefinitely; processing errors are logged and the offending message
// rejected without requeue so the server continues operating.
func StartNotificationConsumer() error {
	url := brokerURL()

	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Printf("notification-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := consumeLoop(conn); err != nil {
			log.Printf("notification-consumer: consume loop ended: %v; reconnecting", err)
			time.Sleep(2 * time.Second)
			continue
		}
	}
}

func consumeLoop(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("notification-consumer: set QoS failed: %v", err)
	}

	for _, name := range []string{BookingCreatedQueue, BookingCancelledQueue} {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", name, err)
		}
	}

	created, err := ch.Consume(BookingCreatedQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", BookingCreatedQueue, err)
	}
	cancelled, err := ch.Consume(BookingCancelledQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", BookingCancelledQueue, err)
	}

	for {
		select {
		case d, ok := <-created:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			ackOrReject(d, handleCreated(d.Body))
		case d, ok := <-cancelled:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			ackOrReject(d, handleCancelled(d.Body))
		}
	}
}

func ackOrReject(d amqp.Delivery, err error) {
	if err != nil {
		log.Printf("notification-consumer: handle message failed: %v", err)
		_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
		return
	}
	_ = d.Ack(false)
}

func handleCreated(body []byte) error {
	var ev BookingCreatedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	lines := []string{
		fmt.Sprintf("[%s] email to=%s | booking confirmed | booking_id=%s | experience=%q | date=%s %s-%s | guests=%d | total=%d cents\n",
			ev.CreatedAt, ev.TravelerEmail, ev.BookingID, ev.ExperienceTitle, ev.Date, ev.StartTime, ev.EndTime, ev.Guests, ev.TotalCents),
		fmt.Sprintf("[%s] email to=%s | new booking from %q | booking_id=%s | experience=%q | date=%s | guests=%d\n",
			ev.CreatedAt, ev.GuideEmail, ev.TravelerName, ev.BookingID, ev.ExperienceTitle, ev.Date, ev.Guests),
	}
	if ev.CalendarEmail != nil {
		lines = append(lines, fmt.Sprintf("[%s] calendar account=%s | event %q on %s %s-%s\n",
			ev.CreatedAt, *ev.CalendarEmail, ev.ExperienceTitle, ev.Date, ev.StartTime, ev.EndTime))
	}
	return appendNotificationLog(lines)
}

func handleCancelled(body []byte) error {
	var ev BookingCancelledEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	lines := []string{
		fmt.Sprintf("[%s] email to=%s | booking cancelled | booking_id=%s | experience=%q | date=%s\n",
			ev.CancelledAt, ev.TravelerEmail, ev.BookingID, ev.ExperienceTitle, ev.Date),
		fmt.Sprintf("[%s] email to=%s | booking by %q cancelled | booking_id=%s | experience=%q | date=%s | guests released=%d\n",
			ev.CancelledAt, ev.GuideEmail, ev.TravelerName, ev.BookingID, ev.ExperienceTitle, ev.Date, ev.Guests),
	}
	return appendNotificationLog(lines)
}

func appendNotificationLog(lines []string) error {
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	fpath := filepath.Join("logs", "notifications.log")
	f, err := os.OpenFile(fpath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	for _, line := range lines {
		if _, err := f.WriteString(line); err != nil {
			return fmt.Errorf("write log: %w", err)
		}
	}
	return nil
}
