package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// StartAuditConsumer connects to RabbitMQ, declares the audit queue
// (durable) and hands every message to the sinks.  It runs a reconnect loop
// and only returns once ctx is cancelled; processing errors are logged and
// the offending message is rejected so the server keeps going.
func StartAuditConsumer(ctx context.Context, url, queue string, sinks ...Sink) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Printf("audit-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = consumeLoop(ctx, conn, queue, sinks)
		_ = conn.Close()
		if err != nil {
			log.Printf("audit-consumer: consume loop ended: %v; reconnecting", err)
			if !sleep(ctx, 2*time.Second) {
				return ctx.Err()
			}
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, queue string, sinks []Sink) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("audit-consumer: set QoS failed: %v", err)
	}
	if err := declareQueue(ch, queue); err != nil {
		return err
	}

	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := handleMessage(ctx, d.Body, sinks); err != nil {
				log.Printf("audit-consumer: handle message failed: %v", err)
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// handleMessage decodes one delivery and writes it to every sink.  All
// sinks are attempted; the first error is returned.
func handleMessage(ctx context.Context, body []byte, sinks []Sink) error {
	var ev AuditEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.ID == "" || ev.Type == "" {
		return errors.New("event without id or type")
	}
	var first error
	for _, s := range sinks {
		if err := s.Write(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}
