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

// ErrBacklogFull is returned by Publish when the broker has been
// unreachable long enough for the buffer to fill up.
var ErrBacklogFull = errors.New("audit backlog full")

// Publisher hands audit events to RabbitMQ from a background goroutine so
// that a slow or absent broker never holds up a request.  Events are
// buffered in memory; when the buffer is full new events are dropped.
type Publisher struct {
	url    string
	queue  string
	events chan AuditEvent
}

// NewPublisher creates a publisher for queue on the broker at url that
// buffers up to backlog events.  Nothing is sent until Run is started.
func NewPublisher(url, queue string, backlog int) *Publisher {
	if backlog <= 0 {
		backlog = 1024
	}
	return &Publisher{url: url, queue: queue, events: make(chan AuditEvent, backlog)}
}

// Publish enqueues ev.  It never blocks.
func (p *Publisher) Publish(ctx context.Context, ev AuditEvent) error {
	select {
	case p.events <- ev:
		return nil
	default:
		log.Printf("audit-publisher: backlog full, dropping %s %s", ev.Type, ev.ID)
		return ErrBacklogFull
	}
}

// Run connects to the broker and drains the buffer until ctx is done,
// reconnecting with exponential backoff when the connection drops.  An
// event whose publish failed is retried on the next connection.
func (p *Publisher) Run(ctx context.Context) {
	var pending *AuditEvent
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := amqp.Dial(p.url)
		if err != nil {
			log.Printf("audit-publisher: failed to dial broker: %v; retrying in %s", err, backoff)
			if !sleep(ctx, backoff) {
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		pending, err = p.publishLoop(ctx, conn, pending)
		_ = conn.Close()
		if err != nil {
			log.Printf("audit-publisher: publish loop ended: %v; reconnecting", err)
			if !sleep(ctx, 2*time.Second) {
				return
			}
		}
	}
}

func (p *Publisher) publishLoop(ctx context.Context, conn *amqp.Connection, pending *AuditEvent) (*AuditEvent, error) {
	ch, err := conn.Channel()
	if err != nil {
		return pending, fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := declareQueue(ch, p.queue); err != nil {
		return pending, err
	}
	closed := conn.NotifyClose(make(chan *amqp.Error, 1))

	for {
		if pending == nil {
			select {
			case <-ctx.Done():
				return nil, nil
			case amqpErr := <-closed:
				return nil, fmt.Errorf("connection closed: %v", amqpErr)
			case ev := <-p.events:
				pending = &ev
			}
		}
		msg, err := encode(*pending)
		if err != nil {
			log.Printf("audit-publisher: dropping %s: %v", pending.ID, err)
			pending = nil
			continue
		}
		pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = ch.PublishWithContext(pubCtx,
			"",      // default exchange
			p.queue, // routing key = queue name
			false,   // mandatory
			false,   // immediate
			msg,
		)
		cancel()
		if err != nil {
			return pending, fmt.Errorf("publish: %w", err)
		}
		pending = nil
	}
}

// declareQueue makes sure the durable audit queue exists.
func declareQueue(ch *amqp.Channel, name string) error {
	if _, err := ch.QueueDeclare(
		name,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	return nil
}

// encode builds the persistent JSON message for ev.
func encode(ev AuditEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal event: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Type:         ev.Type,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}, nil
}

// sleep waits for d and reports false when ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
