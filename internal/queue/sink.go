package queue

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Sink stores audit events received by the consumer.
type Sink interface {
	Write(ctx context.Context, ev AuditEvent) error
}

// FileSink appends one human-readable line per event to <dir>/audit.log.
type FileSink struct {
	dir string
	mu  sync.Mutex
}

func NewFileSink(dir string) *FileSink { return &FileSink{dir: dir} }

// Path returns the file the sink writes to.
func (s *FileSink) Path() string { return filepath.Join(s.dir, "audit.log") }

func (s *FileSink) Write(ctx context.Context, ev AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", s.dir, err)
	}
	f, err := os.OpenFile(s.Path(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(formatLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

func formatLine(ev AuditEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s | id=%s | parking_id=%d | user_id=%d", ev.OccurredAt, ev.Type, ev.ID, ev.ParkingID, ev.UserID)
	if ev.ReservationID != 0 {
		fmt.Fprintf(&b, " | reservation_id=%d", ev.ReservationID)
	}
	if ev.Operation != "" {
		fmt.Fprintf(&b, " | op=%s", ev.Operation)
	}
	if ev.FromStatus != "" || ev.ToStatus != "" {
		fmt.Fprintf(&b, " | status=%s->%s", ev.FromStatus, ev.ToStatus)
	}
	if ev.Start != "" {
		fmt.Fprintf(&b, " | window=%s..%s", ev.Start, ev.End)
	}
	if ev.LocalWindow != "" {
		fmt.Fprintf(&b, " | local=%s", ev.LocalWindow)
	}
	if ev.Detail != "" {
		fmt.Fprintf(&b, " | detail=%q", ev.Detail)
	}
	b.WriteByte('\n')
	return b.String()
}

// MongoSink inserts events into a collection keyed by event id, so a
// redelivered message is stored once.
type MongoSink struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoSink connects to uri and writes to the "audit_events" collection
// of database db.
func NewMongoSink(ctx context.Context, uri, db string) (*MongoSink, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return &MongoSink{client: client, coll: client.Database(db).Collection("audit_events")}, nil
}

func (s *MongoSink) Write(ctx context.Context, ev AuditEvent) error {
	_, err := s.coll.InsertOne(ctx, ev)
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}

func (s *MongoSink) Close(ctx context.Context) error { return s.client.Disconnect(ctx) }
