package analytics

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// messageWriter is the part of *kafka.Writer the tracker needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaTracker publishes events asynchronously to a Kafka topic.
type KafkaTracker struct {
	w       messageWriter
	inbox   chan kafka.Message
	closeCh chan struct{}
}

// NewKafkaTracker builds a tracker with a buffered inbox of buf messages.
func NewKafkaTracker(brokers []string, topic string, buf int) *KafkaTracker {
	return newKafkaTracker(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}, buf)
}

func newKafkaTracker(w messageWriter, buf int) *KafkaTracker {
	return &KafkaTracker{
		w:       w,
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
	}
}

// Start runs the writer loop until ctx is done, then flushes what is left in the inbox.
func (t *KafkaTracker) Start(ctx context.Context) {
	go func() {
		defer close(t.closeCh)
		for {
			select {
			case <-ctx.Done():
				t.drain()
				return
			case m := <-t.inbox:
				t.write(m)
			}
		}
	}()
}

func (t *KafkaTracker) drain() {
	for {
		select {
		case m := <-t.inbox:
			t.write(m)
		default:
			if err := t.w.Close(); err != nil {
				log.Printf("[Analytics] kafka writer close: %v", err)
			}
			return
		}
	}
}

func (t *KafkaTracker) write(m kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := t.w.WriteMessages(ctx, m); err != nil {
		log.Printf("[Analytics] kafka write failed: %v", err)
	}
}

// Track enqueues the event keyed by session; it drops the event when the inbox is full.
func (t *KafkaTracker) Track(_ context.Context, e Event) {
	value, err := json.Marshal(e)
	if err != nil {
		log.Printf("[Analytics] marshal event: %v", err)
		return
	}
	msg := kafka.Message{
		Key:   []byte(e.SessionID),
		Value: value,
		Time:  e.At,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(e.Name)},
			{Key: "destination", Value: []byte(e.Destination)},
		},
	}
	select {
	case t.inbox <- msg:
	default:
		log.Printf("[Analytics] inbox full, dropping %s event", e.Name)
	}
}

// WaitClosed blocks until the writer loop has flushed and exited.
func (t *KafkaTracker) WaitClosed() { <-t.closeCh }
