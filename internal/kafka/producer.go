package kafka

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer buffers messages in an inbox drained by one goroutine, so
// Publish never waits on the broker.
type Producer struct {
	w      messageWriter
	inbox  chan kafka.Message
	done   chan struct{}
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

func NewProducer(brokers []string, topic string, buf int, logger *slog.Logger) *Producer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
		Async:                  true, // fire-and-forget; failures reported via Completion
	}
	w.Completion = func(msgs []kafka.Message, err error) {
		if err != nil {
			logger.Error("kafka write failed", "topic", topic, "messages", len(msgs), "error", err)
		}
	}
	return newProducer(w, buf, logger)
}

func newProducer(w messageWriter, buf int, logger *slog.Logger) *Producer {
	if buf <= 0 {
		buf = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Producer{
		w:      w,
		inbox:  make(chan kafka.Message, buf),
		done:   make(chan struct{}),
		logger: logger,
	}
}

func (p *Producer) Start() {
	go func() {
		defer close(p.done)
		for m := range p.inbox {
			if err := p.w.WriteMessages(context.Background(), m); err != nil {
				p.logger.Error("kafka publish failed", "key", string(m.Key), "error", err)
			}
		}
		if err := p.w.Close(); err != nil {
			p.logger.Error("kafka writer close", "error", err)
		}
	}()
}

// Publish enqueues a message. It reports false when the producer is closed
// or the inbox is full; the message is dropped in that case.
func (p *Producer) Publish(key, value []byte, headers ...kafka.Header) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.inbox <- kafka.Message{Key: key, Value: value, Time: time.Now(), Headers: headers}:
		return true
	default:
		p.logger.Warn("kafka inbox full, dropping message", "key", string(key))
		return false
	}
}

// Close the inbox so the goroutine flushes what is left and exits.
func (p *Producer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.inbox)
	}
}

// WaitClosed blocks until the flush after Close is done.
func (p *Producer) WaitClosed() { <-p.done }
