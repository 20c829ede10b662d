package kafka

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

var consumerTracer = otel.Tracer("kafka/consumer")

// Handler returns nil only when the message is done and its offset may be
// committed.
type Handler func(ctx context.Context, m kafka.Message) error

type Consumer struct {
	r       *kafka.Reader
	topic   string
	group   string
	workers int
	logger  *slog.Logger
}

func NewConsumer(brokers []string, group, topic string, workers int, logger *slog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		StartOffset:    kafka.LastOffset,
		CommitInterval: 0, // manual commit
	})
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{r: r, topic: topic, group: group, workers: workers, logger: logger}
}

// Start fetches until ctx is cancelled. Messages are dispatched to workers;
// a failed message is logged and left uncommitted.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	jobs := make(chan kafka.Message, 1024)
	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := range jobs {
				if err := c.process(ctx, m, h); err != nil {
					c.logger.Error("kafka handler failed", "topic", c.topic, "offset", m.Offset, "error", err)
					continue
				}
				if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
					c.logger.Error("kafka commit failed", "topic", c.topic, "offset", m.Offset, "error", err)
				}
			}
		}()
	}
	defer wg.Wait()
	defer close(jobs)

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		select {
		case jobs <- m:
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *Consumer) process(ctx context.Context, m kafka.Message, h Handler) error {
	parent := otel.GetTextMapPropagator().Extract(ctx, NewMessageCarrier(&m))
	spanCtx, span := consumerTracer.Start(parent, "process "+c.topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingOperationName("process"),
			semconv.MessagingDestinationName(c.topic),
			semconv.MessagingKafkaConsumerGroup(c.group),
			semconv.MessagingKafkaMessageOffset(int(m.Offset)),
			semconv.MessagingDestinationPartitionID(strconv.Itoa(m.Partition)),
		),
	)
	defer span.End()

	if err := h(spanCtx, m); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}
