package consumer

import (
	"context"
	"time"

	"notification-workers/internal/common/errors"
	"notification-workers/internal/common/logger"
	"notification-workers/internal/common/metrics"
	"notification-workers/internal/common/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Consumer pulls batches from a Source and dispatches each message to the
// Route registered for its subject. Messages are handled sequentially.
type Consumer struct {
	stream   string
	source   Source
	routes   map[string]Route
	errs     *errors.ErrorHandler
	obs      *observability.Observability
	logger   logger.Logger
	retryGap time.Duration
}

// New builds a Consumer. maxDeliver bounds redelivery of failing messages (0 = unbounded).
func New(stream string, source Source, routes []Route, maxDeliver int, obs *observability.Observability, log logger.Logger) *Consumer {
	table := make(map[string]Route, len(routes))
	for _, r := range routes {
		table[r.Subject] = r
	}
	if obs == nil {
		obs = observability.NewNoop()
	}
	log = log.WithFields(map[string]interface{}{"component": "consumer", "stream": stream})
	return &Consumer{
		stream:   stream,
		source:   source,
		routes:   table,
		errs:     errors.NewErrorHandler(log, maxDeliver),
		obs:      obs,
		logger:   log,
		retryGap: time.Second,
	}
}

// Subjects lists the subjects this consumer routes.
func (c *Consumer) Subjects() []string {
	out := make([]string, 0, len(c.routes))
	for s := range c.routes {
		out = append(out, s)
	}
	return out
}

// Run pulls until ctx is cancelled. Fetch errors are logged and retried.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("Consumer started", map[string]interface{}{"subjects": c.Subjects()})
	defer c.logger.Info("Consumer stopped", nil)

	for {
		if ctx.Err() != nil {
			return nil
		}

		msgs, err := c.source.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("Fetch failed", map[string]interface{}{"error": err.Error()})
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.retryGap):
			}
			continue
		}

		for _, msg := range msgs {
			c.Process(ctx, msg)
		}
	}
}

// Process handles one message and settles it with the source.
func (c *Consumer) Process(ctx context.Context, msg *Message) errors.Disposition {
	route, ok := c.routes[msg.Subject]
	if !ok {
		c.logger.Warn("No route for subject, acking", map[string]interface{}{
			"subject":   msg.Subject,
			"messageId": msg.ID,
		})
		c.settle(ctx, msg, errors.Ack)
		metrics.ConsumerMessages.WithLabelValues(c.stream, msg.Subject, "skip").Inc()
		return errors.Ack
	}

	ctx, span := c.obs.StartSpan(ctx, msg.Subject,
		attribute.String("messaging.destination", c.stream),
		attribute.String("messaging.message.id", msg.ID),
		attribute.Int("messaging.delivery_count", msg.Deliveries),
	)
	defer span.End()

	start := time.Now()
	err := route.dispatch(ctx, msg.Data)
	elapsed := time.Since(start)
	metrics.ConsumerHandlerDuration.WithLabelValues(c.stream, msg.Subject).Observe(elapsed.Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Error("Handler failed", map[string]interface{}{
			"subject":    msg.Subject,
			"messageId":  msg.ID,
			"deliveries": msg.Deliveries,
			"traceId":    observability.TraceID(ctx),
			"error":      err.Error(),
		})
	}

	d := c.errs.Resolve(msg.Subject, msg.Deliveries, err)
	c.settle(ctx, msg, d)

	metrics.ConsumerMessages.WithLabelValues(c.stream, msg.Subject, d.String()).Inc()
	c.obs.RecordMessage(ctx, msg.Subject, d.String(), elapsed)
	return d
}

func (c *Consumer) settle(ctx context.Context, msg *Message, d errors.Disposition) {
	var err error
	if d == errors.Nack {
		err = c.source.Nack(ctx, msg)
	} else {
		err = c.source.Ack(ctx, msg)
	}
	if err != nil {
		c.logger.Error("Failed to settle message", map[string]interface{}{
			"subject":     msg.Subject,
			"messageId":   msg.ID,
			"disposition": d.String(),
			"error":       err.Error(),
		})
	}
}
