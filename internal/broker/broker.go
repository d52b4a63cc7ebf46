// Package broker implements the Broker Adapter (spec §4.C): a RabbitMQ
// client declaring the fixed durable queue set, publishing persistent
// JSON envelopes, and consuming with prefetch=1 and manual ack. The
// connection/channel lifecycle is grounded on the RabbitMQ consumer
// shape in other_examples' evalgo-org-eve flow consumer (connection,
// channel, reconnect-on-loss), adapted from the streadway/amqp client
// it used to the maintained rabbitmq/amqp091-go fork.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"

	"fileforge/internal/config"
	"fileforge/internal/models"
)

// Envelope is the wire shape published to every queue (spec §6):
// job_id, file_id, bucket, key, type, params.
type Envelope struct {
	JobID  string            `json:"job_id"`
	FileID string            `json:"file_id"`
	Bucket string            `json:"bucket"`
	Key    string            `json:"key"`
	Type   models.ActionKind `json:"type"`
	Params models.Params     `json:"params,omitempty"`
}

// Broker owns a single AMQP connection and channel, reconnecting
// transparently on loss. Callers never see the underlying connection —
// Publish and Consume re-dial as needed.
type Broker struct {
	url         string
	heartbeat   time.Duration
	prefetch    int
	reconnectMax time.Duration

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// New creates a Broker from config without dialing yet; Dial (or the
// first Publish/Consume) establishes the connection.
func New(cfg *config.Config) *Broker {
	return &Broker{
		url:          cfg.BrokerURL(),
		heartbeat:    cfg.BrokerHeartbeat,
		prefetch:     cfg.BrokerPrefetch,
		reconnectMax: cfg.BrokerReconnectMax,
	}
}

// Dial connects and declares the fixed queue set, durable with no
// auto-delete, matching spec §4.C.
func (b *Broker) Dial(ctx context.Context) error {
	ch, err := b.connect(ctx)
	if err != nil {
		return err
	}
	for _, q := range models.AllQueues {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("broker: declare queue %s: %w", q, err)
		}
	}
	return nil
}

func (b *Broker) connect(ctx context.Context) (*amqp.Channel, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ch != nil && !b.ch.IsClosed() {
		return b.ch, nil
	}

	var conn *amqp.Connection
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = b.reconnectMax

	err := backoff.Retry(func() error {
		c, dialErr := amqp.DialConfig(b.url, amqp.Config{
			Heartbeat: b.heartbeat,
			Properties: amqp.Table{
				"connection_name": "fileforge",
			},
		})
		if dialErr != nil {
			return dialErr
		}
		conn = c
		return nil
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		return nil, fmt.Errorf("broker: dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("broker: open channel: %w", err)
	}
	if err := ch.Qos(b.prefetch, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("broker: set qos: %w", err)
	}

	b.conn = conn
	b.ch = ch
	return ch, nil
}

// Publish sends a persistent JSON envelope to the given queue.
func (b *Broker) Publish(ctx context.Context, queue string, env Envelope) error {
	ch, err := b.connect(ctx)
	if err != nil {
		return err
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("broker: marshal envelope: %w", err)
	}
	return ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

// Handler processes one envelope. Returning an error causes the
// delivery to be nacked without requeue (the worker runtime is
// responsible for marking the job FAILED before returning an error, so
// a requeue would only duplicate work against an already-terminal job).
type Handler func(ctx context.Context, env Envelope) error

// Consume blocks, dispatching deliveries from queue to handler with
// manual ack, until ctx is cancelled.
func (b *Broker) Consume(ctx context.Context, queue string, handler Handler) error {
	ch, err := b.connect(ctx)
	if err != nil {
		return err
	}

	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("broker: consume %s: %w", queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("broker: delivery channel for %s closed", queue)
			}
			var env Envelope
			if err := json.Unmarshal(d.Body, &env); err != nil {
				slog.Error("broker: malformed envelope, dropping", "queue", queue, "error", err)
				_ = d.Nack(false, false)
				continue
			}
			if err := handler(ctx, env); err != nil {
				slog.Error("broker: handler failed", "queue", queue, "job_id", env.JobID, "error", err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Close shuts down the channel and connection.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ch != nil {
		_ = b.ch.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}
