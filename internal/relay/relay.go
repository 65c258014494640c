// Package relay moves committed order events from the outbox table onto the
// order events topic.
package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxIdleBackoff        = 10 * time.Second
)

// Reasons recorded when an event is parked.
const (
	ReasonUndecodable = "undecodable"
	ReasonRejected    = "rejected"
	ReasonMaxAttempts = "max_attempts"
)

type txRunner interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type broker interface {
	Ping(context.Context) error
}

type eventStore interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type resolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

// PublisherFor returns the publisher bound to a topic, or nil when the topic is unknown.
type PublisherFor func(topic string) Publisher

type Params struct {
	Config     config.OutboxConfig
	Logger     *logger.Logger
	DB         txRunner
	Broker     broker
	Events     eventStore
	Registry   resolver
	Publishers PublisherFor
	Metrics    *metrics.OutboxMetrics
}

// Relay drains unpublished outbox rows in batches. Each batch runs inside one
// transaction that holds row locks, so concurrent relays never double-publish.
type Relay struct {
	logg           *logger.Logger
	db             txRunner
	broker         broker
	events         eventStore
	registry       resolver
	publishers     PublisherFor
	metrics        *metrics.OutboxMetrics
	batchSize      int
	maxAttempts    int
	pollInterval   time.Duration
	publishTimeout time.Duration
	ordered        bool
}

func New(p Params) (*Relay, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("logger is required")
	case p.DB == nil:
		return nil, errors.New("database client is required")
	case p.Broker == nil:
		return nil, errors.New("broker client is required")
	case p.Events == nil:
		return nil, errors.New("outbox repository is required")
	case p.Registry == nil:
		return nil, errors.New("event registry is required")
	case p.Publishers == nil:
		return nil, errors.New("publisher lookup is required")
	}

	r := &Relay{
		logg:           p.Logger,
		db:             p.DB,
		broker:         p.Broker,
		events:         p.Events,
		registry:       p.Registry,
		publishers:     p.Publishers,
		metrics:        p.Metrics,
		batchSize:      p.Config.BatchSize,
		maxAttempts:    p.Config.MaxAttempts,
		pollInterval:   time.Duration(p.Config.PollIntervalMS) * time.Millisecond,
		publishTimeout: p.Config.PublishTimeout,
		ordered:        p.Config.OrderByAggregate,
	}
	if r.batchSize <= 0 {
		r.batchSize = defaultBatchSize
	}
	if r.maxAttempts <= 0 {
		r.maxAttempts = defaultMaxAttempts
	}
	if r.pollInterval <= 0 {
		r.pollInterval = defaultPollInterval
	}
	if r.publishTimeout <= 0 {
		r.publishTimeout = defaultPublishTimeout
	}
	return r, nil
}

// Run polls until ctx is canceled. Full batches are followed immediately by
// another drain; empty ones sleep for the poll interval.
func (r *Relay) Run(ctx context.Context) error {
	checks := []struct {
		name string
		ping func(context.Context) error
	}{
		{"database", r.db.Ping},
		{"pubsub", r.broker.Ping},
	}
	for _, check := range checks {
		if err := check.ping(ctx); err != nil {
			r.logg.Error(ctx, check.name+" ping failed", err)
			return fmt.Errorf("%s ping failed: %w", check.name, err)
		}
	}

	wait := newBackoff(r.pollInterval, maxIdleBackoff)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		handled, err := r.Drain(ctx)
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox drain failed", err)
			if err := sleep(ctx, wait.next()); err != nil {
				return err
			}
		case handled > 0:
			wait.reset()
		default:
			wait.reset()
			if err := sleep(ctx, jitter(r.pollInterval)); err != nil {
				return err
			}
		}
	}
}

type outcome int

const (
	outcomePublished outcome = iota
	outcomeRetry
	outcomeParked
)

// Drain processes one batch and reports how many rows it touched.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	started := time.Now()
	handled := 0
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := r.events.FetchUnpublishedForPublish(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return err
		}
		for _, row := range rows {
			if err := r.settle(ctx, tx, row); err != nil {
				return err
			}
			handled++
		}
		return nil
	})
	if handled > 0 {
		r.metrics.ObserveBatch(time.Since(started))
	}
	return handled, err
}

func (r *Relay) settle(ctx context.Context, tx *gorm.DB, row models.OutboxEvent) error {
	eventType := string(row.EventType)
	result, reason, cause := r.attempt(ctx, row)
	fields := logFields(row, r.batchSize)

	switch result {
	case outcomePublished:
		if err := r.events.MarkPublishedTx(tx, row.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", row.ID, err)
		}
		r.metrics.Published(eventType)
		r.logg.Info(r.logg.WithFields(ctx, fields), "order event published")
	case outcomeRetry:
		fields["attempt_count"] = row.AttemptCount + 1
		fields["error"] = cause.Error()
		if err := r.events.MarkFailedTx(tx, row.ID, cause); err != nil {
			return fmt.Errorf("mark failed %s: %w", row.ID, err)
		}
		r.metrics.Retried(eventType)
		r.logg.Warn(r.logg.WithFields(ctx, fields), "order event publish failed, will retry")
	case outcomeParked:
		fields["park_reason"] = reason
		fields["error"] = cause.Error()
		if err := r.events.MarkTerminalTx(tx, row.ID, fmt.Errorf("%s: %w", reason, cause), r.maxAttempts); err != nil {
			return fmt.Errorf("mark terminal %s: %w", row.ID, err)
		}
		r.metrics.Parked(eventType, reason)
		r.logg.Warn(r.logg.WithFields(ctx, fields), "order event parked")
	}
	return nil
}

func (r *Relay) attempt(ctx context.Context, row models.OutboxEvent) (outcome, string, error) {
	resolved, err := r.registry.Resolve(row)
	if err != nil {
		return outcomeParked, ReasonUndecodable, err
	}

	err = r.publish(ctx, row, resolved)
	if err == nil {
		return outcomePublished, "", nil
	}
	var nonRetryable registry.NonRetryableError
	if errors.As(err, &nonRetryable) {
		return outcomeParked, ReasonRejected, err
	}
	if row.AttemptCount+1 >= r.maxAttempts {
		return outcomeParked, ReasonMaxAttempts, err
	}
	return outcomeRetry, "", err
}

func (r *Relay) publish(ctx context.Context, row models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := r.publishers(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %s", topic))
	}

	msg := r.message(row, resolved)
	publishCtx, cancel := context.WithTimeout(ctx, r.publishTimeout)
	defer cancel()

	if _, err := pub.Publish(publishCtx, msg); err != nil {
		if msg.OrderingKey != "" {
			pub.Resume(msg.OrderingKey)
		}
		return err
	}
	return nil
}

func (r *Relay) message(row models.OutboxEvent, resolved *registry.ResolvedEvent) *gcppubsub.Message {
	msg := &gcppubsub.Message{
		Data: row.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(row.EventType),
			"aggregate_type": string(row.AggregateType),
			"aggregate_id":   row.AggregateID.String(),
			"occurred_at":    resolved.Envelope.OccurredAt.UTC().Format(time.RFC3339Nano),
		},
	}
	if r.ordered {
		msg.OrderingKey = row.AggregateID.String()
	}
	return msg
}

func logFields(row models.OutboxEvent, batchSize int) map[string]any {
	fields := map[string]any{
		"outbox_id":      row.ID.String(),
		"event_type":     row.EventType,
		"aggregate_type": row.AggregateType,
		"order_id":       row.AggregateID.String(),
		"attempt_count":  row.AttemptCount,
		"batch_size":     batchSize,
	}
	if row.LastError != nil {
		fields["last_error"] = *row.LastError
	}
	return fields
}
