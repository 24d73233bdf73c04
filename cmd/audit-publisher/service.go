package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/librariashqip/libraria-backend/pkg/config"
	"github.com/librariashqip/libraria-backend/pkg/db/models"
	"github.com/librariashqip/libraria-backend/pkg/logger"
)

const (
	defaultBatchSize      = 100
	defaultPollInterval   = 500 * time.Millisecond
	defaultPublishTimeout = 15 * time.Second
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
)

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

// auditRepository is the slice of the audit store the fan-out needs. Events
// are append-only; the publisher touches nothing but published_at.
type auditRepository interface {
	ListUnpublished(ctx context.Context, limit int) ([]models.AuditEvent, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

type pinger interface {
	Ping(context.Context) error
}

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type ServiceParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         pinger
	PubSub     pinger
	Repository auditRepository
	Publisher  publisher
}

// Service ships audit events to the notification topic at least once.
// Consumers deduplicate on event_id; the ledger row is the source of truth.
type Service struct {
	cfg          *config.Config
	logg         *logger.Logger
	db           pinger
	pubsub       pinger
	repo         auditRepository
	publisher    publisher
	batchSize    int
	pollInterval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Repository == nil {
		return nil, errors.New("audit repository is required")
	}
	if params.Publisher == nil {
		return nil, errors.New("publisher is required")
	}

	batch := params.Config.Publisher.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	poll := params.Config.Publisher.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}

	return &Service{
		cfg:          params.Config,
		logg:         params.Logger,
		db:           params.DB,
		pubsub:       params.PubSub,
		repo:         params.Repository,
		publisher:    params.Publisher,
		batchSize:    batch,
		pollInterval: poll,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	for name, p := range map[string]pinger{"database": s.db, "pubsub": s.pubsub} {
		if p == nil {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			s.logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	backoff := s.pollInterval

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "audit publisher context canceled")
			return ctx.Err()
		default:
		}

		shipped, err := s.processBatch(ctx)
		if err != nil {
			s.logg.Error(ctx, "audit publisher batch error", err)
			backoff = nextBackoff(backoff, s.pollInterval, maxBackoff)
			if err := s.sleep(ctx, withJitter(backoff)); err != nil {
				return err
			}
			continue
		}

		backoff = s.pollInterval

		if shipped {
			continue
		}

		if err := s.sleep(ctx, withJitter(s.pollInterval)); err != nil {
			return err
		}
	}
}

// processBatch ships one batch and stamps only the events that made it out.
// A mid-batch failure leaves the rest unstamped for the next pass.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	events, err := s.repo.ListUnpublished(ctx, s.batchSize)
	if err != nil {
		return false, fmt.Errorf("listing unpublished events: %w", err)
	}
	if len(events) == 0 {
		return false, nil
	}

	shipped := make([]uuid.UUID, 0, len(events))
	var publishErr error

	for _, event := range events {
		if err := s.publishEvent(ctx, event); err != nil {
			fields := s.eventFields(event)
			fields["error"] = err.Error()
			s.logg.Warn(s.logg.WithFields(ctx, fields), "audit event publish failed")
			publishErr = err
			break
		}
		shipped = append(shipped, event.ID)
		s.logg.Info(s.logg.WithFields(ctx, s.eventFields(event)), "audit event published")
	}

	if len(shipped) > 0 {
		if err := s.repo.MarkPublished(ctx, shipped, time.Now().UTC()); err != nil {
			return false, fmt.Errorf("marking %d events published: %w", len(shipped), err)
		}
	}
	if publishErr != nil {
		return len(shipped) > 0, publishErr
	}
	return true, nil
}

func (s *Service) publishEvent(ctx context.Context, event models.AuditEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event %s: %w", event.ID, err)
	}

	attributes := map[string]string{
		"event_id":    event.ID.String(),
		"kind":        event.Kind.String(),
		"buyer_id":    event.BuyerID.String(),
		"content_id":  event.ContentID.String(),
		"occurred_at": event.OccurredAt.Format(time.RFC3339Nano),
	}
	if event.RentalID != nil {
		attributes["rental_id"] = event.RentalID.String()
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()

	result := s.publisher.Publish(publishCtx, &gcppubsub.Message{
		Data:       payload,
		Attributes: attributes,
	})
	if result == nil {
		return fmt.Errorf("publisher returned nil result for event %s", event.ID)
	}
	if _, err := result.Get(publishCtx); err != nil {
		return err
	}
	return nil
}

func (s *Service) eventFields(event models.AuditEvent) map[string]any {
	fields := map[string]any{
		"event_id":   event.ID.String(),
		"kind":       event.Kind,
		"buyer_id":   event.BuyerID.String(),
		"content_id": event.ContentID.String(),
		"batch_size": s.batchSize,
	}
	if event.RentalID != nil {
		fields["rental_id"] = event.RentalID.String()
	}
	return fields
}

func (s *Service) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	jitter := time.Duration(jitterSource.Int63n(int64(jitterWindow)))
	return d + jitter
}

func newGCPPubPublisher(p *gcppubsub.Publisher) publisher {
	if p == nil {
		return nil
	}
	return &gcpPublisher{Publisher: p}
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return &gcpPublishResult{PublishResult: p.Publisher.Publish(ctx, msg)}
}

type gcpPublishResult struct {
	*gcppubsub.PublishResult
}

func (r *gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r == nil || r.PublishResult == nil {
		return "", errors.New("publish result is nil")
	}
	return r.PublishResult.Get(ctx)
}
