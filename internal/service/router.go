package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/devkudos/ingest-service/internal/apperrors"
	"github.com/devkudos/ingest-service/internal/domain"
	"github.com/devkudos/ingest-service/internal/repository"
	"github.com/devkudos/ingest-service/internal/validation"
	"github.com/devkudos/ingest-service/pkg/logger/sl"
)

// RouterService routes a webhook delivery to exactly one handler and owns
// the delivery's status record. Unknown event types and payloads that fail
// validation are no-ops that still count as processed; handler errors mark
// the delivery failed and, when retryable, seed the retry queue.
type RouterService struct {
	log        *slog.Logger
	deliveries repository.DeliveryRepository
	prService  *PullRequestService
	reviews    *ReviewService
	commits    *CommitService
	registrar  *RegistrarService
	retry      RetryQueue
}

func NewRouterService(
	log *slog.Logger,
	deliveries repository.DeliveryRepository,
	prService *PullRequestService,
	reviews *ReviewService,
	commits *CommitService,
	registrar *RegistrarService,
	retry RetryQueue,
) *RouterService {
	return &RouterService{
		log:        log,
		deliveries: deliveries,
		prService:  prService,
		reviews:    reviews,
		commits:    commits,
		registrar:  registrar,
		retry:      retry,
	}
}

// ProcessEvent handles one delivery end to end. The returned error is the
// handler's failure; the delivery status has already been persisted either
// way, and a second persistence failure only logs.
func (s *RouterService) ProcessEvent(ctx context.Context, env domain.Envelope) error {
	const op = "internal.service.router.ProcessEvent"
	log := s.log.With(
		slog.String("op", op),
		slog.String("delivery_id", env.DeliveryID),
		slog.String("event_type", env.EventType),
		slog.Int("attempt", env.Attempt),
	)

	if err := validation.ValidateStruct(env); err != nil {
		log.Warn("invalid envelope, dropping", sl.Err(err))
		return nil
	}

	// The action probe is best-effort: a body the dispatcher cannot decode
	// is caught there and skipped.
	var probe struct {
		Action string `json:"action"`
	}
	_ = json.Unmarshal(env.Body, &probe)

	delivery := &domain.Delivery{
		ID:         env.DeliveryID,
		EventType:  env.EventType,
		Action:     probe.Action,
		Status:     domain.DeliveryStatusReceived,
		ReceivedAt: time.Now(),
	}

	if err := s.deliveries.CreateDelivery(ctx, delivery); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	handlerErr := s.dispatch(ctx, env, log)

	if handlerErr == nil {
		deliveriesProcessed.WithLabelValues(env.EventType).Inc()

		if err := s.deliveries.MarkProcessed(ctx, env.DeliveryID, time.Now()); err != nil {
			log.Error("failed to mark delivery processed", sl.Err(err))
		}

		return nil
	}

	deliveriesFailed.WithLabelValues(env.EventType).Inc()
	log.Error("failed to process delivery", sl.Err(handlerErr))

	if err := s.deliveries.MarkFailed(ctx, env.DeliveryID, handlerErr.Error(), time.Now()); err != nil {
		log.Error("failed to mark delivery failed", sl.Err(err))
	}

	// The consumer owns re-enqueueing for deliveries already on the queue.
	if env.Attempt == 0 && apperrors.IsRetryable(handlerErr) {
		s.enqueueRetry(ctx, env, log)
	}

	return handlerErr
}

func (s *RouterService) dispatch(ctx context.Context, env domain.Envelope, log *slog.Logger) error {
	switch env.EventType {
	case domain.EventTypePullRequest:
		var event domain.PullRequestEvent
		if !s.decode(env.Body, &event, log) {
			return nil
		}

		switch event.Action {
		case domain.ActionOpened, domain.ActionReopened, domain.ActionSynchronize,
			domain.ActionEdited, domain.ActionClosed:
		default:
			log.Info("pull request action not handled, skipping", slog.String("action", event.Action))
			return nil
		}

		accountID, ok := s.resolveAccount(event.EventContext, log)
		if !ok {
			return nil
		}

		return s.prService.HandlePullRequestEvent(ctx, accountID, &event)

	case domain.EventTypeReview:
		var event domain.ReviewEvent
		if !s.decode(env.Body, &event, log) {
			return nil
		}

		accountID, ok := s.resolveAccount(event.EventContext, log)
		if !ok {
			return nil
		}

		return s.reviews.HandleReviewEvent(ctx, accountID, &event)

	case domain.EventTypeIssueComment:
		var event domain.IssueCommentEvent
		if !s.decode(env.Body, &event, log) {
			return nil
		}

		accountID, ok := s.resolveAccount(event.EventContext, log)
		if !ok {
			return nil
		}

		return s.reviews.HandleCommentEvent(ctx, accountID, &event)

	case domain.EventTypePush:
		var event domain.PushEvent
		if !s.decode(env.Body, &event, log) {
			return nil
		}

		accountID, ok := s.resolveAccount(event.EventContext, log)
		if !ok {
			return nil
		}

		return s.commits.HandlePushEvent(ctx, accountID, &event)

	case domain.EventTypeInstallation:
		var event domain.InstallationEvent
		if !s.decode(env.Body, &event, log) {
			return nil
		}

		return s.registrar.HandleInstallation(ctx, &event)

	default:
		log.Info("unknown event type, skipping")
		return nil
	}
}

// decode unmarshals and validates a payload. Failures are input-validation
// problems: logged, skipped, never retried.
func (s *RouterService) decode(body []byte, v any, log *slog.Logger) bool {
	if err := json.Unmarshal(body, v); err != nil {
		log.Warn("failed to decode payload, skipping", sl.Err(err))
		return false
	}

	if err := validation.ValidateStruct(v); err != nil {
		log.Warn("payload failed validation, skipping", sl.Err(err))
		return false
	}

	return true
}

func (s *RouterService) resolveAccount(ec domain.EventContext, log *slog.Logger) (int64, bool) {
	accountID, ok := ec.ResolveAccountID()
	if !ok {
		log.Warn("dropping event", sl.Err(apperrors.ErrAccountUnresolved))
		return 0, false
	}

	return accountID, true
}

func (s *RouterService) enqueueRetry(ctx context.Context, env domain.Envelope, log *slog.Logger) {
	retry := env
	retry.Attempt = 1

	if err := s.retry.Enqueue(ctx, retry); err != nil {
		log.Error("failed to enqueue retry", sl.Err(err))
		return
	}

	deliveriesRetried.WithLabelValues(env.EventType).Inc()
	log.Info("delivery queued for retry")
}
