package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/devkudos/ingest-service/internal/domain"
	"github.com/devkudos/ingest-service/internal/repository"
)

// ReviewService handles pull_request_review and issue_comment deliveries.
type ReviewService struct {
	BaseService
	registrar *RegistrarService
	prService *PullRequestService
	points    *PointsService
	prs       repository.PullRequestRepository
	reviews   repository.ReviewRepository
	analyzer  Analyzer
}

func NewReviewService(
	db DB,
	log *slog.Logger,
	registrar *RegistrarService,
	prService *PullRequestService,
	points *PointsService,
	prs repository.PullRequestRepository,
	reviews repository.ReviewRepository,
	analyzer Analyzer,
) *ReviewService {
	return &ReviewService{
		BaseService: NewBaseService(db, log),
		registrar:   registrar,
		prService:   prService,
		points:      points,
		prs:         prs,
		reviews:     reviews,
		analyzer:    analyzer,
	}
}

// HandleReviewEvent stores a submitted review and awards the reviewer.
// The event carries the pull request fragment, so a review arriving before
// any pull_request delivery still lands on a stored pull request.
func (s *ReviewService) HandleReviewEvent(ctx context.Context, accountID int64, event *domain.ReviewEvent) error {
	const op = "internal.service.review.HandleReviewEvent"
	log := s.log.With(
		slog.String("op", op),
		slog.Int64("review_id", event.Review.ID),
		slog.Int64("pr_id", event.PullRequest.ID),
	)

	if event.Action != domain.ActionSubmitted {
		log.Info("review action not handled, skipping", slog.String("action", event.Action))
		return nil
	}

	if event.Repository == nil {
		log.Warn("event has no repository, skipping")
		return nil
	}

	if event.Review.User.ID == 0 || event.PullRequest.User.ID == 0 {
		log.Warn("event has no usable author, skipping")
		return nil
	}

	err := s.registrar.EnsureRepository(ctx, accountID, event.AccountName(), event.Repository.ID, event.Repository.FullName)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.registrar.EnsureWebhookUser(ctx, accountID, event.PullRequest.User); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.registrar.EnsureWebhookUser(ctx, accountID, event.Review.User); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	pr := s.prService.toDomain(&event.PullRequest, event.Repository.ID)
	pr.ReviewerIDs = append(pr.ReviewerIDs, event.Review.User.ID)

	if err := s.prs.UpsertPullRequest(ctx, s.db, pr); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	review := &domain.Review{
		ID:            event.Review.ID,
		PullRequestID: event.PullRequest.ID,
		AuthorID:      event.Review.User.ID,
		State:         domain.ReviewStateFrom(event.Review.State),
		Body:          event.Review.Body,
		SubmittedAt:   time.Now(),
	}
	if event.Review.SubmittedAt != nil {
		review.SubmittedAt = *event.Review.SubmittedAt
	}

	if err := s.reviews.UpsertReview(ctx, s.db, review); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.points.AwardReviewPoints(ctx, accountID, review); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// HandleCommentEvent stores a pull request comment with its sentiment
// score. Comments on plain issues are skipped; comments on pull requests
// this service has never stored fail the delivery.
func (s *ReviewService) HandleCommentEvent(ctx context.Context, accountID int64, event *domain.IssueCommentEvent) error {
	const op = "internal.service.review.HandleCommentEvent"
	log := s.log.With(
		slog.String("op", op),
		slog.Int64("comment_id", event.Comment.ID),
	)

	if event.Action != domain.ActionCreated && event.Action != domain.ActionEdited {
		log.Info("comment action not handled, skipping", slog.String("action", event.Action))
		return nil
	}

	if !event.Issue.IsPullRequest() {
		log.Info("comment is not on a pull request, skipping")
		return nil
	}

	if event.Repository == nil {
		log.Warn("event has no repository, skipping")
		return nil
	}

	if event.Comment.User.ID == 0 {
		log.Warn("comment has no author, skipping")
		return nil
	}

	pr, err := s.prs.GetPullRequestByNumber(ctx, event.Repository.ID, event.Issue.Number)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.registrar.EnsureWebhookUser(ctx, accountID, event.Comment.User); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	score := s.analyzer.AnalyzeSentiment(ctx, event.Comment.Body)

	if s.analyzer.IsOffensiveContent(ctx, event.Comment.Body) {
		score -= 0.5
		if score < 0 {
			score = 0
		}

		log.Warn("offensive content detected in comment",
			slog.Int64("author_id", event.Comment.User.ID),
			slog.Int64("pr_id", pr.ID),
		)
	}

	comment := &domain.Comment{
		ID:             event.Comment.ID,
		PullRequestID:  pr.ID,
		AuthorID:       event.Comment.User.ID,
		Body:           event.Comment.Body,
		SentimentScore: score,
		CreatedAt:      time.Now(),
	}
	if event.Comment.CreatedAt != nil {
		comment.CreatedAt = *event.Comment.CreatedAt
	}

	if err := s.reviews.UpsertComment(ctx, s.db, comment); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
