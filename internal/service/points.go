package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"github.com/devkudos/ingest-service/internal/domain"
	"github.com/devkudos/ingest-service/internal/repository"
	"github.com/devkudos/ingest-service/pkg/logger/sl"
	"github.com/jmoiron/sqlx"
)

// reviewPoints maps a review state onto its award.
func reviewPoints(state domain.ReviewState) int {
	switch state {
	case domain.ReviewStateApproved:
		return 10
	case domain.ReviewStateChangesRequested:
		return 15
	case domain.ReviewStateCommented:
		return 5
	default:
		return 0
	}
}

// PointsService converts merged pull requests and submitted reviews into
// balance increments with matching ledger entries.
type PointsService struct {
	BaseService
	prs      repository.PullRequestRepository
	users    repository.UserRepository
	points   repository.PointsRepository
	accounts repository.AccountRepository
	hooks    Hooks
}

func NewPointsService(
	db DB,
	log *slog.Logger,
	prs repository.PullRequestRepository,
	users repository.UserRepository,
	points repository.PointsRepository,
	accounts repository.AccountRepository,
	hooks Hooks,
) *PointsService {
	if hooks == nil {
		hooks = NoopHooks{}
	}

	return &PointsService{
		BaseService: NewBaseService(db, log),
		prs:         prs,
		users:       users,
		points:      points,
		accounts:    accounts,
		hooks:       hooks,
	}
}

// AwardPRPoints pays out a merged pull request to its author. The award is
// the rounded overall score. The balance increment, ledger entry, paid-out
// marker and level promotion share one transaction, and a set marker makes
// re-delivered merge events a no-op.
func (s *PointsService) AwardPRPoints(ctx context.Context, prID int64) error {
	const op = "internal.service.points.AwardPRPoints"
	log := s.log.With(slog.String("op", op), slog.Int64("pr_id", prID))

	pr, err := s.prs.GetPullRequestByID(ctx, prID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if pr.PointsAwarded != nil {
		log.Info("points already awarded, skipping")
		return nil
	}

	if pr.OverallScore == nil {
		log.Warn("pull request has no overall score, skipping award")
		return nil
	}

	repo, err := s.accounts.GetRepositoryByID(ctx, pr.RepositoryID)
	if err != nil {
		return fmt.Errorf("%s: failed to get repository: %w", op, err)
	}

	member, err := s.users.HasMembership(ctx, pr.AuthorID, repo.AccountID)
	if err != nil {
		return fmt.Errorf("%s: failed to check membership: %w", op, err)
	}

	if !member {
		log.Warn("author is not a member of the repository account, skipping award",
			slog.Int64("author_id", pr.AuthorID),
			slog.Int64("account_id", repo.AccountID),
		)

		return nil
	}

	points := int(math.Round(*pr.OverallScore))

	err = s.transaction(ctx, op, func(tx *sqlx.Tx) error {
		total, err := s.points.AddPoints(ctx, tx, pr.AuthorID, points)
		if err != nil {
			return fmt.Errorf("%s: failed to add points: %w", op, err)
		}

		transaction := &domain.PointTransaction{
			UserID:        pr.AuthorID,
			AccountID:     repo.AccountID,
			Amount:        points,
			Reason:        domain.PointReasonPRMerged,
			ReferenceID:   strconv.FormatInt(pr.ID, 10),
			ReferenceType: "pull_request",
		}

		if err := s.points.CreateTransaction(ctx, tx, transaction); err != nil {
			return fmt.Errorf("%s: failed to create transaction: %w", op, err)
		}

		if err := s.prs.SetPointsAwarded(ctx, tx, pr.ID, points); err != nil {
			return fmt.Errorf("%s: failed to mark points awarded: %w", op, err)
		}

		if err := s.points.PromoteLevel(ctx, tx, pr.AuthorID, domain.LevelForPoints(total)); err != nil {
			return fmt.Errorf("%s: failed to promote level: %w", op, err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	log.Info("points awarded",
		slog.Int("points", points),
		slog.Int64("author_id", pr.AuthorID),
	)

	if err := s.hooks.PRMerged(ctx, pr, points); err != nil {
		log.Warn("pr merged hook failed", sl.Err(err))
	}

	return nil
}

// AwardReviewPoints pays out a submitted review to the reviewer. States
// that earn nothing are skipped.
func (s *PointsService) AwardReviewPoints(ctx context.Context, accountID int64, review *domain.Review) error {
	const op = "internal.service.points.AwardReviewPoints"
	log := s.log.With(slog.String("op", op), slog.Int64("review_id", review.ID))

	points := reviewPoints(review.State)
	if points == 0 {
		log.Info("review state earns no points, skipping", slog.String("state", string(review.State)))
		return nil
	}

	err := s.transaction(ctx, op, func(tx *sqlx.Tx) error {
		total, err := s.points.AddPoints(ctx, tx, review.AuthorID, points)
		if err != nil {
			return fmt.Errorf("%s: failed to add points: %w", op, err)
		}

		transaction := &domain.PointTransaction{
			UserID:        review.AuthorID,
			AccountID:     accountID,
			Amount:        points,
			Reason:        domain.PointReasonReviewSubmitted,
			ReferenceID:   strconv.FormatInt(review.ID, 10),
			ReferenceType: "review",
		}

		if err := s.points.CreateTransaction(ctx, tx, transaction); err != nil {
			return fmt.Errorf("%s: failed to create transaction: %w", op, err)
		}

		if err := s.points.PromoteLevel(ctx, tx, review.AuthorID, domain.LevelForPoints(total)); err != nil {
			return fmt.Errorf("%s: failed to promote level: %w", op, err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	log.Info("points awarded",
		slog.Int("points", points),
		slog.Int64("reviewer_id", review.AuthorID),
	)

	if err := s.hooks.ReviewSubmitted(ctx, review, points); err != nil {
		log.Warn("review submitted hook failed", sl.Err(err))
	}

	return nil
}
