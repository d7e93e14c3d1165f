package postgres

import (
	"context"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/devkudos/ingest-service/internal/apperrors"
	"github.com/devkudos/ingest-service/internal/domain"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type ReviewRepository struct {
	db  *sqlx.DB
	log *slog.Logger
	sq  sq.StatementBuilderType
}

func NewReviewRepository(db *sqlx.DB, log *slog.Logger) *ReviewRepository {
	return &ReviewRepository{
		db:  db,
		log: log,
		sq:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *ReviewRepository) UpsertReview(ctx context.Context, ext sqlx.ExtContext, review *domain.Review) error {
	const op = "internal.repository.postgres.UpsertReview"

	query, args, err := r.sq.Insert("reviews").
		Columns("id", "pull_request_id", "author_id", "state", "body", "submitted_at").
		Values(review.ID, review.PullRequestID, review.AuthorID, review.State, review.Body, review.SubmittedAt).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			body = EXCLUDED.body,
			submitted_at = EXCLUDED.submitted_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build upsert query: %w", op, err)
	}

	if _, err := ext.ExecContext(ctx, query, args...); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return fmt.Errorf("%s: %w: pull request '%d' or author '%d' not found", op, apperrors.ErrNotFound, review.PullRequestID, review.AuthorID)
		}

		return fmt.Errorf("%s: failed to execute upsert: %w", op, err)
	}

	return nil
}

func (r *ReviewRepository) GetReviewsByPullRequest(ctx context.Context, prID int64) ([]domain.Review, error) {
	const op = "internal.repository.postgres.GetReviewsByPullRequest"

	query, args, err := r.sq.Select("id", "pull_request_id", "author_id", "state", "body", "submitted_at").
		From("reviews").
		Where(sq.Eq{"pull_request_id": prID}).
		OrderBy("submitted_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var reviews []domain.Review
	if err := r.db.SelectContext(ctx, &reviews, query, args...); err != nil {
		return nil, fmt.Errorf("%s: failed to select reviews: %w", op, err)
	}

	return reviews, nil
}

func (r *ReviewRepository) UpsertComment(ctx context.Context, ext sqlx.ExtContext, comment *domain.Comment) error {
	const op = "internal.repository.postgres.UpsertComment"

	query, args, err := r.sq.Insert("comments").
		Columns("id", "pull_request_id", "author_id", "body", "sentiment_score", "created_at").
		Values(comment.ID, comment.PullRequestID, comment.AuthorID, comment.Body, comment.SentimentScore, comment.CreatedAt).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			body = EXCLUDED.body,
			sentiment_score = EXCLUDED.sentiment_score,
			updated_at = now()`).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build upsert query: %w", op, err)
	}

	if _, err := ext.ExecContext(ctx, query, args...); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return fmt.Errorf("%s: %w: pull request '%d' or author '%d' not found", op, apperrors.ErrNotFound, comment.PullRequestID, comment.AuthorID)
		}

		return fmt.Errorf("%s: failed to execute upsert: %w", op, err)
	}

	return nil
}

func (r *ReviewRepository) GetCommentsByPullRequest(ctx context.Context, prID int64) ([]domain.Comment, error) {
	const op = "internal.repository.postgres.GetCommentsByPullRequest"

	query, args, err := r.sq.Select("id", "pull_request_id", "author_id", "body", "sentiment_score", "created_at", "updated_at").
		From("comments").
		Where(sq.Eq{"pull_request_id": prID}).
		OrderBy("created_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var comments []domain.Comment
	if err := r.db.SelectContext(ctx, &comments, query, args...); err != nil {
		return nil, fmt.Errorf("%s: failed to select comments: %w", op, err)
	}

	return comments, nil
}
