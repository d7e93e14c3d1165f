package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/devkudos/ingest-service/internal/apperrors"
	"github.com/devkudos/ingest-service/internal/domain"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// upsertPullRequestSuffix resolves replays and out-of-order deliveries:
// payload fields take the latest value, the reviewer set merges as a union,
// and score columns are left alone entirely.
const upsertPullRequestSuffix = `ON CONFLICT (id) DO UPDATE SET
	number = EXCLUDED.number,
	title = EXCLUDED.title,
	description = EXCLUDED.description,
	state = EXCLUDED.state,
	additions = EXCLUDED.additions,
	deletions = EXCLUDED.deletions,
	changed_files = EXCLUDED.changed_files,
	merged_at = EXCLUDED.merged_at,
	closed_at = EXCLUDED.closed_at,
	reviewer_ids = ARRAY(SELECT DISTINCT unnest(COALESCE(pull_requests.reviewer_ids, '{}') || EXCLUDED.reviewer_ids) ORDER BY 1),
	updated_at = now()`

var pullRequestColumns = []string{
	"id", "number", "title", "description", "state", "author_id", "repository_id",
	"additions", "deletions", "changed_files", "first_commit_at", "merged_at", "closed_at",
	"efficiency_score", "wellness_score", "quality_score", "overall_score",
	"points_awarded", "metrics_calculated_at", "created_at", "updated_at", "reviewer_ids",
}

// pullRequestRow adapts the BIGINT[] reviewer column for sqlx scanning.
type pullRequestRow struct {
	domain.PullRequest
	ReviewerIDsArray pq.Int64Array `db:"reviewer_ids"`
}

func (row pullRequestRow) toDomain() *domain.PullRequest {
	pr := row.PullRequest
	pr.ReviewerIDs = []int64(row.ReviewerIDsArray)

	return &pr
}

type PullRequestRepository struct {
	db  *sqlx.DB
	log *slog.Logger
	sq  sq.StatementBuilderType
}

func NewPullRequestRepository(db *sqlx.DB, log *slog.Logger) *PullRequestRepository {
	return &PullRequestRepository{
		db:  db,
		log: log,
		sq:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *PullRequestRepository) UpsertPullRequest(ctx context.Context, ext sqlx.ExtContext, pr *domain.PullRequest) error {
	const op = "internal.repository.postgres.UpsertPullRequest"

	reviewerIDs := pq.Int64Array(pr.ReviewerIDs)
	if reviewerIDs == nil {
		reviewerIDs = pq.Int64Array{}
	}

	query, args, err := r.sq.Insert("pull_requests").
		Columns("id", "number", "title", "description", "state", "author_id", "repository_id",
			"additions", "deletions", "changed_files", "merged_at", "closed_at", "created_at", "reviewer_ids").
		Values(pr.ID, pr.Number, pr.Title, pr.Description, pr.State, pr.AuthorID, pr.RepositoryID,
			pr.Additions, pr.Deletions, pr.ChangedFiles, pr.MergedAt, pr.ClosedAt, pr.CreatedAt, reviewerIDs).
		Suffix(upsertPullRequestSuffix).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build upsert query: %w", op, err)
	}

	if _, err := ext.ExecContext(ctx, query, args...); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return fmt.Errorf("%s: %w: author '%d' or repository '%d' not found", op, apperrors.ErrNotFound, pr.AuthorID, pr.RepositoryID)
		}

		return fmt.Errorf("%s: failed to execute upsert: %w", op, err)
	}

	return nil
}

func (r *PullRequestRepository) GetPullRequestByID(ctx context.Context, prID int64) (*domain.PullRequest, error) {
	const op = "internal.repository.postgres.GetPullRequestByID"

	query, args, err := r.sq.Select(pullRequestColumns...).
		From("pull_requests").
		Where(sq.Eq{"id": prID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var row pullRequestRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, &apperrors.PullRequestNotFoundError{PullRequestID: prID})
		}

		return nil, fmt.Errorf("%s: failed to get pull request: %w", op, err)
	}

	return row.toDomain(), nil
}

func (r *PullRequestRepository) GetPullRequestByNumber(ctx context.Context, repoID int64, number int) (*domain.PullRequest, error) {
	const op = "internal.repository.postgres.GetPullRequestByNumber"

	query, args, err := r.sq.Select(pullRequestColumns...).
		From("pull_requests").
		Where(sq.Eq{"repository_id": repoID, "number": number}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var row pullRequestRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w: pull request #%d in repository '%d'", op, apperrors.ErrNotFound, number, repoID)
		}

		return nil, fmt.Errorf("%s: failed to get pull request: %w", op, err)
	}

	return row.toDomain(), nil
}

func (r *PullRequestRepository) SetFirstCommitAt(ctx context.Context, prID int64, at time.Time) error {
	const op = "internal.repository.postgres.SetFirstCommitAt"

	query, args, err := r.sq.Update("pull_requests").
		Set("first_commit_at", sq.Expr("LEAST(COALESCE(first_commit_at, ?), ?)", at, at)).
		Where(sq.Eq{"id": prID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build update query: %w", op, err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: failed to execute update: %w", op, err)
	}

	if rowsAffected, err := res.RowsAffected(); err == nil && rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, &apperrors.PullRequestNotFoundError{PullRequestID: prID})
	}

	return nil
}

func (r *PullRequestRepository) ReplaceFiles(ctx context.Context, tx *sqlx.Tx, prID int64, files []domain.PullRequestFile) error {
	const op = "internal.repository.postgres.ReplaceFiles"

	deleteQuery, deleteArgs, err := r.sq.Delete("pull_request_files").
		Where(sq.Eq{"pull_request_id": prID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build delete query: %w", op, err)
	}

	if _, err := tx.ExecContext(ctx, deleteQuery, deleteArgs...); err != nil {
		return fmt.Errorf("%s: failed to execute delete: %w", op, err)
	}

	if len(files) == 0 {
		return nil
	}

	insertBuilder := r.sq.Insert("pull_request_files").
		Columns("pull_request_id", "filename", "status", "additions", "deletions", "changes")

	for _, f := range files {
		insertBuilder = insertBuilder.Values(prID, f.Filename, f.Status, f.Additions, f.Deletions, f.Changes)
	}

	insertQuery, insertArgs, err := insertBuilder.ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build insert query: %w", op, err)
	}

	if _, err := tx.ExecContext(ctx, insertQuery, insertArgs...); err != nil {
		return fmt.Errorf("%s: failed to execute insert: %w", op, err)
	}

	return nil
}

func (r *PullRequestRepository) GetFiles(ctx context.Context, prID int64) ([]domain.PullRequestFile, error) {
	const op = "internal.repository.postgres.GetFiles"

	query, args, err := r.sq.Select("pull_request_id", "filename", "status", "additions", "deletions", "changes").
		From("pull_request_files").
		Where(sq.Eq{"pull_request_id": prID}).
		OrderBy("filename").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var files []domain.PullRequestFile
	if err := r.db.SelectContext(ctx, &files, query, args...); err != nil {
		return nil, fmt.Errorf("%s: failed to select files: %w", op, err)
	}

	return files, nil
}

func (r *PullRequestRepository) UpdateScores(ctx context.Context, ext sqlx.ExtContext, prID int64, scores domain.Scores, calculatedAt time.Time) error {
	const op = "internal.repository.postgres.UpdateScores"

	query, args, err := r.sq.Update("pull_requests").
		Set("efficiency_score", scores.Efficiency).
		Set("wellness_score", scores.Wellness).
		Set("quality_score", scores.Quality).
		Set("overall_score", scores.Overall).
		Set("metrics_calculated_at", calculatedAt).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": prID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build update query: %w", op, err)
	}

	res, err := ext.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: failed to execute update: %w", op, err)
	}

	if rowsAffected, err := res.RowsAffected(); err == nil && rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, &apperrors.PullRequestNotFoundError{PullRequestID: prID})
	}

	return nil
}

func (r *PullRequestRepository) SetPointsAwarded(ctx context.Context, tx *sqlx.Tx, prID int64, points int) error {
	const op = "internal.repository.postgres.SetPointsAwarded"

	query, args, err := r.sq.Update("pull_requests").
		Set("points_awarded", points).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": prID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build update query: %w", op, err)
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: failed to execute update: %w", op, err)
	}

	if rowsAffected, err := res.RowsAffected(); err == nil && rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, &apperrors.PullRequestNotFoundError{PullRequestID: prID})
	}

	return nil
}
