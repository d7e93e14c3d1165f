package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/devkudos/ingest-service/internal/apperrors"
	"github.com/devkudos/ingest-service/internal/domain"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type CommitRepository struct {
	db  *sqlx.DB
	log *slog.Logger
	sq  sq.StatementBuilderType
}

func NewCommitRepository(db *sqlx.DB, log *slog.Logger) *CommitRepository {
	return &CommitRepository{
		db:  db,
		log: log,
		sq:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *CommitRepository) UpsertCommit(ctx context.Context, ext sqlx.ExtContext, commit *domain.Commit) error {
	const op = "internal.repository.postgres.UpsertCommit"

	query, args, err := r.sq.Insert("commits").
		Columns("sha", "message", "author_id", "repository_id", "committed_at",
			"additions", "deletions", "changed_files").
		Values(commit.SHA, commit.Message, commit.AuthorID, commit.RepositoryID, commit.CommittedAt,
			commit.Additions, commit.Deletions, commit.ChangedFiles).
		Suffix("ON CONFLICT (sha) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build insert query: %w", op, err)
	}

	if _, err := ext.ExecContext(ctx, query, args...); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return fmt.Errorf("%s: %w: author '%d' or repository '%d' not found", op, apperrors.ErrNotFound, commit.AuthorID, commit.RepositoryID)
		}

		return fmt.Errorf("%s: failed to execute insert: %w", op, err)
	}

	return nil
}

func (r *CommitRepository) GetCommitBySHA(ctx context.Context, sha string) (*domain.Commit, error) {
	const op = "internal.repository.postgres.GetCommitBySHA"

	query, args, err := r.sq.Select("sha", "message", "author_id", "repository_id", "committed_at",
		"additions", "deletions", "changed_files").
		From("commits").
		Where(sq.Eq{"sha": sha}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var commit domain.Commit
	if err := r.db.GetContext(ctx, &commit, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w: commit with sha '%s'", op, apperrors.ErrNotFound, sha)
		}

		return nil, fmt.Errorf("%s: failed to get commit: %w", op, err)
	}

	return &commit, nil
}

func (r *CommitRepository) LinkCommitToPullRequest(ctx context.Context, ext sqlx.ExtContext, prID int64, sha string) error {
	const op = "internal.repository.postgres.LinkCommitToPullRequest"

	query, args, err := r.sq.Insert("pull_request_commits").
		Columns("pull_request_id", "commit_sha").
		Values(prID, sha).
		Suffix("ON CONFLICT (pull_request_id, commit_sha) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build insert query: %w", op, err)
	}

	if _, err := ext.ExecContext(ctx, query, args...); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return fmt.Errorf("%s: %w: pull request '%d' or commit '%s' not found", op, apperrors.ErrNotFound, prID, sha)
		}

		return fmt.Errorf("%s: failed to execute insert: %w", op, err)
	}

	return nil
}

func (r *CommitRepository) GetCommitsByPullRequest(ctx context.Context, prID int64) ([]domain.Commit, error) {
	const op = "internal.repository.postgres.GetCommitsByPullRequest"

	query, args, err := r.sq.Select("c.sha", "c.message", "c.author_id", "c.repository_id", "c.committed_at",
		"c.additions", "c.deletions", "c.changed_files").
		From("commits c").
		Join("pull_request_commits pc ON c.sha = pc.commit_sha").
		Where(sq.Eq{"pc.pull_request_id": prID}).
		OrderBy("c.committed_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var commits []domain.Commit
	if err := r.db.SelectContext(ctx, &commits, query, args...); err != nil {
		return nil, fmt.Errorf("%s: failed to select commits: %w", op, err)
	}

	return commits, nil
}
