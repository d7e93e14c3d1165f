package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/devkudos/ingest-service/internal/domain"
	"github.com/devkudos/ingest-service/pkg/logger/sl"
	"github.com/jmoiron/sqlx"
)

type Transactor interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// DB is the handle services hold: direct statement execution for single
// upserts plus transactions for the replace-set and ledger operations.
// *sqlx.DB satisfies it.
type DB interface {
	Transactor
	sqlx.ExtContext
}

// GitHubClient is the slice of the GitHub capability the pipeline calls.
// Implementations must map "not found" API responses to apperrors.ErrNotFound.
type GitHubClient interface {
	GetPullRequest(ctx context.Context, installationID int64, fullName string, number int) (*domain.WebhookPullRequest, error)
	GetPullRequestFiles(ctx context.Context, installationID int64, fullName string, number int) ([]domain.PullRequestFile, error)
	GetPullRequestCommits(ctx context.Context, installationID int64, fullName string, number int) ([]domain.CommitInfo, error)
	CreatePullRequestComment(ctx context.Context, installationID int64, fullName string, number int, body string) error
	GetIssueLabels(ctx context.Context, installationID int64, fullName string, number int) ([]string, error)
	AddLabelToPullRequest(ctx context.Context, installationID int64, fullName string, number int, label string) error
	RemoveLabelFromPullRequest(ctx context.Context, installationID int64, fullName string, number int, label string) error
}

// Encryptor encrypts pull request descriptions at rest.
type Encryptor interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// Analyzer is the sentiment/LLM capability. Implementations degrade to
// neutral values instead of returning errors.
type Analyzer interface {
	AnalyzeSentiment(ctx context.Context, text string) float64
	IsOffensiveContent(ctx context.Context, text string) bool
	AnalyzeCode(ctx context.Context, title, description string, files []domain.PullRequestFile) (domain.CodeAnalysis, bool)
	GenerateActionItems(ctx context.Context, title string, scores domain.Scores, metrics []domain.PRMetric) (domain.ActionPlan, bool)
}

// RetryQueue enqueues failed deliveries for another attempt.
type RetryQueue interface {
	Enqueue(ctx context.Context, env domain.Envelope) error
}

// Hooks notifies downstream consumers after points are awarded. Calls are
// best-effort: errors are logged by the caller, never propagated.
type Hooks interface {
	PRMerged(ctx context.Context, pr *domain.PullRequest, points int) error
	ReviewSubmitted(ctx context.Context, review *domain.Review, points int) error
}

type NoopHooks struct{}

func (NoopHooks) PRMerged(context.Context, *domain.PullRequest, int) error { return nil }

func (NoopHooks) ReviewSubmitted(context.Context, *domain.Review, int) error { return nil }

type BaseService struct {
	db  DB
	log *slog.Logger
}

func NewBaseService(db DB, log *slog.Logger) BaseService {
	return BaseService{
		db:  db,
		log: log,
	}
}

func (s *BaseService) transaction(ctx context.Context, op string, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			s.log.Error("failed to rollback transaction", sl.Err(err))
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	return nil
}
