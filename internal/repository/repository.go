// package repository defines the interfaces for the data persistence layer.
// These interfaces abstract the underlying database implementation from the service layer.
package repository

import (
	"context"
	"time"

	"github.com/devkudos/ingest-service/internal/domain"
	"github.com/jmoiron/sqlx"
)

// AccountRepository defines the contract for account and repository records.
// Create methods are idempotent: replayed webhook deliveries must not fail
// on rows that already exist.
type AccountRepository interface {
	// CreateAccount inserts an account if it does not exist yet. The ext
	// argument allows execution within a transaction (*sqlx.Tx) or
	// directly on a DB connection (*sqlx.DB).
	CreateAccount(ctx context.Context, ext sqlx.ExtContext, account *domain.Account) error

	// GetAccountByID retrieves an account.
	// It returns apperrors.ErrNotFound if the account does not exist.
	GetAccountByID(ctx context.Context, accountID int64) (*domain.Account, error)

	// UpdateAccountInstallation corrects the account's type and name and
	// records or clears the GitHub App installation id.
	UpdateAccountInstallation(ctx context.Context, accountID int64, accountType domain.AccountType, name string, installationID *int64) error

	// CreateRepository inserts a repository if it does not exist yet.
	CreateRepository(ctx context.Context, ext sqlx.ExtContext, repo *domain.Repository) error

	// GetRepositoryByID retrieves a repository.
	// It returns apperrors.ErrNotFound if the repository does not exist.
	GetRepositoryByID(ctx context.Context, repoID int64) (*domain.Repository, error)
}

// UserRepository defines the contract for user records and account
// memberships.
type UserRepository interface {
	// CreateUser inserts a user if it does not exist yet.
	CreateUser(ctx context.Context, ext sqlx.ExtContext, user *domain.User) error

	// GetUserByID retrieves a user.
	// It returns apperrors.ErrNotFound if the user does not exist.
	GetUserByID(ctx context.Context, userID int64) (*domain.User, error)

	// FindUserByLoginOrName finds a member of the account whose login or
	// display name matches. Used to attach commits to known users when
	// the hosting platform reports no account id.
	// It returns apperrors.ErrNotFound when no member matches.
	FindUserByLoginOrName(ctx context.Context, accountID int64, login, name string) (*domain.User, error)

	// FindUserByEmail finds a member of the account by commit email.
	// It returns apperrors.ErrNotFound when no member matches.
	FindUserByEmail(ctx context.Context, accountID int64, email string) (*domain.User, error)

	// AddMembership links a user to an account if the link does not exist yet.
	AddMembership(ctx context.Context, ext sqlx.ExtContext, userID, accountID int64) error

	// HasMembership reports whether the user belongs to the account.
	HasMembership(ctx context.Context, userID, accountID int64) (bool, error)
}

// PullRequestRepository defines the contract for pull request rows and
// their changed-file sets.
type PullRequestRepository interface {
	// UpsertPullRequest inserts or updates a pull request keyed by its
	// external id. Score columns are never touched; the reviewer id set
	// is merged as a union so concurrent replays cannot drop reviewers.
	UpsertPullRequest(ctx context.Context, ext sqlx.ExtContext, pr *domain.PullRequest) error

	// GetPullRequestByID retrieves a pull request with its reviewer ids.
	// It returns apperrors.ErrNotFound if the pull request does not exist.
	GetPullRequestByID(ctx context.Context, prID int64) (*domain.PullRequest, error)

	// GetPullRequestByNumber retrieves a pull request by repository and
	// number, the only key issue_comment events carry.
	// It returns apperrors.ErrNotFound if the pull request does not exist.
	GetPullRequestByNumber(ctx context.Context, repoID int64, number int) (*domain.PullRequest, error)

	// SetFirstCommitAt records the earliest commit time, keeping the
	// minimum if a value is already present.
	SetFirstCommitAt(ctx context.Context, prID int64, at time.Time) error

	// ReplaceFiles swaps the stored changed-file set of a pull request.
	// This operation is expected to be transactional.
	ReplaceFiles(ctx context.Context, tx *sqlx.Tx, prID int64, files []domain.PullRequestFile) error

	// GetFiles retrieves the stored changed-file set of a pull request.
	GetFiles(ctx context.Context, prID int64) ([]domain.PullRequestFile, error)

	// UpdateScores persists the four category scores and the calculation
	// timestamp.
	// It returns apperrors.ErrNotFound if the pull request does not exist.
	UpdateScores(ctx context.Context, ext sqlx.ExtContext, prID int64, scores domain.Scores, calculatedAt time.Time) error

	// SetPointsAwarded marks the pull request as paid out.
	SetPointsAwarded(ctx context.Context, tx *sqlx.Tx, prID int64, points int) error
}

// CommitRepository defines the contract for commit rows and their links to
// pull requests.
type CommitRepository interface {
	// UpsertCommit inserts a commit if its SHA is not stored yet.
	UpsertCommit(ctx context.Context, ext sqlx.ExtContext, commit *domain.Commit) error

	// GetCommitBySHA retrieves a commit.
	// It returns apperrors.ErrNotFound if the commit does not exist.
	GetCommitBySHA(ctx context.Context, sha string) (*domain.Commit, error)

	// LinkCommitToPullRequest connects a commit to a pull request if not
	// connected yet.
	LinkCommitToPullRequest(ctx context.Context, ext sqlx.ExtContext, prID int64, sha string) error

	// GetCommitsByPullRequest retrieves all commits linked to a pull
	// request ordered by commit time.
	GetCommitsByPullRequest(ctx context.Context, prID int64) ([]domain.Commit, error)
}

// ReviewRepository defines the contract for review and comment rows.
type ReviewRepository interface {
	// UpsertReview inserts or updates a review keyed by its external id.
	UpsertReview(ctx context.Context, ext sqlx.ExtContext, review *domain.Review) error

	// GetReviewsByPullRequest retrieves all reviews of a pull request.
	GetReviewsByPullRequest(ctx context.Context, prID int64) ([]domain.Review, error)

	// UpsertComment inserts or updates a comment keyed by its external id.
	UpsertComment(ctx context.Context, ext sqlx.ExtContext, comment *domain.Comment) error

	// GetCommentsByPullRequest retrieves all comments of a pull request.
	GetCommentsByPullRequest(ctx context.Context, prID int64) ([]domain.Comment, error)
}

// MetricRepository defines the contract for raw metric rows.
type MetricRepository interface {
	// ReplaceMetrics swaps the stored metric set of a pull request.
	// Metrics are never patched in place. This operation is expected to
	// be transactional.
	ReplaceMetrics(ctx context.Context, tx *sqlx.Tx, prID int64, metrics []domain.PRMetric) error

	// GetMetricsByPullRequest retrieves the stored metric set of a pull
	// request.
	GetMetricsByPullRequest(ctx context.Context, prID int64) ([]domain.PRMetric, error)
}

// PointsRepository defines the contract for the points ledger. All write
// methods are expected to be executed within a transaction so that balance,
// ledger, and level never drift apart.
type PointsRepository interface {
	// AddPoints atomically increments a user's balance and returns the
	// new total.
	// It returns apperrors.ErrNotFound if the user does not exist.
	AddPoints(ctx context.Context, tx *sqlx.Tx, userID int64, amount int) (int64, error)

	// PromoteLevel raises the user's level. Levels never go down; a
	// lower or equal level is a no-op.
	PromoteLevel(ctx context.Context, tx *sqlx.Tx, userID int64, level int) error

	// CreateTransaction appends one ledger entry.
	CreateTransaction(ctx context.Context, tx *sqlx.Tx, transaction *domain.PointTransaction) error

	// GetTransactionsByUser retrieves a user's ledger entries, newest
	// first.
	GetTransactionsByUser(ctx context.Context, userID int64) ([]domain.PointTransaction, error)
}

// DeliveryRepository defines the contract for webhook delivery bookkeeping.
type DeliveryRepository interface {
	// CreateDelivery records an incoming delivery. Re-recording the same
	// delivery id (a retry attempt) resets its status to received.
	CreateDelivery(ctx context.Context, delivery *domain.Delivery) error

	// MarkProcessed stamps a delivery as successfully handled.
	// It returns apperrors.DeliveryNotFoundError if the delivery was
	// never recorded.
	MarkProcessed(ctx context.Context, deliveryID string, at time.Time) error

	// MarkFailed stamps a delivery as failed with the handler error text.
	// It returns apperrors.DeliveryNotFoundError if the delivery was
	// never recorded.
	MarkFailed(ctx context.Context, deliveryID string, errText string, at time.Time) error

	// GetDeliveryByID retrieves a delivery record.
	// It returns apperrors.DeliveryNotFoundError if the delivery does
	// not exist.
	GetDeliveryByID(ctx context.Context, deliveryID string) (*domain.Delivery, error)
}
