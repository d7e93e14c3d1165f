package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/devkudos/ingest-service/internal/domain"
	"github.com/devkudos/ingest-service/internal/repository"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"
)

// DBMock satisfies the service DB interface. Repository calls receive it as
// an opaque executor and never touch it, so only BeginTxx is mocked.
type DBMock struct {
	mock.Mock
	sqlx.ExtContext
}

func (m *DBMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	var tx *sqlx.Tx

	args := m.Called(ctx, opts)
	if args.Get(0) != nil {
		tx = args.Get(0).(*sqlx.Tx)
	}

	return tx, args.Error(1)
}

type AccountRepositoryMock struct {
	mock.Mock
}

var _ repository.AccountRepository = (*AccountRepositoryMock)(nil)

func (m *AccountRepositoryMock) CreateAccount(ctx context.Context, ext sqlx.ExtContext, account *domain.Account) error {
	args := m.Called(ctx, ext, account)
	return args.Error(0)
}

func (m *AccountRepositoryMock) GetAccountByID(ctx context.Context, accountID int64) (*domain.Account, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *AccountRepositoryMock) UpdateAccountInstallation(ctx context.Context, accountID int64, accountType domain.AccountType, name string, installationID *int64) error {
	args := m.Called(ctx, accountID, accountType, name, installationID)
	return args.Error(0)
}

func (m *AccountRepositoryMock) CreateRepository(ctx context.Context, ext sqlx.ExtContext, repo *domain.Repository) error {
	args := m.Called(ctx, ext, repo)
	return args.Error(0)
}

func (m *AccountRepositoryMock) GetRepositoryByID(ctx context.Context, repoID int64) (*domain.Repository, error) {
	args := m.Called(ctx, repoID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Repository), args.Error(1)
}

type UserRepositoryMock struct {
	mock.Mock
}

var _ repository.UserRepository = (*UserRepositoryMock)(nil)

func (m *UserRepositoryMock) CreateUser(ctx context.Context, ext sqlx.ExtContext, user *domain.User) error {
	args := m.Called(ctx, ext, user)
	return args.Error(0)
}

func (m *UserRepositoryMock) GetUserByID(ctx context.Context, userID int64) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *UserRepositoryMock) FindUserByLoginOrName(ctx context.Context, accountID int64, login, name string) (*domain.User, error) {
	args := m.Called(ctx, accountID, login, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *UserRepositoryMock) FindUserByEmail(ctx context.Context, accountID int64, email string) (*domain.User, error) {
	args := m.Called(ctx, accountID, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *UserRepositoryMock) AddMembership(ctx context.Context, ext sqlx.ExtContext, userID, accountID int64) error {
	args := m.Called(ctx, ext, userID, accountID)
	return args.Error(0)
}

func (m *UserRepositoryMock) HasMembership(ctx context.Context, userID, accountID int64) (bool, error) {
	args := m.Called(ctx, userID, accountID)
	return args.Bool(0), args.Error(1)
}

type PullRequestRepositoryMock struct {
	mock.Mock
}

var _ repository.PullRequestRepository = (*PullRequestRepositoryMock)(nil)

func (m *PullRequestRepositoryMock) UpsertPullRequest(ctx context.Context, ext sqlx.ExtContext, pr *domain.PullRequest) error {
	args := m.Called(ctx, ext, pr)
	return args.Error(0)
}

func (m *PullRequestRepositoryMock) GetPullRequestByID(ctx context.Context, prID int64) (*domain.PullRequest, error) {
	args := m.Called(ctx, prID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.PullRequest), args.Error(1)
}

func (m *PullRequestRepositoryMock) GetPullRequestByNumber(ctx context.Context, repoID int64, number int) (*domain.PullRequest, error) {
	args := m.Called(ctx, repoID, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.PullRequest), args.Error(1)
}

func (m *PullRequestRepositoryMock) SetFirstCommitAt(ctx context.Context, prID int64, at time.Time) error {
	args := m.Called(ctx, prID, at)
	return args.Error(0)
}

func (m *PullRequestRepositoryMock) ReplaceFiles(ctx context.Context, tx *sqlx.Tx, prID int64, files []domain.PullRequestFile) error {
	args := m.Called(ctx, tx, prID, files)
	return args.Error(0)
}

func (m *PullRequestRepositoryMock) GetFiles(ctx context.Context, prID int64) ([]domain.PullRequestFile, error) {
	args := m.Called(ctx, prID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]domain.PullRequestFile), args.Error(1)
}

func (m *PullRequestRepositoryMock) UpdateScores(ctx context.Context, ext sqlx.ExtContext, prID int64, scores domain.Scores, calculatedAt time.Time) error {
	args := m.Called(ctx, ext, prID, scores, calculatedAt)
	return args.Error(0)
}

func (m *PullRequestRepositoryMock) SetPointsAwarded(ctx context.Context, tx *sqlx.Tx, prID int64, points int) error {
	args := m.Called(ctx, tx, prID, points)
	return args.Error(0)
}

type CommitRepositoryMock struct {
	mock.Mock
}

var _ repository.CommitRepository = (*CommitRepositoryMock)(nil)

func (m *CommitRepositoryMock) UpsertCommit(ctx context.Context, ext sqlx.ExtContext, commit *domain.Commit) error {
	args := m.Called(ctx, ext, commit)
	return args.Error(0)
}

func (m *CommitRepositoryMock) GetCommitBySHA(ctx context.Context, sha string) (*domain.Commit, error) {
	args := m.Called(ctx, sha)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Commit), args.Error(1)
}

func (m *CommitRepositoryMock) LinkCommitToPullRequest(ctx context.Context, ext sqlx.ExtContext, prID int64, sha string) error {
	args := m.Called(ctx, ext, prID, sha)
	return args.Error(0)
}

func (m *CommitRepositoryMock) GetCommitsByPullRequest(ctx context.Context, prID int64) ([]domain.Commit, error) {
	args := m.Called(ctx, prID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]domain.Commit), args.Error(1)
}

type ReviewRepositoryMock struct {
	mock.Mock
}

var _ repository.ReviewRepository = (*ReviewRepositoryMock)(nil)

func (m *ReviewRepositoryMock) UpsertReview(ctx context.Context, ext sqlx.ExtContext, review *domain.Review) error {
	args := m.Called(ctx, ext, review)
	return args.Error(0)
}

func (m *ReviewRepositoryMock) GetReviewsByPullRequest(ctx context.Context, prID int64) ([]domain.Review, error) {
	args := m.Called(ctx, prID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]domain.Review), args.Error(1)
}

func (m *ReviewRepositoryMock) UpsertComment(ctx context.Context, ext sqlx.ExtContext, comment *domain.Comment) error {
	args := m.Called(ctx, ext, comment)
	return args.Error(0)
}

func (m *ReviewRepositoryMock) GetCommentsByPullRequest(ctx context.Context, prID int64) ([]domain.Comment, error) {
	args := m.Called(ctx, prID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]domain.Comment), args.Error(1)
}

type MetricRepositoryMock struct {
	mock.Mock
}

var _ repository.MetricRepository = (*MetricRepositoryMock)(nil)

func (m *MetricRepositoryMock) ReplaceMetrics(ctx context.Context, tx *sqlx.Tx, prID int64, metrics []domain.PRMetric) error {
	args := m.Called(ctx, tx, prID, metrics)
	return args.Error(0)
}

func (m *MetricRepositoryMock) GetMetricsByPullRequest(ctx context.Context, prID int64) ([]domain.PRMetric, error) {
	args := m.Called(ctx, prID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]domain.PRMetric), args.Error(1)
}

type PointsRepositoryMock struct {
	mock.Mock
}

var _ repository.PointsRepository = (*PointsRepositoryMock)(nil)

func (m *PointsRepositoryMock) AddPoints(ctx context.Context, tx *sqlx.Tx, userID int64, amount int) (int64, error) {
	args := m.Called(ctx, tx, userID, amount)
	return args.Get(0).(int64), args.Error(1)
}

func (m *PointsRepositoryMock) PromoteLevel(ctx context.Context, tx *sqlx.Tx, userID int64, level int) error {
	args := m.Called(ctx, tx, userID, level)
	return args.Error(0)
}

func (m *PointsRepositoryMock) CreateTransaction(ctx context.Context, tx *sqlx.Tx, transaction *domain.PointTransaction) error {
	args := m.Called(ctx, tx, transaction)
	return args.Error(0)
}

func (m *PointsRepositoryMock) GetTransactionsByUser(ctx context.Context, userID int64) ([]domain.PointTransaction, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]domain.PointTransaction), args.Error(1)
}

type DeliveryRepositoryMock struct {
	mock.Mock
}

var _ repository.DeliveryRepository = (*DeliveryRepositoryMock)(nil)

func (m *DeliveryRepositoryMock) CreateDelivery(ctx context.Context, delivery *domain.Delivery) error {
	args := m.Called(ctx, delivery)
	return args.Error(0)
}

func (m *DeliveryRepositoryMock) MarkProcessed(ctx context.Context, deliveryID string, at time.Time) error {
	args := m.Called(ctx, deliveryID, at)
	return args.Error(0)
}

func (m *DeliveryRepositoryMock) MarkFailed(ctx context.Context, deliveryID string, errText string, at time.Time) error {
	args := m.Called(ctx, deliveryID, errText, at)
	return args.Error(0)
}

func (m *DeliveryRepositoryMock) GetDeliveryByID(ctx context.Context, deliveryID string) (*domain.Delivery, error) {
	args := m.Called(ctx, deliveryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Delivery), args.Error(1)
}

type GitHubClientMock struct {
	mock.Mock
}

var _ GitHubClient = (*GitHubClientMock)(nil)

func (m *GitHubClientMock) GetPullRequest(ctx context.Context, installationID int64, fullName string, number int) (*domain.WebhookPullRequest, error) {
	args := m.Called(ctx, installationID, fullName, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.WebhookPullRequest), args.Error(1)
}

func (m *GitHubClientMock) GetPullRequestFiles(ctx context.Context, installationID int64, fullName string, number int) ([]domain.PullRequestFile, error) {
	args := m.Called(ctx, installationID, fullName, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]domain.PullRequestFile), args.Error(1)
}

func (m *GitHubClientMock) GetPullRequestCommits(ctx context.Context, installationID int64, fullName string, number int) ([]domain.CommitInfo, error) {
	args := m.Called(ctx, installationID, fullName, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]domain.CommitInfo), args.Error(1)
}

func (m *GitHubClientMock) CreatePullRequestComment(ctx context.Context, installationID int64, fullName string, number int, body string) error {
	args := m.Called(ctx, installationID, fullName, number, body)
	return args.Error(0)
}

func (m *GitHubClientMock) GetIssueLabels(ctx context.Context, installationID int64, fullName string, number int) ([]string, error) {
	args := m.Called(ctx, installationID, fullName, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]string), args.Error(1)
}

func (m *GitHubClientMock) AddLabelToPullRequest(ctx context.Context, installationID int64, fullName string, number int, label string) error {
	args := m.Called(ctx, installationID, fullName, number, label)
	return args.Error(0)
}

func (m *GitHubClientMock) RemoveLabelFromPullRequest(ctx context.Context, installationID int64, fullName string, number int, label string) error {
	args := m.Called(ctx, installationID, fullName, number, label)
	return args.Error(0)
}

type AnalyzerMock struct {
	mock.Mock
}

var _ Analyzer = (*AnalyzerMock)(nil)

func (m *AnalyzerMock) AnalyzeSentiment(ctx context.Context, text string) float64 {
	args := m.Called(ctx, text)
	return args.Get(0).(float64)
}

func (m *AnalyzerMock) IsOffensiveContent(ctx context.Context, text string) bool {
	args := m.Called(ctx, text)
	return args.Bool(0)
}

func (m *AnalyzerMock) AnalyzeCode(ctx context.Context, title, description string, files []domain.PullRequestFile) (domain.CodeAnalysis, bool) {
	args := m.Called(ctx, title, description, files)
	return args.Get(0).(domain.CodeAnalysis), args.Bool(1)
}

func (m *AnalyzerMock) GenerateActionItems(ctx context.Context, title string, scores domain.Scores, metrics []domain.PRMetric) (domain.ActionPlan, bool) {
	args := m.Called(ctx, title, scores, metrics)
	return args.Get(0).(domain.ActionPlan), args.Bool(1)
}

type EncryptorMock struct {
	mock.Mock
}

var _ Encryptor = (*EncryptorMock)(nil)

func (m *EncryptorMock) Encrypt(plaintext string) (string, error) {
	args := m.Called(plaintext)
	return args.String(0), args.Error(1)
}

func (m *EncryptorMock) Decrypt(ciphertext string) (string, error) {
	args := m.Called(ciphertext)
	return args.String(0), args.Error(1)
}

type RetryQueueMock struct {
	mock.Mock
}

var _ RetryQueue = (*RetryQueueMock)(nil)

func (m *RetryQueueMock) Enqueue(ctx context.Context, env domain.Envelope) error {
	args := m.Called(ctx, env)
	return args.Error(0)
}

type HooksMock struct {
	mock.Mock
}

var _ Hooks = (*HooksMock)(nil)

func (m *HooksMock) PRMerged(ctx context.Context, pr *domain.PullRequest, points int) error {
	args := m.Called(ctx, pr, points)
	return args.Error(0)
}

func (m *HooksMock) ReviewSubmitted(ctx context.Context, review *domain.Review, points int) error {
	args := m.Called(ctx, review, points)
	return args.Error(0)
}
