package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/devkudos/ingest-service/internal/apperrors"
	"github.com/devkudos/ingest-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestRouterService_ProcessEvent(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	type mocks struct {
		db         *DBMock
		deliveries *DeliveryRepositoryMock
		accounts   *AccountRepositoryMock
		users      *UserRepositoryMock
		prs        *PullRequestRepositoryMock
		commits    *CommitRepositoryMock
		reviews    *ReviewRepositoryMock
		metrics    *MetricRepositoryMock
		points     *PointsRepositoryMock
		github     *GitHubClientMock
		analyzer   *AnalyzerMock
		retry      *RetryQueueMock
	}

	pushBody := []byte(`{
		"ref": "refs/heads/main",
		"commits": [],
		"repository": {"id": 5, "full_name": "devkudos/widgets", "owner": {"id": 9, "login": "devkudos"}}
	}`)

	testCases := []struct {
		name          string
		env           domain.Envelope
		setupMocks    func(m *mocks)
		expectedError bool
	}{
		{
			name: "Success on installation created",
			env: domain.Envelope{
				DeliveryID: "d-1",
				EventType:  domain.EventTypeInstallation,
				Body:       []byte(`{"action":"created","installation":{"id":555,"account":{"id":9,"login":"devkudos","type":"Organization"}}}`),
			},
			setupMocks: func(m *mocks) {
				m.deliveries.On("CreateDelivery", ctx, mock.MatchedBy(func(d *domain.Delivery) bool {
					return d.ID == "d-1" &&
						d.EventType == domain.EventTypeInstallation &&
						d.Action == "created" &&
						d.Status == domain.DeliveryStatusReceived
				})).Return(nil).Once()

				m.accounts.On("CreateAccount", ctx, mock.Anything, mock.MatchedBy(func(a *domain.Account) bool {
					return a.ID == 9
				})).Return(nil).Once()
				m.accounts.On("UpdateAccountInstallation", ctx, int64(9), domain.AccountTypeOrganization, "devkudos",
					mock.MatchedBy(func(id *int64) bool { return id != nil && *id == 555 })).Return(nil).Once()

				m.deliveries.On("MarkProcessed", ctx, "d-1", mock.AnythingOfType("time.Time")).Return(nil).Once()
			},
		},
		{
			name: "Unknown event type is still processed",
			env: domain.Envelope{
				DeliveryID: "d-2",
				EventType:  "workflow_run",
				Body:       []byte(`{"action":"completed"}`),
			},
			setupMocks: func(m *mocks) {
				m.deliveries.On("CreateDelivery", ctx, mock.Anything).Return(nil).Once()
				m.deliveries.On("MarkProcessed", ctx, "d-2", mock.AnythingOfType("time.Time")).Return(nil).Once()
			},
		},
		{
			name: "Invalid envelope is dropped",
			env: domain.Envelope{
				DeliveryID: "",
				EventType:  domain.EventTypePush,
				Body:       []byte(`{}`),
			},
			setupMocks: func(m *mocks) {},
		},
		{
			name: "Undecodable payload is skipped",
			env: domain.Envelope{
				DeliveryID: "d-4",
				EventType:  domain.EventTypePullRequest,
				Body:       []byte(`{"action":`),
			},
			setupMocks: func(m *mocks) {
				m.deliveries.On("CreateDelivery", ctx, mock.MatchedBy(func(d *domain.Delivery) bool {
					return d.Action == ""
				})).Return(nil).Once()
				m.deliveries.On("MarkProcessed", ctx, "d-4", mock.AnythingOfType("time.Time")).Return(nil).Once()
			},
		},
		{
			name: "Unresolvable account drops the event",
			env: domain.Envelope{
				DeliveryID: "d-5",
				EventType:  domain.EventTypePullRequest,
				Body:       []byte(`{"action":"opened","pull_request":{"id":101,"number":7,"user":{"id":42,"login":"alice"}}}`),
			},
			setupMocks: func(m *mocks) {
				m.deliveries.On("CreateDelivery", ctx, mock.Anything).Return(nil).Once()
				m.deliveries.On("MarkProcessed", ctx, "d-5", mock.AnythingOfType("time.Time")).Return(nil).Once()
			},
		},
		{
			name: "Unhandled pull request action is skipped",
			env: domain.Envelope{
				DeliveryID: "d-6",
				EventType:  domain.EventTypePullRequest,
				Body:       []byte(`{"action":"labeled","pull_request":{"id":101,"number":7,"user":{"id":42}},"repository":{"id":5,"full_name":"devkudos/widgets","owner":{"id":9,"login":"devkudos"}}}`),
			},
			setupMocks: func(m *mocks) {
				m.deliveries.On("CreateDelivery", ctx, mock.Anything).Return(nil).Once()
				m.deliveries.On("MarkProcessed", ctx, "d-6", mock.AnythingOfType("time.Time")).Return(nil).Once()
			},
		},
		{
			name: "Retryable failure seeds the retry queue",
			env: domain.Envelope{
				DeliveryID: "d-7",
				EventType:  domain.EventTypePush,
				Body:       pushBody,
			},
			setupMocks: func(m *mocks) {
				m.deliveries.On("CreateDelivery", ctx, mock.Anything).Return(nil).Once()
				m.accounts.On("CreateAccount", ctx, mock.Anything, mock.Anything).
					Return(errors.New("connection refused")).Once()
				m.deliveries.On("MarkFailed", ctx, "d-7", mock.MatchedBy(func(errText string) bool {
					return strings.Contains(errText, "connection refused")
				}), mock.AnythingOfType("time.Time")).Return(nil).Once()
				m.retry.On("Enqueue", ctx, mock.MatchedBy(func(env domain.Envelope) bool {
					return env.DeliveryID == "d-7" && env.Attempt == 1
				})).Return(nil).Once()
			},
			expectedError: true,
		},
		{
			name: "Queued attempt is not re-enqueued here",
			env: domain.Envelope{
				DeliveryID: "d-8",
				EventType:  domain.EventTypePush,
				Body:       pushBody,
				Attempt:    1,
			},
			setupMocks: func(m *mocks) {
				m.deliveries.On("CreateDelivery", ctx, mock.Anything).Return(nil).Once()
				m.accounts.On("CreateAccount", ctx, mock.Anything, mock.Anything).
					Return(errors.New("connection refused")).Once()
				m.deliveries.On("MarkFailed", ctx, "d-8", mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).Return(nil).Once()
			},
			expectedError: true,
		},
		{
			name: "Non-retryable failure is not enqueued",
			env: domain.Envelope{
				DeliveryID: "d-9",
				EventType:  domain.EventTypeIssueComment,
				Body:       []byte(`{"action":"created","issue":{"number":7,"pull_request":{"url":"https://api.github.com/repos/devkudos/widgets/pulls/7"}},"comment":{"id":9001,"body":"hi","user":{"id":88,"login":"carol"}},"repository":{"id":5,"full_name":"devkudos/widgets","owner":{"id":9,"login":"devkudos"}}}`),
			},
			setupMocks: func(m *mocks) {
				m.deliveries.On("CreateDelivery", ctx, mock.Anything).Return(nil).Once()
				m.prs.On("GetPullRequestByNumber", ctx, int64(5), 7).Return(nil, apperrors.ErrNotFound).Once()
				m.deliveries.On("MarkFailed", ctx, "d-9", mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).Return(nil).Once()
			},
			expectedError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := &mocks{
				db:         new(DBMock),
				deliveries: new(DeliveryRepositoryMock),
				accounts:   new(AccountRepositoryMock),
				users:      new(UserRepositoryMock),
				prs:        new(PullRequestRepositoryMock),
				commits:    new(CommitRepositoryMock),
				reviews:    new(ReviewRepositoryMock),
				metrics:    new(MetricRepositoryMock),
				points:     new(PointsRepositoryMock),
				github:     new(GitHubClientMock),
				analyzer:   new(AnalyzerMock),
				retry:      new(RetryQueueMock),
			}
			tc.setupMocks(m)

			registrar := NewRegistrarService(m.db, logger, m.accounts, m.users)
			commitService := NewCommitService(m.db, logger, registrar, m.commits, m.prs, m.users, m.github)
			scoringService := NewScoringService(m.db, logger, m.prs, m.metrics, m.reviews, m.commits, m.accounts, m.analyzer, m.github, nil)
			pointsService := NewPointsService(m.db, logger, m.prs, m.users, m.points, m.accounts, nil)
			prService := NewPullRequestService(m.db, logger, registrar, commitService, scoringService, pointsService, m.prs, m.accounts, m.github, nil)
			reviewService := NewReviewService(m.db, logger, registrar, prService, pointsService, m.prs, m.reviews, m.analyzer)
			router := NewRouterService(logger, m.deliveries, prService, reviewService, commitService, registrar, m.retry)

			err := router.ProcessEvent(ctx, tc.env)

			if tc.expectedError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}

			m.deliveries.AssertExpectations(t)
			m.accounts.AssertExpectations(t)
			m.users.AssertExpectations(t)
			m.prs.AssertExpectations(t)
			m.retry.AssertExpectations(t)
		})
	}
}
