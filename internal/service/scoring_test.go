package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/devkudos/ingest-service/internal/apperrors"
	"github.com/devkudos/ingest-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func metricByName(t *testing.T, metrics []domain.PRMetric, name string) domain.PRMetric {
	t.Helper()

	for _, m := range metrics {
		if m.Name == name {
			return m
		}
	}

	require.FailNowf(t, "metric not found", "no metric named %q", name)

	return domain.PRMetric{}
}

func TestScoreDown(t *testing.T) {
	testCases := []struct {
		name        string
		raw         float64
		best, worst float64
		expected    float64
	}{
		{name: "below best is full score", raw: 2, best: 4, worst: 168, expected: 100},
		{name: "at best is full score", raw: 4, best: 4, worst: 168, expected: 100},
		{name: "at worst is zero", raw: 168, best: 4, worst: 168, expected: 0},
		{name: "beyond worst is zero", raw: 500, best: 4, worst: 168, expected: 0},
		{name: "midpoint is half", raw: 86, best: 4, worst: 168, expected: 50},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.expected, scoreDown(tc.raw, tc.best, tc.worst), 0.001)
		})
	}
}

func TestScoreUp(t *testing.T) {
	testCases := []struct {
		name        string
		raw         float64
		worst, best float64
		expected    float64
	}{
		{name: "at worst is zero", raw: 0, worst: 0, best: 300, expected: 0},
		{name: "midpoint is half", raw: 150, worst: 0, best: 300, expected: 50},
		{name: "at best is full score", raw: 300, worst: 0, best: 300, expected: 100},
		{name: "beyond best is full score", raw: 400, worst: 0, best: 300, expected: 100},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.expected, scoreUp(tc.raw, tc.worst, tc.best), 0.001)
		})
	}
}

func TestComputeScores(t *testing.T) {
	testCases := []struct {
		name     string
		metrics  []domain.PRMetric
		weights  domain.ScoreWeights
		expected domain.Scores
	}{
		{
			name: "category means with default weights",
			metrics: []domain.PRMetric{
				{Category: domain.MetricCategoryEfficiency, Value: 80},
				{Category: domain.MetricCategoryEfficiency, Value: 60},
				{Category: domain.MetricCategoryWellness, Value: 50},
				{Category: domain.MetricCategoryQuality, Value: 90},
			},
			weights: domain.DefaultScoreWeights(),
			expected: domain.Scores{
				Efficiency: 70,
				Wellness:   50,
				Quality:    90,
				Overall:    75,
			},
		},
		{
			name: "empty categories score zero",
			metrics: []domain.PRMetric{
				{Category: domain.MetricCategoryEfficiency, Value: 100},
			},
			weights: domain.DefaultScoreWeights(),
			expected: domain.Scores{
				Efficiency: 100,
				Wellness:   0,
				Quality:    0,
				Overall:    45,
			},
		},
		{
			name:     "no metrics at all",
			metrics:  nil,
			weights:  domain.DefaultScoreWeights(),
			expected: domain.Scores{},
		},
		{
			name: "custom weights shift the overall",
			metrics: []domain.PRMetric{
				{Category: domain.MetricCategoryEfficiency, Value: 40},
				{Category: domain.MetricCategoryQuality, Value: 90},
			},
			weights: domain.ScoreWeights{Efficiency: 1, Wellness: 0, Quality: 0},
			expected: domain.Scores{
				Efficiency: 40,
				Wellness:   0,
				Quality:    90,
				Overall:    40,
			},
		},
		{
			name: "means are clamped to the score range",
			metrics: []domain.PRMetric{
				{Category: domain.MetricCategoryEfficiency, Value: 150},
			},
			weights: domain.ScoreWeights{Efficiency: 1},
			expected: domain.Scores{
				Efficiency: 100,
				Overall:    100,
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			scores := ComputeScores(tc.metrics, tc.weights)

			assert.InDelta(t, tc.expected.Efficiency, scores.Efficiency, 0.001)
			assert.InDelta(t, tc.expected.Wellness, scores.Wellness, 0.001)
			assert.InDelta(t, tc.expected.Quality, scores.Quality, 0.001)
			assert.InDelta(t, tc.expected.Overall, scores.Overall, 0.001)
		})
	}
}

func TestNormalizeMetricValue(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	testCases := []struct {
		name     string
		value    any
		expected domain.PRMetric
		ok       bool
	}{
		{
			name:     "bare number is both score and raw value",
			value:    42.5,
			expected: domain.PRMetric{Category: domain.MetricCategoryQuality, Name: "m", Value: 42.5, RawValue: 42.5},
			ok:       true,
		},
		{
			name:     "bare number above range clamps the score only",
			value:    150.0,
			expected: domain.PRMetric{Category: domain.MetricCategoryQuality, Name: "m", Value: 100, RawValue: 150},
			ok:       true,
		},
		{
			name: "structured object keeps score and raw apart",
			value: map[string]any{
				"score":       80.0,
				"value":       12.0,
				"unit":        "files",
				"description": "touched files",
			},
			expected: domain.PRMetric{
				Category:    domain.MetricCategoryQuality,
				Name:        "m",
				Value:       80,
				RawValue:    12,
				Unit:        "files",
				Description: "touched files",
			},
			ok: true,
		},
		{
			name:     "raw only fills the score",
			value:    map[string]any{"raw": 60.0},
			expected: domain.PRMetric{Category: domain.MetricCategoryQuality, Name: "m", Value: 60, RawValue: 60},
			ok:       true,
		},
		{
			name:     "score only fills the raw value",
			value:    map[string]any{"score": 70.0},
			expected: domain.PRMetric{Category: domain.MetricCategoryQuality, Name: "m", Value: 70, RawValue: 70},
			ok:       true,
		},
		{
			name:  "object without numeric fields is skipped",
			value: map[string]any{"note": "n/a"},
			ok:    false,
		},
		{
			name:  "non numeric value is skipped",
			value: "eighty",
			ok:    false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			metric, ok := normalizeMetricValue(logger, domain.MetricCategoryQuality, "m", tc.value)

			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.expected, metric)
			}
		})
	}
}

func TestBuildEfficiencyMetrics(t *testing.T) {
	createdAt := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)

	t.Run("merged pull request measures from the first commit", func(t *testing.T) {
		firstCommit := createdAt.Add(-2 * time.Hour)
		mergedAt := createdAt.Add(14 * time.Hour)
		reviewAt := createdAt.Add(1 * time.Hour)

		pr := &domain.PullRequest{
			CreatedAt:     createdAt,
			FirstCommitAt: &firstCommit,
			MergedAt:      &mergedAt,
			Additions:     100,
			Deletions:     50,
			ChangedFiles:  10,
		}
		reviews := []domain.Review{{SubmittedAt: reviewAt}}

		metrics := buildEfficiencyMetrics(pr, reviews)

		mergeTime := metricByName(t, metrics, metricMergeTime)
		assert.InDelta(t, 16, mergeTime.RawValue, 0.001)

		turnaround := metricByName(t, metrics, metricReviewTurnaround)
		assert.InDelta(t, 1, turnaround.RawValue, 0.001)
		assert.InDelta(t, 100, turnaround.Value, 0.001)

		changeSize := metricByName(t, metrics, metricChangeSize)
		assert.InDelta(t, 150, changeSize.RawValue, 0.001)

		spread := metricByName(t, metrics, metricFileSpread)
		assert.InDelta(t, 10, spread.RawValue, 0.001)
	})

	t.Run("open pull request has no merge time", func(t *testing.T) {
		pr := &domain.PullRequest{CreatedAt: createdAt}

		metrics := buildEfficiencyMetrics(pr, nil)

		for _, m := range metrics {
			assert.NotEqual(t, metricMergeTime, m.Name)
			assert.NotEqual(t, metricReviewTurnaround, m.Name)
		}
		assert.Len(t, metrics, 2)
	})

	t.Run("review before creation clamps turnaround to zero", func(t *testing.T) {
		pr := &domain.PullRequest{CreatedAt: createdAt}
		reviews := []domain.Review{{SubmittedAt: createdAt.Add(-30 * time.Minute)}}

		metrics := buildEfficiencyMetrics(pr, reviews)

		turnaround := metricByName(t, metrics, metricReviewTurnaround)
		assert.InDelta(t, 0, turnaround.RawValue, 0.001)
		assert.InDelta(t, 100, turnaround.Value, 0.001)
	})
}

func TestBuildWellnessMetrics(t *testing.T) {
	t.Run("no commits yields no metrics", func(t *testing.T) {
		assert.Nil(t, buildWellnessMetrics(nil))
	})

	t.Run("shares and burst from commit timestamps", func(t *testing.T) {
		commits := []domain.Commit{
			{CommittedAt: time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)},
			{CommittedAt: time.Date(2024, 3, 5, 22, 0, 0, 0, time.UTC)},
			{CommittedAt: time.Date(2024, 3, 9, 10, 30, 0, 0, time.UTC)},
			{CommittedAt: time.Date(2024, 3, 9, 10, 45, 0, 0, time.UTC)},
		}

		metrics := buildWellnessMetrics(commits)

		offHours := metricByName(t, metrics, metricOffHoursShare)
		assert.InDelta(t, 0.25, offHours.RawValue, 0.001)
		assert.InDelta(t, 75, offHours.Value, 0.001)

		weekend := metricByName(t, metrics, metricWeekendShare)
		assert.InDelta(t, 0.5, weekend.RawValue, 0.001)
		assert.InDelta(t, 50, weekend.Value, 0.001)

		burst := metricByName(t, metrics, metricBurstCommits)
		assert.InDelta(t, 2, burst.RawValue, 0.001)
		assert.InDelta(t, 100, burst.Value, 0.001)
	})
}

func TestScoringService_ScorePullRequest(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	accountID := int64(9)
	prID := int64(101)

	freshPR := &domain.PullRequest{
		ID:           prID,
		Number:       7,
		Title:        "feat: ingestion",
		RepositoryID: 5,
		CreatedAt:    time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC),
	}
	calculatedAt := time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC)
	scoredPR := &domain.PullRequest{
		ID:                  prID,
		MetricsCalculatedAt: &calculatedAt,
	}

	testCases := []struct {
		name          string
		setupMocks    func(db *DBMock, prs *PullRequestRepositoryMock, metrics *MetricRepositoryMock, reviews *ReviewRepositoryMock, commits *CommitRepositoryMock, accounts *AccountRepositoryMock, analyzer *AnalyzerMock)
		expectedError error
	}{
		{
			name: "Success",
			setupMocks: func(db *DBMock, prs *PullRequestRepositoryMock, metrics *MetricRepositoryMock, reviews *ReviewRepositoryMock, commits *CommitRepositoryMock, accounts *AccountRepositoryMock, analyzer *AnalyzerMock) {
				_, mockedTx, smock := newMockDBAndTx(t)
				smock.ExpectCommit()

				prs.On("GetPullRequestByID", ctx, prID).Return(freshPR, nil).Once()
				reviews.On("GetReviewsByPullRequest", ctx, prID).Return([]domain.Review{}, nil).Once()
				reviews.On("GetCommentsByPullRequest", ctx, prID).Return([]domain.Comment{}, nil).Once()
				commits.On("GetCommitsByPullRequest", ctx, prID).Return([]domain.Commit{}, nil).Once()
				prs.On("GetFiles", ctx, prID).Return([]domain.PullRequestFile{}, nil).Once()
				analyzer.On("AnalyzeCode", ctx, freshPR.Title, "", mock.Anything).Return(domain.CodeAnalysis{}, false).Once()
				accounts.On("GetAccountByID", ctx, accountID).Return(&domain.Account{ID: accountID, Settings: domain.AccountSettings{}}, nil).Once()

				db.On("BeginTxx", mock.Anything, (*sql.TxOptions)(nil)).Return(mockedTx, nil).Once()
				metrics.On("ReplaceMetrics", ctx, mockedTx, prID, mock.MatchedBy(func(ms []domain.PRMetric) bool {
					for _, m := range ms {
						if m.PullRequestID != prID {
							return false
						}
					}

					return len(ms) == 4
				})).Return(nil).Once()

				prs.On("UpdateScores", ctx, mock.Anything, prID, mock.MatchedBy(func(s domain.Scores) bool {
					return s.Efficiency == 100 && s.Wellness == 0 && s.Quality == 0 && s.Overall == 45
				}), mock.AnythingOfType("time.Time")).Return(nil).Once()
			},
		},
		{
			name: "Success: metrics already calculated",
			setupMocks: func(db *DBMock, prs *PullRequestRepositoryMock, metrics *MetricRepositoryMock, reviews *ReviewRepositoryMock, commits *CommitRepositoryMock, accounts *AccountRepositoryMock, analyzer *AnalyzerMock) {
				prs.On("GetPullRequestByID", ctx, prID).Return(scoredPR, nil).Once()
			},
		},
		{
			name: "Failure on pull request lookup",
			setupMocks: func(db *DBMock, prs *PullRequestRepositoryMock, metrics *MetricRepositoryMock, reviews *ReviewRepositoryMock, commits *CommitRepositoryMock, accounts *AccountRepositoryMock, analyzer *AnalyzerMock) {
				prs.On("GetPullRequestByID", ctx, prID).Return(nil, apperrors.ErrNotFound).Once()
			},
			expectedError: apperrors.ErrNotFound,
		},
		{
			name: "Failure on metric storage",
			setupMocks: func(db *DBMock, prs *PullRequestRepositoryMock, metrics *MetricRepositoryMock, reviews *ReviewRepositoryMock, commits *CommitRepositoryMock, accounts *AccountRepositoryMock, analyzer *AnalyzerMock) {
				_, mockedTx, smock := newMockDBAndTx(t)
				smock.ExpectRollback()

				prs.On("GetPullRequestByID", ctx, prID).Return(freshPR, nil).Once()
				reviews.On("GetReviewsByPullRequest", ctx, prID).Return([]domain.Review{}, nil).Once()
				reviews.On("GetCommentsByPullRequest", ctx, prID).Return([]domain.Comment{}, nil).Once()
				commits.On("GetCommitsByPullRequest", ctx, prID).Return([]domain.Commit{}, nil).Once()
				prs.On("GetFiles", ctx, prID).Return([]domain.PullRequestFile{}, nil).Once()
				analyzer.On("AnalyzeCode", ctx, freshPR.Title, "", mock.Anything).Return(domain.CodeAnalysis{}, false).Once()
				accounts.On("GetAccountByID", ctx, accountID).Return(&domain.Account{ID: accountID, Settings: domain.AccountSettings{}}, nil).Once()

				db.On("BeginTxx", mock.Anything, (*sql.TxOptions)(nil)).Return(mockedTx, nil).Once()
				metrics.On("ReplaceMetrics", ctx, mockedTx, prID, mock.Anything).Return(errors.New("insert failed")).Once()
			},
			expectedError: errors.New("insert failed"),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dbMock := new(DBMock)
			prsMock := new(PullRequestRepositoryMock)
			metricsMock := new(MetricRepositoryMock)
			reviewsMock := new(ReviewRepositoryMock)
			commitsMock := new(CommitRepositoryMock)
			accountsMock := new(AccountRepositoryMock)
			analyzerMock := new(AnalyzerMock)
			tc.setupMocks(dbMock, prsMock, metricsMock, reviewsMock, commitsMock, accountsMock, analyzerMock)

			service := NewScoringService(dbMock, logger, prsMock, metricsMock, reviewsMock, commitsMock, accountsMock, analyzerMock, nil, nil)
			err := service.ScorePullRequest(ctx, accountID, prID)

			if tc.expectedError != nil {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tc.expectedError.Error())
			} else {
				assert.NoError(t, err)
			}

			dbMock.AssertExpectations(t)
			prsMock.AssertExpectations(t)
			metricsMock.AssertExpectations(t)
			reviewsMock.AssertExpectations(t)
			commitsMock.AssertExpectations(t)
			accountsMock.AssertExpectations(t)
			analyzerMock.AssertExpectations(t)
		})
	}
}

func TestScoringService_UpdatePRScores(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	prID := int64(42)
	pr := &domain.PullRequest{ID: prID, RepositoryID: 5}
	repo := &domain.Repository{ID: 5, AccountID: 9}
	account := &domain.Account{
		ID: 9,
		Settings: domain.AccountSettings{
			"score_weights": map[string]any{"efficiency": 1.0, "wellness": 0.0, "quality": 0.0},
		},
	}

	testCases := []struct {
		name          string
		setupMocks    func(prs *PullRequestRepositoryMock, metrics *MetricRepositoryMock, accounts *AccountRepositoryMock)
		expectedError bool
	}{
		{
			name: "Success with account weight override",
			setupMocks: func(prs *PullRequestRepositoryMock, metrics *MetricRepositoryMock, accounts *AccountRepositoryMock) {
				prs.On("GetPullRequestByID", ctx, prID).Return(pr, nil).Once()
				metrics.On("GetMetricsByPullRequest", ctx, prID).Return([]domain.PRMetric{
					{Category: domain.MetricCategoryEfficiency, Value: 80},
				}, nil).Once()
				accounts.On("GetRepositoryByID", ctx, pr.RepositoryID).Return(repo, nil).Once()
				accounts.On("GetAccountByID", ctx, repo.AccountID).Return(account, nil).Once()
				prs.On("UpdateScores", ctx, mock.Anything, prID, mock.MatchedBy(func(s domain.Scores) bool {
					return s.Overall == 80
				}), mock.AnythingOfType("time.Time")).Return(nil).Once()
			},
		},
		{
			name: "Success: no stored metrics",
			setupMocks: func(prs *PullRequestRepositoryMock, metrics *MetricRepositoryMock, accounts *AccountRepositoryMock) {
				prs.On("GetPullRequestByID", ctx, prID).Return(pr, nil).Once()
				metrics.On("GetMetricsByPullRequest", ctx, prID).Return([]domain.PRMetric{}, nil).Once()
			},
		},
		{
			name: "Failure on account lookup",
			setupMocks: func(prs *PullRequestRepositoryMock, metrics *MetricRepositoryMock, accounts *AccountRepositoryMock) {
				prs.On("GetPullRequestByID", ctx, prID).Return(pr, nil).Once()
				metrics.On("GetMetricsByPullRequest", ctx, prID).Return([]domain.PRMetric{
					{Category: domain.MetricCategoryEfficiency, Value: 80},
				}, nil).Once()
				accounts.On("GetRepositoryByID", ctx, pr.RepositoryID).Return(repo, nil).Once()
				accounts.On("GetAccountByID", ctx, repo.AccountID).Return(nil, errors.New("db down")).Once()
			},
			expectedError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			prsMock := new(PullRequestRepositoryMock)
			metricsMock := new(MetricRepositoryMock)
			accountsMock := new(AccountRepositoryMock)
			tc.setupMocks(prsMock, metricsMock, accountsMock)

			service := NewScoringService(new(DBMock), logger, prsMock, metricsMock, nil, nil, accountsMock, nil, nil, nil)
			err := service.UpdatePRScores(ctx, prID)

			if tc.expectedError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}

			prsMock.AssertExpectations(t)
			metricsMock.AssertExpectations(t)
			accountsMock.AssertExpectations(t)
		})
	}
}

func TestScoringService_PostSuggestionComment(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	installationID := int64(77)
	fullName := "devkudos/ingest-service"
	prID := int64(42)

	overall := 75.0
	scoredPR := &domain.PullRequest{
		ID:           prID,
		Number:       12,
		Title:        "feat: ingestion",
		OverallScore: &overall,
	}

	testCases := []struct {
		name          string
		setupMocks    func(prs *PullRequestRepositoryMock, metrics *MetricRepositoryMock, analyzer *AnalyzerMock, github *GitHubClientMock)
		expectedError bool
	}{
		{
			name: "Success",
			setupMocks: func(prs *PullRequestRepositoryMock, metrics *MetricRepositoryMock, analyzer *AnalyzerMock, github *GitHubClientMock) {
				prs.On("GetPullRequestByID", ctx, prID).Return(scoredPR, nil).Once()
				metrics.On("GetMetricsByPullRequest", ctx, prID).Return([]domain.PRMetric{}, nil).Once()
				analyzer.On("GenerateActionItems", ctx, scoredPR.Title, mock.AnythingOfType("domain.Scores"), mock.Anything).
					Return(domain.ActionPlan{
						OverallRecommendation: "Ship smaller changes.",
						ActionItems:           []string{"Split large pull requests", "Ask for review earlier"},
					}, true).Once()
				github.On("CreatePullRequestComment", ctx, installationID, fullName, 12,
					"Ship smaller changes.\n- Split large pull requests\n- Ask for review earlier").Return(nil).Once()
			},
		},
		{
			name: "Skip without overall score",
			setupMocks: func(prs *PullRequestRepositoryMock, metrics *MetricRepositoryMock, analyzer *AnalyzerMock, github *GitHubClientMock) {
				prs.On("GetPullRequestByID", ctx, prID).Return(&domain.PullRequest{ID: prID}, nil).Once()
			},
		},
		{
			name: "Skip when analyzer declines",
			setupMocks: func(prs *PullRequestRepositoryMock, metrics *MetricRepositoryMock, analyzer *AnalyzerMock, github *GitHubClientMock) {
				prs.On("GetPullRequestByID", ctx, prID).Return(scoredPR, nil).Once()
				metrics.On("GetMetricsByPullRequest", ctx, prID).Return([]domain.PRMetric{}, nil).Once()
				analyzer.On("GenerateActionItems", ctx, scoredPR.Title, mock.AnythingOfType("domain.Scores"), mock.Anything).
					Return(domain.ActionPlan{}, false).Once()
			},
		},
		{
			name: "Failure on comment post",
			setupMocks: func(prs *PullRequestRepositoryMock, metrics *MetricRepositoryMock, analyzer *AnalyzerMock, github *GitHubClientMock) {
				prs.On("GetPullRequestByID", ctx, prID).Return(scoredPR, nil).Once()
				metrics.On("GetMetricsByPullRequest", ctx, prID).Return([]domain.PRMetric{}, nil).Once()
				analyzer.On("GenerateActionItems", ctx, scoredPR.Title, mock.AnythingOfType("domain.Scores"), mock.Anything).
					Return(domain.ActionPlan{OverallRecommendation: "ok"}, true).Once()
				github.On("CreatePullRequestComment", ctx, installationID, fullName, 12, "ok").
					Return(errors.New("api error")).Once()
			},
			expectedError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			prsMock := new(PullRequestRepositoryMock)
			metricsMock := new(MetricRepositoryMock)
			analyzerMock := new(AnalyzerMock)
			githubMock := new(GitHubClientMock)
			tc.setupMocks(prsMock, metricsMock, analyzerMock, githubMock)

			service := NewScoringService(new(DBMock), logger, prsMock, metricsMock, nil, nil, nil, analyzerMock, githubMock, nil)
			err := service.PostSuggestionComment(ctx, installationID, fullName, prID)

			if tc.expectedError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}

			prsMock.AssertExpectations(t)
			metricsMock.AssertExpectations(t)
			analyzerMock.AssertExpectations(t)
			githubMock.AssertExpectations(t)
		})
	}
}
