package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/devkudos/ingest-service/internal/domain"
	"github.com/devkudos/ingest-service/internal/encryption"
	"github.com/devkudos/ingest-service/internal/repository"
	"github.com/devkudos/ingest-service/pkg/logger/sl"
	"github.com/jmoiron/sqlx"
)

const (
	metricMergeTime        = "merge_time"
	metricReviewTurnaround = "review_turnaround"
	metricChangeSize       = "change_size"
	metricFileSpread       = "file_spread"

	metricOffHoursShare = "off_hours_share"
	metricWeekendShare  = "weekend_share"
	metricBurstCommits  = "burst_commits"

	metricCodeAnalysis    = "code_analysis"
	metricReviewCoverage  = "review_coverage"
	metricSentiment       = "comment_sentiment"
	metricDescriptionSize = "description_completeness"
)

// ScoringService turns a pull request's stored entities into metric rows and
// the three category scores plus the weighted overall score.
type ScoringService struct {
	BaseService
	prs      repository.PullRequestRepository
	metrics  repository.MetricRepository
	reviews  repository.ReviewRepository
	commits  repository.CommitRepository
	accounts repository.AccountRepository
	analyzer Analyzer
	github   GitHubClient
	cipher   Encryptor
}

func NewScoringService(
	db DB,
	log *slog.Logger,
	prs repository.PullRequestRepository,
	metrics repository.MetricRepository,
	reviews repository.ReviewRepository,
	commits repository.CommitRepository,
	accounts repository.AccountRepository,
	analyzer Analyzer,
	github GitHubClient,
	cipher Encryptor,
) *ScoringService {
	return &ScoringService{
		BaseService: NewBaseService(db, log),
		prs:         prs,
		metrics:     metrics,
		reviews:     reviews,
		commits:     commits,
		accounts:    accounts,
		analyzer:    analyzer,
		github:      github,
		cipher:      cipher,
	}
}

// ScorePullRequest runs the scoring lifecycle for a merged pull request:
// build metrics from stored entities, replace the stored metric set, then
// persist the category and overall scores. A pull request that already has
// metrics_calculated_at set is skipped, which makes replays cheap.
func (s *ScoringService) ScorePullRequest(ctx context.Context, accountID, prID int64) error {
	const op = "internal.service.scoring.ScorePullRequest"
	log := s.log.With(slog.String("op", op), slog.Int64("pr_id", prID))

	pr, err := s.prs.GetPullRequestByID(ctx, prID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if pr.MetricsCalculatedAt != nil {
		log.Info("metrics already calculated, skipping")
		return nil
	}

	metrics, err := s.buildMetrics(ctx, pr)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	account, err := s.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("%s: failed to get account: %w", op, err)
	}

	scores := ComputeScores(metrics, account.Settings.Weights())

	// The metric set swap is atomic on its own; the score update follows
	// separately and can always be rebuilt from the rows it lags behind.
	err = s.transaction(ctx, op, func(tx *sqlx.Tx) error {
		return s.metrics.ReplaceMetrics(ctx, tx, prID, metrics)
	})
	if err != nil {
		return fmt.Errorf("%s: failed to store metrics: %w", op, err)
	}

	if err := s.prs.UpdateScores(ctx, s.db, prID, scores, time.Now()); err != nil {
		return fmt.Errorf("%s: failed to update scores: %w", op, err)
	}

	log.Info("pull request scored",
		slog.Float64("efficiency", scores.Efficiency),
		slog.Float64("wellness", scores.Wellness),
		slog.Float64("quality", scores.Quality),
		slog.Float64("overall", scores.Overall),
	)

	return nil
}

// UpdatePRScores recomputes the score fields from the persisted metric rows
// alone, without the original webhook payload.
func (s *ScoringService) UpdatePRScores(ctx context.Context, prID int64) error {
	const op = "internal.service.scoring.UpdatePRScores"
	log := s.log.With(slog.String("op", op), slog.Int64("pr_id", prID))

	pr, err := s.prs.GetPullRequestByID(ctx, prID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	metrics, err := s.metrics.GetMetricsByPullRequest(ctx, prID)
	if err != nil {
		return fmt.Errorf("%s: failed to get metrics: %w", op, err)
	}

	if len(metrics) == 0 {
		log.Warn("no stored metrics, nothing to recompute")
		return nil
	}

	repo, err := s.accounts.GetRepositoryByID(ctx, pr.RepositoryID)
	if err != nil {
		return fmt.Errorf("%s: failed to get repository: %w", op, err)
	}

	account, err := s.accounts.GetAccountByID(ctx, repo.AccountID)
	if err != nil {
		return fmt.Errorf("%s: failed to get account: %w", op, err)
	}

	scores := ComputeScores(metrics, account.Settings.Weights())

	if err := s.prs.UpdateScores(ctx, s.db, prID, scores, time.Now()); err != nil {
		return fmt.Errorf("%s: failed to update scores: %w", op, err)
	}

	log.Info("scores recomputed", slog.Float64("overall", scores.Overall))

	return nil
}

// PostSuggestionComment generates an action plan for a scored pull request
// and posts it as a plain comment. Callers treat it as best-effort.
func (s *ScoringService) PostSuggestionComment(ctx context.Context, installationID int64, fullName string, prID int64) error {
	const op = "internal.service.scoring.PostSuggestionComment"

	pr, err := s.prs.GetPullRequestByID(ctx, prID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if pr.OverallScore == nil {
		return nil
	}

	metrics, err := s.metrics.GetMetricsByPullRequest(ctx, prID)
	if err != nil {
		return fmt.Errorf("%s: failed to get metrics: %w", op, err)
	}

	scores := domain.Scores{
		Efficiency: derefScore(pr.EfficiencyScore),
		Wellness:   derefScore(pr.WellnessScore),
		Quality:    derefScore(pr.QualityScore),
		Overall:    *pr.OverallScore,
	}

	plan, ok := s.analyzer.GenerateActionItems(ctx, pr.Title, scores, metrics)
	if !ok {
		return nil
	}

	var b strings.Builder
	b.WriteString(plan.OverallRecommendation)
	for _, item := range plan.ActionItems {
		b.WriteString("\n- ")
		b.WriteString(item)
	}

	if err := s.github.CreatePullRequestComment(ctx, installationID, fullName, pr.Number, b.String()); err != nil {
		return fmt.Errorf("%s: failed to post comment: %w", op, err)
	}

	return nil
}

func (s *ScoringService) buildMetrics(ctx context.Context, pr *domain.PullRequest) ([]domain.PRMetric, error) {
	reviews, err := s.reviews.GetReviewsByPullRequest(ctx, pr.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get reviews: %w", err)
	}

	comments, err := s.reviews.GetCommentsByPullRequest(ctx, pr.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get comments: %w", err)
	}

	commits, err := s.commits.GetCommitsByPullRequest(ctx, pr.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get commits: %w", err)
	}

	files, err := s.prs.GetFiles(ctx, pr.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get files: %w", err)
	}

	metrics := buildEfficiencyMetrics(pr, reviews)
	metrics = append(metrics, buildWellnessMetrics(commits)...)
	metrics = append(metrics, s.buildQualityMetrics(ctx, pr, files, reviews, comments)...)

	for i := range metrics {
		metrics[i].PullRequestID = pr.ID
	}

	return metrics, nil
}

func buildEfficiencyMetrics(pr *domain.PullRequest, reviews []domain.Review) []domain.PRMetric {
	var out []domain.PRMetric

	if pr.MergedAt != nil {
		start := pr.CreatedAt
		if pr.FirstCommitAt != nil && pr.FirstCommitAt.Before(start) {
			start = *pr.FirstCommitAt
		}

		hours := pr.MergedAt.Sub(start).Hours()
		out = append(out, domain.PRMetric{
			Category:    domain.MetricCategoryEfficiency,
			Name:        metricMergeTime,
			Value:       scoreDown(hours, 4, 168),
			RawValue:    hours,
			Unit:        "hours",
			Description: "Time from first commit to merge",
		})
	}

	if first := firstReviewAt(reviews); first != nil {
		hours := first.Sub(pr.CreatedAt).Hours()
		if hours < 0 {
			hours = 0
		}

		out = append(out, domain.PRMetric{
			Category:    domain.MetricCategoryEfficiency,
			Name:        metricReviewTurnaround,
			Value:       scoreDown(hours, 1, 48),
			RawValue:    hours,
			Unit:        "hours",
			Description: "Time from open to first review",
		})
	}

	size := float64(pr.Additions + pr.Deletions)
	out = append(out, domain.PRMetric{
		Category:    domain.MetricCategoryEfficiency,
		Name:        metricChangeSize,
		Value:       scoreDown(size, 50, 1500),
		RawValue:    size,
		Unit:        "lines",
		Description: "Total lines changed",
	})

	spread := float64(pr.ChangedFiles)
	out = append(out, domain.PRMetric{
		Category:    domain.MetricCategoryEfficiency,
		Name:        metricFileSpread,
		Value:       scoreDown(spread, 3, 50),
		RawValue:    spread,
		Unit:        "files",
		Description: "Files touched",
	})

	return out
}

// buildWellnessMetrics reads work rhythm out of commit timestamps. Hours are
// taken in the timestamp's own zone, which for webhook payloads is the
// author's local offset.
func buildWellnessMetrics(commits []domain.Commit) []domain.PRMetric {
	if len(commits) == 0 {
		return nil
	}

	var offHours, weekend int
	burstBuckets := make(map[time.Time]int)

	for _, c := range commits {
		hour := c.CommittedAt.Hour()
		if hour < 8 || hour >= 20 {
			offHours++
		}

		switch c.CommittedAt.Weekday() {
		case time.Saturday, time.Sunday:
			weekend++
		}

		bucket := c.CommittedAt.UTC().Truncate(time.Hour)
		burstBuckets[bucket]++
	}

	total := float64(len(commits))

	offShare := float64(offHours) / total
	weekendShare := float64(weekend) / total

	burst := 0
	for _, n := range burstBuckets {
		if n > burst {
			burst = n
		}
	}

	return []domain.PRMetric{
		{
			Category:    domain.MetricCategoryWellness,
			Name:        metricOffHoursShare,
			Value:       scoreDown(offShare, 0, 1),
			RawValue:    offShare,
			Unit:        "ratio",
			Description: "Share of commits outside 08:00-20:00",
		},
		{
			Category:    domain.MetricCategoryWellness,
			Name:        metricWeekendShare,
			Value:       scoreDown(weekendShare, 0, 1),
			RawValue:    weekendShare,
			Unit:        "ratio",
			Description: "Share of commits on weekends",
		},
		{
			Category:    domain.MetricCategoryWellness,
			Name:        metricBurstCommits,
			Value:       scoreDown(float64(burst), 3, 10),
			RawValue:    float64(burst),
			Unit:        "commits",
			Description: "Most commits within one hour",
		},
	}
}

func (s *ScoringService) buildQualityMetrics(ctx context.Context, pr *domain.PullRequest, files []domain.PullRequestFile, reviews []domain.Review, comments []domain.Comment) []domain.PRMetric {
	var out []domain.PRMetric

	desc := s.plainDescription(pr)

	if analysis, ok := s.analyzer.AnalyzeCode(ctx, pr.Title, desc, files); ok {
		out = append(out, domain.PRMetric{
			Category:    domain.MetricCategoryQuality,
			Name:        metricCodeAnalysis,
			Value:       analysis.Score,
			RawValue:    analysis.Score,
			Unit:        "score",
			Description: "LLM code review score",
		})

		names := make([]string, 0, len(analysis.Metrics))
		for name := range analysis.Metrics {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			if m, ok := normalizeMetricValue(s.log, domain.MetricCategoryQuality, name, analysis.Metrics[name]); ok {
				out = append(out, m)
			}
		}
	}

	coverage := float64(len(reviews))
	out = append(out, domain.PRMetric{
		Category:    domain.MetricCategoryQuality,
		Name:        metricReviewCoverage,
		Value:       clampScore(coverage * 50),
		RawValue:    coverage,
		Unit:        "reviews",
		Description: "Number of reviews received",
	})

	if len(comments) > 0 {
		var sum float64
		for _, c := range comments {
			sum += c.SentimentScore
		}
		mean := sum / float64(len(comments))

		out = append(out, domain.PRMetric{
			Category:    domain.MetricCategoryQuality,
			Name:        metricSentiment,
			Value:       clampScore(mean * 100),
			RawValue:    mean,
			Unit:        "ratio",
			Description: "Mean comment sentiment",
		})
	}

	length := float64(len(desc))
	out = append(out, domain.PRMetric{
		Category:    domain.MetricCategoryQuality,
		Name:        metricDescriptionSize,
		Value:       scoreUp(length, 0, 300),
		RawValue:    length,
		Unit:        "chars",
		Description: "Description length",
	})

	return out
}

// plainDescription returns the decrypted description. Decryption failures
// are isolated to this field: they log and yield an empty string.
func (s *ScoringService) plainDescription(pr *domain.PullRequest) string {
	if pr.Description == nil {
		return ""
	}

	desc := *pr.Description
	if !encryption.IsEncrypted(desc) {
		return desc
	}

	plain, err := s.cipher.Decrypt(desc)
	if err != nil {
		s.log.Warn("failed to decrypt description", slog.Int64("pr_id", pr.ID), sl.Err(err))
		return ""
	}

	return plain
}

// normalizeMetricValue accepts the two shapes metric values arrive in: a
// bare number used as both raw value and score, or a structured object with
// score/raw/unit/description fields. Anything else is skipped with a
// warning.
func normalizeMetricValue(log *slog.Logger, category, name string, v any) (domain.PRMetric, bool) {
	metric := domain.PRMetric{Category: category, Name: name}

	switch value := v.(type) {
	case float64:
		metric.Value = clampScore(value)
		metric.RawValue = value
		return metric, true
	case int:
		metric.Value = clampScore(float64(value))
		metric.RawValue = float64(value)
		return metric, true
	case map[string]any:
		score, scoreOK := numberField(value, "score")
		raw, rawOK := numberField(value, "value")
		if !rawOK {
			raw, rawOK = numberField(value, "raw")
		}

		if !scoreOK && !rawOK {
			log.Warn("skipping metric without numeric fields", slog.String("metric", name))
			return domain.PRMetric{}, false
		}
		if !scoreOK {
			score = raw
		}
		if !rawOK {
			raw = score
		}

		metric.Value = clampScore(score)
		metric.RawValue = raw
		if unit, ok := value["unit"].(string); ok {
			metric.Unit = unit
		}
		if description, ok := value["description"].(string); ok {
			metric.Description = description
		}

		return metric, true
	default:
		log.Warn("skipping non-numeric metric value", slog.String("metric", name))
		return domain.PRMetric{}, false
	}
}

func numberField(m map[string]any, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

// ComputeScores reduces metric rows to category means and the weighted
// overall score. A category with no metrics scores zero. Every result is
// clamped to [0,100].
func ComputeScores(metrics []domain.PRMetric, weights domain.ScoreWeights) domain.Scores {
	sums := make(map[string]float64)
	counts := make(map[string]int)

	for _, m := range metrics {
		sums[m.Category] += m.Value
		counts[m.Category]++
	}

	mean := func(category string) float64 {
		if counts[category] == 0 {
			return 0
		}

		return clampScore(sums[category] / float64(counts[category]))
	}

	scores := domain.Scores{
		Efficiency: mean(domain.MetricCategoryEfficiency),
		Wellness:   mean(domain.MetricCategoryWellness),
		Quality:    mean(domain.MetricCategoryQuality),
	}
	scores.Overall = clampScore(
		scores.Efficiency*weights.Efficiency +
			scores.Wellness*weights.Wellness +
			scores.Quality*weights.Quality,
	)

	return scores
}

func firstReviewAt(reviews []domain.Review) *time.Time {
	var first *time.Time
	for i := range reviews {
		if first == nil || reviews[i].SubmittedAt.Before(*first) {
			first = &reviews[i].SubmittedAt
		}
	}

	return first
}

// scoreDown maps a raw value where smaller is better onto [0,100]: full
// score at or below best, zero at or above worst, linear in between.
func scoreDown(raw, best, worst float64) float64 {
	if raw <= best {
		return 100
	}
	if raw >= worst {
		return 0
	}

	return clampScore(100 * (worst - raw) / (worst - best))
}

// scoreUp is the mirror of scoreDown for values where larger is better.
func scoreUp(raw, worst, best float64) float64 {
	if raw <= worst {
		return 0
	}
	if raw >= best {
		return 100
	}

	return clampScore(100 * (raw - worst) / (best - worst))
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}

	return v
}

func derefScore(v *float64) float64 {
	if v == nil {
		return 0
	}

	return *v
}
