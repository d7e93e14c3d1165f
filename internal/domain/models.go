package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type AccountType string

const (
	AccountTypeOrganization AccountType = "ORGANIZATION"
	AccountTypePersonal     AccountType = "PERSONAL"
)

type PullRequestState string

const (
	PullRequestStateOpen   PullRequestState = "OPEN"
	PullRequestStateClosed PullRequestState = "CLOSED"
	PullRequestStateMerged PullRequestState = "MERGED"
)

// PullRequestStateFrom derives the stored state from the raw webhook state
// string and the merged flag. Merged always wins, whatever the raw state says.
func PullRequestStateFrom(rawState string, merged bool) PullRequestState {
	if merged {
		return PullRequestStateMerged
	}

	if rawState == "open" {
		return PullRequestStateOpen
	}

	return PullRequestStateClosed
}

type ReviewState string

const (
	ReviewStatePending          ReviewState = "PENDING"
	ReviewStateCommented        ReviewState = "COMMENTED"
	ReviewStateApproved         ReviewState = "APPROVED"
	ReviewStateChangesRequested ReviewState = "CHANGES_REQUESTED"
)

// ReviewStateFrom maps GitHub's review-state vocabulary onto the stored
// enum; anything unrecognized collapses to PENDING.
func ReviewStateFrom(raw string) ReviewState {
	switch raw {
	case "approved", "APPROVED":
		return ReviewStateApproved
	case "changes_requested", "CHANGES_REQUESTED":
		return ReviewStateChangesRequested
	case "commented", "COMMENTED":
		return ReviewStateCommented
	default:
		return ReviewStatePending
	}
}

type DeliveryStatus string

const (
	DeliveryStatusReceived  DeliveryStatus = "received"
	DeliveryStatusProcessed DeliveryStatus = "processed"
	DeliveryStatusFailed    DeliveryStatus = "failed"
)

const (
	PointReasonPRMerged        = "pr_merged"
	PointReasonReviewSubmitted = "review_submitted"
)

const (
	MetricCategoryEfficiency = "efficiency"
	MetricCategoryWellness   = "wellness"
	MetricCategoryQuality    = "quality"
)

// AccountSettings is the per-account configuration bag stored as JSONB.
type AccountSettings map[string]any

func (s AccountSettings) Value() (driver.Value, error) {
	if s == nil {
		return []byte("{}"), nil
	}

	return json.Marshal(s)
}

func (s *AccountSettings) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	case nil:
		*s = AccountSettings{}
		return nil
	default:
		return fmt.Errorf("cannot scan %T into AccountSettings", src)
	}
}

// ScoreWeights is the relative weighting of the three score categories when
// combining them into the overall score.
type ScoreWeights struct {
	Efficiency float64
	Wellness   float64
	Quality    float64
}

// DefaultScoreWeights returns the fixed weighting used for point
// calculation: efficiency 0.45, wellness 0.15, quality 0.40.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{Efficiency: 0.45, Wellness: 0.15, Quality: 0.40}
}

// Weights reads an optional "score_weights" override from the settings bag,
// falling back to the defaults for any missing component.
func (s AccountSettings) Weights() ScoreWeights {
	weights := DefaultScoreWeights()

	raw, ok := s["score_weights"].(map[string]any)
	if !ok {
		return weights
	}

	if v, ok := raw["efficiency"].(float64); ok {
		weights.Efficiency = v
	}

	if v, ok := raw["wellness"].(float64); ok {
		weights.Wellness = v
	}

	if v, ok := raw["quality"].(float64); ok {
		weights.Quality = v
	}

	return weights
}

// LevelForPoints derives a user level from cumulative points.
func LevelForPoints(points int64) int {
	return int(points/100) + 1
}

type Account struct {
	ID             int64           `db:"id"`
	Name           string          `db:"name"`
	Type           AccountType     `db:"type"`
	InstallationID *int64          `db:"installation_id"`
	Settings       AccountSettings `db:"settings"`
}

type Repository struct {
	ID        int64  `db:"id"`
	FullName  string `db:"full_name"`
	AccountID int64  `db:"account_id"`
}

type User struct {
	ID        int64   `db:"id"`
	Login     string  `db:"login"`
	Name      *string `db:"name"`
	Email     *string `db:"email"`
	AccountID int64   `db:"account_id"`
	Points    int64   `db:"points"`
	Level     int     `db:"level"`
}

type UserOrganization struct {
	UserID    int64 `db:"user_id"`
	AccountID int64 `db:"account_id"`
}

type PullRequest struct {
	ID                  int64            `db:"id"`
	Number              int              `db:"number"`
	Title               string           `db:"title"`
	Description         *string          `db:"description"`
	State               PullRequestState `db:"state"`
	AuthorID            int64            `db:"author_id"`
	RepositoryID        int64            `db:"repository_id"`
	Additions           int              `db:"additions"`
	Deletions           int              `db:"deletions"`
	ChangedFiles        int              `db:"changed_files"`
	FirstCommitAt       *time.Time       `db:"first_commit_at"`
	MergedAt            *time.Time       `db:"merged_at"`
	ClosedAt            *time.Time       `db:"closed_at"`
	EfficiencyScore     *float64         `db:"efficiency_score"`
	WellnessScore       *float64         `db:"wellness_score"`
	QualityScore        *float64         `db:"quality_score"`
	OverallScore        *float64         `db:"overall_score"`
	PointsAwarded       *int             `db:"points_awarded"`
	MetricsCalculatedAt *time.Time       `db:"metrics_calculated_at"`
	CreatedAt           time.Time        `db:"created_at"`
	UpdatedAt           time.Time        `db:"updated_at"`
	ReviewerIDs         []int64
}

type PullRequestFile struct {
	PullRequestID int64  `db:"pull_request_id"`
	Filename      string `db:"filename"`
	Status        string `db:"status"`
	Additions     int    `db:"additions"`
	Deletions     int    `db:"deletions"`
	Changes       int    `db:"changes"`
	Patch         string `db:"-"`
}

type Commit struct {
	SHA          string    `db:"sha"`
	Message      string    `db:"message"`
	AuthorID     int64     `db:"author_id"`
	RepositoryID int64     `db:"repository_id"`
	CommittedAt  time.Time `db:"committed_at"`
	Additions    int       `db:"additions"`
	Deletions    int       `db:"deletions"`
	ChangedFiles int       `db:"changed_files"`
}

type Review struct {
	ID            int64       `db:"id"`
	PullRequestID int64       `db:"pull_request_id"`
	AuthorID      int64       `db:"author_id"`
	State         ReviewState `db:"state"`
	Body          *string     `db:"body"`
	SubmittedAt   time.Time   `db:"submitted_at"`
}

type Comment struct {
	ID             int64     `db:"id"`
	PullRequestID  int64     `db:"pull_request_id"`
	AuthorID       int64     `db:"author_id"`
	Body           string    `db:"body"`
	SentimentScore float64   `db:"sentiment_score"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// PRMetric is one raw metric row for a pull request. The set of rows for a
// PR is always replaced wholesale on recomputation, never patched.
type PRMetric struct {
	PullRequestID int64   `db:"pull_request_id"`
	Category      string  `db:"category"`
	Name          string  `db:"name"`
	Value         float64 `db:"value"`
	RawValue      float64 `db:"raw_value"`
	Unit          string  `db:"unit"`
	Description   string  `db:"description"`
}

// PointTransaction is one append-only ledger entry. Rows are never updated
// or deleted.
type PointTransaction struct {
	ID            int64     `db:"id"`
	UserID        int64     `db:"user_id"`
	AccountID     int64     `db:"account_id"`
	Amount        int       `db:"amount"`
	Reason        string    `db:"reason"`
	ReferenceID   string    `db:"reference_id"`
	ReferenceType string    `db:"reference_type"`
	CreatedAt     time.Time `db:"created_at"`
}

type Delivery struct {
	ID          string         `db:"id"`
	EventType   string         `db:"event_type"`
	Action      string         `db:"action"`
	Status      DeliveryStatus `db:"status"`
	Error       *string        `db:"error"`
	ReceivedAt  time.Time      `db:"received_at"`
	ProcessedAt *time.Time     `db:"processed_at"`
}

// Scores holds the three category scores and the weighted overall score,
// each in [0,100].
type Scores struct {
	Efficiency float64
	Wellness   float64
	Quality    float64
	Overall    float64
}

// CommitInfo is a commit as reported by the GitHub capability. AuthorID is
// zero when GitHub has no linked account for the commit author.
type CommitInfo struct {
	SHA          string
	Message      string
	AuthorID     int64
	AuthorLogin  string
	AuthorName   string
	AuthorEmail  string
	CommittedAt  time.Time
	Additions    int
	Deletions    int
	ChangedFiles int
}

// CodeFeedback is one reviewer-style remark produced by code analysis.
type CodeFeedback struct {
	Filename string `json:"filename"`
	Severity string `json:"severity"`
	Comment  string `json:"comment"`
}

// CodeAnalysis is the structured result of analyzing a changeset: feedback
// items plus a 0-100 quality score. Metrics is an optional per-aspect
// breakdown; values arrive as bare numbers or as
// {"score": n, "raw": n, "unit": s, "description": s} objects and are
// normalized by the scoring engine.
type CodeAnalysis struct {
	Feedback []CodeFeedback `json:"feedback"`
	Score    float64        `json:"score"`
	Metrics  map[string]any `json:"metrics"`
}

// ActionPlan is the suggestion set generated for an author after scoring.
type ActionPlan struct {
	OverallRecommendation string   `json:"overall_recommendation"`
	ActionItems           []string `json:"action_items"`
}
