package domain

import "time"

// Webhook event type names as they arrive in the X-GitHub-Event header.
const (
	EventTypePullRequest  = "pull_request"
	EventTypeReview       = "pull_request_review"
	EventTypeIssueComment = "issue_comment"
	EventTypePush         = "push"
	EventTypeInstallation = "installation"
)

const (
	ActionOpened      = "opened"
	ActionReopened    = "reopened"
	ActionSynchronize = "synchronize"
	ActionEdited      = "edited"
	ActionClosed      = "closed"
	ActionSubmitted   = "submitted"
	ActionCreated     = "created"
	ActionDeleted     = "deleted"
)

// Envelope is a webhook delivery as it travels through the queue: the
// routing headers plus the raw JSON body.
type Envelope struct {
	DeliveryID string `json:"delivery_id" validate:"required,delivery_id"`
	EventType  string `json:"event_type" validate:"required,event_type"`
	Body       []byte `json:"body" validate:"required"`
	Attempt    int    `json:"attempt" validate:"min=0"`
}

// WebhookAccount is a GitHub user or organization as it appears inside
// webhook payloads.
type WebhookAccount struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Type  string `json:"type"`
}

type WebhookRepository struct {
	ID       int64          `json:"id" validate:"required"`
	FullName string         `json:"full_name" validate:"required"`
	Owner    WebhookAccount `json:"owner"`
}

type WebhookInstallation struct {
	ID      int64          `json:"id" validate:"required"`
	Account WebhookAccount `json:"account"`
}

// EventContext carries the payload fragments every event shares. Account
// resolution walks them in a fixed precedence order.
type EventContext struct {
	Installation *WebhookInstallation `json:"installation"`
	Organization *WebhookAccount      `json:"organization"`
	Repository   *WebhookRepository   `json:"repository"`
	Sender       *WebhookAccount      `json:"sender"`
}

// ResolveAccountID picks the owning account for an event. Precedence:
// installation account, then organization, then repository owner, then
// sender. Returns false when no fragment carries a usable id.
func (c EventContext) ResolveAccountID() (int64, bool) {
	if c.Installation != nil && c.Installation.Account.ID != 0 {
		return c.Installation.Account.ID, true
	}

	if c.Organization != nil && c.Organization.ID != 0 {
		return c.Organization.ID, true
	}

	if c.Repository != nil && c.Repository.Owner.ID != 0 {
		return c.Repository.Owner.ID, true
	}

	if c.Sender != nil && c.Sender.ID != 0 {
		return c.Sender.ID, true
	}

	return 0, false
}

// AccountName returns the display name matching whichever fragment
// ResolveAccountID would pick.
func (c EventContext) AccountName() string {
	if c.Installation != nil && c.Installation.Account.ID != 0 {
		return c.Installation.Account.Login
	}

	if c.Organization != nil && c.Organization.ID != 0 {
		return c.Organization.Login
	}

	if c.Repository != nil && c.Repository.Owner.ID != 0 {
		return c.Repository.Owner.Login
	}

	if c.Sender != nil && c.Sender.ID != 0 {
		return c.Sender.Login
	}

	return ""
}

type WebhookPullRequest struct {
	ID                 int64            `json:"id" validate:"required"`
	Number             int              `json:"number" validate:"required"`
	Title              string           `json:"title"`
	Body               *string          `json:"body"`
	State              string           `json:"state"`
	Merged             bool             `json:"merged"`
	User               WebhookAccount   `json:"user"`
	Additions          int              `json:"additions"`
	Deletions          int              `json:"deletions"`
	ChangedFiles       int              `json:"changed_files"`
	CreatedAt          *time.Time       `json:"created_at"`
	MergedAt           *time.Time       `json:"merged_at"`
	ClosedAt           *time.Time       `json:"closed_at"`
	RequestedReviewers []WebhookAccount `json:"requested_reviewers"`
}

type PullRequestEvent struct {
	Action      string             `json:"action" validate:"required"`
	PullRequest WebhookPullRequest `json:"pull_request" validate:"required"`
	EventContext
}

type WebhookReview struct {
	ID          int64          `json:"id" validate:"required"`
	User        WebhookAccount `json:"user"`
	Body        *string        `json:"body"`
	State       string         `json:"state"`
	SubmittedAt *time.Time     `json:"submitted_at"`
}

type ReviewEvent struct {
	Action      string             `json:"action" validate:"required"`
	Review      WebhookReview      `json:"review" validate:"required"`
	PullRequest WebhookPullRequest `json:"pull_request" validate:"required"`
	EventContext
}

// WebhookIssue carries just enough of the issue fragment to tell PR
// comments apart from plain issue comments and to find the PR by number.
type WebhookIssue struct {
	Number      int                  `json:"number"`
	PullRequest *WebhookIssuePullRef `json:"pull_request"`
}

type WebhookIssuePullRef struct {
	URL string `json:"url"`
}

// IsPullRequest reports whether the comment belongs to a pull request
// rather than a plain issue.
func (i WebhookIssue) IsPullRequest() bool {
	return i.PullRequest != nil
}

type WebhookComment struct {
	ID        int64          `json:"id" validate:"required"`
	Body      string         `json:"body"`
	User      WebhookAccount `json:"user"`
	CreatedAt *time.Time     `json:"created_at"`
	UpdatedAt *time.Time     `json:"updated_at"`
}

type IssueCommentEvent struct {
	Action  string         `json:"action" validate:"required"`
	Issue   WebhookIssue   `json:"issue"`
	Comment WebhookComment `json:"comment" validate:"required"`
	EventContext
}

type WebhookCommitAuthor struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

type WebhookCommit struct {
	ID        string              `json:"id" validate:"required"`
	Message   string              `json:"message"`
	Timestamp *time.Time          `json:"timestamp"`
	Author    WebhookCommitAuthor `json:"author"`
	Added     []string            `json:"added"`
	Removed   []string            `json:"removed"`
	Modified  []string            `json:"modified"`
}

type PushEvent struct {
	Ref     string          `json:"ref"`
	Commits []WebhookCommit `json:"commits"`
	EventContext
}

// InstallationEvent deliberately does not embed EventContext: its
// installation fragment is authoritative and sender is the only other
// fragment GitHub sends.
type InstallationEvent struct {
	Action       string              `json:"action" validate:"required"`
	Installation WebhookInstallation `json:"installation" validate:"required"`
	Sender       *WebhookAccount     `json:"sender"`
}
