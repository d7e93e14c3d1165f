// package githubapi wraps the GitHub REST API behind the operations the
// ingestion pipeline needs. Requests authenticate as a GitHub App
// installation when app credentials are configured, falling back to a
// personal token or anonymous access otherwise.
package githubapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v75/github"

	"github.com/devkudos/ingest-service/internal/apperrors"
	"github.com/devkudos/ingest-service/internal/domain"
)

const defaultTimeout = 30 * time.Second

// Config configures GitHub access. AppID plus PrivateKeyPath enable
// installation authentication; Token is the fallback; both empty yields an
// anonymous client useful only against test servers.
type Config struct {
	AppID          int64
	PrivateKeyPath string
	Token          string
	BaseURL        string
	Timeout        time.Duration
	BaseTransport  http.RoundTripper
}

type Client struct {
	cfg Config
	log *slog.Logger

	mu         sync.Mutex
	byInstall  map[int64]*github.Client
	appsClient *github.Client
	fallback   *github.Client
}

func New(cfg Config, log *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.BaseTransport == nil {
		cfg.BaseTransport = http.DefaultTransport
	}

	return &Client{
		cfg:       cfg,
		log:       log,
		byInstall: make(map[int64]*github.Client),
	}
}

// GetInstallationToken mints a short-lived access token for one
// installation. Requires app credentials.
func (c *Client) GetInstallationToken(ctx context.Context, installationID int64) (string, error) {
	const op = "internal.githubapi.GetInstallationToken"

	apps, err := c.appsREST()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	token, _, err := apps.Apps.CreateInstallationToken(ctx, installationID, nil)
	if err != nil {
		return "", mapError(op, err)
	}

	return token.GetToken(), nil
}

// GetPullRequest fetches a pull request in the same shape webhook payloads
// carry it.
func (c *Client) GetPullRequest(ctx context.Context, installationID int64, fullName string, number int) (*domain.WebhookPullRequest, error) {
	const op = "internal.githubapi.GetPullRequest"

	rest, owner, repo, err := c.restFor(op, installationID, fullName)
	if err != nil {
		return nil, err
	}

	pr, _, err := rest.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, mapError(op, err)
	}

	return convertPullRequest(pr), nil
}

// GetPullRequestFiles lists the changed files of a pull request, patches
// included, following pagination.
func (c *Client) GetPullRequestFiles(ctx context.Context, installationID int64, fullName string, number int) ([]domain.PullRequestFile, error) {
	const op = "internal.githubapi.GetPullRequestFiles"

	rest, owner, repo, err := c.restFor(op, installationID, fullName)
	if err != nil {
		return nil, err
	}

	var files []domain.PullRequestFile

	opts := &github.ListOptions{PerPage: 100}
	for {
		page, resp, err := rest.PullRequests.ListFiles(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, mapError(op, err)
		}

		for _, f := range page {
			files = append(files, domain.PullRequestFile{
				Filename:  f.GetFilename(),
				Status:    f.GetStatus(),
				Additions: f.GetAdditions(),
				Deletions: f.GetDeletions(),
				Changes:   f.GetChanges(),
				Patch:     f.GetPatch(),
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return files, nil
}

// GetPullRequestCommits lists the commits of a pull request, following
// pagination. The list endpoint does not carry diff stats, so those fields
// stay zero.
func (c *Client) GetPullRequestCommits(ctx context.Context, installationID int64, fullName string, number int) ([]domain.CommitInfo, error) {
	const op = "internal.githubapi.GetPullRequestCommits"

	rest, owner, repo, err := c.restFor(op, installationID, fullName)
	if err != nil {
		return nil, err
	}

	var commits []domain.CommitInfo

	opts := &github.ListOptions{PerPage: 100}
	for {
		page, resp, err := rest.PullRequests.ListCommits(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, mapError(op, err)
		}

		for _, rc := range page {
			commits = append(commits, domain.CommitInfo{
				SHA:         rc.GetSHA(),
				Message:     rc.GetCommit().GetMessage(),
				AuthorID:    rc.GetAuthor().GetID(),
				AuthorLogin: rc.GetAuthor().GetLogin(),
				AuthorName:  rc.GetCommit().GetAuthor().GetName(),
				AuthorEmail: rc.GetCommit().GetAuthor().GetEmail(),
				CommittedAt: rc.GetCommit().GetAuthor().GetDate().Time,
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return commits, nil
}

// CreatePullRequestComment posts a plain comment on the pull request
// conversation.
func (c *Client) CreatePullRequestComment(ctx context.Context, installationID int64, fullName string, number int, body string) error {
	const op = "internal.githubapi.CreatePullRequestComment"

	rest, owner, repo, err := c.restFor(op, installationID, fullName)
	if err != nil {
		return err
	}

	comment := &github.IssueComment{Body: github.Ptr(body)}
	if _, _, err := rest.Issues.CreateComment(ctx, owner, repo, number, comment); err != nil {
		return mapError(op, err)
	}

	return nil
}

// GetIssueLabels returns the label names currently on the pull request.
func (c *Client) GetIssueLabels(ctx context.Context, installationID int64, fullName string, number int) ([]string, error) {
	const op = "internal.githubapi.GetIssueLabels"

	rest, owner, repo, err := c.restFor(op, installationID, fullName)
	if err != nil {
		return nil, err
	}

	var names []string

	opts := &github.ListOptions{PerPage: 100}
	for {
		page, resp, err := rest.Issues.ListLabelsByIssue(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, mapError(op, err)
		}

		for _, label := range page {
			names = append(names, label.GetName())
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return names, nil
}

// AddLabelToPullRequest attaches one label, creating it repo-side if needed.
func (c *Client) AddLabelToPullRequest(ctx context.Context, installationID int64, fullName string, number int, label string) error {
	const op = "internal.githubapi.AddLabelToPullRequest"

	rest, owner, repo, err := c.restFor(op, installationID, fullName)
	if err != nil {
		return err
	}

	if _, _, err := rest.Issues.AddLabelsToIssue(ctx, owner, repo, number, []string{label}); err != nil {
		return mapError(op, err)
	}

	return nil
}

// RemoveLabelFromPullRequest detaches one label. Removing a label that is
// not present is not an error.
func (c *Client) RemoveLabelFromPullRequest(ctx context.Context, installationID int64, fullName string, number int, label string) error {
	const op = "internal.githubapi.RemoveLabelFromPullRequest"

	rest, owner, repo, err := c.restFor(op, installationID, fullName)
	if err != nil {
		return err
	}

	if _, err := rest.Issues.RemoveLabelForIssue(ctx, owner, repo, number, label); err != nil {
		mapped := mapError(op, err)
		if errors.Is(mapped, apperrors.ErrNotFound) {
			return nil
		}

		return mapped
	}

	return nil
}

// GetContent fetches one file's decoded content at a ref. Directories are
// rejected.
func (c *Client) GetContent(ctx context.Context, installationID int64, fullName, path, ref string) (string, error) {
	const op = "internal.githubapi.GetContent"

	rest, owner, repo, err := c.restFor(op, installationID, fullName)
	if err != nil {
		return "", err
	}

	file, _, _, err := rest.Repositories.GetContents(ctx, owner, repo, path, &github.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		return "", mapError(op, err)
	}

	if file == nil {
		return "", fmt.Errorf("%s: %q is a directory: %w", op, path, apperrors.ErrNotFound)
	}

	content, err := file.GetContent()
	if err != nil {
		return "", fmt.Errorf("%s: failed to decode content: %w", op, err)
	}

	return content, nil
}

func (c *Client) restFor(op string, installationID int64, fullName string) (*github.Client, string, string, error) {
	owner, repo, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || repo == "" {
		return nil, "", "", fmt.Errorf("%s: malformed repository name %q", op, fullName)
	}

	rest, err := c.clientFor(installationID)
	if err != nil {
		return nil, "", "", fmt.Errorf("%s: %w", op, err)
	}

	return rest, owner, repo, nil
}

// clientFor returns a REST client authenticated for the installation,
// building and caching the transport on first use. Installation id zero or
// missing app credentials select the fallback client.
func (c *Client) clientFor(installationID int64) (*github.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if installationID == 0 || c.cfg.AppID == 0 || c.cfg.PrivateKeyPath == "" {
		return c.fallbackClientLocked()
	}

	if rest, ok := c.byInstall[installationID]; ok {
		return rest, nil
	}

	transport, err := ghinstallation.NewKeyFromFile(c.cfg.BaseTransport, c.cfg.AppID, installationID, c.cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create installation transport: %w", err)
	}

	rest, err := newRESTClient(&http.Client{Transport: transport, Timeout: c.cfg.Timeout}, c.cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	c.byInstall[installationID] = rest

	return rest, nil
}

func (c *Client) fallbackClientLocked() (*github.Client, error) {
	if c.fallback != nil {
		return c.fallback, nil
	}

	rest, err := newRESTClient(&http.Client{Transport: c.cfg.BaseTransport, Timeout: c.cfg.Timeout}, c.cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	if c.cfg.Token != "" {
		rest = rest.WithAuthToken(c.cfg.Token)
	}

	c.fallback = rest

	return rest, nil
}

// appsREST returns a client authenticated as the app itself (JWT), used
// only for minting installation tokens.
func (c *Client) appsREST() (*github.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.appsClient != nil {
		return c.appsClient, nil
	}

	if c.cfg.AppID == 0 || c.cfg.PrivateKeyPath == "" {
		return nil, errors.New("app credentials are not configured")
	}

	transport, err := ghinstallation.NewAppsTransportKeyFromFile(c.cfg.BaseTransport, c.cfg.AppID, c.cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create apps transport: %w", err)
	}

	rest, err := newRESTClient(&http.Client{Transport: transport, Timeout: c.cfg.Timeout}, c.cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	c.appsClient = rest

	return rest, nil
}

// newRESTClient creates a go-github client with optional API base URL override.
func newRESTClient(httpClient *http.Client, apiBaseURL string) (*github.Client, error) {
	client := github.NewClient(httpClient)

	trimmed := strings.TrimSpace(apiBaseURL)
	if trimmed == "" {
		return client, nil
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("failed to parse github api base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("failed to parse github api base url: missing scheme or host")
	}
	if !strings.HasSuffix(parsed.Path, "/") {
		parsed.Path += "/"
	}

	client.BaseURL = parsed

	return client, nil
}

// mapError normalizes go-github errors: 404 responses become ErrNotFound so
// the retry classifier treats them as permanent.
func mapError(op string, err error) error {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", op, apperrors.ErrNotFound)
	}

	return fmt.Errorf("%s: github request failed: %w", op, err)
}

func convertPullRequest(pr *github.PullRequest) *domain.WebhookPullRequest {
	out := &domain.WebhookPullRequest{
		ID:           pr.GetID(),
		Number:       pr.GetNumber(),
		Title:        pr.GetTitle(),
		Body:         pr.Body,
		State:        pr.GetState(),
		Merged:       pr.GetMerged(),
		Additions:    pr.GetAdditions(),
		Deletions:    pr.GetDeletions(),
		ChangedFiles: pr.GetChangedFiles(),
		User: domain.WebhookAccount{
			ID:    pr.GetUser().GetID(),
			Login: pr.GetUser().GetLogin(),
			Type:  pr.GetUser().GetType(),
		},
	}

	if pr.CreatedAt != nil {
		out.CreatedAt = &pr.CreatedAt.Time
	}
	if pr.MergedAt != nil {
		out.MergedAt = &pr.MergedAt.Time
	}
	if pr.ClosedAt != nil {
		out.ClosedAt = &pr.ClosedAt.Time
	}

	for _, reviewer := range pr.RequestedReviewers {
		out.RequestedReviewers = append(out.RequestedReviewers, domain.WebhookAccount{
			ID:    reviewer.GetID(),
			Login: reviewer.GetLogin(),
			Type:  reviewer.GetType(),
		})
	}

	return out
}
