package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/devkudos/ingest-service/internal/apperrors"
	"github.com/devkudos/ingest-service/internal/domain"
	"github.com/devkudos/ingest-service/internal/encryption"
	"github.com/devkudos/ingest-service/internal/repository"
	"github.com/devkudos/ingest-service/pkg/logger/sl"
	"github.com/jmoiron/sqlx"
)

const sizeLabelPrefix = "size/"

// sizeLabel buckets a change by total lines touched.
func sizeLabel(additions, deletions int) string {
	switch total := additions + deletions; {
	case total < 10:
		return sizeLabelPrefix + "XS"
	case total < 50:
		return sizeLabelPrefix + "S"
	case total < 250:
		return sizeLabelPrefix + "M"
	case total < 1000:
		return sizeLabelPrefix + "L"
	default:
		return sizeLabelPrefix + "XL"
	}
}

// PullRequestService owns the pull_request event pipeline: register the
// involved entities, upsert the pull request, sync its file set, link its
// commits, and on merge run scoring and the point award.
type PullRequestService struct {
	BaseService
	registrar *RegistrarService
	commits   *CommitService
	scoring   *ScoringService
	points    *PointsService
	prs       repository.PullRequestRepository
	accounts  repository.AccountRepository
	github    GitHubClient
	cipher    Encryptor
}

func NewPullRequestService(
	db DB,
	log *slog.Logger,
	registrar *RegistrarService,
	commits *CommitService,
	scoring *ScoringService,
	points *PointsService,
	prs repository.PullRequestRepository,
	accounts repository.AccountRepository,
	github GitHubClient,
	cipher Encryptor,
) *PullRequestService {
	return &PullRequestService{
		BaseService: NewBaseService(db, log),
		registrar:   registrar,
		commits:     commits,
		scoring:     scoring,
		points:      points,
		prs:         prs,
		accounts:    accounts,
		github:      github,
		cipher:      cipher,
	}
}

// HandlePullRequestEvent processes one pull_request delivery. Steps that
// are best-effort (commit linking, size labels, the suggestion comment) log
// their failures and never fail the delivery; everything else does.
func (s *PullRequestService) HandlePullRequestEvent(ctx context.Context, accountID int64, event *domain.PullRequestEvent) error {
	const op = "internal.service.pull_request.HandlePullRequestEvent"
	log := s.log.With(
		slog.String("op", op),
		slog.Int64("pr_id", event.PullRequest.ID),
		slog.String("action", event.Action),
	)

	if event.Repository == nil {
		log.Warn("event has no repository, skipping")
		return nil
	}

	if event.PullRequest.User.ID == 0 {
		log.Warn("pull request has no author, skipping")
		return nil
	}

	err := s.registrar.EnsureRepository(ctx, accountID, event.AccountName(), event.Repository.ID, event.Repository.FullName)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.registrar.EnsureWebhookUser(ctx, accountID, event.PullRequest.User); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	for _, reviewer := range event.PullRequest.RequestedReviewers {
		if err := s.registrar.EnsureWebhookUser(ctx, accountID, reviewer); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	pr := s.toDomain(&event.PullRequest, event.Repository.ID)

	if err := s.prs.UpsertPullRequest(ctx, s.db, pr); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	account, err := s.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("%s: failed to get account: %w", op, err)
	}

	var installationID int64
	if account.InstallationID != nil {
		installationID = *account.InstallationID
	}

	fullName := event.Repository.FullName

	switch event.Action {
	case domain.ActionOpened, domain.ActionReopened, domain.ActionSynchronize:
		if err := s.syncFiles(ctx, installationID, fullName, pr); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if event.Action == domain.ActionOpened || event.Action == domain.ActionSynchronize {
		s.applySizeLabel(ctx, installationID, fullName, pr)
	}

	if err := s.commits.LinkCommits(ctx, accountID, installationID, fullName, pr); err != nil {
		log.Warn("failed to link commits", sl.Err(err))
	}

	if event.Action == domain.ActionClosed && pr.State == domain.PullRequestStateMerged {
		if err := s.scoring.ScorePullRequest(ctx, accountID, pr.ID); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		if err := s.points.AwardPRPoints(ctx, pr.ID); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		if err := s.scoring.PostSuggestionComment(ctx, installationID, fullName, pr.ID); err != nil {
			log.Warn("failed to post suggestion comment", sl.Err(err))
		}
	}

	return nil
}

func (s *PullRequestService) toDomain(wp *domain.WebhookPullRequest, repoID int64) *domain.PullRequest {
	now := time.Now()

	pr := &domain.PullRequest{
		ID:           wp.ID,
		Number:       wp.Number,
		Title:        wp.Title,
		State:        domain.PullRequestStateFrom(wp.State, wp.Merged),
		AuthorID:     wp.User.ID,
		RepositoryID: repoID,
		Additions:    wp.Additions,
		Deletions:    wp.Deletions,
		ChangedFiles: wp.ChangedFiles,
		MergedAt:     wp.MergedAt,
		ClosedAt:     wp.ClosedAt,
		CreatedAt:    now,
	}

	if wp.CreatedAt != nil {
		pr.CreatedAt = *wp.CreatedAt
	}

	for _, reviewer := range wp.RequestedReviewers {
		if reviewer.ID != 0 {
			pr.ReviewerIDs = append(pr.ReviewerIDs, reviewer.ID)
		}
	}

	// Some replayed closures arrive without closed_at.
	if pr.State != domain.PullRequestStateOpen && pr.ClosedAt == nil {
		if pr.MergedAt != nil {
			pr.ClosedAt = pr.MergedAt
		} else {
			pr.ClosedAt = &now
		}
	}

	pr.Description = s.storedDescription(wp.Body, pr.State, wp.ID)

	return pr
}

// storedDescription encrypts the body once the pull request has left the
// open state. An encryption failure keeps the plaintext rather than lose
// the description.
func (s *PullRequestService) storedDescription(body *string, state domain.PullRequestState, prID int64) *string {
	if body == nil || state == domain.PullRequestStateOpen {
		return body
	}

	if encryption.IsEncrypted(*body) {
		return body
	}

	ciphertext, err := s.cipher.Encrypt(*body)
	if err != nil {
		s.log.Warn("failed to encrypt description, storing plaintext",
			slog.Int64("pr_id", prID),
			sl.Err(err),
		)

		return body
	}

	return &ciphertext
}

// syncFiles replaces the stored file set with what GitHub currently
// reports. A pull request GitHub cannot find keeps its previous set.
func (s *PullRequestService) syncFiles(ctx context.Context, installationID int64, fullName string, pr *domain.PullRequest) error {
	const op = "internal.service.pull_request.syncFiles"

	files, err := s.github.GetPullRequestFiles(ctx, installationID, fullName, pr.Number)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.log.Warn("pull request files not found on github", slog.Int64("pr_id", pr.ID))
			return nil
		}

		return fmt.Errorf("failed to get files: %w", err)
	}

	return s.transaction(ctx, op, func(tx *sqlx.Tx) error {
		return s.prs.ReplaceFiles(ctx, tx, pr.ID, files)
	})
}

// applySizeLabel reconciles the size/ label with the current change size.
// Label management is best-effort and only logs.
func (s *PullRequestService) applySizeLabel(ctx context.Context, installationID int64, fullName string, pr *domain.PullRequest) {
	log := s.log.With(slog.Int64("pr_id", pr.ID))

	desired := sizeLabel(pr.Additions, pr.Deletions)

	labels, err := s.github.GetIssueLabels(ctx, installationID, fullName, pr.Number)
	if err != nil {
		log.Warn("failed to get labels", sl.Err(err))
		return
	}

	present := false
	for _, label := range labels {
		if label == desired {
			present = true
			continue
		}

		if !strings.HasPrefix(label, sizeLabelPrefix) {
			continue
		}

		if err := s.github.RemoveLabelFromPullRequest(ctx, installationID, fullName, pr.Number, label); err != nil {
			log.Warn("failed to remove stale size label", slog.String("label", label), sl.Err(err))
		}
	}

	if present {
		return
	}

	if err := s.github.AddLabelToPullRequest(ctx, installationID, fullName, pr.Number, desired); err != nil {
		log.Warn("failed to add size label", slog.String("label", desired), sl.Err(err))
	}
}
