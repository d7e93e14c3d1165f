package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"time"

	"github.com/devkudos/ingest-service/internal/apperrors"
	"github.com/devkudos/ingest-service/internal/domain"
	"github.com/devkudos/ingest-service/internal/repository"
)

// CommitService links commits to pull requests and ingests push payloads.
// Authors missing from GitHub's data are synthesized as placeholder users.
type CommitService struct {
	BaseService
	registrar *RegistrarService
	commits   repository.CommitRepository
	prs       repository.PullRequestRepository
	users     repository.UserRepository
	github    GitHubClient
}

func NewCommitService(
	db DB,
	log *slog.Logger,
	registrar *RegistrarService,
	commits repository.CommitRepository,
	prs repository.PullRequestRepository,
	users repository.UserRepository,
	github GitHubClient,
) *CommitService {
	return &CommitService{
		BaseService: NewBaseService(db, log),
		registrar:   registrar,
		commits:     commits,
		prs:         prs,
		users:       users,
		github:      github,
	}
}

// LinkCommits fetches the pull request's commits from GitHub and connects
// them locally, synthesizing missing commit rows and placeholder authors.
// Afterwards the pull request's first-commit timestamp is recomputed as the
// earliest committed_at among linked commits. Callers treat the whole
// operation as best-effort.
func (s *CommitService) LinkCommits(ctx context.Context, accountID, installationID int64, fullName string, pr *domain.PullRequest) error {
	const op = "internal.service.commit.LinkCommits"
	log := s.log.With(slog.String("op", op), slog.Int64("pr_id", pr.ID))

	infos, err := s.github.GetPullRequestCommits(ctx, installationID, fullName, pr.Number)
	if err != nil {
		return fmt.Errorf("%s: failed to fetch commits: %w", op, err)
	}

	for _, info := range infos {
		if err := s.linkOne(ctx, accountID, pr, info); err != nil {
			return fmt.Errorf("%s: failed to link commit '%s': %w", op, info.SHA, err)
		}
	}

	linked, err := s.commits.GetCommitsByPullRequest(ctx, pr.ID)
	if err != nil {
		return fmt.Errorf("%s: failed to read linked commits: %w", op, err)
	}

	if len(linked) > 0 {
		// Rows come back ordered by commit time.
		first := linked[0].CommittedAt
		if err := s.prs.SetFirstCommitAt(ctx, pr.ID, first); err != nil {
			return fmt.Errorf("%s: failed to set first commit time: %w", op, err)
		}
	}

	log.Info("commits linked", slog.Int("count", len(infos)))

	return nil
}

func (s *CommitService) linkOne(ctx context.Context, accountID int64, pr *domain.PullRequest, info domain.CommitInfo) error {
	_, err := s.commits.GetCommitBySHA(ctx, info.SHA)

	switch {
	case err == nil:
		return s.commits.LinkCommitToPullRequest(ctx, s.db, pr.ID, info.SHA)
	case errors.Is(err, apperrors.ErrNotFound):
		authorID, err := s.resolveAuthor(ctx, accountID, info)
		if err != nil {
			return err
		}

		commit := &domain.Commit{
			SHA:          info.SHA,
			Message:      info.Message,
			AuthorID:     authorID,
			RepositoryID: pr.RepositoryID,
			CommittedAt:  info.CommittedAt,
			Additions:    info.Additions,
			Deletions:    info.Deletions,
			ChangedFiles: info.ChangedFiles,
		}

		if err := s.commits.UpsertCommit(ctx, s.db, commit); err != nil {
			return err
		}

		return s.commits.LinkCommitToPullRequest(ctx, s.db, pr.ID, info.SHA)
	default:
		return err
	}
}

// resolveAuthor finds the commit author as a local user: by GitHub id first,
// then login or name, then email, all scoped to the repository's account.
// When nothing matches, a placeholder user with a synthetic negative id is
// created for later reconciliation.
func (s *CommitService) resolveAuthor(ctx context.Context, accountID int64, info domain.CommitInfo) (int64, error) {
	if info.AuthorID != 0 {
		err := s.registrar.EnsureUser(ctx, accountID, &domain.User{
			ID:    info.AuthorID,
			Login: info.AuthorLogin,
		})
		if err != nil {
			return 0, err
		}

		return info.AuthorID, nil
	}

	if info.AuthorLogin != "" || info.AuthorName != "" {
		user, err := s.users.FindUserByLoginOrName(ctx, accountID, info.AuthorLogin, info.AuthorName)
		if err == nil {
			return user.ID, nil
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return 0, err
		}
	}

	if info.AuthorEmail != "" {
		user, err := s.users.FindUserByEmail(ctx, accountID, info.AuthorEmail)
		if err == nil {
			return user.ID, nil
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return 0, err
		}
	}

	placeholder := &domain.User{
		ID:    syntheticUserID(info),
		Login: placeholderLogin(info),
	}
	if info.AuthorName != "" {
		name := info.AuthorName
		placeholder.Name = &name
	}
	if info.AuthorEmail != "" {
		email := info.AuthorEmail
		placeholder.Email = &email
	}

	if err := s.registrar.EnsureUser(ctx, accountID, placeholder); err != nil {
		return 0, err
	}

	s.log.Info("created placeholder user for commit author",
		slog.Int64("user_id", placeholder.ID),
		slog.String("login", placeholder.Login),
	)

	return placeholder.ID, nil
}

// HandlePushEvent upserts the pushed commits. Pull request linking happens
// separately when PR events arrive for the same SHAs.
func (s *CommitService) HandlePushEvent(ctx context.Context, accountID int64, event *domain.PushEvent) error {
	const op = "internal.service.commit.HandlePushEvent"
	log := s.log.With(slog.String("op", op), slog.Int64("account_id", accountID))

	if event.Repository == nil {
		log.Warn("push event without repository, skipping")
		return nil
	}

	err := s.registrar.EnsureRepository(ctx, accountID, event.AccountName(), event.Repository.ID, event.Repository.FullName)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	for _, c := range event.Commits {
		info := domain.CommitInfo{
			SHA:          c.ID,
			Message:      c.Message,
			AuthorLogin:  c.Author.Username,
			AuthorName:   c.Author.Name,
			AuthorEmail:  c.Author.Email,
			CommittedAt:  time.Now(),
			ChangedFiles: len(c.Added) + len(c.Removed) + len(c.Modified),
		}
		if c.Timestamp != nil {
			info.CommittedAt = *c.Timestamp
		}

		authorID, err := s.resolveAuthor(ctx, accountID, info)
		if err != nil {
			return fmt.Errorf("%s: failed to resolve author for '%s': %w", op, info.SHA, err)
		}

		commit := &domain.Commit{
			SHA:          info.SHA,
			Message:      info.Message,
			AuthorID:     authorID,
			RepositoryID: event.Repository.ID,
			CommittedAt:  info.CommittedAt,
			ChangedFiles: info.ChangedFiles,
		}

		if err := s.commits.UpsertCommit(ctx, s.db, commit); err != nil {
			return fmt.Errorf("%s: failed to upsert commit '%s': %w", op, info.SHA, err)
		}
	}

	log.Info("push commits stored", slog.Int("count", len(event.Commits)))

	return nil
}

// syntheticUserID derives a stable negative id for a placeholder user from
// the best identity fragment the commit carries.
func syntheticUserID(info domain.CommitInfo) int64 {
	key := info.AuthorEmail
	if key == "" {
		key = info.AuthorName
	}
	if key == "" {
		key = info.AuthorLogin
	}
	if key == "" {
		key = info.SHA
	}

	h := fnv.New64a()
	h.Write([]byte(key))

	return -int64(h.Sum64() & (1<<63 - 1))
}

func placeholderLogin(info domain.CommitInfo) string {
	switch {
	case info.AuthorLogin != "":
		return info.AuthorLogin
	case info.AuthorName != "":
		return info.AuthorName
	case info.AuthorEmail != "":
		return info.AuthorEmail
	default:
		return "unknown"
	}
}
