package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/devkudos/ingest-service/internal/domain"
	"github.com/devkudos/ingest-service/internal/repository"
)

// RegistrarService creates accounts, repositories, users and memberships
// lazily, before any event-specific processing touches them. Every method is
// idempotent and safe to call redundantly on each delivery.
type RegistrarService struct {
	BaseService
	accounts repository.AccountRepository
	users    repository.UserRepository
}

func NewRegistrarService(
	db DB,
	log *slog.Logger,
	accounts repository.AccountRepository,
	users repository.UserRepository,
) *RegistrarService {
	return &RegistrarService{
		BaseService: NewBaseService(db, log),
		accounts:    accounts,
		users:       users,
	}
}

// EnsureAccount creates the account if it is missing. New accounts default
// to type ORGANIZATION until an installation event corrects them.
func (s *RegistrarService) EnsureAccount(ctx context.Context, accountID int64, name string) error {
	const op = "internal.service.registrar.EnsureAccount"

	account := &domain.Account{
		ID:       accountID,
		Name:     name,
		Type:     domain.AccountTypeOrganization,
		Settings: domain.AccountSettings{},
	}

	if err := s.accounts.CreateAccount(ctx, s.db, account); err != nil {
		return fmt.Errorf("%s: failed to create account: %w", op, err)
	}

	return nil
}

// EnsureRepository bootstraps the owning account, then the repository row.
// When the caller has no account name, the owner segment of fullName is used.
func (s *RegistrarService) EnsureRepository(ctx context.Context, accountID int64, accountName string, repoID int64, fullName string) error {
	const op = "internal.service.registrar.EnsureRepository"

	if accountName == "" {
		accountName, _, _ = strings.Cut(fullName, "/")
	}

	if err := s.EnsureAccount(ctx, accountID, accountName); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	repo := &domain.Repository{
		ID:        repoID,
		FullName:  fullName,
		AccountID: accountID,
	}

	if err := s.accounts.CreateRepository(ctx, s.db, repo); err != nil {
		return fmt.Errorf("%s: failed to create repository: %w", op, err)
	}

	return nil
}

// EnsureUser creates the user (home account, zero points, level 1) and the
// membership row under accountID. An existing user just gains the membership.
func (s *RegistrarService) EnsureUser(ctx context.Context, accountID int64, user *domain.User) error {
	const op = "internal.service.registrar.EnsureUser"

	user.AccountID = accountID
	if user.Level == 0 {
		user.Level = 1
	}

	if err := s.users.CreateUser(ctx, s.db, user); err != nil {
		return fmt.Errorf("%s: failed to create user: %w", op, err)
	}

	if err := s.users.AddMembership(ctx, s.db, user.ID, accountID); err != nil {
		return fmt.Errorf("%s: failed to add membership: %w", op, err)
	}

	return nil
}

// EnsureWebhookUser is EnsureUser for the account fragments webhook payloads
// carry.
func (s *RegistrarService) EnsureWebhookUser(ctx context.Context, accountID int64, account domain.WebhookAccount) error {
	return s.EnsureUser(ctx, accountID, &domain.User{
		ID:    account.ID,
		Login: account.Login,
	})
}

// HandleInstallation corrects the account record from an installation
// event: the real account type, and the installation id recorded on created
// and cleared on deleted. Other installation actions are no-ops.
func (s *RegistrarService) HandleInstallation(ctx context.Context, event *domain.InstallationEvent) error {
	const op = "internal.service.registrar.HandleInstallation"
	log := s.log.With(
		slog.String("op", op),
		slog.String("action", event.Action),
		slog.Int64("account_id", event.Installation.Account.ID),
	)

	account := event.Installation.Account

	accountType := domain.AccountTypeOrganization
	if account.Type == "User" {
		accountType = domain.AccountTypePersonal
	}

	var installationID *int64

	switch event.Action {
	case domain.ActionCreated:
		id := event.Installation.ID
		installationID = &id
	case domain.ActionDeleted:
		installationID = nil
	default:
		log.Info("installation action not handled, skipping")
		return nil
	}

	if err := s.EnsureAccount(ctx, account.ID, account.Login); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.accounts.UpdateAccountInstallation(ctx, account.ID, accountType, account.Login, installationID); err != nil {
		return fmt.Errorf("%s: failed to update account installation: %w", op, err)
	}

	log.Info("account installation updated", slog.String("type", string(accountType)))

	return nil
}
