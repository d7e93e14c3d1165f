package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/devkudos/ingest-service/internal/apperrors"
	"github.com/devkudos/ingest-service/internal/domain"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type AccountRepository struct {
	db  *sqlx.DB
	log *slog.Logger
	sq  sq.StatementBuilderType
}

func NewAccountRepository(db *sqlx.DB, log *slog.Logger) *AccountRepository {
	return &AccountRepository{
		db:  db,
		log: log,
		sq:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *AccountRepository) CreateAccount(ctx context.Context, ext sqlx.ExtContext, account *domain.Account) error {
	const op = "internal.repository.postgres.CreateAccount"

	query, args, err := r.sq.Insert("accounts").
		Columns("id", "name", "type", "installation_id", "settings").
		Values(account.ID, account.Name, account.Type, account.InstallationID, account.Settings).
		Suffix("ON CONFLICT (id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build insert query: %w", op, err)
	}

	if _, err := ext.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: failed to execute insert: %w", op, err)
	}

	return nil
}

func (r *AccountRepository) GetAccountByID(ctx context.Context, accountID int64) (*domain.Account, error) {
	const op = "internal.repository.postgres.GetAccountByID"

	query, args, err := r.sq.Select("id", "name", "type", "installation_id", "settings").
		From("accounts").
		Where(sq.Eq{"id": accountID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var account domain.Account
	if err := r.db.GetContext(ctx, &account, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w: account with id '%d'", op, apperrors.ErrNotFound, accountID)
		}

		return nil, fmt.Errorf("%s: failed to get account: %w", op, err)
	}

	return &account, nil
}

func (r *AccountRepository) UpdateAccountInstallation(ctx context.Context, accountID int64, accountType domain.AccountType, name string, installationID *int64) error {
	const op = "internal.repository.postgres.UpdateAccountInstallation"

	updateBuilder := r.sq.Update("accounts").
		Set("type", accountType).
		Set("installation_id", installationID).
		Where(sq.Eq{"id": accountID})

	if name != "" {
		updateBuilder = updateBuilder.Set("name", name)
	}

	query, args, err := updateBuilder.ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build update query: %w", op, err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: failed to execute update: %w", op, err)
	}

	if rowsAffected, err := res.RowsAffected(); err == nil && rowsAffected == 0 {
		return fmt.Errorf("%s: %w: account with id '%d'", op, apperrors.ErrNotFound, accountID)
	}

	return nil
}

func (r *AccountRepository) CreateRepository(ctx context.Context, ext sqlx.ExtContext, repo *domain.Repository) error {
	const op = "internal.repository.postgres.CreateRepository"

	query, args, err := r.sq.Insert("repositories").
		Columns("id", "full_name", "account_id").
		Values(repo.ID, repo.FullName, repo.AccountID).
		Suffix("ON CONFLICT (id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build insert query: %w", op, err)
	}

	if _, err := ext.ExecContext(ctx, query, args...); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return fmt.Errorf("%s: %w: account with id '%d' not found", op, apperrors.ErrNotFound, repo.AccountID)
		}

		return fmt.Errorf("%s: failed to execute insert: %w", op, err)
	}

	return nil
}

func (r *AccountRepository) GetRepositoryByID(ctx context.Context, repoID int64) (*domain.Repository, error) {
	const op = "internal.repository.postgres.GetRepositoryByID"

	query, args, err := r.sq.Select("id", "full_name", "account_id").
		From("repositories").
		Where(sq.Eq{"id": repoID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var repo domain.Repository
	if err := r.db.GetContext(ctx, &repo, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w: repository with id '%d'", op, apperrors.ErrNotFound, repoID)
		}

		return nil, fmt.Errorf("%s: failed to get repository: %w", op, err)
	}

	return &repo, nil
}
