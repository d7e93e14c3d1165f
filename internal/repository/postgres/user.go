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

type UserRepository struct {
	db  *sqlx.DB
	log *slog.Logger
	sq  sq.StatementBuilderType
}

func NewUserRepository(db *sqlx.DB, log *slog.Logger) *UserRepository {
	return &UserRepository{
		db:  db,
		log: log,
		sq:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *UserRepository) CreateUser(ctx context.Context, ext sqlx.ExtContext, user *domain.User) error {
	const op = "internal.repository.postgres.CreateUser"

	query, args, err := r.sq.Insert("users").
		Columns("id", "login", "name", "email", "account_id", "points", "level").
		Values(user.ID, user.Login, user.Name, user.Email, user.AccountID, user.Points, user.Level).
		Suffix("ON CONFLICT (id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build insert query: %w", op, err)
	}

	if _, err := ext.ExecContext(ctx, query, args...); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return fmt.Errorf("%s: %w: account with id '%d' not found", op, apperrors.ErrNotFound, user.AccountID)
		}

		return fmt.Errorf("%s: failed to execute insert: %w", op, err)
	}

	return nil
}

func (r *UserRepository) GetUserByID(ctx context.Context, userID int64) (*domain.User, error) {
	const op = "internal.repository.postgres.GetUserByID"

	query, args, err := r.sq.Select("id", "login", "name", "email", "account_id", "points", "level").
		From("users").
		Where(sq.Eq{"id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var user domain.User
	if err := r.db.GetContext(ctx, &user, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w: user with id '%d'", op, apperrors.ErrNotFound, userID)
		}

		return nil, fmt.Errorf("%s: failed to get user: %w", op, err)
	}

	return &user, nil
}

func (r *UserRepository) FindUserByLoginOrName(ctx context.Context, accountID int64, login, name string) (*domain.User, error) {
	const op = "internal.repository.postgres.FindUserByLoginOrName"

	match := sq.Or{}
	if login != "" {
		match = append(match, sq.Eq{"u.login": login})
	}
	if name != "" {
		match = append(match, sq.Eq{"u.name": name})
	}
	if len(match) == 0 {
		return nil, fmt.Errorf("%s: %w: no login or name to match", op, apperrors.ErrNotFound)
	}

	query, args, err := r.sq.Select("u.id", "u.login", "u.name", "u.email", "u.account_id", "u.points", "u.level").
		From("users u").
		Join("user_organizations uo ON u.id = uo.user_id").
		Where(sq.Eq{"uo.account_id": accountID}).
		Where(match).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var user domain.User
	if err := r.db.GetContext(ctx, &user, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w: user matching '%s'/'%s'", op, apperrors.ErrNotFound, login, name)
		}

		return nil, fmt.Errorf("%s: failed to find user: %w", op, err)
	}

	return &user, nil
}

func (r *UserRepository) FindUserByEmail(ctx context.Context, accountID int64, email string) (*domain.User, error) {
	const op = "internal.repository.postgres.FindUserByEmail"

	if email == "" {
		return nil, fmt.Errorf("%s: %w: no email to match", op, apperrors.ErrNotFound)
	}

	query, args, err := r.sq.Select("u.id", "u.login", "u.name", "u.email", "u.account_id", "u.points", "u.level").
		From("users u").
		Join("user_organizations uo ON u.id = uo.user_id").
		Where(sq.Eq{"uo.account_id": accountID, "u.email": email}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var user domain.User
	if err := r.db.GetContext(ctx, &user, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w: user with email '%s'", op, apperrors.ErrNotFound, email)
		}

		return nil, fmt.Errorf("%s: failed to find user: %w", op, err)
	}

	return &user, nil
}

func (r *UserRepository) AddMembership(ctx context.Context, ext sqlx.ExtContext, userID, accountID int64) error {
	const op = "internal.repository.postgres.AddMembership"

	query, args, err := r.sq.Insert("user_organizations").
		Columns("user_id", "account_id").
		Values(userID, accountID).
		Suffix("ON CONFLICT (user_id, account_id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build insert query: %w", op, err)
	}

	if _, err := ext.ExecContext(ctx, query, args...); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return fmt.Errorf("%s: %w: user '%d' or account '%d' not found", op, apperrors.ErrNotFound, userID, accountID)
		}

		return fmt.Errorf("%s: failed to execute insert: %w", op, err)
	}

	return nil
}

func (r *UserRepository) HasMembership(ctx context.Context, userID, accountID int64) (bool, error) {
	const op = "internal.repository.postgres.HasMembership"

	query, args, err := r.sq.Select("1").
		From("user_organizations").
		Where(sq.Eq{"user_id": userID, "account_id": accountID}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var exists int
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}

		return false, fmt.Errorf("%s: failed to check membership: %w", op, err)
	}

	return true, nil
}
