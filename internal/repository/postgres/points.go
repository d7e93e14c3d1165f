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

type PointsRepository struct {
	db  *sqlx.DB
	log *slog.Logger
	sq  sq.StatementBuilderType
}

func NewPointsRepository(db *sqlx.DB, log *slog.Logger) *PointsRepository {
	return &PointsRepository{
		db:  db,
		log: log,
		sq:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *PointsRepository) AddPoints(ctx context.Context, tx *sqlx.Tx, userID int64, amount int) (int64, error) {
	const op = "internal.repository.postgres.AddPoints"

	query, args, err := r.sq.Update("users").
		Set("points", sq.Expr("points + ?", amount)).
		Where(sq.Eq{"id": userID}).
		Suffix("RETURNING points").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("%s: failed to build update query: %w", op, err)
	}

	var points int64
	if err := tx.GetContext(ctx, &points, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%s: %w: user with id '%d'", op, apperrors.ErrNotFound, userID)
		}

		return 0, fmt.Errorf("%s: failed to execute update: %w", op, err)
	}

	return points, nil
}

func (r *PointsRepository) PromoteLevel(ctx context.Context, tx *sqlx.Tx, userID int64, level int) error {
	const op = "internal.repository.postgres.PromoteLevel"

	// The level < ? guard keeps levels monotonic under replayed events.
	query, args, err := r.sq.Update("users").
		Set("level", level).
		Where(sq.Lt{"level": level}).
		Where(sq.Eq{"id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build update query: %w", op, err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: failed to execute update: %w", op, err)
	}

	return nil
}

func (r *PointsRepository) CreateTransaction(ctx context.Context, tx *sqlx.Tx, transaction *domain.PointTransaction) error {
	const op = "internal.repository.postgres.CreateTransaction"

	query, args, err := r.sq.Insert("point_transactions").
		Columns("user_id", "account_id", "amount", "reason", "reference_id", "reference_type").
		Values(transaction.UserID, transaction.AccountID, transaction.Amount,
			transaction.Reason, transaction.ReferenceID, transaction.ReferenceType).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build insert query: %w", op, err)
	}

	if err := tx.QueryRowxContext(ctx, query, args...).Scan(&transaction.ID, &transaction.CreatedAt); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return fmt.Errorf("%s: %w: user '%d' or account '%d' not found", op, apperrors.ErrNotFound, transaction.UserID, transaction.AccountID)
		}

		return fmt.Errorf("%s: failed to execute insert: %w", op, err)
	}

	return nil
}

func (r *PointsRepository) GetTransactionsByUser(ctx context.Context, userID int64) ([]domain.PointTransaction, error) {
	const op = "internal.repository.postgres.GetTransactionsByUser"

	query, args, err := r.sq.Select("id", "user_id", "account_id", "amount", "reason", "reference_id", "reference_type", "created_at").
		From("point_transactions").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC", "id DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var transactions []domain.PointTransaction
	if err := r.db.SelectContext(ctx, &transactions, query, args...); err != nil {
		return nil, fmt.Errorf("%s: failed to select transactions: %w", op, err)
	}

	return transactions, nil
}
