package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/devkudos/ingest-service/internal/apperrors"
	"github.com/devkudos/ingest-service/internal/domain"
	"github.com/jmoiron/sqlx"
)

type DeliveryRepository struct {
	db  *sqlx.DB
	log *slog.Logger
	sq  sq.StatementBuilderType
}

func NewDeliveryRepository(db *sqlx.DB, log *slog.Logger) *DeliveryRepository {
	return &DeliveryRepository{
		db:  db,
		log: log,
		sq:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *DeliveryRepository) CreateDelivery(ctx context.Context, delivery *domain.Delivery) error {
	const op = "internal.repository.postgres.CreateDelivery"

	// A replayed delivery id means a retry attempt: the record goes back
	// to received and the previous error is cleared.
	query, args, err := r.sq.Insert("deliveries").
		Columns("id", "event_type", "action", "status", "received_at").
		Values(delivery.ID, delivery.EventType, delivery.Action, domain.DeliveryStatusReceived, delivery.ReceivedAt).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			error = NULL,
			received_at = EXCLUDED.received_at,
			processed_at = NULL`).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build upsert query: %w", op, err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: failed to execute upsert: %w", op, err)
	}

	return nil
}

func (r *DeliveryRepository) MarkProcessed(ctx context.Context, deliveryID string, at time.Time) error {
	const op = "internal.repository.postgres.MarkProcessed"

	query, args, err := r.sq.Update("deliveries").
		Set("status", domain.DeliveryStatusProcessed).
		Set("error", nil).
		Set("processed_at", at).
		Where(sq.Eq{"id": deliveryID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build update query: %w", op, err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: failed to execute update: %w", op, err)
	}

	if rowsAffected, err := res.RowsAffected(); err == nil && rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, &apperrors.DeliveryNotFoundError{DeliveryID: deliveryID})
	}

	return nil
}

func (r *DeliveryRepository) MarkFailed(ctx context.Context, deliveryID string, errText string, at time.Time) error {
	const op = "internal.repository.postgres.MarkFailed"

	query, args, err := r.sq.Update("deliveries").
		Set("status", domain.DeliveryStatusFailed).
		Set("error", errText).
		Set("processed_at", at).
		Where(sq.Eq{"id": deliveryID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build update query: %w", op, err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: failed to execute update: %w", op, err)
	}

	if rowsAffected, err := res.RowsAffected(); err == nil && rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, &apperrors.DeliveryNotFoundError{DeliveryID: deliveryID})
	}

	return nil
}

func (r *DeliveryRepository) GetDeliveryByID(ctx context.Context, deliveryID string) (*domain.Delivery, error) {
	const op = "internal.repository.postgres.GetDeliveryByID"

	query, args, err := r.sq.Select("id", "event_type", "action", "status", "error", "received_at", "processed_at").
		From("deliveries").
		Where(sq.Eq{"id": deliveryID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var delivery domain.Delivery
	if err := r.db.GetContext(ctx, &delivery, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, &apperrors.DeliveryNotFoundError{DeliveryID: deliveryID})
		}

		return nil, fmt.Errorf("%s: failed to get delivery: %w", op, err)
	}

	return &delivery, nil
}
