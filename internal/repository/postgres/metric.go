package postgres

import (
	"context"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/devkudos/ingest-service/internal/domain"
	"github.com/jmoiron/sqlx"
)

type MetricRepository struct {
	db  *sqlx.DB
	log *slog.Logger
	sq  sq.StatementBuilderType
}

func NewMetricRepository(db *sqlx.DB, log *slog.Logger) *MetricRepository {
	return &MetricRepository{
		db:  db,
		log: log,
		sq:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *MetricRepository) ReplaceMetrics(ctx context.Context, tx *sqlx.Tx, prID int64, metrics []domain.PRMetric) error {
	const op = "internal.repository.postgres.ReplaceMetrics"

	deleteQuery, deleteArgs, err := r.sq.Delete("pr_metrics").
		Where(sq.Eq{"pull_request_id": prID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build delete query: %w", op, err)
	}

	if _, err := tx.ExecContext(ctx, deleteQuery, deleteArgs...); err != nil {
		return fmt.Errorf("%s: failed to execute delete: %w", op, err)
	}

	if len(metrics) == 0 {
		return nil
	}

	insertBuilder := r.sq.Insert("pr_metrics").
		Columns("pull_request_id", "category", "name", "value", "raw_value", "unit", "description")

	for _, m := range metrics {
		insertBuilder = insertBuilder.Values(prID, m.Category, m.Name, m.Value, m.RawValue, m.Unit, m.Description)
	}

	insertQuery, insertArgs, err := insertBuilder.ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build insert query: %w", op, err)
	}

	if _, err := tx.ExecContext(ctx, insertQuery, insertArgs...); err != nil {
		return fmt.Errorf("%s: failed to execute insert: %w", op, err)
	}

	return nil
}

func (r *MetricRepository) GetMetricsByPullRequest(ctx context.Context, prID int64) ([]domain.PRMetric, error) {
	const op = "internal.repository.postgres.GetMetricsByPullRequest"

	query, args, err := r.sq.Select("pull_request_id", "category", "name", "value", "raw_value", "unit", "description").
		From("pr_metrics").
		Where(sq.Eq{"pull_request_id": prID}).
		OrderBy("category", "name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var metrics []domain.PRMetric
	if err := r.db.SelectContext(ctx, &metrics, query, args...); err != nil {
		return nil, fmt.Errorf("%s: failed to select metrics: %w", op, err)
	}

	return metrics, nil
}
