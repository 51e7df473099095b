package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"card_pricer/internal/domain"
	"card_pricer/internal/domain/entity"
	"card_pricer/pkg/errcodes"
)

// ValuationRepository хранит историю оценок. Записи только добавляются,
// прежние значения никогда не перезаписываются.
type ValuationRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewValuationRepository создаёт новый экземпляр репозитория.
func NewValuationRepository(db *sqlx.DB) *ValuationRepository {
	return &ValuationRepository{db: db, now: time.Now}
}

// Append добавляет оценку карточки и отмечает карточку обновлённой.
func (r *ValuationRepository) Append(ctx context.Context, cardID uuid.UUID, result entity.FairValueResult) (entity.Valuation, error) {
	var v entity.Valuation

	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var err error
		v, err = r.appendTx(ctx, tx, cardID, result)
		return err
	})

	return v, err
}

// AppendBatch добавляет оценки пакета атомарно.
func (r *ValuationRepository) AppendBatch(ctx context.Context, results map[uuid.UUID]entity.FairValueResult) ([]entity.Valuation, error) {
	if len(results) == 0 {
		return nil, nil
	}

	out := make([]entity.Valuation, 0, len(results))

	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		for cardID, result := range results {
			v, err := r.appendTx(ctx, tx, cardID, result)
			if err != nil {
				return domain.WrapError(err, errcodes.InternalServerError,
					fmt.Sprintf("failed at card %s", cardID))
			}
			out = append(out, v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// Latest возвращает последнюю оценку карточки.
func (r *ValuationRepository) Latest(ctx context.Context, cardID uuid.UUID) (*entity.Valuation, error) {
	query := `
		SELECT id, card_id, estimated_value, confidence, stage, num_sales,
		       search_url, image_url, result, scraped_at, created_at
		FROM valuations
		WHERE card_id = $1
		ORDER BY created_at DESC
		LIMIT 1`

	var schema valuationSchema
	if err := r.db.GetContext(ctx, &schema, query, cardID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewError(errcodes.NotFound, "no valuations for card")
		}
		return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to get valuation")
	}

	v, err := schema.toDomain()
	if err != nil {
		return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to convert valuation")
	}

	return &v, nil
}

// History возвращает до limit последних оценок, новые первыми.
func (r *ValuationRepository) History(ctx context.Context, cardID uuid.UUID, limit int) ([]entity.Valuation, error) {
	query := `
		SELECT id, card_id, estimated_value, confidence, stage, num_sales,
		       search_url, image_url, result, scraped_at, created_at
		FROM valuations
		WHERE card_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	var schemas []valuationSchema
	if err := r.db.SelectContext(ctx, &schemas, query, cardID, limit); err != nil {
		return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to list valuations")
	}

	out := make([]entity.Valuation, 0, len(schemas))
	for i := range schemas {
		v, err := schemas[i].toDomain()
		if err != nil {
			return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to convert valuation")
		}
		out = append(out, v)
	}

	return out, nil
}

func (r *ValuationRepository) appendTx(
	ctx context.Context,
	tx *sqlx.Tx,
	cardID uuid.UUID,
	result entity.FairValueResult,
) (entity.Valuation, error) {
	now := r.now()

	schema, err := fromResult(uuid.New(), cardID, result, now)
	if err != nil {
		return entity.Valuation{}, domain.WrapError(err, errcodes.InternalServerError, "failed to marshal valuation")
	}

	res, err := tx.ExecContext(ctx, `UPDATE cards SET refreshed_at = $1 WHERE id = $2`, now, cardID)
	if err != nil {
		return entity.Valuation{}, domain.WrapError(err, errcodes.InternalServerError, "failed to mark card refreshed")
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return entity.Valuation{}, domain.WrapError(err, errcodes.InternalServerError, "failed to check affected rows")
	}

	if rows == 0 {
		return entity.Valuation{}, domain.NewError(errcodes.CardNotFound, "card not found")
	}

	insert := `
		INSERT INTO valuations (id, card_id, estimated_value, confidence, stage, num_sales,
		                        search_url, image_url, result, scraped_at, created_at)
		VALUES (:id, :card_id, :estimated_value, :confidence, :stage, :num_sales,
		        :search_url, :image_url, :result, :scraped_at, :created_at)`

	if _, err := tx.NamedExecContext(ctx, insert, schema); err != nil {
		return entity.Valuation{}, domain.WrapError(err, errcodes.InternalServerError, "failed to insert valuation")
	}

	return schema.toDomain()
}
