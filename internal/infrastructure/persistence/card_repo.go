package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"card_pricer/internal/domain"
	"card_pricer/internal/domain/entity"
	"card_pricer/pkg/errcodes"
)

type CardRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewCardRepository создаёт новый экземпляр репозитория.
func NewCardRepository(db *sqlx.DB) *CardRepository {
	return &CardRepository{db: db, now: time.Now}
}

// Upsert сохраняет карточку. Карточка с тем же ключом запроса не
// дублируется: обновляется имя, id остаётся прежним и записывается в card.
func (r *CardRepository) Upsert(ctx context.Context, card *entity.Card) error {
	if card.ID == uuid.Nil {
		card.ID = uuid.New()
	}
	if card.CreatedAt.IsZero() {
		card.CreatedAt = r.now()
	}

	schema, err := fromCard(card)
	if err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to marshal card query")
	}

	query := `
		INSERT INTO cards (id, name, query_key, query, created_at)
		VALUES (:id, :name, :query_key, :query, :created_at)
		ON CONFLICT (query_key) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`

	rows, err := r.db.NamedQueryContext(ctx, query, schema)
	if err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to upsert card")
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&card.ID); err != nil {
			return domain.WrapError(err, errcodes.InternalServerError, "failed to scan card id")
		}
	}

	if err := rows.Err(); err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to upsert card")
	}

	return nil
}

// GetByID возвращает карточку по идентификатору.
func (r *CardRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Card, error) {
	query := `
		SELECT id, name, query_key, query, created_at, refreshed_at
		FROM cards
		WHERE id = $1`

	var schema cardSchema
	if err := r.db.GetContext(ctx, &schema, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewError(errcodes.CardNotFound, "card not found")
		}
		return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to get card")
	}

	card, err := schema.toDomain()
	if err != nil {
		return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to convert card")
	}

	return &card, nil
}

// GetByIDs возвращает карточки по списку идентификаторов. Отсутствующие
// пропускаются.
func (r *CardRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]entity.Card, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`
		SELECT id, name, query_key, query, created_at, refreshed_at
		FROM cards
		WHERE id IN (?)`, ids)
	if err != nil {
		return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to build query")
	}

	var schemas []cardSchema
	if err := r.db.SelectContext(ctx, &schemas, r.db.Rebind(query), args...); err != nil {
		return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to get cards")
	}

	return toCards(schemas)
}

// ListStale возвращает карточки, которые не обновлялись с olderThan,
// начиная с никогда не обновлённых.
func (r *CardRepository) ListStale(ctx context.Context, olderThan time.Time, limit int) ([]entity.Card, error) {
	query := `
		SELECT id, name, query_key, query, created_at, refreshed_at
		FROM cards
		WHERE refreshed_at IS NULL OR refreshed_at < $1
		ORDER BY refreshed_at NULLS FIRST, created_at
		LIMIT $2`

	var schemas []cardSchema
	if err := r.db.SelectContext(ctx, &schemas, query, olderThan, limit); err != nil {
		return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to list stale cards")
	}

	return toCards(schemas)
}

func toCards(schemas []cardSchema) ([]entity.Card, error) {
	cards := make([]entity.Card, 0, len(schemas))
	for i := range schemas {
		card, err := schemas[i].toDomain()
		if err != nil {
			return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to convert card")
		}
		cards = append(cards, card)
	}
	return cards, nil
}
