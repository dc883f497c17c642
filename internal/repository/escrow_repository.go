package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/models"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/repository/common"
)

const escrowColumns = "id, buyer_id, seller_id, listing_id, amount_minor, currency, state, version, created_at, updated_at"

// EscrowRepository хранит сделки и журнал их переходов в PostgreSQL.
type EscrowRepository struct {
	db *sqlx.DB
}

func NewEscrowRepository(db *sqlx.DB) *EscrowRepository {
	return &EscrowRepository{db: db}
}

// Create сохраняет новую сделку вместе с начальными записями журнала.
func (r *EscrowRepository) Create(ctx context.Context, t *models.EscrowTransaction) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, t, `
			INSERT INTO escrow_transactions (id, buyer_id, seller_id, listing_id, amount_minor, currency, state)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING `+escrowColumns+`
		`, t.ID, t.BuyerID, t.SellerID, t.ListingID, t.AmountMinor, t.Currency, t.State)
		if err != nil {
			return fmt.Errorf("escrow repository: create %w", err)
		}
		for i := range t.History {
			t.History[i].TransactionID = t.ID
			if err := insertHistory(ctx, tx, &t.History[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// Get возвращает сделку с полным журналом в порядке добавления.
func (r *EscrowRepository) Get(ctx context.Context, id uuid.UUID) (*models.EscrowTransaction, error) {
	t, err := common.GetOne[models.EscrowTransaction](ctx, r.db, common.ErrEscrowNotFound,
		`SELECT `+escrowColumns+` FROM escrow_transactions WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if err := r.db.SelectContext(ctx, &t.History, `
		SELECT seq, transaction_id, state, event, actor_role, actor_id, at
		FROM escrow_state_history WHERE transaction_id = $1 ORDER BY seq
	`, id); err != nil {
		return nil, fmt.Errorf("escrow repository: history %w", err)
	}
	return t, nil
}

// Modify блокирует строку сделки и применяет fn. Если fn возвращает запись журнала,
// состояние и журнал обновляются в одной транзакции; nil означает отсутствие изменений.
func (r *EscrowRepository) Modify(ctx context.Context, id uuid.UUID, fn func(current *models.EscrowTransaction) (*models.StateHistoryEntry, error)) (*models.EscrowTransaction, error) {
	var result *models.EscrowTransaction

	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		locked, err := common.GetOne[models.EscrowTransaction](ctx, tx, common.ErrEscrowNotFound,
			`SELECT `+escrowColumns+` FROM escrow_transactions WHERE id = $1 FOR UPDATE`, id)
		if err != nil {
			return err
		}
		current := *locked
		if err := tx.SelectContext(ctx, &current.History, `
			SELECT seq, transaction_id, state, event, actor_role, actor_id, at
			FROM escrow_state_history WHERE transaction_id = $1 ORDER BY seq
		`, id); err != nil {
			return fmt.Errorf("escrow repository: history %w", err)
		}

		entry, err := fn(current.Clone())
		if err != nil {
			return err
		}
		if entry == nil {
			result = &current
			return nil
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE escrow_transactions SET state = $2, version = version + 1, updated_at = $4
			WHERE id = $1 AND version = $3
		`, id, entry.State, current.Version, entry.At)
		if err != nil {
			return fmt.Errorf("escrow repository: update state %w", err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return common.ErrVersionConflict
		}

		entry.TransactionID = id
		entry.Seq = len(current.History) + 1
		if err := insertHistory(ctx, tx, entry); err != nil {
			return err
		}

		current.State = entry.State
		current.Version++
		current.UpdatedAt = entry.At
		current.History = append(current.History, *entry)
		result = &current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListByParticipant возвращает сделки, где пользователь покупатель или продавец.
func (r *EscrowRepository) ListByParticipant(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.EscrowTransaction, error) {
	var items []models.EscrowTransaction
	err := r.db.SelectContext(ctx, &items, `
		SELECT `+escrowColumns+` FROM escrow_transactions
		WHERE buyer_id = $1 OR seller_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("escrow repository: list %w", err)
	}
	if len(items) == 0 {
		return items, nil
	}

	ids := make([]uuid.UUID, len(items))
	index := make(map[uuid.UUID]int, len(items))
	for i, item := range items {
		ids[i] = item.ID
		index[item.ID] = i
	}

	// Журналы загружаем одним запросом, чтобы избежать N+1.
	query, args, err := sqlx.In(`
		SELECT seq, transaction_id, state, event, actor_role, actor_id, at
		FROM escrow_state_history WHERE transaction_id IN (?) ORDER BY transaction_id, seq
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("escrow repository: build history query %w", err)
	}
	var history []models.StateHistoryEntry
	if err := r.db.SelectContext(ctx, &history, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("escrow repository: list history %w", err)
	}
	for _, h := range history {
		i := index[h.TransactionID]
		items[i].History = append(items[i].History, h)
	}
	return items, nil
}

func insertHistory(ctx context.Context, tx *sqlx.Tx, entry *models.StateHistoryEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO escrow_state_history (transaction_id, seq, state, event, actor_role, actor_id, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, entry.TransactionID, entry.Seq, entry.State, entry.Event, entry.ActorRole, entry.ActorID, entry.At)
	if err != nil {
		return fmt.Errorf("escrow repository: insert history %w", err)
	}
	return nil
}
