package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/models"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/repository/common"
)

const verificationColumns = `subject_id, code_hash, issued_at, expires_at, attempts_remaining,
	resend_count, consumed_at, version, created_at, updated_at`

// VerificationRepository хранит активные коды в PostgreSQL.
type VerificationRepository struct {
	db *sqlx.DB
}

func NewVerificationRepository(db *sqlx.DB) *VerificationRepository {
	return &VerificationRepository{db: db}
}

// Get возвращает запись субъекта.
func (r *VerificationRepository) Get(ctx context.Context, subjectID string) (*models.VerificationRecord, error) {
	var rec models.VerificationRecord
	err := r.db.GetContext(ctx, &rec, `SELECT `+verificationColumns+` FROM verification_records WHERE subject_id = $1`, subjectID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrVerificationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("verification repository: get %w", err)
	}
	return &rec, nil
}

// Modify выполняет read-modify-write записи субъекта под advisory-блокировкой.
// fn получает копию текущей записи (nil, если её нет). Вернув nil без ошибки,
// fn оставляет запись без изменений; ошибка fn откатывает транзакцию целиком.
func (r *VerificationRepository) Modify(ctx context.Context, subjectID string, fn func(current *models.VerificationRecord) (*models.VerificationRecord, error)) (*models.VerificationRecord, error) {
	var result *models.VerificationRecord

	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		// Блокировка по ключу субъекта сериализует и первую выдачу, когда строки ещё нет.
		if err := common.LockKey(ctx, tx, "verification:"+subjectID); err != nil {
			return fmt.Errorf("verification repository: %w", err)
		}

		var current *models.VerificationRecord
		var rec models.VerificationRecord
		err := tx.GetContext(ctx, &rec, `SELECT `+verificationColumns+` FROM verification_records WHERE subject_id = $1 FOR UPDATE`, subjectID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("verification repository: select %w", err)
		default:
			current = &rec
		}

		next, err := fn(current.Clone())
		if err != nil {
			return err
		}
		if next == nil {
			result = current
			return nil
		}

		var stored models.VerificationRecord
		err = tx.GetContext(ctx, &stored, `
			INSERT INTO verification_records (subject_id, code_hash, issued_at, expires_at, attempts_remaining, resend_count, consumed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (subject_id) DO UPDATE SET
				code_hash = EXCLUDED.code_hash,
				issued_at = EXCLUDED.issued_at,
				expires_at = EXCLUDED.expires_at,
				attempts_remaining = EXCLUDED.attempts_remaining,
				resend_count = EXCLUDED.resend_count,
				consumed_at = EXCLUDED.consumed_at,
				version = verification_records.version + 1,
				updated_at = NOW()
			RETURNING `+verificationColumns,
			subjectID, next.CodeHash, next.IssuedAt, next.ExpiresAt, next.AttemptsRemaining, next.ResendCount, next.ConsumedAt)
		if err != nil {
			return fmt.Errorf("verification repository: upsert %w", err)
		}
		result = &stored
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Delete удаляет запись субъекта, завершая эпизод верификации.
func (r *VerificationRepository) Delete(ctx context.Context, subjectID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM verification_records WHERE subject_id = $1`, subjectID)
	if err != nil {
		return fmt.Errorf("verification repository: delete %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrVerificationNotFound
	}
	return nil
}
