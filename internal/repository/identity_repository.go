package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/models"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/repository/common"
)

// IdentityRepository отвечает на вопрос "кому доставлять код" через представление verification_subjects.
type IdentityRepository struct {
	db *sqlx.DB
}

func NewIdentityRepository(db *sqlx.DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

// Lookup возвращает субъекта по идентификатору вида "account:<uuid>" или "password_reset:<uuid>".
func (r *IdentityRepository) Lookup(ctx context.Context, subjectID string) (*models.Subject, error) {
	return common.GetOne[models.Subject](ctx, r.db, common.ErrSubjectNotFound,
		`SELECT id, kind, channel, destination, verified FROM verification_subjects WHERE id = $1`, subjectID)
}

// MarkVerified фиксирует успешное подтверждение у владельца субъекта.
func (r *IdentityRepository) MarkVerified(ctx context.Context, subjectID string) error {
	kind, id, ok := strings.Cut(subjectID, ":")
	if !ok {
		return common.ErrSubjectNotFound
	}

	var query string
	switch kind {
	case models.SubjectKindAccount:
		query = `UPDATE users SET is_verified = TRUE, updated_at = NOW() WHERE id::text = $1`
	case models.SubjectKindPasswordReset:
		query = `UPDATE password_reset_requests SET confirmed_at = NOW() WHERE id::text = $1 AND confirmed_at IS NULL`
	default:
		return common.ErrSubjectNotFound
	}

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("identity repository: mark verified %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 && kind == models.SubjectKindAccount {
		return common.ErrSubjectNotFound
	}
	return nil
}
