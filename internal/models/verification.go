package models

import "time"

// VerificationRecord хранит единственный активный код субъекта верификации.
// Сам код никогда не сохраняется, только его хэш.
type VerificationRecord struct {
	SubjectID         string     `db:"subject_id" json:"subject_id"`
	CodeHash          string     `db:"code_hash" json:"-"`
	IssuedAt          time.Time  `db:"issued_at" json:"issued_at"`
	ExpiresAt         time.Time  `db:"expires_at" json:"expires_at"`
	AttemptsRemaining int        `db:"attempts_remaining" json:"attempts_remaining"`
	ResendCount       int        `db:"resend_count" json:"resend_count"`
	ConsumedAt        *time.Time `db:"consumed_at" json:"consumed_at,omitempty"`
	Version           int64      `db:"version" json:"-"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// IsExpired сообщает, истекло ли окно действия кода на момент now.
func (r *VerificationRecord) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// IsConsumed сообщает, был ли код уже успешно использован.
func (r *VerificationRecord) IsConsumed() bool {
	return r.ConsumedAt != nil
}

// Clone возвращает независимую копию записи.
func (r *VerificationRecord) Clone() *VerificationRecord {
	if r == nil {
		return nil
	}
	clone := *r
	if r.ConsumedAt != nil {
		consumed := *r.ConsumedAt
		clone.ConsumedAt = &consumed
	}
	return &clone
}
