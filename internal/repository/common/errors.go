package common

import "errors"

// Ошибки хранилищ. Сервисы переводят их в apperror.
var (
	ErrSubjectNotFound      = errors.New("verification subject not found")
	ErrVerificationNotFound = errors.New("verification record not found")
	ErrEscrowNotFound       = errors.New("escrow transaction not found")

	// ErrAlreadyExists сделка с таким id уже сохранена.
	ErrAlreadyExists = errors.New("escrow transaction already exists")
	// ErrVersionConflict запись изменилась между чтением и записью.
	ErrVersionConflict = errors.New("record version conflict")
	// ErrInvalidInput возвращается из fn в Modify, чтобы отменить изменение.
	ErrInvalidInput = errors.New("invalid input")
)
