package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized  ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden     ErrorCode = "FORBIDDEN"
	ErrCodeBadRequest    ErrorCode = "BAD_REQUEST"
	ErrCodeConflict      ErrorCode = "CONFLICT"
	ErrCodeInternal      ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation    ErrorCode = "VALIDATION_ERROR"
	ErrCodeDatabaseError ErrorCode = "DATABASE_ERROR"

	// Верификация
	ErrCodeAlreadyVerified     ErrorCode = "ALREADY_VERIFIED"
	ErrCodeInvalidCode         ErrorCode = "INVALID_CODE"
	ErrCodeExpired             ErrorCode = "EXPIRED"
	ErrCodeAttemptsExhausted   ErrorCode = "ATTEMPTS_EXHAUSTED"
	ErrCodeResendLimitExceeded ErrorCode = "RESEND_LIMIT_EXCEEDED"
	ErrCodeDeliveryFailed      ErrorCode = "DELIVERY_FAILED"

	// Escrow
	ErrCodeIllegalTransition ErrorCode = "ILLEGAL_TRANSITION"
	ErrCodeTerminalState     ErrorCode = "TERMINAL_STATE"
)

// Action подсказывает клиенту следующий шаг после ошибки.
type Action string

const (
	ActionNone    Action = "none"
	ActionRetry   Action = "retry"
	ActionWait    Action = "wait"
	ActionResend  Action = "resend"
	ActionRestart Action = "restart"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
	Details    map[string]any
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is сравнивает ошибки по коду, чтобы errors.Is работал с шаблонными ошибками ниже.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// Action возвращает рекомендуемый следующий шаг для клиента.
func (e *AppError) Action() Action {
	switch e.Code {
	case ErrCodeExpired, ErrCodeAttemptsExhausted, ErrCodeDeliveryFailed:
		return ActionResend
	case ErrCodeResendLimitExceeded, ErrCodeNotFound:
		return ActionRestart
	case ErrCodeInternal, ErrCodeDatabaseError:
		return ActionRetry
	case ErrCodeInvalidCode:
		if remaining, ok := e.Details["attempts_remaining"].(int); ok && remaining == 0 {
			return ActionResend
		}
		return ActionRetry
	default:
		return ActionNone
	}
}

// WithDetail возвращает копию ошибки с дополнительным полем для ответа клиенту.
func (e *AppError) WithDetail(key string, value any) *AppError {
	clone := *e
	clone.Details = make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		clone.Details[k] = v
	}
	clone.Details[key] = value
	return &clone
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeBadRequest, ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeConflict, ErrCodeAlreadyVerified, ErrCodeIllegalTransition, ErrCodeTerminalState:
		return http.StatusConflict
	case ErrCodeExpired:
		return http.StatusGone
	case ErrCodeInvalidCode:
		return http.StatusUnprocessableEntity
	case ErrCodeAttemptsExhausted, ErrCodeResendLimitExceeded:
		return http.StatusTooManyRequests
	case ErrCodeDeliveryFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf возвращает код ошибки или INTERNAL_ERROR для ошибок вне таксономии.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

func IsNotFound(err error) bool {
	return CodeOf(err) == ErrCodeNotFound
}

func IsForbidden(err error) bool {
	return CodeOf(err) == ErrCodeForbidden
}

func IsValidation(err error) bool {
	return CodeOf(err) == ErrCodeValidation
}

var (
	ErrUnauthorized = New(ErrCodeUnauthorized, "требуется авторизация")
	ErrForbidden    = New(ErrCodeForbidden, "недостаточно прав")

	ErrSubjectNotFound      = New(ErrCodeNotFound, "субъект верификации не найден")
	ErrVerificationNotFound = New(ErrCodeNotFound, "активный код не найден, начните верификацию заново")
	ErrAlreadyVerified      = New(ErrCodeAlreadyVerified, "субъект уже подтверждён")
	ErrCodeConsumed         = New(ErrCodeAlreadyVerified, "код уже использован")
	ErrInvalidCode          = New(ErrCodeInvalidCode, "неверный код")
	ErrExpired              = New(ErrCodeExpired, "срок действия кода истёк")
	ErrAttemptsExhausted    = New(ErrCodeAttemptsExhausted, "исчерпано количество попыток ввода кода")
	ErrResendLimitExceeded  = New(ErrCodeResendLimitExceeded, "исчерпан лимит повторной отправки кода")
	ErrDeliveryFailed       = New(ErrCodeDeliveryFailed, "не удалось доставить код")

	ErrEscrowNotFound    = New(ErrCodeNotFound, "сделка не найдена")
	ErrIllegalTransition = New(ErrCodeIllegalTransition, "недопустимый переход состояния сделки")
	ErrTerminalState     = New(ErrCodeTerminalState, "сделка находится в конечном состоянии")
)
