package dto

import (
	"time"

	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/models"
)

// ErrorResponse единый формат ошибки: сообщение, код таксономии и следующий шаг клиента.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code,omitempty"`
	Action  string         `json:"action,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// EscrowResponse сделка с журналом и событиями, доступными текущему пользователю.
type EscrowResponse struct {
	*models.EscrowTransaction
	AllowedEvents []models.EscrowEventType `json:"allowed_events"`
}

// TransitionResponse итог перехода.
type TransitionResponse struct {
	EscrowResponse
	Replayed bool `json:"replayed"`
}

// EscrowListResponse страница сделок пользователя.
type EscrowListResponse struct {
	Items  []models.EscrowTransaction `json:"items"`
	Limit  int                        `json:"limit"`
	Offset int                        `json:"offset"`
}

// TokenResponse выданный access токен.
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}
