package dto

import "github.com/google/uuid"

// CheckCodeRequest тело POST /api/verification/:subjectId/check.
type CheckCodeRequest struct {
	Code string `json:"code" binding:"required,numeric,min=4,max=10"`
}

// OpenEscrowRequest тело POST /api/escrow. Покупатель берётся из токена.
type OpenEscrowRequest struct {
	SellerID    uuid.UUID  `json:"seller_id" binding:"required"`
	ListingID   *uuid.UUID `json:"listing_id"`
	AmountMinor int64      `json:"amount_minor" binding:"required,gt=0"`
	Currency    string     `json:"currency" binding:"required,len=3"`
}

// TransitionRequest тело POST /api/escrow/:id/transitions.
type TransitionRequest struct {
	Event string `json:"event" binding:"required"`
}

// PaymentCapturedWebhook тело вебхука платёжного шлюза.
type PaymentCapturedWebhook struct {
	TransactionID uuid.UUID `json:"transaction_id" binding:"required"`
	AmountMinor   int64     `json:"amount_minor" binding:"required,gt=0"`
	Currency      string    `json:"currency" binding:"required,len=3"`
	Reference     string    `json:"reference"`
}

// DevTokenRequest тело POST /api/dev/token.
type DevTokenRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
	// Role по умолчанию user.
	Role string `json:"role" binding:"omitempty,oneof=user service"`
}
