package models

import (
	"time"

	"github.com/google/uuid"
)

// EscrowState состояние защищённой сделки.
type EscrowState string

const (
	EscrowStateNone      EscrowState = "NONE"
	EscrowStateInitiated EscrowState = "INITIATED"
	EscrowStateHeld      EscrowState = "HELD"
	EscrowStateDelivered EscrowState = "DELIVERED"
	EscrowStateReleased  EscrowState = "RELEASED"
	EscrowStateDisputed  EscrowState = "DISPUTED"
	EscrowStateCancelled EscrowState = "CANCELLED"
)

// IsValid проверяет, что состояние входит в известный набор.
func (s EscrowState) IsValid() bool {
	switch s {
	case EscrowStateNone, EscrowStateInitiated, EscrowStateHeld, EscrowStateDelivered,
		EscrowStateReleased, EscrowStateDisputed, EscrowStateCancelled:
		return true
	}
	return false
}

// IsTerminal сообщает, что из состояния нет переходов.
func (s EscrowState) IsTerminal() bool {
	return s == EscrowStateReleased || s == EscrowStateCancelled
}

// EscrowEventType входное событие автомата сделки.
type EscrowEventType string

const (
	EscrowEventCommit            EscrowEventType = "commit"
	EscrowEventPaymentCaptured   EscrowEventType = "paymentCaptured"
	EscrowEventDeliveryConfirmed EscrowEventType = "deliveryConfirmed"
	EscrowEventReceiptConfirmed  EscrowEventType = "receiptConfirmed"
	EscrowEventDispute           EscrowEventType = "dispute"
	EscrowEventCancel            EscrowEventType = "cancel"
)

// IsValid проверяет, что событие известно автомату.
func (e EscrowEventType) IsValid() bool {
	switch e {
	case EscrowEventCommit, EscrowEventPaymentCaptured, EscrowEventDeliveryConfirmed,
		EscrowEventReceiptConfirmed, EscrowEventDispute, EscrowEventCancel:
		return true
	}
	return false
}

// ActorRole роль инициатора события.
type ActorRole string

const (
	ActorBuyer   ActorRole = "buyer"
	ActorSeller  ActorRole = "seller"
	ActorGateway ActorRole = "gateway"
)

// StateHistoryEntry одна запись журнала переходов. Журнал только дополняется.
type StateHistoryEntry struct {
	Seq           int             `db:"seq" json:"seq"`
	TransactionID uuid.UUID       `db:"transaction_id" json:"-"`
	State         EscrowState     `db:"state" json:"state"`
	Event         EscrowEventType `db:"event" json:"event"`
	ActorRole     ActorRole       `db:"actor_role" json:"actor_role"`
	ActorID       *uuid.UUID      `db:"actor_id" json:"actor_id,omitempty"`
	At            time.Time       `db:"at" json:"at"`
}

// EscrowTransaction защищённая сделка между покупателем и продавцом.
// BuyerID, SellerID и сумма неизменяемы после создания.
type EscrowTransaction struct {
	ID          uuid.UUID           `db:"id" json:"id"`
	BuyerID     uuid.UUID           `db:"buyer_id" json:"buyer_id"`
	SellerID    uuid.UUID           `db:"seller_id" json:"seller_id"`
	ListingID   *uuid.UUID          `db:"listing_id" json:"listing_id,omitempty"`
	AmountMinor int64               `db:"amount_minor" json:"amount_minor"`
	Currency    string              `db:"currency" json:"currency"`
	State       EscrowState         `db:"state" json:"state"`
	Version     int64               `db:"version" json:"-"`
	CreatedAt   time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time           `db:"updated_at" json:"updated_at"`
	History     []StateHistoryEntry `db:"-" json:"state_history"`
}

// LastEntry возвращает последнюю запись журнала или nil.
func (t *EscrowTransaction) LastEntry() *StateHistoryEntry {
	if len(t.History) == 0 {
		return nil
	}
	return &t.History[len(t.History)-1]
}

// EnteredAt возвращает момент последнего входа в указанное состояние.
func (t *EscrowTransaction) EnteredAt(state EscrowState) (time.Time, bool) {
	for i := len(t.History) - 1; i >= 0; i-- {
		if t.History[i].State == state {
			return t.History[i].At, true
		}
	}
	return time.Time{}, false
}

// RoleOf определяет роль пользователя в сделке.
func (t *EscrowTransaction) RoleOf(userID uuid.UUID) (ActorRole, bool) {
	switch userID {
	case t.BuyerID:
		return ActorBuyer, true
	case t.SellerID:
		return ActorSeller, true
	}
	return "", false
}

// Clone возвращает глубокую копию сделки вместе с журналом.
func (t *EscrowTransaction) Clone() *EscrowTransaction {
	if t == nil {
		return nil
	}
	clone := *t
	if t.ListingID != nil {
		listing := *t.ListingID
		clone.ListingID = &listing
	}
	clone.History = make([]StateHistoryEntry, len(t.History))
	copy(clone.History, t.History)
	return &clone
}
