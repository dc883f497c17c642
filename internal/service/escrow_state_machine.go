package service

import (
	"time"

	"github.com/google/uuid"

	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/models"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/pkg/apperror"
)

// EscrowEvent входное событие автомата. Для событий участников ActorID обязателен,
// роль определяется по сделке; шлюз оплаты передаёт Actor = gateway и сумму захвата.
type EscrowEvent struct {
	Type        models.EscrowEventType
	Actor       models.ActorRole
	ActorID     *uuid.UUID
	AmountMinor int64
	Currency    string
}

type transitionGuard func(t *models.EscrowTransaction, ev EscrowEvent, now time.Time) error

type transitionRule struct {
	from  models.EscrowState
	event models.EscrowEventType
	to    models.EscrowState
	roles []models.ActorRole
	guard transitionGuard
}

type transitionKey struct {
	from  models.EscrowState
	event models.EscrowEventType
}

// EscrowStateMachine единственный источник допустимых переходов сделки.
type EscrowStateMachine struct {
	rules map[transitionKey]transitionRule
	// replayGuards проверяются и при повторе: повтор не должен противоречить
	// уже записанному переходу.
	replayGuards map[models.EscrowEventType]transitionGuard
}

// NewEscrowStateMachine собирает таблицу переходов. disputeWindow ограничивает
// спор покупателя после подтверждения доставки.
func NewEscrowStateMachine(disputeWindow time.Duration) *EscrowStateMachine {
	buyer := []models.ActorRole{models.ActorBuyer}
	seller := []models.ActorRole{models.ActorSeller}
	parties := []models.ActorRole{models.ActorBuyer, models.ActorSeller}

	table := []transitionRule{
		{models.EscrowStateNone, models.EscrowEventCommit, models.EscrowStateInitiated, buyer, nil},
		{models.EscrowStateInitiated, models.EscrowEventPaymentCaptured, models.EscrowStateHeld, []models.ActorRole{models.ActorGateway}, amountMatches},
		{models.EscrowStateHeld, models.EscrowEventDeliveryConfirmed, models.EscrowStateDelivered, seller, nil},
		{models.EscrowStateHeld, models.EscrowEventDispute, models.EscrowStateDisputed, parties, nil},
		{models.EscrowStateDelivered, models.EscrowEventReceiptConfirmed, models.EscrowStateReleased, buyer, nil},
		{models.EscrowStateDelivered, models.EscrowEventDispute, models.EscrowStateDisputed, buyer, withinDisputeWindow(disputeWindow)},
		{models.EscrowStateInitiated, models.EscrowEventCancel, models.EscrowStateCancelled, parties, nil},
		{models.EscrowStateHeld, models.EscrowEventCancel, models.EscrowStateCancelled, parties, nil},
	}

	m := &EscrowStateMachine{
		rules:        make(map[transitionKey]transitionRule, len(table)),
		replayGuards: map[models.EscrowEventType]transitionGuard{
			models.EscrowEventPaymentCaptured: amountMatches,
		},
	}
	for _, r := range table {
		m.rules[transitionKey{r.from, r.event}] = r
	}
	return m
}

// Apply вычисляет запись журнала для события. replay = true означает повтор уже
// применённого перехода: последнее событие журнала то же, сделка в его целевом
// состоянии, и правило этого перехода разрешает роль отправителя.
// Сделку Apply не изменяет.
func (m *EscrowStateMachine) Apply(t *models.EscrowTransaction, ev EscrowEvent, now time.Time) (entry *models.StateHistoryEntry, replay bool, err error) {
	if !ev.Type.IsValid() {
		return nil, false, apperror.New(apperror.ErrCodeValidation, "неизвестное событие сделки").WithDetail("event", ev.Type)
	}

	if m.isReplay(t, ev) {
		if guard, ok := m.replayGuards[ev.Type]; ok {
			if err := guard(t, ev, now); err != nil {
				return nil, false, err
			}
		}
		return nil, true, nil
	}

	if t.State.IsTerminal() {
		return nil, false, apperror.ErrTerminalState.WithDetail("state", t.State)
	}

	rule, ok := m.rules[transitionKey{t.State, ev.Type}]
	if !ok {
		return nil, false, illegal(t.State, ev.Type)
	}
	if !roleAllowed(rule.roles, ev.Actor) {
		return nil, false, apperror.ErrForbidden.WithDetail("event", ev.Type).WithDetail("actor_role", ev.Actor)
	}
	if rule.guard != nil {
		if err := rule.guard(t, ev, now); err != nil {
			return nil, false, err
		}
	}

	return &models.StateHistoryEntry{
		State:     rule.to,
		Event:     ev.Type,
		ActorRole: ev.Actor,
		ActorID:   ev.ActorID,
		At:        now,
	}, false, nil
}

// Allowed перечисляет события, допустимые из состояния для роли.
func (m *EscrowStateMachine) Allowed(state models.EscrowState, role models.ActorRole) []models.EscrowEventType {
	var events []models.EscrowEventType
	for _, ev := range []models.EscrowEventType{
		models.EscrowEventCommit, models.EscrowEventPaymentCaptured, models.EscrowEventDeliveryConfirmed,
		models.EscrowEventReceiptConfirmed, models.EscrowEventDispute, models.EscrowEventCancel,
	} {
		if r, ok := m.rules[transitionKey{state, ev}]; ok && roleAllowed(r.roles, role) {
			events = append(events, ev)
		}
	}
	return events
}

func (m *EscrowStateMachine) isReplay(t *models.EscrowTransaction, ev EscrowEvent) bool {
	last := t.LastEntry()
	if last == nil || last.Event != ev.Type || last.State != t.State {
		return false
	}
	from := models.EscrowStateNone
	if n := len(t.History); n >= 2 {
		from = t.History[n-2].State
	}
	rule, ok := m.rules[transitionKey{from, ev.Type}]
	return ok && rule.to == t.State && roleAllowed(rule.roles, ev.Actor)
}

func roleAllowed(roles []models.ActorRole, role models.ActorRole) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func illegal(from models.EscrowState, ev models.EscrowEventType) *apperror.AppError {
	return apperror.ErrIllegalTransition.WithDetail("from", from).WithDetail("event", ev)
}

func amountMatches(t *models.EscrowTransaction, ev EscrowEvent, _ time.Time) error {
	if ev.AmountMinor != t.AmountMinor || (ev.Currency != "" && ev.Currency != t.Currency) {
		return illegal(t.State, ev.Type).
			WithDetail("reason", "amount_mismatch").
			WithDetail("expected_amount_minor", t.AmountMinor)
	}
	return nil
}

func withinDisputeWindow(window time.Duration) transitionGuard {
	return func(t *models.EscrowTransaction, ev EscrowEvent, now time.Time) error {
		deliveredAt, ok := t.EnteredAt(models.EscrowStateDelivered)
		if !ok || now.Sub(deliveredAt) > window {
			return illegal(t.State, ev.Type).WithDetail("reason", "dispute_window_closed")
		}
		return nil
	}
}
