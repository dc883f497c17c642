package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/logger"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/metrics"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/models"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/pkg/apperror"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/repository/common"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/validation"
)

// EscrowStore хранит сделки. Modify блокирует сделку на время fn; если fn
// вернула запись журнала, состояние и журнал сохраняются вместе.
type EscrowStore interface {
	Create(ctx context.Context, t *models.EscrowTransaction) error
	Get(ctx context.Context, id uuid.UUID) (*models.EscrowTransaction, error)
	Modify(ctx context.Context, id uuid.UUID, fn func(current *models.EscrowTransaction) (*models.StateHistoryEntry, error)) (*models.EscrowTransaction, error)
	ListByParticipant(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.EscrowTransaction, error)
}

// EscrowEventPublisher получает зафиксированные переходы.
type EscrowEventPublisher interface {
	PublishEscrowTransition(t *models.EscrowTransaction, entry models.StateHistoryEntry)
}

// OpenEscrowInput параметры новой сделки.
type OpenEscrowInput struct {
	BuyerID     uuid.UUID
	SellerID    uuid.UUID
	ListingID   *uuid.UUID
	AmountMinor int64
	Currency    string
}

// TransitionResult итог перехода. Replayed означает идемпотентный повтор без новой записи журнала.
type TransitionResult struct {
	Transaction *models.EscrowTransaction `json:"transaction"`
	Replayed    bool                      `json:"replayed"`
}

type EscrowService struct {
	store     EscrowStore
	machine   *EscrowStateMachine
	publisher EscrowEventPublisher
	now       func() time.Time
}

func NewEscrowService(store EscrowStore, machine *EscrowStateMachine, publisher EscrowEventPublisher) *EscrowService {
	return &EscrowService{
		store:     store,
		machine:   machine,
		publisher: publisher,
		now:       time.Now,
	}
}

// SetNowFunc подменяет часы сервиса (используется в тестах).
func (s *EscrowService) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	s.now = now
}

// Open создаёт сделку от имени покупателя и сразу применяет commit.
func (s *EscrowService) Open(ctx context.Context, in OpenEscrowInput) (*models.EscrowTransaction, error) {
	if err := validation.ValidateAmountMinor(in.AmountMinor); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if in.BuyerID == uuid.Nil || in.SellerID == uuid.Nil {
		return nil, apperror.New(apperror.ErrCodeValidation, "не указан покупатель или продавец")
	}
	if in.BuyerID == in.SellerID {
		return nil, apperror.New(apperror.ErrCodeValidation, "покупатель и продавец должны различаться")
	}
	if err := validation.ValidateCurrency(in.Currency); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}

	now := s.now()
	t := &models.EscrowTransaction{
		ID:          uuid.New(),
		BuyerID:     in.BuyerID,
		SellerID:    in.SellerID,
		ListingID:   in.ListingID,
		AmountMinor: in.AmountMinor,
		Currency:    in.Currency,
		State:       models.EscrowStateNone,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	buyerID := in.BuyerID
	entry, _, err := s.machine.Apply(t, EscrowEvent{
		Type:    models.EscrowEventCommit,
		Actor:   models.ActorBuyer,
		ActorID: &buyerID,
	}, now)
	if err != nil {
		return nil, err
	}
	entry.Seq = 1
	entry.TransactionID = t.ID
	t.State = entry.State
	t.History = []models.StateHistoryEntry{*entry}

	if err := s.store.Create(ctx, t); err != nil {
		return nil, s.translate(err)
	}

	metrics.EscrowTransitionsTotal.WithLabelValues(string(models.EscrowEventCommit), "ok").Inc()
	logger.L().WithFields(logrus.Fields{
		"transaction_id": t.ID,
		"amount_minor":   t.AmountMinor,
		"currency":       t.Currency,
	}).Info("Сделка открыта")
	s.publish(t, *entry)
	return t, nil
}

// Transition применяет событие к сделке атомарно. Для участника роль определяется
// по ActorID; пользователь вне сделки получает FORBIDDEN.
func (s *EscrowService) Transition(ctx context.Context, id uuid.UUID, ev EscrowEvent) (*TransitionResult, error) {
	var (
		replayed bool
		applied  *models.StateHistoryEntry
	)

	t, err := s.store.Modify(ctx, id, func(current *models.EscrowTransaction) (*models.StateHistoryEntry, error) {
		if ev.Actor != models.ActorGateway {
			if ev.ActorID == nil {
				return nil, apperror.ErrForbidden
			}
			role, ok := current.RoleOf(*ev.ActorID)
			if !ok {
				return nil, apperror.ErrForbidden
			}
			ev.Actor = role
		}

		entry, replay, err := s.machine.Apply(current, ev, s.now())
		if err != nil {
			return nil, err
		}
		replayed = replay
		applied = entry
		return entry, nil
	})

	log := logger.L().WithFields(logrus.Fields{
		"transaction_id": id,
		"event":          ev.Type,
		"actor_role":     ev.Actor,
	})
	if err != nil {
		err = s.translate(err)
		metrics.EscrowTransitionsTotal.WithLabelValues(string(ev.Type), string(apperror.CodeOf(err))).Inc()
		log.WithError(err).Info("Переход сделки отклонён")
		return nil, err
	}

	if replayed {
		metrics.EscrowTransitionsTotal.WithLabelValues(string(ev.Type), "replay").Inc()
		log.Info("Повтор перехода сделки, состояние не изменено")
		return &TransitionResult{Transaction: t, Replayed: true}, nil
	}

	metrics.EscrowTransitionsTotal.WithLabelValues(string(ev.Type), "ok").Inc()
	log.WithField("state", t.State).Info("Переход сделки зафиксирован")
	s.publish(t, *applied)
	return &TransitionResult{Transaction: t}, nil
}

// Get возвращает сделку с журналом. Просматривать её могут только участники.
func (s *EscrowService) Get(ctx context.Context, id, viewerID uuid.UUID) (*models.EscrowTransaction, error) {
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, s.translate(err)
	}
	if _, ok := t.RoleOf(viewerID); !ok {
		return nil, apperror.ErrForbidden
	}
	return t, nil
}

// List возвращает сделки пользователя.
func (s *EscrowService) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.EscrowTransaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	items, err := s.store.ListByParticipant(ctx, userID, limit, offset)
	if err != nil {
		return nil, s.translate(err)
	}
	return items, nil
}

// AllowedEvents перечисляет события, которые пользователь может отправить для сделки.
func (s *EscrowService) AllowedEvents(t *models.EscrowTransaction, userID uuid.UUID) []models.EscrowEventType {
	role, ok := t.RoleOf(userID)
	if !ok {
		return nil
	}
	return s.machine.Allowed(t.State, role)
}

func (s *EscrowService) publish(t *models.EscrowTransaction, entry models.StateHistoryEntry) {
	if s.publisher == nil {
		return
	}
	s.publisher.PublishEscrowTransition(t.Clone(), entry)
}

func (s *EscrowService) translate(err error) error {
	var appErr *apperror.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, common.ErrEscrowNotFound):
		return apperror.ErrEscrowNotFound
	case errors.Is(err, common.ErrVersionConflict):
		return apperror.Wrap(err, apperror.ErrCodeConflict, "сделка изменена параллельно, повторите запрос")
	default:
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "ошибка хранилища сделок")
	}
}
