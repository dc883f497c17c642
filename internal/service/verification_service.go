package service

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/logger"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/metrics"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/models"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/pkg/apperror"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/repository/common"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/validation"
)

// VerificationLedger хранит не более одной записи на субъекта.
// Modify выполняет fn в критической секции записи: ошибка fn отменяет изменения,
// nil-результат оставляет запись как есть.
type VerificationLedger interface {
	Get(ctx context.Context, subjectID string) (*models.VerificationRecord, error)
	Modify(ctx context.Context, subjectID string, fn func(current *models.VerificationRecord) (*models.VerificationRecord, error)) (*models.VerificationRecord, error)
	Delete(ctx context.Context, subjectID string) error
}

// IdentityStore только читает сведения о субъекте.
type IdentityStore interface {
	Lookup(ctx context.Context, subjectID string) (*models.Subject, error)
}

// SubjectConfirmer отмечает субъекта подтверждённым после успешной проверки кода.
type SubjectConfirmer interface {
	MarkVerified(ctx context.Context, subjectID string) error
}

// NotificationSender доставляет код получателю по каналу.
type NotificationSender interface {
	Send(ctx context.Context, channel, destination, code string) error
}

// VerificationPolicy бюджеты и окно действия кода.
type VerificationPolicy struct {
	CodeTTL     time.Duration
	MaxAttempts int
	MaxResends  int
}

// IssueResult итог выдачи кода. Ошибка доставки не делает выдачу неуспешной,
// она отражается в Delivered и DeliveryError.
type IssueResult struct {
	SubjectID         string    `json:"subject_id"`
	ExpiresAt         time.Time `json:"expires_at"`
	AttemptsRemaining int       `json:"attempts_remaining"`
	ResendsRemaining  int       `json:"resends_remaining"`
	Channel           string    `json:"channel"`
	Delivered         bool      `json:"delivered"`
	DeliveryError     string    `json:"delivery_error,omitempty"`
}

// CheckOutcome результат проверки кода, который не является ошибкой бюджета или окна.
type CheckOutcome string

const (
	CheckVerified CheckOutcome = "verified"
	CheckRejected CheckOutcome = "rejected"
)

// CheckResult итог проверки кода.
type CheckResult struct {
	SubjectID         string       `json:"subject_id"`
	Outcome           CheckOutcome `json:"outcome"`
	AttemptsRemaining int          `json:"attempts_remaining"`
}

// VerificationStatus снимок эпизода для отображения обратного отсчёта на клиенте.
type VerificationStatus struct {
	SubjectID         string    `json:"subject_id"`
	ExpiresAt         time.Time `json:"expires_at"`
	ServerTime        time.Time `json:"server_time"`
	SecondsRemaining  int64     `json:"seconds_remaining"`
	AttemptsRemaining int       `json:"attempts_remaining"`
	ResendsRemaining  int       `json:"resends_remaining"`
	Expired           bool      `json:"expired"`
	Consumed          bool      `json:"consumed"`
}

type VerificationService struct {
	ledger    VerificationLedger
	identity  IdentityStore
	confirmer SubjectConfirmer
	sender    NotificationSender
	generator CodeGenerator
	hasher    CodeHasher
	policy    VerificationPolicy
	now       func() time.Time
}

func NewVerificationService(
	ledger VerificationLedger,
	identity IdentityStore,
	sender NotificationSender,
	generator CodeGenerator,
	hasher CodeHasher,
	policy VerificationPolicy,
) *VerificationService {
	s := &VerificationService{
		ledger:    ledger,
		identity:  identity,
		sender:    sender,
		generator: generator,
		hasher:    hasher,
		policy:    policy,
		now:       time.Now,
	}
	if c, ok := identity.(SubjectConfirmer); ok {
		s.confirmer = c
	}
	return s
}

// SetNowFunc подменяет часы сервиса (используется в тестах).
func (s *VerificationService) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	s.now = now
}

// SetConfirmer задаёт получателя отметки об успешной верификации.
func (s *VerificationService) SetConfirmer(c SubjectConfirmer) {
	s.confirmer = c
}

// Issue выдаёт новый код субъекту. Если у субъекта уже есть непогашенный код,
// повторная выдача расходует бюджет переотправок так же, как Resend.
func (s *VerificationService) Issue(ctx context.Context, subjectID string) (*IssueResult, error) {
	return s.issue(ctx, subjectID, "issue", false)
}

// Resend заменяет активный код новым. Прежний код перестаёт проходить проверку сразу.
func (s *VerificationService) Resend(ctx context.Context, subjectID string) (*IssueResult, error) {
	return s.issue(ctx, subjectID, "resend", true)
}

func (s *VerificationService) issue(ctx context.Context, subjectID, operation string, requireActive bool) (*IssueResult, error) {
	log := logger.L().WithFields(logrus.Fields{"subject_id": subjectID, "operation": operation})

	subject, err := s.lookupSubject(ctx, subjectID)
	if err != nil {
		metrics.VerificationIssuedTotal.WithLabelValues(operation, string(apperror.CodeOf(err))).Inc()
		return nil, err
	}

	code, err := s.generator.Generate()
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось сгенерировать код")
	}
	hash, err := s.hasher.Hash(subjectID, code)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось сохранить код")
	}

	rec, err := s.ledger.Modify(ctx, subjectID, func(current *models.VerificationRecord) (*models.VerificationRecord, error) {
		now := s.now()
		switch {
		case current == nil && requireActive:
			return nil, apperror.ErrVerificationNotFound
		case current == nil:
			return &models.VerificationRecord{
				SubjectID:         subjectID,
				CodeHash:          hash,
				IssuedAt:          now,
				ExpiresAt:         now.Add(s.policy.CodeTTL),
				AttemptsRemaining: s.policy.MaxAttempts,
			}, nil
		case current.IsConsumed():
			return nil, apperror.ErrCodeConsumed
		case current.ResendCount >= s.policy.MaxResends:
			return nil, apperror.ErrResendLimitExceeded
		}

		current.CodeHash = hash
		current.IssuedAt = now
		current.ExpiresAt = now.Add(s.policy.CodeTTL)
		current.AttemptsRemaining = s.policy.MaxAttempts
		current.ResendCount++
		return current, nil
	})
	if err != nil {
		err = s.translate(err)
		metrics.VerificationIssuedTotal.WithLabelValues(operation, string(apperror.CodeOf(err))).Inc()
		log.WithError(err).Info("Код не выдан")
		return nil, err
	}

	result := &IssueResult{
		SubjectID:         subjectID,
		ExpiresAt:         rec.ExpiresAt,
		AttemptsRemaining: rec.AttemptsRemaining,
		ResendsRemaining:  s.resendsRemaining(rec),
		Channel:           subject.Channel,
		Delivered:         true,
	}

	if err := s.sender.Send(ctx, subject.Channel, subject.Destination, code); err != nil {
		metrics.NotificationDeliveryFailuresTotal.WithLabelValues(subject.Channel).Inc()
		log.WithError(err).WithField("channel", subject.Channel).Warn("Не удалось доставить код, клиент может запросить повторную отправку")
		result.Delivered = false
		result.DeliveryError = apperror.ErrDeliveryFailed.Message
	}

	metrics.VerificationIssuedTotal.WithLabelValues(operation, "ok").Inc()
	log.WithFields(logrus.Fields{
		"resend_count": rec.ResendCount,
		"expires_at":   rec.ExpiresAt,
		"delivered":    result.Delivered,
	}).Info("Код верификации выдан")
	return result, nil
}

// Check сверяет введённый код с активным. Порядок проверок: запись существует,
// код не погашен, окно не истекло, попытки остались; затем сравнение.
func (s *VerificationService) Check(ctx context.Context, subjectID, code string) (*CheckResult, error) {
	if err := checkSubjectID(subjectID); err != nil {
		return nil, err
	}
	var outcome CheckOutcome

	rec, err := s.ledger.Modify(ctx, subjectID, func(current *models.VerificationRecord) (*models.VerificationRecord, error) {
		now := s.now()
		switch {
		case current == nil:
			return nil, apperror.ErrVerificationNotFound
		case current.IsConsumed():
			return nil, apperror.ErrCodeConsumed
		case current.IsExpired(now):
			return nil, apperror.ErrExpired
		case current.AttemptsRemaining <= 0:
			return nil, apperror.ErrAttemptsExhausted
		}

		if s.hasher.Matches(subjectID, code, current.CodeHash) {
			outcome = CheckVerified
			current.ConsumedAt = &now
			return current, nil
		}
		outcome = CheckRejected
		current.AttemptsRemaining--
		return current, nil
	})
	if err != nil {
		err = s.translate(err)
		metrics.VerificationChecksTotal.WithLabelValues(string(apperror.CodeOf(err))).Inc()
		return nil, err
	}

	metrics.VerificationChecksTotal.WithLabelValues(string(outcome)).Inc()
	log := logger.L().WithFields(logrus.Fields{"subject_id": subjectID, "outcome": outcome})

	if outcome == CheckVerified {
		log.Info("Субъект подтверждён")
		if s.confirmer != nil {
			if err := s.confirmer.MarkVerified(ctx, subjectID); err != nil {
				log.WithError(err).Error("Не удалось отметить субъекта подтверждённым")
			}
		}
	} else {
		log.WithField("attempts_remaining", rec.AttemptsRemaining).Info("Неверный код")
	}

	return &CheckResult{
		SubjectID:         subjectID,
		Outcome:           outcome,
		AttemptsRemaining: rec.AttemptsRemaining,
	}, nil
}

// Status возвращает состояние эпизода по часам сервера.
func (s *VerificationService) Status(ctx context.Context, subjectID string) (*VerificationStatus, error) {
	if err := checkSubjectID(subjectID); err != nil {
		return nil, err
	}
	rec, err := s.ledger.Get(ctx, subjectID)
	if err != nil {
		return nil, s.translate(err)
	}

	now := s.now()
	remaining := rec.ExpiresAt.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	return &VerificationStatus{
		SubjectID:         subjectID,
		ExpiresAt:         rec.ExpiresAt,
		ServerTime:        now,
		SecondsRemaining:  int64(math.Ceil(remaining.Seconds())),
		AttemptsRemaining: rec.AttemptsRemaining,
		ResendsRemaining:  s.resendsRemaining(rec),
		Expired:           rec.IsExpired(now),
		Consumed:          rec.IsConsumed(),
	}, nil
}

// Restart завершает эпизод субъекта, после чего Issue начинает новый с полными бюджетами.
func (s *VerificationService) Restart(ctx context.Context, subjectID string) error {
	if err := checkSubjectID(subjectID); err != nil {
		return err
	}
	if err := s.ledger.Delete(ctx, subjectID); err != nil {
		return s.translate(err)
	}
	logger.L().WithField("subject_id", subjectID).Info("Эпизод верификации сброшен")
	return nil
}

func (s *VerificationService) lookupSubject(ctx context.Context, subjectID string) (*models.Subject, error) {
	if err := checkSubjectID(subjectID); err != nil {
		return nil, err
	}
	subject, err := s.identity.Lookup(ctx, subjectID)
	if err != nil {
		return nil, s.translate(err)
	}
	if subject.Verified {
		return nil, apperror.ErrAlreadyVerified
	}
	return subject, nil
}

func checkSubjectID(subjectID string) error {
	if err := validation.ValidateSubjectID(subjectID); err != nil {
		return apperror.New(apperror.ErrCodeValidation, err.Error()).WithDetail("subject_id", subjectID)
	}
	return nil
}

func (s *VerificationService) resendsRemaining(rec *models.VerificationRecord) int {
	if left := s.policy.MaxResends - rec.ResendCount; left > 0 {
		return left
	}
	return 0
}

// translate приводит ошибки хранилищ к таксономии apperror.
func (s *VerificationService) translate(err error) error {
	var appErr *apperror.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, common.ErrSubjectNotFound):
		return apperror.ErrSubjectNotFound
	case errors.Is(err, common.ErrVerificationNotFound):
		return apperror.ErrVerificationNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apperror.Wrap(err, apperror.ErrCodeInternal, "операция прервана")
	default:
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "ошибка хранилища верификации")
	}
}
