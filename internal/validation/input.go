package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/models"
)

// Константы валидации
const (
	MaxSubjectIDLength = 128
	MinPhoneDigits     = 10
	MaxPhoneDigits     = 15
	MaxAmountMinor     = int64(1_000_000_000_00) // миллиард в основных единицах
)

var (
	emailLocalRegex  = regexp.MustCompile(`^[a-z0-9._+-]+$`)
	emailDomainRegex = regexp.MustCompile(`^[a-z0-9.-]+\.[a-z]{2,}$`)
	subjectRefRegex  = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	currencyRegex    = regexp.MustCompile(`^[A-Z]{3}$`)
)

// ValidateLength проверяет длину строки.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateSubjectID проверяет формат идентификатора субъекта "kind:ref".
func ValidateSubjectID(subjectID string) error {
	if err := ValidateLength("идентификатор субъекта", subjectID, 3, MaxSubjectIDLength); err != nil {
		return err
	}

	kind, ref, ok := strings.Cut(subjectID, ":")
	if !ok {
		return fmt.Errorf("идентификатор субъекта должен иметь вид kind:id")
	}
	switch kind {
	case models.SubjectKindAccount, models.SubjectKindPasswordReset:
	default:
		return fmt.Errorf("неизвестный тип субъекта %q", kind)
	}
	if !subjectRefRegex.MatchString(ref) {
		return fmt.Errorf("идентификатор субъекта содержит недопустимые символы")
	}
	return nil
}

// ValidateEmail проверяет формат email.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email обязателен")
	}

	email = strings.ToLower(strings.TrimSpace(email))

	localPart, domainPart, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(domainPart, "@") {
		return fmt.Errorf("некорректный формат email")
	}

	if len(localPart) == 0 || len(localPart) > 64 {
		return fmt.Errorf("локальная часть email должна быть от 1 до 64 символов")
	}
	if len(domainPart) == 0 || len(domainPart) > 255 {
		return fmt.Errorf("доменная часть email должна быть от 1 до 255 символов")
	}

	if !emailLocalRegex.MatchString(localPart) {
		return fmt.Errorf("локальная часть email содержит недопустимые символы")
	}
	if !emailDomainRegex.MatchString(domainPart) {
		return fmt.Errorf("доменная часть email имеет некорректный формат")
	}

	return nil
}

// NormalizePhone оставляет в номере только цифры: "+7 (701) 123-45-67" -> "77011234567".
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidatePhone проверяет номер телефона в международном формате.
func ValidatePhone(phone string) error {
	if strings.TrimSpace(phone) == "" {
		return fmt.Errorf("номер телефона обязателен")
	}
	digits := NormalizePhone(phone)
	if len(digits) < MinPhoneDigits || len(digits) > MaxPhoneDigits {
		return fmt.Errorf("номер телефона должен содержать от %d до %d цифр", MinPhoneDigits, MaxPhoneDigits)
	}
	return nil
}

// ValidateDestination проверяет адрес доставки кода для канала.
func ValidateDestination(channel, destination string) error {
	switch channel {
	case models.ChannelEmail:
		return ValidateEmail(destination)
	case models.ChannelSMS:
		return ValidatePhone(destination)
	default:
		return fmt.Errorf("неизвестный канал доставки %q", channel)
	}
}

// ValidateCurrency проверяет код валюты ISO 4217 в верхнем регистре.
func ValidateCurrency(currency string) error {
	if !currencyRegex.MatchString(currency) {
		return fmt.Errorf("валюта должна быть кодом ISO 4217")
	}
	return nil
}

// ValidateAmountMinor проверяет сумму сделки в минимальных единицах валюты.
func ValidateAmountMinor(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("сумма должна быть положительной")
	}
	if amount > MaxAmountMinor {
		return fmt.Errorf("сумма превышает допустимый максимум")
	}
	return nil
}
