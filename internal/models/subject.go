package models

// Типы субъектов верификации
const (
	SubjectKindAccount       = "account"
	SubjectKindPasswordReset = "password_reset"
)

// Каналы доставки кода
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// Subject описывает сущность, которую подтверждает одноразовый код:
// аккаунт при активации или запрос на сброс пароля.
type Subject struct {
	ID          string `db:"id" json:"id"`
	Kind        string `db:"kind" json:"kind"`
	Channel     string `db:"channel" json:"channel"`
	Destination string `db:"destination" json:"-"`
	Verified    bool   `db:"verified" json:"verified"`
}
