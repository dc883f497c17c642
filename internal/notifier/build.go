package notifier

import (
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/config"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/logger"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/models"
)

// New собирает роутер каналов из конфигурации. Канал без настроек работает в dry-run.
func New(smtp config.SMTPConfig, sms config.SMSConfig) *Router {
	r := NewRouter()

	if smtp.Host != "" {
		r.Handle(models.ChannelEmail, NewEmailSender(smtp.Host, smtp.Port, smtp.User, smtp.Password, smtp.From))
	} else {
		logger.L().Warn("SMTP_HOST не задан, письма с кодами не отправляются (dry-run)")
		r.Handle(models.ChannelEmail, LogSender{Channel: models.ChannelEmail})
	}

	if sms.APIURL != "" && sms.APIKey != "" {
		r.Handle(models.ChannelSMS, NewSMSSender(sms.APIURL, sms.APIKey, sms.Sender))
	} else {
		logger.L().Warn("SMS_API_URL не задан, SMS с кодами не отправляются (dry-run)")
		r.Handle(models.ChannelSMS, LogSender{Channel: models.ChannelSMS})
	}

	return r
}
