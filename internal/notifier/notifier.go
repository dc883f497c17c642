// Package notifier доставляет коды верификации по email и SMS.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/logger"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/validation"
)

var (
	// ErrUnsupportedChannel канал субъекта не обслуживается ни одним отправителем.
	ErrUnsupportedChannel = errors.New("notifier: unsupported channel")
	// ErrInvalidDestination адрес получателя не подходит для канала.
	ErrInvalidDestination = errors.New("notifier: invalid destination")
)

// ChannelSender доставляет код в один канал.
type ChannelSender interface {
	Send(ctx context.Context, destination, code string) error
}

// Router выбирает отправителя по каналу субъекта.
type Router struct {
	senders map[string]ChannelSender
}

func NewRouter() *Router {
	return &Router{senders: make(map[string]ChannelSender)}
}

// Handle регистрирует отправителя для канала.
func (r *Router) Handle(channel string, sender ChannelSender) *Router {
	r.senders[channel] = sender
	return r
}

func (r *Router) Send(ctx context.Context, channel, destination, code string) error {
	sender, ok := r.senders[channel]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedChannel, channel)
	}
	if err := validation.ValidateDestination(channel, destination); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDestination, err)
	}
	return sender.Send(ctx, destination, code)
}

// LogSender режим dry-run: вместо доставки пишет в лог маскированного получателя.
type LogSender struct {
	Channel string
}

func (s LogSender) Send(_ context.Context, destination, _ string) error {
	logger.L().WithFields(logrus.Fields{
		"channel":     s.Channel,
		"destination": Mask(destination),
	}).Info("[dry-run] код верификации не отправлен")
	return nil
}

// Mask скрывает большую часть адреса или номера для логов.
func Mask(destination string) string {
	if at := strings.IndexByte(destination, '@'); at > 0 {
		return destination[:1] + "***" + destination[at:]
	}
	if len(destination) <= 4 {
		return "***"
	}
	return "***" + destination[len(destination)-4:]
}
