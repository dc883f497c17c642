package goroutine

import (
	"context"
	"runtime/debug"

	"github.com/sirupsen/logrus"

	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/logger"
)

// recoverPanic логирует panic горутины вместе со стеком.
func recoverPanic(name string) {
	if r := recover(); r != nil {
		logger.L().WithFields(logrus.Fields{
			"goroutine": name,
			"panic":     r,
			"stack":     string(debug.Stack()),
		}).Error("Panic в фоновой горутине")
	}
}

// SafeGo запускает именованную горутину с обработкой panic.
func SafeGo(name string, fn func()) {
	go func() {
		defer recoverPanic(name)
		fn()
	}()
}

// SafeGoWithContext запускает горутину с контекстом и обработкой panic.
func SafeGoWithContext(ctx context.Context, name string, fn func(context.Context)) {
	go func() {
		defer recoverPanic(name)
		fn(ctx)
	}()
}
