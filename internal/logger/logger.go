package logger

import (
	"io"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var Log *logrus.Logger

var discard = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()

// Options параметры глобального логгера.
type Options struct {
	Level string
	// Text включает человекочитаемый формат вместо JSON.
	Text bool
	// File пишет логи в файл с ротацией; пустая строка оставляет stderr.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Init настраивает глобальный логгер. Неизвестный уровень понижается до info.
func Init(opts Options) {
	l := logrus.New()

	lvl, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	if opts.Text {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{})
	}

	if opts.File != "" {
		l.SetOutput(&lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   true,
		})
	}

	Log = l
}

// L возвращает глобальный логгер либо заглушку, если Init ещё не вызывался (тесты).
func L() *logrus.Logger {
	if Log == nil {
		return discard
	}
	return Log
}
