package logging

import (
	"errors"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
)

const flushTimeout = 2 * time.Second

// SentryHook forwards logrus entries at the configured levels to Sentry.
type SentryHook struct {
	hub    *sentry.Hub
	levels []logrus.Level
}

// NewSentryHook builds a hook reporting to hub.
func NewSentryHook(hub *sentry.Hub, levels []logrus.Level) *SentryHook {
	return &SentryHook{hub: hub, levels: levels}
}

// Levels implements logrus.Hook.
func (h *SentryHook) Levels() []logrus.Level {
	return h.levels
}

// Fire implements logrus.Hook. Entries carrying an error field are reported as
// exceptions, the rest as messages.
func (h *SentryHook) Fire(entry *logrus.Entry) error {
	h.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentryLevel(entry.Level))
		for key, value := range entry.Data {
			if key == logrus.ErrorKey {
				continue
			}
			scope.SetExtra(key, value)
		}

		if err, ok := entry.Data[logrus.ErrorKey].(error); ok && err != nil {
			h.hub.CaptureException(errors.Join(errors.New(entry.Message), err))
			return
		}
		h.hub.CaptureMessage(entry.Message)
	})
	if entry.Level <= logrus.FatalLevel {
		h.hub.Flush(flushTimeout)
	}
	return nil
}

func sentryLevel(level logrus.Level) sentry.Level {
	switch level {
	case logrus.PanicLevel, logrus.FatalLevel:
		return sentry.LevelFatal
	case logrus.ErrorLevel:
		return sentry.LevelError
	case logrus.WarnLevel:
		return sentry.LevelWarning
	case logrus.InfoLevel:
		return sentry.LevelInfo
	default:
		return sentry.LevelDebug
	}
}
