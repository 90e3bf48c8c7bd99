// Package logging configures the process-wide logrus logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Params selects the logger output, format and error reporting.
type Params struct {
	LogFileName   string
	LogToStdout   bool
	LogLevel      string
	LogFormatJSON bool
	Environment   string
	SentryDSN     string
	ServerName    string
}

// Setup applies params to the standard logrus logger. It returns a flush
// function to call before the process exits.
func Setup(params Params) func() {
	if params.LogFormatJSON {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
	logrus.SetLevel(GetLevel(params.LogLevel))

	flush := func() {}
	if params.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:         params.SentryDSN,
			Environment: params.Environment,
			ServerName:  params.ServerName,
			BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
				if event.Request != nil && event.Request.Headers != nil {
					delete(event.Request.Headers, "Authorization")
				}
				return event
			},
		})
		if err != nil {
			logrus.Errorf("sentry.Init: %s", err)
		} else {
			logrus.AddHook(NewSentryHook(sentry.CurrentHub(), []logrus.Level{
				logrus.PanicLevel,
				logrus.FatalLevel,
				logrus.ErrorLevel,
			}))
			flush = func() { sentry.Flush(flushTimeout) }
			logrus.Infoln("sentry set up successfully")
		}
	}

	if params.LogFileName == "" {
		logrus.SetOutput(os.Stdout)
		return flush
	}

	if !strings.HasSuffix(params.LogFileName, ".log") {
		params.LogFileName += ".log"
	}
	rotated := &lumberjack.Logger{
		Filename:   params.LogFileName,
		MaxSize:    50, // megabytes
		MaxBackups: 10,
		Compress:   true,
	}

	if params.LogToStdout {
		logrus.SetOutput(io.MultiWriter(os.Stdout, rotated))
	} else {
		logrus.SetOutput(rotated)
	}
	return func() {
		flush()
		_ = rotated.Close()
	}
}

// GetLevel maps a level name to a logrus level, defaulting to info.
func GetLevel(level string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return logrus.TraceLevel
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	default:
		return logrus.InfoLevel
	}
}
