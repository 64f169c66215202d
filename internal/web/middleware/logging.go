package middleware

import (
	"fmt"
	"net/http"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// RequestLogger writes one access log line per request through log, so access
// logs follow the configured level and format.
func RequestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return chiMiddleware.RequestLogger(&requestLogFormatter{log: log})
}

type requestLogFormatter struct {
	log logrus.FieldLogger
}

func (f *requestLogFormatter) NewLogEntry(r *http.Request) chiMiddleware.LogEntry {
	return &requestLogEntry{log: f.log.WithFields(logrus.Fields{
		"request_id":  chiMiddleware.GetReqID(r.Context()),
		"method":      r.Method,
		"path":        r.URL.Path,
		"remote_addr": r.RemoteAddr,
	})}
}

type requestLogEntry struct {
	log logrus.FieldLogger
}

func (e *requestLogEntry) Write(status, size int, _ http.Header, elapsed time.Duration, _ any) {
	entry := e.log.WithFields(logrus.Fields{
		"status":      status,
		"bytes":       size,
		"duration_ms": elapsed.Milliseconds(),
	})
	switch {
	case status >= http.StatusInternalServerError:
		entry.Error("request completed")
	case status >= http.StatusBadRequest:
		entry.Warn("request completed")
	default:
		entry.Info("request completed")
	}
}

func (e *requestLogEntry) Panic(v any, stack []byte) {
	e.log.WithFields(logrus.Fields{
		"panic": fmt.Sprint(v),
		"stack": string(stack),
	}).Error("request panicked")
}
