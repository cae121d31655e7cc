package log

import (
	"net/url"
	"os"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/patrickmn/go-cache"
)

// Loggers are kept per request ID so that context added early in a job's
// lifetime (video id, storage key, ...) shows up on every later line for
// that job.
var loggerCache *cache.Cache

const loggerCacheExpiry = 6 * time.Hour

func init() {
	loggerCache = cache.New(loggerCacheExpiry, 10*time.Minute)
}

// AddContext permanently attaches key/value pairs to the logger for this
// request ID. Any future logging for the same ID includes them.
func AddContext(requestID string, keyvals ...interface{}) {
	_ = loggerCache.Add(requestID, kitlog.With(getLogger(requestID), keyvals...), loggerCacheExpiry)
}

func Log(requestID string, message string, keyvals ...interface{}) {
	_ = kitlog.With(getLogger(requestID), "msg", message).Log(keyvals...)
}

func LogError(requestID string, message string, err error, keyvals ...interface{}) {
	msgLogger := kitlog.With(getLogger(requestID), "msg", message)
	_ = kitlog.With(msgLogger, "err", err.Error()).Log(keyvals...)
}

// LogNoRequestID is for the rare paths with no request ID available; put as
// much context into the message itself as possible.
func LogNoRequestID(message string, keyvals ...interface{}) {
	_ = kitlog.With(newLogger(), "msg", message).Log(keyvals...)
}

// Fatal logs and exits. Startup wiring only.
func Fatal(message string, keyvals ...interface{}) {
	LogNoRequestID(message, keyvals...)
	os.Exit(1)
}

func getLogger(requestID string) kitlog.Logger {
	if logger, found := loggerCache.Get(requestID); found {
		return logger.(kitlog.Logger)
	}
	logger := kitlog.With(newLogger(), "request_id", requestID)
	if err := loggerCache.Add(requestID, logger, loggerCacheExpiry); err != nil {
		_ = logger.Log("msg", "error adding logger to cache", "request_id", requestID)
	}
	return logger
}

func newLogger() kitlog.Logger {
	logger := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stderr))
	return kitlog.With(logger, "ts", kitlog.DefaultTimestampUTC)
}

// RedactURL strips credentials and signing query params from a URL before it
// is logged.
func RedactURL(s string) string {
	u, err := url.Parse(s)
	if err != nil {
		return "REDACTED"
	}
	u.User = nil
	if u.RawQuery != "" {
		u.RawQuery = "REDACTED"
	}
	return u.String()
}
