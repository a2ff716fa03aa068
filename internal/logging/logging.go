// Package logging wires structured logging (sirupsen/logrus) across BYOKEY,
// plus the request-id propagation and verbose-snippet gating the dispatcher
// and executors rely on in their hot paths.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type requestIDKey struct{}

var verboseEnabled atomic.Bool

func init() {
	if env := strings.ToLower(strings.TrimSpace(os.Getenv("BYOKEY_VERBOSE_LOGGING"))); env != "" {
		switch env {
		case "1", "true", "yes", "y", "on":
			verboseEnabled.Store(true)
		case "0", "false", "no", "n", "off":
			verboseEnabled.Store(false)
		}
	}
}

// VerboseEnabled reports whether request/response snippet capture is enabled.
func VerboseEnabled() bool { return verboseEnabled.Load() }

// SetVerboseEnabled toggles snippet capture at runtime. It does not change log level.
func SetVerboseEnabled(enabled bool) { verboseEnabled.Store(enabled) }

// Configure points logrus at either stderr or a rotating file, depending on path.
// An empty path keeps logs on stderr in text format, which is friendlier for local dev.
func Configure(level string, filePath string, maxSizeMB, maxBackups, maxAgeDays int) {
	lvl, err := log.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)

	if strings.TrimSpace(filePath) == "" {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
		log.SetOutput(os.Stderr)
		return
	}

	log.SetFormatter(&log.JSONFormatter{})
	var w io.Writer = &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   true,
	}
	log.SetOutput(w)
}

// WithRequestID returns a child context carrying requestID for downstream log fields.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// GetRequestID extracts the request ID stashed by WithRequestID, if any.
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(requestIDKey{}).(string)
	return v
}

// GetGinRequestID reads a request ID off a gin context's header, for servers
// that run behind a reverse proxy setting X-Request-Id upstream of BYOKEY.
func GetGinRequestID(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.GetHeader("X-Request-Id"))
}

// Fields builds a base logrus.Fields set for a provider/account/request triple.
// Call sites add operation-specific fields on top.
func Fields(provider, accountID, requestID string) log.Fields {
	f := log.Fields{}
	if provider != "" {
		f["provider"] = provider
	}
	if accountID != "" {
		f["account_id"] = accountID
	}
	if requestID != "" {
		f["request_id"] = requestID
	}
	return f
}
