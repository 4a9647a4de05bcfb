package logger

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is a minimum severity, parsed from config by ParseLevel.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var zapLevels = map[Level]zapcore.Level{
	DEBUG: zapcore.DebugLevel,
	INFO:  zapcore.InfoLevel,
	WARN:  zapcore.WarnLevel,
	ERROR: zapcore.ErrorLevel,
}

// ParseLevel maps a config string to a Level. Unknown values map to INFO.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	}
	return INFO
}

// Logger provides structured logging with optional PII redaction. Fields are
// passed as alternating key/value pairs.
type Logger struct {
	zl        *zap.Logger
	level     zap.AtomicLevel
	redactPII bool
}

var defaultLogger = New(os.Stderr, INFO, "json")

// New builds a logger writing to w. format is "json" or "console".
func New(w io.Writer, level Level, format string) *Logger {
	atom := zap.NewAtomicLevelAt(zapLevels[level])

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.MessageKey = "msg"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var enc zapcore.Encoder
	if format == "console" {
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		enc = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(w), atom)
	return &Logger{zl: zap.New(core), level: atom, redactPII: true}
}

// Configure replaces the default logger.
func Configure(level, format string) {
	defaultLogger = New(os.Stderr, ParseLevel(level), format)
}

// SetDefault installs l as the package-level logger.
func SetDefault(l *Logger) { defaultLogger = l }

// Default returns the package-level logger.
func Default() *Logger { return defaultLogger }

func Debug(msg string, fields ...interface{}) { defaultLogger.Debug(msg, fields...) }

// Info logs msg with alternating key/value fields on the default logger.
func Info(msg string, fields ...interface{}) { defaultLogger.Info(msg, fields...) }

func Warn(msg string, fields ...interface{}) { defaultLogger.Warn(msg, fields...) }

func Error(msg string, fields ...interface{}) { defaultLogger.Error(msg, fields...) }

// With returns a child of the default logger carrying the given fields.
func With(fields ...interface{}) *Logger { return defaultLogger.With(fields...) }

// With returns a child logger carrying the given fields on every entry.
func (l *Logger) With(fields ...interface{}) *Logger {
	return &Logger{
		zl:        l.zl.With(l.toZap(fields)...),
		level:     l.level,
		redactPII: l.redactPII,
	}
}

func (l *Logger) Debug(msg string, fields ...interface{}) { l.zl.Debug(msg, l.toZap(fields)...) }
func (l *Logger) Info(msg string, fields ...interface{})  { l.zl.Info(msg, l.toZap(fields)...) }
func (l *Logger) Warn(msg string, fields ...interface{})  { l.zl.Warn(msg, l.toZap(fields)...) }
func (l *Logger) Error(msg string, fields ...interface{}) { l.zl.Error(msg, l.toZap(fields)...) }

// Sync flushes buffered entries.
func (l *Logger) Sync() error { return l.zl.Sync() }

func (l *Logger) toZap(fields []interface{}) []zap.Field {
	out := make([]zap.Field, 0, len(fields)/2)
	for i := 0; i < len(fields)-1; i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		switch v := fields[i+1].(type) {
		case error:
			val := v.Error()
			if l.redactPII {
				val = redactPIIValue(key, val)
			}
			out = append(out, zap.String(key, val))
		case int:
			out = append(out, zap.Int(key, v))
		case int64:
			out = append(out, zap.Int64(key, v))
		case float64:
			out = append(out, zap.Float64(key, v))
		case bool:
			out = append(out, zap.Bool(key, v))
		default:
			val := fmt.Sprintf("%v", v)
			if l.redactPII {
				val = redactPIIValue(key, val)
			}
			out = append(out, zap.String(key, val))
		}
	}
	return out
}

var emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

func redactPIIValue(key, val string) string {
	key = strings.ToLower(key)
	if strings.Contains(key, "email") {
		return RedactEmail(val)
	}
	// Other fields can still embed an address, e.g. in error text.
	return emailRegex.ReplaceAllStringFunc(val, RedactEmail)
}

// RedactEmail keeps the first two characters of the local part and the
// domain. Shorter local parts are masked entirely.
func RedactEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return "***@***"
	}
	local, domain := email[:at], email[at+1:]
	if len(local) > 2 {
		return local[:2] + "***@" + domain
	}
	return "***@" + domain
}
