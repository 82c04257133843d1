package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LogLevel определяет уровни логирования
type LogLevel int

const (
	TRACE LogLevel = iota
	DEBUG
	INFO
	WARN
	ERROR
)

// String возвращает строковое представление уровня логирования
func (l LogLevel) String() string {
	switch l {
	case TRACE:
		return "TRACE"
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger represents one component's logging sink: a console writer and an
// optional file writer, each with its own minimum level. Created through
// NewLogger or fetched per-component via LoggerManager.GetLogger.
type Logger struct {
	component string

	mu              sync.Mutex
	consoleLogger   *log.Logger
	fileLogger      *log.Logger
	file            *os.File
	minConsoleLevel LogLevel
	minFileLevel    LogLevel
}

var (
	defaultOnce   sync.Once
	defaultLogger *Logger
)

// Default returns the process-wide fallback logger (component "default"),
// console-only. Used by packages that are not registered with
// LoggerManager, e.g. a library constructor given a nil *Logger.
func Default() *Logger {
	defaultOnce.Do(func() {
		defaultLogger = &Logger{
			component:       "default",
			consoleLogger:   log.New(os.Stdout, "", log.LstdFlags),
			minConsoleLevel: INFO,
			minFileLevel:    ERROR,
		}
	})
	return defaultLogger
}

// NewLogger creates a logger for component that writes INFO+ to stdout and
// everything to a timestamped file under logs/<component>_<timestamp>.log.
func NewLogger(component string) (*Logger, error) {
	if err := os.MkdirAll("logs", 0755); err != nil {
		return nil, fmt.Errorf("create logs directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	filename := filepath.Join("logs", fmt.Sprintf("%s_%s.log", component, timestamp))

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	return &Logger{
		component:       component,
		consoleLogger:   log.New(os.Stdout, "", log.LstdFlags),
		fileLogger:      log.New(file, "", log.LstdFlags),
		file:            file,
		minConsoleLevel: INFO,
		minFileLevel:    TRACE,
	}, nil
}

// Close releases the logger's file handle, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// SetLevels overrides the minimum level written to console and file.
func (l *Logger) SetLevels(console, file LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minConsoleLevel = console
	l.minFileLevel = file
}

// log formats msg plus an even list of key/value pairs ("key1", v1, "key2",
// v2, ...) as msg key1=v1 key2=v2, matching the terse style the teacher's
// protocol/hexdump loggers already use for structured detail.
func (l *Logger) log(level LogLevel, msg string, kv ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	line := fmt.Sprintf("[%s] [%s] %s%s", level.String(), l.component, msg, formatKV(kv))

	if l.fileLogger != nil && level >= l.minFileLevel {
		l.fileLogger.Println(line)
	}
	if level >= l.minConsoleLevel {
		l.consoleLogger.Println(line)
	}
}

func formatKV(kv []interface{}) string {
	if len(kv) == 0 {
		return ""
	}
	var b strings.Builder
	for i := 0; i+1 < len(kv); i += 2 {
		b.WriteByte(' ')
		fmt.Fprintf(&b, "%v=%v", kv[i], kv[i+1])
	}
	if len(kv)%2 == 1 {
		b.WriteByte(' ')
		fmt.Fprintf(&b, "%v", kv[len(kv)-1])
	}
	return b.String()
}

// Trace logs at TRACE level with structured key/value pairs.
func (l *Logger) Trace(msg string, kv ...interface{}) { l.log(TRACE, msg, kv...) }

// Debug logs at DEBUG level with structured key/value pairs.
func (l *Logger) Debug(msg string, kv ...interface{}) { l.log(DEBUG, msg, kv...) }

// Info logs at INFO level with structured key/value pairs.
func (l *Logger) Info(msg string, kv ...interface{}) { l.log(INFO, msg, kv...) }

// Warn logs at WARN level with structured key/value pairs.
func (l *Logger) Warn(msg string, kv ...interface{}) { l.log(WARN, msg, kv...) }

// Error logs at ERROR level with structured key/value pairs.
func (l *Logger) Error(msg string, kv ...interface{}) { l.log(ERROR, msg, kv...) }

// --- Package-level global logger (legacy printf-style API) ---------------
//
// Kept alongside the per-component Logger type above for code that logs
// before a World/Server has constructed its own component loggers (e.g.
// init-time diagnostics in cmd/server).

var globalLogger *Logger

// InitLogger инициализирует систему логирования
func InitLogger() error {
	logger, err := NewLogger("server")
	if err != nil {
		return err
	}
	globalLogger = logger
	return nil
}

// CloseLogger закрывает систему логирования
func CloseLogger() {
	if globalLogger != nil {
		globalLogger.Close()
	}
}

// LogTrace логирует сообщение уровня TRACE
func LogTrace(format string, args ...interface{}) { logMessage(TRACE, format, args...) }

// LogDebug логирует сообщение уровня DEBUG
func LogDebug(format string, args ...interface{}) { logMessage(DEBUG, format, args...) }

// LogInfo логирует сообщение уровня INFO
func LogInfo(format string, args ...interface{}) { logMessage(INFO, format, args...) }

// LogWarn логирует сообщение уровня WARN
func LogWarn(format string, args ...interface{}) { logMessage(WARN, format, args...) }

// LogError логирует сообщение уровня ERROR
func LogError(format string, args ...interface{}) { logMessage(ERROR, format, args...) }

func logMessage(level LogLevel, format string, args ...interface{}) {
	if globalLogger == nil {
		globalLogger = Default()
	}
	globalLogger.log(level, fmt.Sprintf(format, args...))
}

// LogMessage логирует детали сообщения протокола с hex-дампом полезной нагрузки
func LogMessage(connID string, direction string, msgType interface{}, payload []byte) {
	LogDebug("=== %s MESSAGE %s ===", direction, connID)
	LogDebug("Type: %v", msgType)
	LogDebug("Size: %d bytes", len(payload))

	if len(payload) > 0 {
		LogDebug("Hex dump:")
		LogDebug("%s", HexDump(payload))
	}
}

// HexDump создает hex дамп данных
func HexDump(data []byte) string {
	if len(data) == 0 {
		return "No data"
	}

	size := len(data)
	if size > 256 {
		size = 256
	}
	return fmt.Sprintf("% x", data[:size])
}

// LogProtocolError логирует ошибки десериализации протокола
func LogProtocolError(connID string, err error, data []byte) {
	LogError("Protocol error from %s: %v", connID, err)
	if len(data) > 0 {
		LogError("Raw data (%d bytes):", len(data))
		LogError("%s", HexDump(data))
	}
}
