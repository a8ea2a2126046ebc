package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"room_occupancy/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global logger instances
	base    = newConsoleLogger()
	sugar   = base.Sugar()
	level   = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	logFile *os.File
	logPath string
)

// LogLevel constants
const (
	DEBUG = "debug"
	INFO  = "info"
	WARN  = "warn"
	ERROR = "error"
)

func newConsoleLogger() *zap.Logger {
	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.Lock(os.Stderr), level)
	return zap.New(core)
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Init initializes the logging system using configuration
func Init(cfg *config.Config) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current working directory: %w", err)
	}

	level.SetLevel(parseLevel(cfg.Logging.LogLevel))

	logPath = cfg.Logging.LogFile
	if !filepath.IsAbs(logPath) {
		logPath = filepath.Join(cwd, logPath)
	}
	logFile, err = os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", logPath, err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var fileEnc zapcore.Encoder
	if cfg.Logging.Format == "json" {
		fileEnc = zapcore.NewJSONEncoder(encCfg)
	} else {
		fileEnc = zapcore.NewConsoleEncoder(encCfg)
	}

	cores := []zapcore.Core{zapcore.NewCore(fileEnc, zapcore.AddSync(logFile), level)}
	if cfg.Logging.LogToConsole {
		consoleCfg := zap.NewDevelopmentEncoderConfig()
		consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.Lock(os.Stdout), level))
	}

	base = zap.New(zapcore.NewTee(cores...))
	sugar = base.Sugar()

	sugar.Infof("=== Session started at %s ===", time.Now().Format("2006-01-02 15:04:05"))
	sugar.Infof("Log file: %s", logPath)
	sugar.Infof("Log level: %s", level.Level())
	sugar.Infof("Log to console: %t", cfg.Logging.LogToConsole)
	LogDivider()

	return nil
}

// Close flushes and closes the log file
func Close() error {
	if logFile == nil {
		return nil
	}
	LogDivider()
	sugar.Infof("=== Session ended at %s ===", time.Now().Format("2006-01-02 15:04:05"))
	_ = base.Sync()
	err := logFile.Close()
	logFile = nil
	base = newConsoleLogger()
	sugar = base.Sugar()
	return err
}

// L returns the structured logger for components that log with fields
func L() *zap.Logger { return base }

// SetLogger swaps the underlying logger; tests pass zap.NewNop() or an
// observer core. Passing nil restores the console logger.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = newConsoleLogger()
	}
	base = l
	sugar = l.Sugar()
}

func trim(format string) string {
	return strings.TrimRight(format, "\n")
}

// Printf logs formatted text at info level
func Printf(format string, v ...interface{}) {
	sugar.Infof(trim(format), v...)
}

// Println logs a line at info level
func Println(v ...interface{}) {
	sugar.Info(strings.TrimRight(fmt.Sprintln(v...), "\n"))
}

// Debugf logs formatted debug text
func Debugf(format string, v ...interface{}) {
	sugar.Debugf(trim(format), v...)
}

// Warnf logs formatted warning text
func Warnf(format string, v ...interface{}) {
	sugar.Warnf(trim(format), v...)
}

// Errorf logs formatted error text
func Errorf(format string, v ...interface{}) {
	sugar.Errorf(trim(format), v...)
}

// Fatalf logs a fatal error, closes the log file and exits
func Fatalf(format string, v ...interface{}) {
	sugar.Errorf("FATAL: "+trim(format), v...)
	_ = Close()
	os.Exit(1)
}

// LogCommand logs the command being executed
func LogCommand(command string, args []string) {
	if len(args) > 1 {
		Printf("Command executed: %s %v", command, args[1:])
		return
	}
	Printf("Command executed: %s", command)
}

// LogDivider prints a divider line for better log organization
func LogDivider() {
	Println(strings.Repeat("-", 60))
}

// LogResult logs a result with status
func LogResult(operation string, success bool, details string) {
	status := "SUCCESS"
	if !success {
		status = "FAILED"
	}
	if details != "" {
		Printf("%s: %s - %s", operation, status, details)
		return
	}
	Printf("%s: %s", operation, status)
}

// LogProgress logs progress information
func LogProgress(current, total int, item string) {
	Printf("Progress: [%d/%d] %s", current, total, item)
}

// GetLogFileName returns the current log file name
func GetLogFileName() string {
	if logPath != "" {
		return logPath
	}
	return "result.log"
}
