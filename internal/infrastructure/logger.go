package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"optchain/internal/config"
)

var (
	loggerMu   sync.Mutex
	rootLogger *slog.Logger
	// logFile is set when output includes a file and closed by CloseLogFile
	logFile *os.File
)

// InitializeLogger builds the process logger from cfg and installs it as
// the slog default. Once a logger exists, later calls return it unchanged.
func InitializeLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	if rootLogger != nil {
		return rootLogger, nil
	}

	out, file, err := logWriter(cfg)
	if err != nil {
		return nil, err
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{
		AddSource: true,
		Level:     parseLogLevel(cfg.Level),
	})
	rootLogger = slog.New(&cycleHandler{Handler: handler})
	logFile = file
	slog.SetDefault(rootLogger)

	return rootLogger, nil
}

// GetLogger returns the process logger, or slog.Default before
// InitializeLogger has run.
func GetLogger() *slog.Logger {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	if rootLogger == nil {
		return slog.Default()
	}
	return rootLogger
}

// logWriter resolves cfg.Output to a writer. The returned file is non-nil
// when the writer includes the log file.
func logWriter(cfg config.LoggingConfig) (io.Writer, *os.File, error) {
	mode := strings.ToLower(cfg.Output)
	if mode != "file" && mode != "both" {
		return os.Stdout, nil, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file %s: %w", cfg.FilePath, err)
	}

	if mode == "both" {
		return io.MultiWriter(os.Stdout, file), file, nil
	}
	return file, file, nil
}

// parseLogLevel accepts slog level names in any case plus "warning".
// Anything else is info.
func parseLogLevel(level string) slog.Level {
	if strings.EqualFold(level, "warning") {
		return slog.LevelWarn
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// cycleHandler stamps records with the collection cycle ID and the active
// span's trace ID taken from the record's context.
type cycleHandler struct {
	slog.Handler
}

func (h *cycleHandler) Handle(ctx context.Context, r slog.Record) error {
	if cycleID := GetCycleID(ctx); cycleID != "" {
		r.AddAttrs(slog.String("cycle_id", cycleID))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(slog.String("trace_id", sc.TraceID().String()))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *cycleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &cycleHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *cycleHandler) WithGroup(name string) slog.Handler {
	return &cycleHandler{Handler: h.Handler.WithGroup(name)}
}

// CloseLogFile closes the log file opened by InitializeLogger, if any.
func CloseLogFile() error {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}

// ResetLoggerForTesting drops the process logger so the next
// InitializeLogger call builds a new one.
func ResetLoggerForTesting() {
	CloseLogFile()

	loggerMu.Lock()
	rootLogger = nil
	loggerMu.Unlock()
}
