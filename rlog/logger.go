// Package rlog provides structured per-rank logging.
//
// Two variants are available, mirroring the split between the reactor hot
// path and CLI/debug surfaces: Logger wraps a non-sugared zap.Logger and
// always carries the owning rank as a field; Sugar() escapes to a
// printf-style SugaredLogger for CLI output.
package rlog

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pithecene-io/derp/idset"
)

// Logger is a structured logger scoped to a single rank.
type Logger struct {
	zap *zap.Logger
}

// SugaredLogger provides printf-style logging for CLI/debug surfaces.
type SugaredLogger struct {
	sugar *zap.SugaredLogger
}

// New creates a rank-scoped logger writing JSON to os.Stderr.
func New(rank idset.Rank) *Logger {
	return newWithWriter(rank, os.Stderr)
}

// WithOutput returns a new logger with a different output writer.
func (l *Logger) WithOutput(w io.Writer) *Logger {
	core := jsonCore(w)
	return &Logger{zap: l.zap.WithOptions(zap.WrapCore(func(zapcore.Core) zapcore.Core { return core }))}
}

// WithJob returns a logger with an additional job_id field, for use inside
// per-job state machine code.
func (l *Logger) WithJob(jobID uint64) *Logger {
	return &Logger{zap: l.zap.With(zap.Uint64("job_id", jobID))}
}

func newWithWriter(rank idset.Rank, w io.Writer) *Logger {
	core := jsonCore(w)
	return &Logger{zap: zap.New(core).With(zap.Uint32("rank", uint32(rank)))}
}

func jsonCore(w io.Writer) zapcore.Core {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	}
	return zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(w), zapcore.DebugLevel)
}

// Debug logs a debug message with structured fields.
func (l *Logger) Debug(message string, fields map[string]any) { l.zap.Debug(message, zap.Any("fields", fields)) }

// Info logs an info message with structured fields.
func (l *Logger) Info(message string, fields map[string]any) { l.zap.Info(message, zap.Any("fields", fields)) }

// Warn logs a warning message with structured fields.
func (l *Logger) Warn(message string, fields map[string]any) { l.zap.Warn(message, zap.Any("fields", fields)) }

// Error logs an error message with structured fields.
func (l *Logger) Error(message string, fields map[string]any) { l.zap.Error(message, zap.Any("fields", fields)) }

// Sugar returns a SugaredLogger for printf-style CLI/debug logging.
func (l *Logger) Sugar() *SugaredLogger { return &SugaredLogger{sugar: l.zap.Sugar()} }

// Infof logs an info message with printf-style formatting.
func (s *SugaredLogger) Infof(template string, args ...any) { s.sugar.Infof(template, args...) }

// Warnf logs a warning message with printf-style formatting.
func (s *SugaredLogger) Warnf(template string, args ...any) { s.sugar.Warnf(template, args...) }

// Errorf logs an error message with printf-style formatting.
func (s *SugaredLogger) Errorf(template string, args ...any) { s.sugar.Errorf(template, args...) }
