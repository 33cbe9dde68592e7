// Package audit writes one human-readable line per accepted message, so an
// operator tailing the listener sees what it is capturing.
package audit

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/msaad732/meme-coin/internal/models"
)

// Logger is the audit stream.
type Logger struct {
	z *zap.Logger
}

// New builds a console-encoded audit logger writing to outputPath, which may
// be "stdout", "stderr" or a file path.
func New(outputPath string) (*Logger, error) {
	if outputPath == "" {
		outputPath = "stdout"
	}

	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.Sampling = nil
	cfg.DisableCaller = true
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.OutputPaths = []string{outputPath}
	cfg.ErrorOutputPaths = []string{"stderr"}

	z, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building audit logger: %w", err)
	}
	return &Logger{z: z.Named("audit")}, nil
}

// NewWithCore wraps an existing core; tests use it with an observer.
func NewWithCore(core zapcore.Core) *Logger {
	return &Logger{z: zap.New(core)}
}

// Nop discards every line.
func Nop() *Logger {
	return &Logger{z: zap.NewNop()}
}

// Record emits the audit line for rec.
func (l *Logger) Record(rec *models.Record) {
	if l == nil {
		return
	}
	l.z.Info("new message",
		zap.String("channel", rec.ChannelLabel()),
		zap.Int64("channel_id", rec.ChannelID),
		zap.String("author", rec.Author),
		zap.String("timestamp", rec.Time().Format(time.RFC3339)),
		zap.String("content", rec.Content),
	)
}

// Sync flushes buffered output.
func (l *Logger) Sync() error {
	if l == nil {
		return nil
	}
	return l.z.Sync()
}
