package observability

import (
	"context"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ZapObserver emits events to a zap.Logger. The event type becomes the log
// message; source and Data keys become structured fields.
type ZapObserver struct {
	logger *zap.Logger
}

// NewZapObserver creates a ZapObserver. A nil logger resolves to the global
// zap.L() at emit time, so zap.ReplaceGlobals after registration still applies.
func NewZapObserver(logger *zap.Logger) *ZapObserver {
	return &ZapObserver{logger: logger}
}

func (o *ZapObserver) OnEvent(_ context.Context, event Event) {
	logger := o.logger
	if logger == nil {
		logger = zap.L()
	}

	ce := logger.Check(event.Level.ZapLevel(), string(event.Type))
	if ce == nil {
		return
	}

	fields := make([]zap.Field, 0, len(event.Data)+1)
	fields = append(fields, zap.String("source", event.Source))
	for k, v := range event.Data {
		fields = append(fields, zap.Any(k, v))
	}
	if !event.Timestamp.IsZero() {
		ce.Time = event.Timestamp
	}
	ce.Write(fields...)
}

// LogConfig configures the zap logger built by NewZapLogger.
type LogConfig struct {
	Level       string `json:"level,omitempty" yaml:"level,omitempty"`
	Format      string `json:"format,omitempty" yaml:"format,omitempty"` // "console" or "json"
	ServiceName string `json:"service_name,omitempty" yaml:"service_name,omitempty"`
	File        string `json:"file,omitempty" yaml:"file,omitempty"`
	MaxSizeMB   int    `json:"max_size_mb,omitempty" yaml:"max_size_mb,omitempty"`
	MaxBackups  int    `json:"max_backups,omitempty" yaml:"max_backups,omitempty"`
	MaxAgeDays  int    `json:"max_age_days,omitempty" yaml:"max_age_days,omitempty"`
	Compress    bool   `json:"compress,omitempty" yaml:"compress,omitempty"`
}

// DefaultLogConfig returns console logging at info level to stderr.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:       "info",
		Format:      "console",
		ServiceName: "opsclient",
		MaxSizeMB:   10,
		MaxBackups:  3,
		MaxAgeDays:  14,
	}
}

// Merge applies non-zero values from source into c.
func (c *LogConfig) Merge(source *LogConfig) {
	if source.Level != "" {
		c.Level = source.Level
	}
	if source.Format != "" {
		c.Format = source.Format
	}
	if source.ServiceName != "" {
		c.ServiceName = source.ServiceName
	}
	if source.File != "" {
		c.File = source.File
	}
	if source.MaxSizeMB > 0 {
		c.MaxSizeMB = source.MaxSizeMB
	}
	if source.MaxBackups > 0 {
		c.MaxBackups = source.MaxBackups
	}
	if source.MaxAgeDays > 0 {
		c.MaxAgeDays = source.MaxAgeDays
	}
	if source.Compress {
		c.Compress = true
	}
}

// NewZapLogger builds a logger writing to stderr and, when File is set, to a
// lumberjack-rotated JSON file as well. Unknown levels fall back to info.
func NewZapLogger(cfg LogConfig) *zap.Logger {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level.SetLevel(zap.InfoLevel)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(newEncoder(cfg.Format), zapcore.Lock(os.Stderr), level),
	}

	if cfg.File != "" {
		writer := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		})
		cores = append(cores, zapcore.NewCore(newEncoder("json"), writer, level))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddStacktrace(zap.ErrorLevel))
	if cfg.ServiceName != "" {
		logger = logger.Named(cfg.ServiceName)
	}
	return logger
}

func newEncoder(format string) zapcore.Encoder {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if format == "console" {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(encoderConfig)
	}

	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewJSONEncoder(encoderConfig)
}
