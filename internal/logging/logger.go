package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kingrea/zakupki-desk/internal/config"
)

// Options tune the file logger.
type Options struct {
	// Path is the log file; rotated by lumberjack.
	Path  string
	Level string
	// Verbose forces debug level regardless of Level.
	Verbose bool
}

// OptionsFromConfig derives logger options from the project configuration.
func OptionsFromConfig(cfg *config.Config, verbose bool) Options {
	return Options{
		Path:    cfg.LogFilePath(),
		Level:   cfg.Project.Logging.Level,
		Verbose: verbose,
	}
}

// New builds a zap logger that writes JSON lines to a rotated file only.
// The terminal belongs to the TUI, so nothing is written to stdout.
func New(opts Options) (*zap.Logger, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("logging: log path is required")
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return nil, fmt.Errorf("logging: ensure log dir: %w", err)
	}
	level, err := parseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	if opts.Verbose {
		level = zapcore.DebugLevel
	}

	rotator := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    10, // Megabytes
		MaxBackups: 5,
		MaxAge:     30, // Days
		Compress:   true,
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.MessageKey = "message"
	encoderConfig.LevelKey = "level"
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(rotator),
		level,
	)
	return zap.New(core, zap.AddCaller()), nil
}

func parseLevel(value string) (zapcore.Level, error) {
	if value == "" {
		return zapcore.InfoLevel, nil
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return level, fmt.Errorf("logging: parse level %q: %w", value, err)
	}
	return level, nil
}
