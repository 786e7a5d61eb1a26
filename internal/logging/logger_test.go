package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/enrondata/maildir-etl/internal/config"
)

func configWith(level, format string) *config.Config {
	v := config.NewEmptyViper()
	v.Set("logging.level", level)
	v.Set("logging.format", format)
	return config.NewFromViper(v)
}

func TestInitLogger_LevelFromConfig(t *testing.T) {
	logger, err := InitLogger(configWith("debug", "console"))
	if err != nil {
		t.Fatalf("InitLogger() error = %v", err)
	}
	defer logger.Sync()
	if !logger.Core().Enabled(zapcore.DebugLevel) {
		t.Error("logging.level=debug not honored")
	}
}

func TestInitLogger_DefaultsToInfo(t *testing.T) {
	logger, err := InitLogger(configWith("nonsense", "json"))
	if err != nil {
		t.Fatalf("InitLogger() error = %v", err)
	}
	defer logger.Sync()
	if logger.Core().Enabled(zapcore.DebugLevel) {
		t.Error("unknown level enabled debug, want info fallback")
	}
	if !logger.Core().Enabled(zapcore.InfoLevel) {
		t.Error("info level disabled")
	}
}

func TestInitConsoleLogger_Verbose(t *testing.T) {
	logger, err := InitConsoleLogger(true, false)
	if err != nil {
		t.Fatalf("InitConsoleLogger() error = %v", err)
	}
	defer logger.Sync()
	if !logger.Core().Enabled(zapcore.DebugLevel) {
		t.Error("verbose console logger rejects debug")
	}
}
