package logger

import (
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

const defaultService = "exchange-service"

// LoggerConfig describes where and how the service logs.
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputFile string `mapstructure:"output_file"`
	// Service is attached to every entry as the "service" field.
	Service string `mapstructure:"service"`
	// Sampling keeps zap's production sampler; off by default so every
	// proposal and exchange transition is logged.
	Sampling bool `mapstructure:"sampling"`
}

// DefaultConfig reads the LOG_ environment: LOG_LEVEL, LOG_FORMAT,
// LOG_OUTPUT_FILE, LOG_SERVICE and LOG_SAMPLING. It runs before the main
// configuration is loaded, so it keeps its own viper instance.
func DefaultConfig() *LoggerConfig {
	v := viper.New()
	v.SetEnvPrefix("log")
	v.AutomaticEnv()
	v.SetDefault("level", "info")
	v.SetDefault("format", "json")
	v.SetDefault("output_file", "stdout")
	v.SetDefault("service", defaultService)
	v.SetDefault("sampling", false)

	return &LoggerConfig{
		Level:      strings.ToLower(strings.TrimSpace(v.GetString("level"))),
		Format:     strings.ToLower(strings.TrimSpace(v.GetString("format"))),
		OutputFile: v.GetString("output_file"),
		Service:    v.GetString("service"),
		Sampling:   v.GetBool("sampling"),
	}
}

// ToZapLevel parses Level; "warning" is read as warn and anything unknown as info.
func (c *LoggerConfig) ToZapLevel() zapcore.Level {
	name := c.Level
	if name == "warning" {
		name = "warn"
	}
	level, err := zapcore.ParseLevel(name)
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}
