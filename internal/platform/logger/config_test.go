package logger

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLoggerConfig_ToZapLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		"warn":    zapcore.WarnLevel,
		"dpanic":  zapcore.DPanicLevel,
		"error":   zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for level, want := range cases {
		cfg := &LoggerConfig{Level: level}
		assert.Equal(t, want, cfg.ToZapLevel(), level)
	}
}

func TestDefaultConfig(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want LoggerConfig
	}{
		{
			name: "defaults",
			want: LoggerConfig{Level: "info", Format: "json", OutputFile: "stdout", Service: "exchange-service"},
		},
		{
			name: "LOG_ environment",
			env: map[string]string{
				"LOG_LEVEL":       " DEBUG",
				"LOG_FORMAT":      "Console",
				"LOG_OUTPUT_FILE": "/var/log/exchange.log",
				"LOG_SERVICE":     "exchange-service-eu",
				"LOG_SAMPLING":    "true",
			},
			want: LoggerConfig{Level: "debug", Format: "console", OutputFile: "/var/log/exchange.log", Service: "exchange-service-eu", Sampling: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{"LOG_LEVEL", "LOG_FORMAT", "LOG_OUTPUT_FILE", "LOG_SERVICE", "LOG_SAMPLING"} {
				t.Setenv(key, "")
				require.NoError(t, os.Unsetenv(key))
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			assert.Equal(t, tt.want, *DefaultConfig())
		})
	}
}

func TestLogger_NamedKeepsConfig(t *testing.T) {
	l := NewNop()
	child := l.Named("Child").With()
	assert.Same(t, l.config, child.config)
}
