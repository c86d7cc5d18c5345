package logger_test

import (
	"bytes"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.trai.ch/strata/internal/adapters/logger"
	"go.trai.ch/strata/internal/core/domain"
	"go.trai.ch/zerr"
)

func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		name  string
		log   func(l *logger.Logger)
		level string
		msg   string
	}{
		{"Info", func(l *logger.Logger) { l.Info("step committed") }, "INFO", "step committed"},
		{"Warn", func(l *logger.Logger) { l.Warn("cache miss") }, "WARN", "cache miss"},
		{"Error", func(l *logger.Logger) { l.Error(os.ErrPermission) }, "ERROR", "permission denied"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.log(logger.NewWithWriter(&buf, slog.LevelInfo))

			assert.Contains(t, buf.String(), tt.level)
			assert.Contains(t, buf.String(), tt.msg)
		})
	}
}

func TestLogger_DebugIsFiltered(t *testing.T) {
	var buf bytes.Buffer
	logger.NewWithWriter(&buf, slog.LevelInfo).Debug("hidden")
	assert.Empty(t, buf.String())

	buf.Reset()
	logger.NewWithWriter(&buf, slog.LevelDebug).Debug("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestLogger_ErrorMetadata(t *testing.T) {
	var buf bytes.Buffer
	err := zerr.With(domain.ErrImageNotFound, "ref", "python:3.11")

	logger.NewWithWriter(&buf, slog.LevelInfo).Error(err)

	assert.Contains(t, buf.String(), "ref=python:3.11")
}

func TestLogger_SetOutput(t *testing.T) {
	var first, second bytes.Buffer
	lg := logger.NewWithWriter(&first, slog.LevelInfo)

	lg.SetOutput(&second)
	lg.Info("moved")

	assert.Empty(t, first.String())
	assert.Contains(t, second.String(), "moved")
}

func TestNew_DebugEnv(t *testing.T) {
	t.Setenv(domain.DebugEnv, "1")
	assert.NotNil(t, logger.New())
}
