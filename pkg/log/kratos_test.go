package log

import (
	"os"
	"path/filepath"
	"testing"

	krlog "github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKratosLoggerImplementation(t *testing.T) {
	var _ krlog.Logger = Default()
}

func TestLogMethodVariousScenarios(t *testing.T) {
	logger := Default()

	testCases := []struct {
		name    string
		level   krlog.Level
		keyvals []any
	}{
		{name: "strings", level: krlog.LevelInfo, keyvals: []any{"message", "order placed", "user", "trader"}},
		{name: "numbers", level: krlog.LevelDebug, keyvals: []any{"count", 100, "fill_ratio", 0.95}},
		{name: "booleans", level: krlog.LevelWarn, keyvals: []any{"critical", true, "enabled", false}},
		{name: "error", level: krlog.LevelError, keyvals: []any{"error", "refresh failed", "code", 500}},
		{name: "odd", level: krlog.LevelInfo, keyvals: []any{"key1", "value1", "key2"}},
		{name: "empty", level: krlog.LevelInfo},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.NoError(t, logger.Log(tc.level, tc.keyvals...))
		})
	}
}

func TestKratosHelperWritesFields(t *testing.T) {
	file := filepath.Join(t.TempDir(), "kratos.log")
	logger := NewLogger(&Options{Level: "debug", Format: "json", OutputPaths: []string{file}})

	helper := krlog.NewHelper(logger)
	helper.Infow("method", "GET", "path", "/api/users/me/", "status", 200)
	logger.Sync()

	raw, err := os.ReadFile(file)
	require.NoError(t, err)
	content := string(raw)
	assert.Contains(t, content, `"path":"/api/users/me/"`)
	assert.Contains(t, content, `"status":200`)
}
