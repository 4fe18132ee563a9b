package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/softlight-cli/internal/config"
)

// initTestLogger resets the singleton and initializes against a buffer so
// tests can inspect console output without touching stdout.
func initTestLogger(t *testing.T, cfg config.LoggerConfig) *bytes.Buffer {
	t.Helper()
	ResetForTest()
	var buf bytes.Buffer
	Initialize(cfg, zapcore.AddSync(&buf))
	t.Cleanup(ResetForTest)
	return &buf
}

// -- Test Cases: Initialization --

func TestInitializeConsoleFormat(t *testing.T) {
	buf := initTestLogger(t, config.LoggerConfig{
		Level:       "debug",
		Format:      "console",
		ServiceName: "TestService",
		Colors:      config.ColorConfig{Info: "green"},
	})

	GetLogger().Info("console test message")
	Sync()

	output := buf.String()
	assert.Contains(t, output, "INFO")
	assert.Contains(t, output, "console test message")
	assert.Contains(t, output, colorGreen)
	assert.Contains(t, output, colorReset)
}

func TestInitializeJSONFormat(t *testing.T) {
	buf := initTestLogger(t, config.LoggerConfig{
		Level:       "info",
		Format:      "json",
		ServiceName: "JSONTest",
	})

	GetLogger().Warn("structured message", zap.String("key", "value"))
	Sync()

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "log output should be valid JSON")
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "JSONTest", entry["logger"])
	assert.Equal(t, "structured message", entry["msg"])
	assert.Equal(t, "value", entry["key"])
}

func TestInitializeWritesLogFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "softlight-test.log")
	initTestLogger(t, config.LoggerConfig{
		Level:   "debug",
		Format:  "json",
		LogFile: logPath,
		MaxSize: 1,
	})

	GetLogger().Error("file bound message")
	Sync()

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "file bound message")
}

func TestInitializeRunsOnce(t *testing.T) {
	buf := initTestLogger(t, config.LoggerConfig{Level: "info", ServiceName: "First"})

	// A second call must be a no-op.
	Initialize(config.LoggerConfig{Level: "debug", ServiceName: "Second"}, zapcore.AddSync(buf))
	GetLogger().Info("after second init")
	Sync()

	assert.Contains(t, buf.String(), "First")
	assert.NotContains(t, buf.String(), "Second")
}

// -- Test Cases: GetLogger --

func TestGetLoggerFallback(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	logger := GetLogger()
	require.NotNil(t, logger)
}

func TestGetLoggerReturnsGlobal(t *testing.T) {
	initTestLogger(t, config.LoggerConfig{Level: "info", ServiceName: "GlobalTest"})
	assert.Equal(t, globalLogger.Load(), GetLogger())
}
