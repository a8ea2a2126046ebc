package logger

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"room_occupancy/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
}

func TestHelpersThroughObserver(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	defer SetLogger(nil)

	Printf("Merged %d files\n", 2)
	Debugf("grid %s", "1s")
	Warnf("skipped %s", "bad.csv")
	Errorf("boom")
	LogResult("merge", true, "")
	LogResult("import", false, "locked")
	LogCommand("occupancy", []string{"occupancy", "merge", "data"})

	entries := logs.AllUntimed()
	require.Len(t, entries, 7)
	assert.Equal(t, "Merged 2 files", entries[0].Message)
	assert.Equal(t, zapcore.DebugLevel, entries[1].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)
	assert.Equal(t, "merge: SUCCESS", entries[4].Message)
	assert.Equal(t, "import: FAILED - locked", entries[5].Message)
	assert.Equal(t, "Command executed: occupancy [merge data]", entries[6].Message)
}

func TestInitWritesJSONFile(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.LogFile = filepath.Join(t.TempDir(), "run.log")
	cfg.Logging.Format = "json"
	cfg.Logging.LogLevel = "warn"

	require.NoError(t, Init(cfg))
	assert.Equal(t, cfg.Logging.LogFile, GetLogFileName())
	Printf("hidden at warn level")
	Warnf("disk almost full")
	require.NoError(t, Close())

	f, err := os.Open(cfg.Logging.LogFile)
	require.NoError(t, err)
	defer f.Close()

	var messages []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &entry))
		assert.Contains(t, entry, "timestamp")
		messages = append(messages, entry["msg"].(string))
	}
	require.NoError(t, sc.Err())
	assert.Equal(t, []string{"disk almost full"}, messages)
}

func TestConsoleLoggerFollowsLevel(t *testing.T) {
	defer level.SetLevel(zapcore.InfoLevel)
	level.SetLevel(zapcore.InfoLevel)
	SetLogger(nil)

	assert.False(t, L().Core().Enabled(zapcore.DebugLevel))
	level.SetLevel(zapcore.DebugLevel)
	assert.True(t, L().Core().Enabled(zapcore.DebugLevel))
	level.SetLevel(zapcore.ErrorLevel)
	assert.False(t, L().Core().Enabled(zapcore.WarnLevel))
}
