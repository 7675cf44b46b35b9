package log

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	taxierrors "github.com/YuminosukeSato/taxifare/pkg/errors"
)

func TestTestLoggerCapturesFields(t *testing.T) {
	testLogger, buffer := NewTestLogger(LevelDebug)

	contextLogger := testLogger.With(ModelNameKey, "OneHotEncoder", ComponentKey, "preprocessing")
	contextLogger.Info("vocabulary learned", ColumnKey, "VendorId", VocabularySizeKey, 2)

	require.NotEmpty(t, buffer.String())
	assert.True(t, testLogger.ContainsMessage("vocabulary learned"))
	assert.True(t, testLogger.ContainsField(ModelNameKey, "OneHotEncoder"))
	assert.True(t, testLogger.ContainsField(VocabularySizeKey, 2.0))
}

func TestTestLoggerLevelFiltering(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)
	ctx := context.Background()

	assert.True(t, testLogger.Enabled(ctx, LevelError))
	assert.False(t, testLogger.Enabled(ctx, LevelDebug))

	testLogger.Debug("hidden")
	testLogger.Warn("shown")

	entries, err := testLogger.GetLogEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "WARN", entries[0]["level"])
}

func TestZerologLoggerWritesStructuredJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(zerolog.New(&buf)).With(ComponentKey, "boosting.trainer")

	logger.Info("Training completed", NumTreesKey, 100, R2ScoreKey, 0.91)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Training completed", entry["message"])
	assert.Equal(t, "boosting.trainer", entry[ComponentKey])
	assert.Equal(t, 100.0, entry[NumTreesKey])
	assert.Equal(t, 0.91, entry[R2ScoreKey])
}

func TestZerologLoggerAttachesStacktrace(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(zerolog.New(&buf))

	err := taxierrors.NewIOError("open", "missing.csv", taxierrors.New("no such file"))
	logger.Error("load failed", ErrAttrKey, err)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Contains(t, entry[ErrAttrKey], "missing.csv")
	assert.Contains(t, entry[StacktraceAttrKey], "logger_test.go")
}

func TestZerologLoggerEnabled(t *testing.T) {
	logger := NewZerologLogger(zerolog.New(&bytes.Buffer{}).Level(zerolog.WarnLevel))
	ctx := context.Background()

	assert.False(t, logger.Enabled(ctx, LevelInfo))
	assert.True(t, logger.Enabled(ctx, LevelError))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetupLogger(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SetupLogger("debug", "json", &buf))
	t.Cleanup(func() { _ = SetupLogger("info", "console", nil) })

	GetLoggerWithName("taxifare").Debug("debug visible")
	assert.True(t, strings.Contains(buf.String(), "debug visible"))
	assert.True(t, strings.Contains(buf.String(), `"ml.component":"taxifare"`))

	assert.Error(t, SetupLogger("info", "xml", &buf))
}
