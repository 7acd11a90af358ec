package confecalc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bufferLogger(buf *bytes.Buffer, level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: level}))
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		out = append(out, rec)
	}
	return out
}

func TestLoggerHelpers(t *testing.T) {
	var buf bytes.Buffer
	l := bufferLogger(&buf, slog.LevelDebug)
	ctx := context.Background()

	l.LogLaunch(ctx, "k", Dim3{X: 4, Y: 1, Z: 1}, Dim3{X: 32, Y: 1, Z: 1}, 128, nil)
	l.LogOccupancy(ctx, "k", 256, 4, nil)
	l.LogConfSpace(ctx, "file.cspc", 12, 140, nil)
	l.LogConfSpace(ctx, "missing.cspc", 0, 0, errors.New("no such file"))

	recs := decodeLines(t, &buf)
	require.Len(t, recs, 4)

	assert.Equal(t, "launch completed", recs[0]["msg"])
	assert.Equal(t, float64(4), recs[0]["grid"])
	assert.Equal(t, float64(32), recs[0]["block"])
	assert.Equal(t, float64(128), recs[0]["shared_bytes"])

	assert.Equal(t, "thread count selected", recs[1]["msg"])
	assert.Equal(t, float64(256), recs[1]["threads"])

	assert.Equal(t, float64(12), recs[2]["positions"])
	assert.Equal(t, "ERROR", recs[3]["level"])
	assert.Equal(t, "no such file", recs[3]["error"])
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := bufferLogger(&buf, slog.LevelInfo).WithKernel("assemble")

	// successful launches log at debug
	l.LogLaunch(context.Background(), "assemble", Dim3{X: 1}, Dim3{X: 1}, 0, nil)
	assert.Zero(t, buf.Len())

	l.LogOccupancy(context.Background(), "assemble", 0, 0, errors.New("does not fit"))
	recs := decodeLines(t, &buf)
	require.Len(t, recs, 1)
	assert.Equal(t, "WARN", recs[0]["level"])
	assert.Equal(t, "assemble", recs[0]["kernel"])
}

func TestContextLogsLaunches(t *testing.T) {
	var buf bytes.Buffer
	ctx := newTestContext(t)
	ctx.SetLogger(bufferLogger(&buf, slog.LevelDebug))

	LaunchCooperativeOrFail(t, ctx, func(ThreadID, *Block) {}, 2, 4, 0)
	_, err := ctx.OptimizeThreads(namedKernel{}, 0, 0)
	require.NoError(t, err)

	recs := decodeLines(t, &buf)
	require.Len(t, recs, 2)
	assert.Equal(t, "launch completed", recs[0]["msg"])
	assert.Equal(t, "named", recs[1]["kernel"])

	ctx.SetLogger(nil)
	assert.NotNil(t, ctx.Logger())
}
