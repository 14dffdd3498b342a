package ctxlogger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextHandlerAddsAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(ContextHandler{slog.NewJSONHandler(&buf, nil)}).With("component", "test")

	ctx := AppendCtx(context.Background(), slog.String("request_id", "r1"))
	child := AppendCtx(ctx, slog.String("message_type", "draw"))
	logger.InfoContext(child, "hello")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "r1", rec["request_id"])
	assert.Equal(t, "draw", rec["message_type"])
	assert.Equal(t, "test", rec["component"])

	buf.Reset()
	logger.InfoContext(ctx, "parent")
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.NotContains(t, buf.String(), "message_type", "parent context is not mutated")
}
