package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type rejected struct{}

func (rejected) Error() string  { return "rejected" }
func (rejected) Expected() bool { return true }

func TestFromContextTagsRequestID(t *testing.T) {
	var buf bytes.Buffer
	InitializeWithWriter("debug", "json", &buf)

	ctx := WithRequestID(context.Background(), "req-42")
	assert.Equal(t, "req-42", RequestID(ctx))

	InfoContext(ctx, "hello")
	assert.Contains(t, buf.String(), `"request_id":"req-42"`)
}

func TestExitMethodWithErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	InitializeWithWriter("debug", "json", &buf)

	ExitMethodWithError("svc.Do", rejected{})
	assert.Contains(t, buf.String(), `"level":"WARN"`)

	buf.Reset()
	ExitMethodWithError("svc.Do", errors.New("boom"))
	assert.Contains(t, buf.String(), `"level":"ERROR"`)
}

func TestParseLevel(t *testing.T) {
	var buf bytes.Buffer
	InitializeWithWriter("warn", "text", &buf)

	Info("dropped")
	Warn("kept")
	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")
}
