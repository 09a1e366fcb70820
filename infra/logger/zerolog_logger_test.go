package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologLoggerMethods(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	l := NewZerologLogger("test")
	require.NotNil(t, l)
	l.Debugf("debug %d", 1)
	l.Debugw("debug", map[string]any{"k": 1})
	l.Infof("info %s", "test")
	l.Infow("info", map[string]any{"order_id": "o1"})
	l.Warnf("warn")
	l.Errorf("error")
}

func TestZerologLoggerFieldsAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologLoggerWithWriter("engine", &buf, "info")
	l.Debugf("hidden")
	l.Infow("assigned", map[string]any{"order_id": "o1", "rider_id": "r1"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "engine", rec["component"])
	assert.Equal(t, "o1", rec["order_id"])
	assert.Equal(t, "assigned", rec["message"])
}
