package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		level     string
		wantDebug bool
		wantInfo  bool
	}{
		{level: "debug", wantDebug: true, wantInfo: true},
		{level: "info", wantDebug: false, wantInfo: true},
		{level: "warn", wantDebug: false, wantInfo: false},
		{level: "bogus", wantDebug: false, wantInfo: true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			l := newLogger(&buf, tt.level, "text")

			l.Debug("dbg")
			l.Info("inf")

			out := buf.String()
			assert.Equal(t, tt.wantDebug, strings.Contains(out, "msg=dbg"))
			assert.Equal(t, tt.wantInfo, strings.Contains(out, "msg=inf"))
		})
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "info", "json")

	l.Info("frame analyzed", "engaged", true, "selected", 2)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "frame analyzed", rec["msg"])
	assert.Equal(t, true, rec["engaged"])
	assert.Equal(t, float64(2), rec["selected"])
}
