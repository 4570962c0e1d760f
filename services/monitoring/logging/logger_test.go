package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_Level(t *testing.T) {
	l := NewLogger("debug", FormatJSON)
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())

	l = NewLogger("nonsense", FormatJSON)
	assert.Equal(t, logrus.InfoLevel, l.GetLevel())
}

func TestLogger_Component(t *testing.T) {
	l := NewLogger("info", FormatJSON)
	buf := new(bytes.Buffer)
	l.SetOutput(buf)

	l.Component("transport").Info("retrying")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "transport", entry["component"])
	assert.Equal(t, "retrying", entry["msg"])
}

func TestDiscard(t *testing.T) {
	l := Discard()
	assert.NotPanics(t, func() {
		l.Component("socket").Error("dropped")
	})
	assert.NoError(t, l.AttachSyslog("", "app"))
}
