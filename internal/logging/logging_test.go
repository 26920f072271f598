package logging

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		in   string
		want logrus.Level
	}{
		{"", logrus.InfoLevel},
		{"debug", logrus.DebugLevel},
		{"WARN", logrus.WarnLevel},
		{" error ", logrus.ErrorLevel},
	}
	for _, tt := range tests {
		log, err := New(tt.in, &bytes.Buffer{})
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, log.GetLevel(), tt.in)
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New("chatty", nil)
	assert.Error(t, err)
}

func TestNew_WritesTextWithFields(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("debug", &buf)
	require.NoError(t, err)

	log.WithFields(logrus.Fields{"variant": "soil", "stage": "detect"}).Debug("stage complete")

	out := buf.String()
	assert.Contains(t, out, "level=debug")
	assert.Contains(t, out, `msg="stage complete"`)
	assert.Contains(t, out, "variant=soil")
	assert.Contains(t, out, "time=")
}

func TestDiscard(t *testing.T) {
	log := Discard()
	log.Error("dropped")
}
