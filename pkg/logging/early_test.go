package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEarlyLog(t *testing.T) {
	var buf bytes.Buffer
	l := &EarlyLog{service: "messaging-service", out: &buf}

	l.Error("failed to load config: %v", "missing")
	l.Info("starting")

	assert.Equal(t, "ERROR [messaging-service] failed to load config: missing\nINFO [messaging-service] starting\n", buf.String())
}
