package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadTimeoutsDefaults(t *testing.T) {
	timeouts := LoadTimeouts()

	assert.Equal(t, 2*time.Minute, timeouts.Command)
	assert.Equal(t, 12, timeouts.StartPollAttempts)
	assert.Equal(t, 10*time.Second, timeouts.StartPollDelay)
	assert.Equal(t, 3, timeouts.RetryMaxAttempts)
	assert.Equal(t, 5*time.Second, timeouts.RetryDelay)
}

func TestLoadTimeoutsFromEnv(t *testing.T) {
	t.Setenv("PROVISOR_TIMEOUT_COMMAND", "30s")
	t.Setenv("PROVISOR_START_POLL_ATTEMPTS", "5")
	t.Setenv("PROVISOR_RETRY_DELAY", "1s")

	timeouts := LoadTimeouts()

	assert.Equal(t, 30*time.Second, timeouts.Command)
	assert.Equal(t, 5, timeouts.StartPollAttempts)
	assert.Equal(t, time.Second, timeouts.RetryDelay)
}

func TestLoadTimeoutsInvalidEnvFallsBack(t *testing.T) {
	t.Setenv("PROVISOR_TIMEOUT_COMMAND", "not-a-duration")
	t.Setenv("PROVISOR_START_POLL_ATTEMPTS", "many")

	timeouts := LoadTimeouts()

	assert.Equal(t, 2*time.Minute, timeouts.Command)
	assert.Equal(t, 12, timeouts.StartPollAttempts)
}
