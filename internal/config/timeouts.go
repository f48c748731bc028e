package config

import (
	"os"
	"strconv"
	"time"
)

// Timeouts holds all configurable timeout values.
// These values can be customized via environment variables.
type Timeouts struct {
	Command           time.Duration // Timeout for a single remote command
	Copy              time.Duration // Timeout for a single file transfer
	StartPollAttempts int           // Liveness poll attempts after service start
	StartPollDelay    time.Duration // Delay between liveness poll attempts
	StopGrace         time.Duration // Grace period between TERM and KILL
	RetryMaxAttempts  int           // Maximum retry attempts for network-sensitive steps
	RetryDelay        time.Duration // Fixed delay between retries
}

// LoadTimeouts loads timeout configuration from environment variables.
// If an environment variable is not set or invalid, a default value is used.
//
// Environment Variables:
//   - PROVISOR_TIMEOUT_COMMAND (default: 2m)
//   - PROVISOR_TIMEOUT_COPY (default: 10m)
//   - PROVISOR_START_POLL_ATTEMPTS (default: 12)
//   - PROVISOR_START_POLL_DELAY (default: 10s)
//   - PROVISOR_STOP_GRACE (default: 10s)
//   - PROVISOR_RETRY_MAX_ATTEMPTS (default: 3)
//   - PROVISOR_RETRY_DELAY (default: 5s)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		Command:           parseDuration("PROVISOR_TIMEOUT_COMMAND", 2*time.Minute),
		Copy:              parseDuration("PROVISOR_TIMEOUT_COPY", 10*time.Minute),
		StartPollAttempts: parseInt("PROVISOR_START_POLL_ATTEMPTS", 12),
		StartPollDelay:    parseDuration("PROVISOR_START_POLL_DELAY", 10*time.Second),
		StopGrace:         parseDuration("PROVISOR_STOP_GRACE", 10*time.Second),
		RetryMaxAttempts:  parseInt("PROVISOR_RETRY_MAX_ATTEMPTS", 3),
		RetryDelay:        parseDuration("PROVISOR_RETRY_DELAY", 5*time.Second),
	}
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}

	return d
}

// parseInt parses an integer from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return i
}
