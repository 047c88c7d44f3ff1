package resilience

import "time"

// Breaker configuration constants
const (
	DefaultThreshold         = 5
	DefaultResetTimeout      = 30 * time.Second
	DefaultHalfOpenSuccesses = 1
)

// Config holds circuit breaker settings.
type Config struct {
	Name              string        // used in log lines
	Threshold         int           // consecutive failures before opening
	ResetTimeout      time.Duration // wait before a half-open trial
	HalfOpenSuccesses int           // trial successes needed to close
}

// DefaultConfig returns defaults suited to a remote recognition engine:
// a recognizer that failed five captures in a row is skipped for 30s instead
// of making every capture wait for its timeout.
func DefaultConfig(name string) Config {
	return Config{
		Name:              name,
		Threshold:         DefaultThreshold,
		ResetTimeout:      DefaultResetTimeout,
		HalfOpenSuccesses: DefaultHalfOpenSuccesses,
	}
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "breaker"
	}
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = DefaultResetTimeout
	}
	if c.HalfOpenSuccesses <= 0 {
		c.HalfOpenSuccesses = DefaultHalfOpenSuccesses
	}
	return c
}
