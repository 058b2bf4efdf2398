package dispatch

import "time"

// Config defines the dispatcher configuration.
type Config struct {
	// TaskTimeout is how long a dispatch waits for images before the
	// task is forced to timeout.
	TaskTimeout time.Duration
	// PollInterval is how often a waiting dispatch re-checks its task.
	PollInterval time.Duration
	// TaskRetention is the age past which terminal-or-not tasks are
	// pruned once the store exceeds TaskHighWater.
	TaskRetention time.Duration
	// TaskHighWater is the store size above which aged tasks get pruned.
	TaskHighWater int
}

// DefaultConfig returns the default dispatcher configuration.
func DefaultConfig() *Config {
	return &Config{
		TaskTimeout:   60 * time.Second,
		PollInterval:  1 * time.Second,
		TaskRetention: 10 * time.Minute,
		TaskHighWater: 50,
	}
}
