package timeseries

// Config holds configuration for the datapoint queue
type Config struct {
	// MaxQueuedPoints caps the number of pending datapoints. Zero means unbounded.
	MaxQueuedPoints int `yaml:"max_queued_points"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		MaxQueuedPoints: 0,
	}
}
