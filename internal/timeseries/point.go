package timeseries

// Datapoint is a single named sample bound for the metrics collector.
type Datapoint struct {
	Path      string  `json:"path"`      // Dot-delimited metric path
	Value     float64 `json:"value"`     // Sample value
	Timestamp int64   `json:"timestamp"` // Unix seconds
}

// NewDatapoint creates a new Datapoint
func NewDatapoint(path string, value float64, timestamp int64) Datapoint {
	return Datapoint{Path: path, Value: value, Timestamp: timestamp}
}

// WithPrefix returns a copy of the datapoint with prefix prepended to its path.
// An empty prefix leaves the path untouched.
func (d Datapoint) WithPrefix(prefix string) Datapoint {
	if prefix == "" {
		return d
	}
	d.Path = prefix + "." + d.Path
	return d
}
