package timeseries

import "testing"

func TestHealthMetrics_Counters(t *testing.T) {
	health := NewHealthMetrics()

	health.RecordAdded(5)
	health.RecordAdded(3)
	health.RecordDrained(6)
	health.RecordDropped(2)
	health.SetDepth(0)

	snapshot := health.GetSnapshot()
	if snapshot.TotalAdded != 8 {
		t.Errorf("Expected total added 8, got %d", snapshot.TotalAdded)
	}
	if snapshot.TotalDrained != 6 {
		t.Errorf("Expected total drained 6, got %d", snapshot.TotalDrained)
	}
	if snapshot.TotalDropped != 2 {
		t.Errorf("Expected total dropped 2, got %d", snapshot.TotalDropped)
	}
	if snapshot.Depth != 0 {
		t.Errorf("Expected depth 0, got %d", snapshot.Depth)
	}
}

func TestHealthSnapshot_IsHealthy(t *testing.T) {
	tests := []struct {
		name    string
		depth   int64
		limit   int64
		healthy bool
	}{
		{"unbounded", 1_000_000, 0, true},
		{"half full", 50, 100, true},
		{"at ninety percent", 90, 100, true},
		{"near cap", 91, 100, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := HealthSnapshot{Depth: tt.depth, Limit: tt.limit}
			if s.IsHealthy() != tt.healthy {
				t.Errorf("IsHealthy() = %v, want %v", s.IsHealthy(), tt.healthy)
			}
			if tt.healthy && s.GetStatus() != "healthy" {
				t.Errorf("Expected status 'healthy', got %q", s.GetStatus())
			}
		})
	}
}
