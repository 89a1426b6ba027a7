package timeseries

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func points(n int) []Datapoint {
	out := make([]Datapoint, n)
	for i := range out {
		out[i] = NewDatapoint(fmt.Sprintf("p.%d", i), float64(i), 1)
	}
	return out
}

func TestMemQueue(t *testing.T) {
	config := DefaultConfig()

	t.Run("NewMemQueue", func(t *testing.T) {
		q := NewMemQueue(config)
		require.NotNil(t, q)
		assert.Equal(t, 0, q.Len())
		assert.Nil(t, q.Drain(10))
	})

	t.Run("Drain in chunks preserves order", func(t *testing.T) {
		q := NewMemQueue(config)
		q.Add(points(5)...)

		first := q.Drain(2)
		second := q.Drain(2)
		third := q.Drain(2)

		assert.Len(t, first, 2)
		assert.Len(t, second, 2)
		assert.Len(t, third, 1)
		assert.Equal(t, "p.0", first[0].Path)
		assert.Equal(t, "p.2", second[0].Path)
		assert.Equal(t, "p.4", third[0].Path)
		assert.Equal(t, 0, q.Len())
	})

	t.Run("Drain all", func(t *testing.T) {
		q := NewMemQueue(config)
		q.Add(points(3)...)
		assert.Len(t, q.Drain(0), 3)
		assert.Equal(t, 0, q.Len())
	})

	t.Run("Discard", func(t *testing.T) {
		q := NewMemQueue(config)
		q.Add(points(4)...)
		assert.Equal(t, 4, q.Discard())
		assert.Equal(t, 0, q.Len())

		snap := q.GetHealthSnapshot()
		assert.Equal(t, int64(4), snap.TotalAdded)
		assert.Equal(t, int64(4), snap.TotalDropped)
	})

	t.Run("Cap rejects overflow", func(t *testing.T) {
		q := NewMemQueue(Config{MaxQueuedPoints: 3})
		assert.Equal(t, 2, q.Add(points(2)...))
		assert.Equal(t, 1, q.Add(points(2)...))
		assert.Equal(t, 0, q.Add(points(1)...))
		assert.Equal(t, 3, q.Len())

		snap := q.GetHealthSnapshot()
		assert.Equal(t, int64(2), snap.TotalDropped)
		assert.False(t, snap.IsHealthy())
		assert.Equal(t, "warning: approaching queue limit", snap.GetStatus())
	})
}

func TestMemQueue_ConcurrentProducers(t *testing.T) {
	q := NewMemQueue(DefaultConfig())

	const producers = 20
	const perProducer = 250

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				q.Add(NewDatapoint("p", 1, 1))
			}
		}()
	}

	drained := 0
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	for {
		drained += len(q.Drain(100))
		select {
		case <-done:
			drained += len(q.Drain(0))
			assert.Equal(t, producers*perProducer, drained)
			return
		default:
		}
	}
}
