package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/abdul-hamid-achik/featspec/packages/core/model"
)

func TestCollectorCounts(t *testing.T) {
	c := NewCollector()

	c.ObserveStep(&model.Step{Status: model.StatusPassed, Duration: 2 * time.Millisecond})
	c.ObserveStep(&model.Step{Status: model.StatusFailed, Duration: 5 * time.Millisecond})
	c.ObserveStep(&model.Step{Status: model.StatusSkipped})

	assert.Equal(t, int64(3), c.Total())
	assert.Equal(t, int64(1), c.Failed())
}

func TestCollectorPercentiles(t *testing.T) {
	c := NewCollector()
	for i := 1; i <= 100; i++ {
		c.ObserveStep(&model.Step{
			Status:   model.StatusPassed,
			Duration: time.Duration(i) * time.Millisecond,
		})
	}

	p50 := c.Percentile(50)
	p99 := c.Percentile(99)
	assert.Greater(t, p99, p50)
	assert.InDelta(t, 50, p50.Milliseconds(), 2)
	assert.InDelta(t, 99, p99.Milliseconds(), 2)
}

func TestCollectorConcurrentObserve(t *testing.T) {
	c := NewCollector()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				c.ObserveStep(&model.Step{Status: model.StatusPassed, Duration: time.Millisecond})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(800), c.Total())
}

func TestCollectorElapsed(t *testing.T) {
	c := NewCollector()
	assert.Equal(t, time.Duration(0), c.Elapsed())

	c.Start()
	time.Sleep(5 * time.Millisecond)
	c.Stop()
	assert.GreaterOrEqual(t, c.Elapsed(), 5*time.Millisecond)
}

func TestCollectorSummary(t *testing.T) {
	c := NewCollector()
	c.Start()
	c.ObserveStep(&model.Step{Status: model.StatusPassed, Duration: time.Millisecond})
	c.Stop()

	summary := c.Summary()
	assert.Contains(t, summary, "1 steps in")
	assert.Contains(t, summary, "p95")
}
