package metrics

import (
	"context"
	"time"

	"github.com/cuemby/transctrl/pkg/runtime"
)

// Collector periodically samples the runtime driver to keep the
// managed-container gauge current between Reconcile calls.
type Collector struct {
	runtime runtime.Driver
	stopCh  chan struct{}
}

// NewCollector creates a metrics collector sampling rt every tick.
func NewCollector(rt runtime.Driver) *Collector {
	return &Collector{
		runtime: rt,
		stopCh:  make(chan struct{}),
	}
}

// Start begins periodic sampling in a background goroutine.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop halts periodic sampling.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	containers, err := c.runtime.ListManaged(ctx)
	if err != nil {
		return
	}

	counts := make(map[string]int)
	for _, container := range containers {
		counts[string(container.State)]++
	}

	ManagedContainers.Reset()
	for state, count := range counts {
		ManagedContainers.WithLabelValues(state).Set(float64(count))
	}
}
