package event

import "sync"

// Counter counts telemetry events per type.
type Counter struct {
	mu     sync.Mutex
	values map[Type]uint64
}

func NewCounter() *Counter {
	return &Counter{values: make(map[Type]uint64)}
}

func (c *Counter) Increment(t Type) uint64 {
	return c.Add(t, 1)
}

func (c *Counter) Add(t Type, n uint64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[t] += n
	return c.values[t]
}

func (c *Counter) Get(t Type) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values[t]
}
