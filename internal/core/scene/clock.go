package scene

import "sync/atomic"

// Clock counts simulation frames. The zero value starts at frame 0.
type Clock struct {
	frame atomic.Uint64
}

// Advance moves to the next frame and returns it.
func (c *Clock) Advance() uint64 {
	return c.frame.Add(1)
}

func (c *Clock) Frame() uint64 {
	return c.frame.Load()
}
