// Package simchannel provides a deterministic, seedable lossy-channel
// simulator for exercising the FS-1052 ARQ package and the end-to-end
// facade without real audio I/O.
package simchannel

import "math/rand"

// Channel drops frames passed through Send with a fixed probability,
// using a seeded generator so test runs reproduce exactly.
type Channel struct {
	rng      *rand.Rand
	dropProb float64

	delivered int
	dropped   int
}

// New returns a Channel that drops each frame independently with
// probability dropProb (0 never drops, 1 always drops), seeded by
// seed so repeated runs with the same seed drop the same frames.
func New(seed int64, dropProb float64) *Channel {
	if dropProb < 0 {
		dropProb = 0
	}
	if dropProb > 1 {
		dropProb = 1
	}
	return &Channel{
		rng:      rand.New(rand.NewSource(seed)),
		dropProb: dropProb,
	}
}

// Send passes frame to deliver unless the simulated drop roll fires,
// in which case the frame is silently discarded.
func (c *Channel) Send(frame []byte, deliver func([]byte)) {
	if c.dropProb > 0 && c.rng.Float64() < c.dropProb {
		c.dropped++
		return
	}
	c.delivered++
	deliver(frame)
}

// Delivered returns the number of frames that passed through.
func (c *Channel) Delivered() int { return c.delivered }

// Dropped returns the number of frames discarded.
func (c *Channel) Dropped() int { return c.dropped }
