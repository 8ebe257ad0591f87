//go:build baremetal

package clock

import (
	"context"
	"sync"
)

// HardwareCounter is the 32-bit free-running microsecond counter a
// bare-metal platform exposes; Read32 must be supplied by the board
// support package.
type HardwareCounter interface {
	Read32() uint32
}

// BareMetalClock reconstructs a 64-bit nanosecond count from a 32-bit
// microsecond hardware counter, detecting wraparound on each read and
// incrementing a high word (spec §4.1). Read (and therefore Now) must
// be called at least once per wraparound period of the underlying
// counter or the reconstruction silently loses wraps; this is a
// documented caller obligation, not something this type can enforce,
// matching the source it is ported from.
type BareMetalClock struct {
	mu       sync.Mutex
	hw       HardwareCounter
	lastLow  uint32
	highWord uint64
}

// NewBareMetalClock wraps hw, starting the high word at zero.
func NewBareMetalClock(hw HardwareCounter) *BareMetalClock {
	return &BareMetalClock{hw: hw, lastLow: hw.Read32()}
}

func (c *BareMetalClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	low := c.hw.Read32()
	if low < c.lastLow {
		c.highWord++
	}
	c.lastLow = low
	micros := c.highWord<<32 | uint64(low)
	return int64(micros) * 1000
}

// SleepUntil busy-waits until Now reaches wakeup, returning
// ErrInterrupted only if ctx is cancelled. BareMetalClock has no
// AsyncEventFlag, so an async event does not end the wait early.
func (c *BareMetalClock) SleepUntil(ctx context.Context, wakeup int64) error {
	for {
		select {
		case <-ctx.Done():
			return ErrInterrupted
		default:
		}
		if c.Now() >= wakeup {
			return nil
		}
	}
}
