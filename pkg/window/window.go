// Package window implements the adaptive sliding-window controller (§4.5):
// it tracks a smoothed RTT estimate and grows or shrinks the number of data
// packets the sender is allowed to have outstanding at once.
package window

import "time"

const (
	// DefaultInitialSize is the window's starting value, per §3.
	DefaultInitialSize = 4
	// MinSize is the floor the controller never goes below (invariant e).
	MinSize = 1
	// DefaultMaxSize is a soft safety cap with no wire-compatibility effect
	// (§9 open question 4); it only bounds local send-side concurrency.
	DefaultMaxSize = 256
	// DefaultInitialRTT seeds smoothedRTT before any sample has arrived.
	DefaultInitialRTT = 100 * time.Millisecond
	// Threshold is the smoothed-RTT boundary that decides growth vs shrink.
	Threshold = 100 * time.Millisecond
	// Alpha is the EWMA weight given to each new RTT sample.
	Alpha = 0.2
)

// Controller is the mutable window state described in §3 ("current window
// size", "smoothed RTT"). It is owned exclusively by the event loop that
// runs the session's state machine — never shared, never locked.
type Controller struct {
	size        int
	max         int
	smoothedRTT time.Duration
}

// New builds a Controller at its documented initial values.
func New() *Controller {
	return &Controller{
		size:        DefaultInitialSize,
		max:         DefaultMaxSize,
		smoothedRTT: DefaultInitialRTT,
	}
}

// Size returns the current advertised window, in fragments.
func (c *Controller) Size() int {
	return c.size
}

// SmoothedRTT returns the current EWMA RTT estimate.
func (c *Controller) SmoothedRTT() time.Duration {
	return c.smoothedRTT
}

// SetMax overrides the soft safety cap (§9 open question 4). A value below
// the current size takes effect immediately.
func (c *Controller) SetMax(max int) {
	if max < MinSize {
		max = MinSize
	}
	c.max = max
	if c.size > c.max {
		c.size = c.max
	}
}

// OnConfirm folds one more RTT sample into the smoothed estimate and grows
// or shrinks the window accordingly, implementing the exact rule of §4.5.
func (c *Controller) OnConfirm(sample time.Duration) {
	c.smoothedRTT = time.Duration(Alpha*float64(sample) + (1-Alpha)*float64(c.smoothedRTT))

	if c.smoothedRTT < Threshold {
		if c.size < c.max {
			c.size++
		}
	} else if c.size > MinSize {
		c.size--
	}
}

// CanSendMore reports whether another data packet may be transmitted given
// the current number of outstanding (unacknowledged) packets.
func (c *Controller) CanSendMore(outstanding int) bool {
	return outstanding < c.size
}
