package qloss

import "time"

// congestionController is a NewReno controller: slow start, congestion
// avoidance, multiplicative decrease on loss, and collapse under
// persistent congestion (RFC 9002 §7; BBR/CUBIC are out of scope). It
// carries no internal lock: like Conn, it is driven exclusively by the
// caller's single event-loop goroutine.
type congestionController struct {
	maxUDPPayloadSize int
	maxIdleTimeout    time.Duration

	window        int
	ssthresh      int
	inFlight      int
	recoveryStart time.Time

	blocked bool
}

// newCongestionController seeds window at InitialWindowPackets *
// maxUDPPayloadSize and ssthresh effectively at infinity.
func newCongestionController(cfg CongestionConfig, maxUDPPayloadSize int, maxIdleTimeout time.Duration) *congestionController {
	return &congestionController{
		maxUDPPayloadSize: maxUDPPayloadSize,
		maxIdleTimeout:    maxIdleTimeout,
		window:            cfg.InitialWindowPackets * maxUDPPayloadSize,
		ssthresh:          1<<62 - 1,
	}
}

// Window returns the current congestion window in bytes.
func (c *congestionController) Window() int {
	return c.window
}

// Ssthresh returns the current slow-start threshold in bytes.
func (c *congestionController) Ssthresh() int {
	return c.ssthresh
}

// InFlight returns bytes sent and not yet acked or declared lost.
func (c *congestionController) InFlight() int {
	return c.inFlight
}

// isBlocked reports whether in_flight has reached window.
func (c *congestionController) isBlocked() bool {
	return c.inFlight >= c.window
}

// OnPacketSent accounts plen bytes as newly in flight. ignoreCongestion
// packets (PTO probes) are never congestion-controlled and must be
// recorded with plen == 0 by the caller.
func (c *congestionController) OnPacketSent(plen int) {
	if plen == 0 {
		return
	}
	c.inFlight += plen
}

// OnPacketAcked implements congestion_ack: grows the window in slow start
// or congestion avoidance, and reports whether the sender should be
// unblocked as a result.
func (c *congestionController) OnPacketAcked(now time.Time, f *sentFrameRecord, rstPnum PacketNumber) (unblock bool) {
	if f.plen == 0 || f.pnum < rstPnum {
		return false
	}

	wasBlocked := c.isBlocked()
	c.inFlight -= f.plen

	c.guardRecoveryStartWrap(now)

	if !f.sendTime.After(c.recoveryStart) {
		// still inside the current recovery episode: no growth
	} else if c.window < c.ssthresh {
		c.window += f.plen // slow start
	} else {
		c.window += c.maxUDPPayloadSize * f.plen / c.window // congestion avoidance
	}

	return wasBlocked && c.inFlight < c.window
}

// OnPacketLost implements congestion_lost: halves the window (floored at
// 2*maxUDPPayloadSize) the first time a given recovery episode sees
// loss, and reports whether the sender should be unblocked.
func (c *congestionController) OnPacketLost(now time.Time, f *sentFrameRecord, rstPnum PacketNumber) (unblock bool) {
	if f.plen == 0 || f.pnum < rstPnum {
		return false
	}

	wasBlocked := c.isBlocked()
	c.inFlight -= f.plen
	f.plen = 0

	if !f.sendTime.After(c.recoveryStart) {
		// already accounted for in this recovery episode
	} else {
		c.recoveryStart = now
		c.window = maxInt(c.window/2, 2*c.maxUDPPayloadSize)
		c.ssthresh = c.window
	}

	return wasBlocked && c.inFlight < c.window
}

// OnPersistentCongestion implements persistent_congestion(): collapses the
// window to the floor without touching ssthresh.
func (c *congestionController) OnPersistentCongestion(now time.Time) {
	c.recoveryStart = now
	c.window = 2 * c.maxUDPPayloadSize
}

// guardRecoveryStartWrap shifts recoveryStart forward if it has fallen
// more than 2*maxIdleTimeout behind now. Formally unnecessary under 64-bit
// nanosecond time, but kept as an explicit bound against unbounded drift.
func (c *congestionController) guardRecoveryStartWrap(now time.Time) {
	if c.maxIdleTimeout <= 0 {
		return
	}
	floor := now.Add(-2 * c.maxIdleTimeout)
	if c.recoveryStart.Before(floor) {
		c.recoveryStart = floor
	}
}

// reduceInFlight subtracts n bytes from in_flight directly, used when keys
// for a level are dropped and its whole in-flight queue is discarded
// without going through the normal ack/loss paths.
func (c *congestionController) reduceInFlight(n int) {
	c.inFlight -= n
}

// Statistics returns a snapshot suitable for logging or metrics export.
func (c *congestionController) Statistics() map[string]int64 {
	return map[string]int64{
		"window":    int64(c.window),
		"ssthresh":  int64(c.ssthresh),
		"in_flight": int64(c.inFlight),
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
