package qloss

import "time"

// rescheduleTimers arms at most one of {loss, PTO}, by the precedence
// rule: the loss timer, when due, always wins. With nothing in flight
// both are disarmed.
func (c *Conn) rescheduleTimers() {
	now := c.clock.Now()

	if d, ok := c.lossTimerDuration(now); ok {
		c.events.DisarmTimer(TimerPTO)
		c.events.ArmTimer(TimerLoss, d)
		return
	}
	if d, ok := c.ptoTimerDuration(now); ok {
		c.events.DisarmTimer(TimerLoss)
		c.events.ArmTimer(TimerPTO, d)
		return
	}
	c.events.DisarmTimer(TimerLoss)
	c.events.DisarmTimer(TimerPTO)
}

// lossTimerDuration computes the loss timer: the earliest
// send_time + thr - now across contexts with an outstanding ack-eligible
// packet, clamped to zero once the packet threshold alone would already
// declare it lost.
func (c *Conn) lossTimerDuration(now time.Time) (time.Duration, bool) {
	thr := c.rtt.lossTimeThreshold(c.cfg.Loss)
	pktThr := PacketNumber(c.cfg.Loss.PacketThreshold)

	var best time.Duration
	var have bool
	for _, ctx := range c.ctxs {
		if ctx.largestAck == UnsetPN || len(ctx.sent) == 0 {
			continue
		}
		rec := ctx.sent[0]
		if rec.pnum > ctx.largestAck {
			continue
		}

		d := rec.sendTime.Add(thr).Sub(now)
		if d < 0 || ctx.largestAck-rec.pnum >= pktThr {
			d = 0
		}
		if !have || d < best {
			best, have = d, true
		}
	}
	return best, have
}

// ptoTimerDuration computes the PTO timer, armed only when no loss timer
// is due.
func (c *Conn) ptoTimerDuration(now time.Time) (time.Duration, bool) {
	var best time.Duration
	var have bool
	for _, ctx := range c.ctxs {
		if len(ctx.sent) == 0 {
			continue
		}
		last := ctx.sent[len(ctx.sent)-1]
		base := c.ptoBase(ctx.level)
		d := last.sendTime.Add(base << uint(c.ptoCount)).Sub(now)
		if !have || d < best {
			best, have = d, true
		}
	}
	return best, have
}

// ptoBase computes the probe timeout base duration for a context at level.
func (c *Conn) ptoBase(level EncLevel) time.Duration {
	return c.rtt.ptoBase(c.cfg.Loss, level, c.handshakeConfirmed, c.ctp.MaxAckDelay)
}

// FireLossTimer is the loss timer's handler: it re-runs detectLost with no
// ack-range context, so persistent congestion is never evaluated from a
// bare timer firing (only from an ack-triggered run).
func (c *Conn) FireLossTimer() {
	c.detectLost(nil)
}

// FirePTO is the PTO timer's handler: for the first Send Context whose
// probe timeout has actually elapsed, it emits two PING frames with
// ignore_congestion set, bumps pto_count, and re-arms. A Sender error here
// (failure to allocate a probe) is a resource-exhaustion failure that must
// drive the caller to close the connection.
func (c *Conn) FirePTO() error {
	now := c.clock.Now()

	for _, ctx := range c.ctxs {
		if len(ctx.sent) == 0 {
			continue
		}
		last := ctx.sent[len(ctx.sent)-1]
		base := c.ptoBase(ctx.level)
		due := last.sendTime.Add(base << uint(c.ptoCount))
		if due.After(now) {
			continue
		}

		for i := 0; i < 2; i++ {
			f := Frame{Type: FramePing}
			if err := c.sender.SendFrame(ctx.level, f, SendFlags{IgnoreCongestion: true}); err != nil {
				return err
			}
			// Recorded into sent (with plen 0, so it never counts toward
			// the congestion window) so the next PTO computation bases
			// pto_base on this probe's send time, not the stale packet
			// that triggered the timeout.
			ctx.recordOnWire(now, []Frame{f}, 0, true)
		}
		c.ptoCount++
		c.metrics.ptoFired.Inc()
		break
	}

	c.rescheduleTimers()
	return nil
}
