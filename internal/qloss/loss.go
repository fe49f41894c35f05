package qloss

import "time"

// detectLost walks every Send Context's in-flight queue from the oldest
// packet, declaring a packet lost once it passes either the packet-number
// threshold or the time threshold, and checks for persistent congestion
// across the whole connection.
//
// st is the ackState gathered by the HandleAck call that triggered this
// run, or nil when detectLost runs from the standalone loss timer —
// persistent congestion is only evaluated when st is non-nil.
func (c *Conn) detectLost(st *ackState) {
	now := c.clock.Now()
	thr := c.rtt.lossTimeThreshold(c.cfg.Loss)
	pktThr := PacketNumber(c.cfg.Loss.PacketThreshold)

	var nlost int
	var oldestLoss, newestLoss time.Time
	var haveLossSpan bool

	for _, ctx := range c.ctxs {
		if ctx.largestAck == UnsetPN {
			continue
		}

		i := 0
		for i < len(ctx.sent) {
			rec := ctx.sent[i]
			if rec.pnum > ctx.largestAck {
				break
			}
			if rec.sendTime.Add(thr).After(now) && ctx.largestAck-rec.pnum < pktThr {
				break
			}

			j := i
			for j < len(ctx.sent) && ctx.sent[j].pnum == rec.pnum {
				j++
			}
			group := ctx.removeAt(i, j)

			if c.rtt.hasSample() && rec.sendTime.After(c.rtt.firstRTT) {
				nlost++
				if !haveLossSpan || rec.sendTime.Before(oldestLoss) {
					oldestLoss = rec.sendTime
				}
				if !haveLossSpan || rec.sendTime.After(newestLoss) {
					newestLoss = rec.sendTime
				}
				haveLossSpan = true
			}

			c.resend(ctx, group, now)
			// i is not advanced: removeAt shifted the slice down.
		}
	}

	if st != nil && nlost >= 2 && haveLossSpan {
		disjoint := !st.hasSpan || st.newest.Before(oldestLoss) || st.oldest.After(newestLoss)
		pcg := c.rtt.pcgDuration(c.cfg.Loss, c.ctp.MaxAckDelay)
		if disjoint && newestLoss.Sub(oldestLoss) > pcg {
			c.cc.OnPersistentCongestion(now)
			c.metrics.persistentCongestion.Inc()
		}
	}

	c.rescheduleTimers()
}

// resend processes every frame bundled into one lost packet (group),
// applying per-frame-type resend rules, and runs the congestion-lost hook
// exactly once for the packet as a whole (on group[0], which alone
// carries its plen).
func (c *Conn) resend(ctx *sendCtx, group []sentFrameRecord, now time.Time) {
	if len(group) == 0 {
		return
	}

	c.metrics.packetsLost.Inc()
	if unblock := c.cc.OnPacketLost(now, &group[0], c.rstPnum); unblock {
		c.events.PostPush()
	}

	for i := range group {
		f := group[i].frame
		switch f.Type {
		case FrameAck:
			if ctx.level == EncLevelApplication {
				ctx.rangeDB.forceAck()
			}
		case FramePing, FramePathChallenge, FramePathResponse, FrameConnectionClose:
			// discarded: no value in resending a probe or close after the fact
		case FrameMaxData, FrameMaxStreams, FrameMaxStreams2, FrameMaxStreamData:
			// requeued bare; the sender fills in the *current* limit value
			// when it serializes, since this core never carries numeric
			// limit state (only identifying fields).
			ctx.enqueue(f)
		case FrameStream, FrameResetStream:
			if state, ok := c.streams.FindStream(f.StreamID); ok && (state == StreamResetSent || state == StreamResetRecvd) {
				continue // stream already torn down, nothing to resend
			}
			ctx.enqueue(f)
		default:
			ctx.enqueue(f)
		}
	}

	if !c.closing {
		c.events.PostPush()
	}
}
