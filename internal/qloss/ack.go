package qloss

import "time"

// ackState accumulates the observations range_ack needs to hand back to
// RTT sampling and to the loss detector's persistent-congestion check.
// A zero value means "no sample yet" for each field.
type ackState struct {
	maxPNSendTime time.Time // send_time of the frame acking the largest newly-acked PN
	hasMaxPN      bool

	oldest, newest time.Time // send-time span covered by every frame this ACK removed
	hasSpan        bool
}

func (st *ackState) observe(sendTime time.Time) {
	if !st.hasSpan || sendTime.Before(st.oldest) {
		st.oldest = sendTime
	}
	if !st.hasSpan || sendTime.After(st.newest) {
		st.newest = sendTime
	}
	st.hasSpan = true
}

// HandleAck processes one received ACK frame against the Send Context at
// level. It returns a FrameEncodingError or ProtocolViolationError on a
// malformed or unrecognized ACK; both are terminal for the surrounding
// packet and must be surfaced to the caller's ConnCloser. Loss detection
// itself never errors.
func (c *Conn) HandleAck(level EncLevel, ack AckFrame) error {
	if ack.FirstRange > int(ack.Largest) {
		return &FrameEncodingError{Reason: "first_range exceeds largest"}
	}

	ctx := c.ctxs[level]
	var st ackState

	min := ack.Largest - PacketNumber(ack.FirstRange)
	max := ack.Largest
	if err := c.rangeAck(ctx, min, max, &st); err != nil {
		return err
	}

	if ctx.largestAck == UnsetPN || ctx.largestAck < max {
		ctx.largestAck = max
	}
	if st.hasMaxPN {
		c.sampleRTT(ack, st.maxPNSendTime)
	}

	for _, r := range ack.Ranges {
		if PacketNumber(r.Gap+2) > min {
			return &FrameEncodingError{Reason: "gap exceeds min"}
		}
		if PacketNumber(r.Range) > min-PacketNumber(r.Gap)-2 {
			return &FrameEncodingError{Reason: "range exceeds min"}
		}
		max = min - PacketNumber(r.Gap) - 2
		min = max - PacketNumber(r.Range)
		if err := c.rangeAck(ctx, min, max, &st); err != nil {
			return err
		}
	}

	c.metrics.acksProcessed.Inc()
	c.detectLost(&st)
	return nil
}

// rangeAck removes every in-flight frame in [min, max] from ctx, running
// the congestion-ack hook, the stream-ack hook, path-MTU observation, and
// sender-side ACK-range bookkeeping for each. A range matching nothing,
// when max is still below the next PN to assign, is a harmless duplicate
// ACK; a range matching nothing beyond that is a protocol violation.
func (c *Conn) rangeAck(ctx *sendCtx, min, max PacketNumber, st *ackState) error {
	lo, hi := ctx.lookupRange(min, max)
	if lo == hi {
		if max < ctx.pnum {
			return nil // duplicate ack, OK
		}
		return &ProtocolViolationError{Reason: "ack for unknown packet number"}
	}

	removed := ctx.removeAt(lo, hi)
	now := c.clock.Now()

	for i := range removed {
		rec := &removed[i]
		st.observe(rec.sendTime)
		if rec.pnum == max {
			st.maxPNSendTime = rec.sendTime
			st.hasMaxPN = true
		}

		if unblock := c.cc.OnPacketAcked(now, rec, c.rstPnum); unblock {
			c.events.PostPush()
		}

		switch rec.frame.Type {
		case FrameStream, FrameResetStream:
			c.streams.HandleStreamAck(rec.frame)
		case FrameAck:
			if upto, ok := rec.frame.Opaque.(PacketNumber); ok {
				ctx.rangeDB.dropAckRanges(upto)
			}
		}

		if ctx.level == EncLevelApplication && c.path != nil {
			c.path.HandlePathMTU(0, c.tp.MaxUDPPayloadSize)
		}
	}

	c.ptoCount = 0
	c.events.PostPush()
	return nil
}

// sampleRTT implements RTT sampling on a newly-acked largest packet.
// ack.Delay is already decoded to a real duration by the surrounding parser (this core
// never applies ack_delay_exponent itself); only the post-handshake cap to
// max_ack_delay happens here.
func (c *Conn) sampleRTT(ack AckFrame, sendTime time.Time) {
	now := c.clock.Now()

	ackDelay := ack.Delay
	if c.handshakeConfirmed && ackDelay > c.ctp.MaxAckDelay {
		ackDelay = c.ctp.MaxAckDelay
	}

	c.rtt.update(now, sendTime, ackDelay)

	c.metrics.smoothedRTT.Set(c.rtt.avgRTT.Seconds())
	c.metrics.rttVariation.Set(c.rtt.rttvar.Seconds())
	c.metrics.minRTT.Set(c.rtt.minRTT.Seconds())
}
