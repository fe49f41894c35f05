package qloss

import "time"

// defaultMaxRanges bounds the receiver-side range table at a fixed small
// size; newRangeDB uses it when LossConfig.MaxRanges is zero.
// Config.MaxRanges overrides it per connection.
const defaultMaxRanges = 64

// defaultMaxAckGap is the fallback for maxAckGap: the number of outstanding
// un-acked receptions (or a single out-of-order arrival) that forces an
// immediate ACK rather than a delayed one. Config.MaxAckGap overrides it
// per connection.
const defaultMaxAckGap = 2

// ackRange is one contiguous, disjoint block of received-and-not-yet-dropped
// packet numbers, [lo, hi] inclusive. The range DB keeps these sorted
// descending by hi; blocks never touch or overlap.
type ackRange struct {
	lo, hi PacketNumber
}

// rangeDB is the receiver-side ACK range table: a bounded set
// of disjoint received-packet-number ranges used to build outgoing ACK
// frames, plus the bookkeeping that decides when an ACK must be sent.
type rangeDB struct {
	maxRanges int
	maxAckGap int

	blocks []ackRange // descending by hi; blocks[0] holds largestRange

	pendingAck    PacketNumber // largest PN seen since the last ACK emission, or UnsetPN
	sendAck       int          // outstanding-ACK counter
	ackDelayStart time.Time
}

// newRangeDB constructs an empty range DB using cfg's MaxRanges/MaxAckGap,
// falling back to the package defaults for any unset (zero) field.
func newRangeDB(cfg LossConfig) rangeDB {
	maxRanges := cfg.MaxRanges
	if maxRanges == 0 {
		maxRanges = defaultMaxRanges
	}
	maxAckGap := cfg.MaxAckGap
	if maxAckGap == 0 {
		maxAckGap = defaultMaxAckGap
	}
	return rangeDB{
		maxRanges:  maxRanges,
		maxAckGap:  maxAckGap,
		pendingAck: UnsetPN,
	}
}

// empty reports whether the DB has ever recorded a packet number.
func (d *rangeDB) empty() bool {
	return len(d.blocks) == 0
}

// largestRange returns the highest packet number currently tracked, or
// UnsetPN if the DB is empty.
func (d *rangeDB) largestRange() PacketNumber {
	if d.empty() {
		return UnsetPN
	}
	return d.blocks[0].hi
}

// contains reports whether pn falls inside some tracked range.
func (d *rangeDB) contains(pn PacketNumber) bool {
	for _, b := range d.blocks {
		if pn >= b.lo && pn <= b.hi {
			return true
		}
		if pn > b.hi {
			return false
		}
	}
	return false
}

// onPacketReceived updates the range DB for a newly received packet number.
// When needAck is true, the reception is ack-eliciting and contributes to
// the delayed-ack accounting.
func (d *rangeDB) onPacketReceived(now time.Time, pn PacketNumber, needAck bool) {
	if needAck {
		if d.sendAck == 0 {
			d.ackDelayStart = now
		}
		d.sendAck++
		if d.pendingAck == UnsetPN || pn > d.pendingAck {
			d.pendingAck = pn
		}
	}

	switch {
	case d.empty():
		d.blocks = []ackRange{{lo: pn, hi: pn}}
		return
	case d.contains(pn):
		return // already tracked, no-op
	}

	d.insert(pn)
}

// insert places pn into the block list, merging with any block(s) it
// becomes adjacent to, splitting or appending as needed, and honors the
// fixed-size bound by forcing an immediate ACK rather than growing past
// maxRanges.
func (d *rangeDB) insert(pn PacketNumber) {
	// Find the insertion point: the first block whose hi < pn (blocks is
	// sorted descending by hi).
	idx := len(d.blocks)
	for i, b := range d.blocks {
		if b.hi < pn {
			idx = i
			break
		}
	}

	touchesAbove := idx > 0 && d.blocks[idx-1].lo == pn+1
	touchesBelow := idx < len(d.blocks) && d.blocks[idx].hi == pn-1

	switch {
	case touchesAbove && touchesBelow:
		// Fills the single-PN gap between two tracked blocks: merge them.
		d.blocks[idx-1].lo = d.blocks[idx].lo
		d.blocks = append(d.blocks[:idx], d.blocks[idx+1:]...)
	case touchesAbove:
		d.blocks[idx-1].lo = pn
	case touchesBelow:
		// Plain contiguous extension of an existing block (most commonly
		// the front range growing by one in order): no new range appears,
		// so no immediate ACK is forced.
		d.blocks[idx].hi = pn
	default:
		if len(d.blocks) >= d.maxRanges {
			// Table is full: force an immediate ACK and drop the oldest
			// tracked range to make room. The dropped range is not
			// reported in later ACK frames.
			d.forceAck()
			d.blocks = d.blocks[:len(d.blocks)-1]
			if idx > len(d.blocks) {
				idx = len(d.blocks)
			}
		}
		d.blocks = append(d.blocks, ackRange{})
		copy(d.blocks[idx+1:], d.blocks[idx:])
		d.blocks[idx] = ackRange{lo: pn, hi: pn}
		d.forceAck()
	}
}

// forceAck marks that an immediate ACK is owed, bypassing the delayed-ack
// heuristic in generateAck (used for out-of-order arrivals and new front
// ranges).
func (d *rangeDB) forceAck() {
	d.sendAck = d.maxAckGap
}

// dropAckRanges truncates tracked ranges at or below uptoPN, called once
// the peer's own ACK tells us those packet numbers need not be re-acked.
func (d *rangeDB) dropAckRanges(uptoPN PacketNumber) {
	kept := d.blocks[:0]
	for _, b := range d.blocks {
		if b.hi <= uptoPN {
			continue
		}
		if b.lo <= uptoPN {
			b.lo = uptoPN + 1
		}
		kept = append(kept, b)
	}
	d.blocks = kept

	if d.pendingAck != UnsetPN && d.pendingAck <= uptoPN {
		d.pendingAck = UnsetPN
	}
}

// AckFrame is the decoded representation of an RFC 9000 §19.3 ACK frame:
// largest acked PN, the peer's reported ack delay, and the first range
// plus any subsequent (gap, range) pairs. Wire encode/decode is the
// surrounding parser's job; this core only consumes and produces this
// struct.
type AckFrame struct {
	Largest    PacketNumber
	Delay      time.Duration
	FirstRange int
	Ranges     []struct{ Gap, Range int }
}

// buildAckFrame renders the current tracked ranges as an AckFrame ready
// for transmission. It does not mutate the DB.
func (d *rangeDB) buildAckFrame(delay time.Duration) AckFrame {
	af := AckFrame{Largest: d.largestRange(), Delay: delay}
	if d.empty() {
		return af
	}
	af.FirstRange = int(d.blocks[0].hi - d.blocks[0].lo)
	for i := 1; i < len(d.blocks); i++ {
		prevLo := d.blocks[i-1].lo
		gap := int(prevLo-d.blocks[i].hi) - 2
		rng := int(d.blocks[i].hi - d.blocks[i].lo)
		af.Ranges = append(af.Ranges, struct{ Gap, Range int }{gap, rng})
	}
	return af
}

// generateAck decides whether an ACK is owed right now. It returns
// (frame, true) when one should be emitted immediately, or
// (zero, false) together with a non-zero delay when emission should be
// deferred to the delayed-ack timer.
func (d *rangeDB) generateAck(now time.Time, level EncLevel, hasPendingFrames bool, maxAckDelay time.Duration) (frame AckFrame, emit bool, deferFor time.Duration) {
	if d.sendAck == 0 {
		return AckFrame{}, false, 0
	}

	if level == EncLevelApplication && !hasPendingFrames && d.sendAck < d.maxAckGap {
		elapsed := now.Sub(d.ackDelayStart)
		if elapsed < maxAckDelay {
			return AckFrame{}, false, maxAckDelay - elapsed
		}
	}

	af := d.buildAckFrame(now.Sub(d.ackDelayStart))
	d.sendAck = 0
	d.pendingAck = UnsetPN
	return af, true, 0
}
