package qloss

import (
	"testing"
	"time"
)

func newTestCC() *congestionController {
	return newCongestionController(CongestionConfig{InitialWindowPackets: 10}, 1200, 30*time.Second)
}

func TestInitialWindowMatchesConfiguredPackets(t *testing.T) {
	cc := newTestCC()
	if got, want := cc.Window(), 10*1200; got != want {
		t.Errorf("got initial window %d, want %d", got, want)
	}
	if cc.Ssthresh() <= cc.Window() {
		t.Error("expected initial ssthresh to be effectively infinite (above the initial window)")
	}
}

func TestSlowStartGrowsWindowByAckedBytes(t *testing.T) {
	cc := newTestCC()
	now := time.Unix(0, 0)

	cc.OnPacketSent(1200)
	before := cc.Window()

	rec := &sentFrameRecord{pnum: 0, sendTime: now, plen: 1200}
	cc.OnPacketAcked(now.Add(10*time.Millisecond), rec, 0)

	if cc.Window() != before+1200 {
		t.Errorf("expected slow-start growth of 1200, got window %d (was %d)", cc.Window(), before)
	}
	if cc.InFlight() != 0 {
		t.Errorf("expected in_flight to drop to 0, got %d", cc.InFlight())
	}
}

// TestLossHalvesWindowAndSetsSsthresh verifies that a congestion_lost halves
// the window, keeps window >= 2*maxUDPPayloadSize, and sets ssthresh == window.
func TestLossHalvesWindowAndSetsSsthresh(t *testing.T) {
	cc := newTestCC()
	now := time.Unix(0, 0)

	cc.OnPacketSent(1200)
	rec := &sentFrameRecord{pnum: 0, sendTime: now, plen: 1200}
	cc.OnPacketLost(now.Add(50*time.Millisecond), rec, 0)

	if want := 10 * 1200 / 2; cc.Window() != want {
		t.Errorf("expected window halved to %d, got %d", want, cc.Window())
	}

	if cc.Window() < 2*1200 {
		t.Errorf("window %d below floor %d", cc.Window(), 2*1200)
	}
	if cc.Ssthresh() != cc.Window() {
		t.Errorf("expected ssthresh == window after loss, got ssthresh=%d window=%d", cc.Ssthresh(), cc.Window())
	}
	if rec.plen != 0 {
		t.Error("expected plen zeroed on the lost record to prevent double-accounting")
	}
}

func TestPersistentCongestionCollapsesWindow(t *testing.T) {
	cc := newTestCC()
	now := time.Unix(0, 0)

	cc.OnPersistentCongestion(now)

	if cc.Window() != 2*1200 {
		t.Errorf("expected window collapsed to 2*maxUDPPayloadSize=%d, got %d", 2*1200, cc.Window())
	}
}

func TestAckDuringRecoveryDoesNotGrowWindow(t *testing.T) {
	cc := newTestCC()
	t0 := time.Unix(0, 0)

	cc.OnPacketSent(1200)
	lost := &sentFrameRecord{pnum: 0, sendTime: t0, plen: 1200}
	cc.OnPacketLost(t0.Add(5*time.Millisecond), lost, 0)
	windowAfterLoss := cc.Window()

	// A packet sent before recovery_start acks later: must not grow window.
	cc.OnPacketSent(1200)
	stale := &sentFrameRecord{pnum: 1, sendTime: t0, plen: 1200}
	cc.OnPacketAcked(t0.Add(10*time.Millisecond), stale, 0)

	if cc.Window() != windowAfterLoss {
		t.Errorf("expected window unchanged during recovery, got %d (was %d)", cc.Window(), windowAfterLoss)
	}
}

func TestRstPnumGatesAccounting(t *testing.T) {
	cc := newTestCC()
	now := time.Unix(0, 0)

	cc.OnPacketSent(1200)
	rec := &sentFrameRecord{pnum: 5, sendTime: now, plen: 1200}

	unblock := cc.OnPacketAcked(now, rec, 10) // rstPnum=10 > pnum=5
	if unblock {
		t.Error("expected no unblock signal for a pre-reset packet")
	}
	if cc.InFlight() != 1200 {
		t.Error("expected pre-reset ack to be ignored entirely")
	}
}
