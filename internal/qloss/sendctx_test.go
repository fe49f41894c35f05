package qloss

import (
	"testing"
	"time"
)

func TestRecordOnWireAssignsAscendingPnums(t *testing.T) {
	ctx := newSendCtx(EncLevelApplication, DefaultConfig().Loss)
	now := time.Unix(0, 0)

	pn0 := ctx.recordOnWire(now, []Frame{{Type: FramePing}}, 100, false)
	pn1 := ctx.recordOnWire(now.Add(time.Millisecond), []Frame{{Type: FramePing}}, 100, false)

	if pn0 != 0 || pn1 != 1 {
		t.Fatalf("expected pnums 0,1, got %d,%d", pn0, pn1)
	}
	if ctx.pnum != 2 {
		t.Fatalf("expected next pnum 2, got %d", ctx.pnum)
	}
}

func TestRecordOnWireKeepsContiguousPnumRun(t *testing.T) {
	ctx := newSendCtx(EncLevelApplication, DefaultConfig().Loss)
	now := time.Unix(0, 0)

	ctx.recordOnWire(now, []Frame{{Type: FrameStream}, {Type: FramePing}, {Type: FrameAck}}, 1200, false)

	if len(ctx.sent) != 3 {
		t.Fatalf("expected 3 records sharing one pnum, got %d", len(ctx.sent))
	}
	for _, rec := range ctx.sent {
		if rec.pnum != 0 {
			t.Errorf("expected all records to share pnum 0, got %d", rec.pnum)
		}
	}
	if ctx.sent[0].plen != 1200 {
		t.Errorf("expected plen counted once on the first record, got %d", ctx.sent[0].plen)
	}
	if ctx.sent[1].plen != 0 || ctx.sent[2].plen != 0 {
		t.Error("expected plen to be zero on every record but the first")
	}
}

func TestLookupRangeFindsBoundedSpan(t *testing.T) {
	ctx := newSendCtx(EncLevelApplication, DefaultConfig().Loss)
	now := time.Unix(0, 0)
	for i := 0; i < 5; i++ {
		ctx.recordOnWire(now, []Frame{{Type: FramePing}}, 100, false)
	}

	lo, hi := ctx.lookupRange(1, 3)
	if lo != 1 || hi != 4 {
		t.Fatalf("expected [1,4), got [%d,%d)", lo, hi)
	}

	lo, hi = ctx.lookupRange(10, 20)
	if lo != 0 || hi != 0 {
		t.Fatalf("expected empty range for out-of-bounds lookup, got [%d,%d)", lo, hi)
	}
}

func TestRemoveAtPreservesOrderOfRemainder(t *testing.T) {
	ctx := newSendCtx(EncLevelApplication, DefaultConfig().Loss)
	now := time.Unix(0, 0)
	for i := 0; i < 5; i++ {
		ctx.recordOnWire(now, []Frame{{Type: FramePing}}, 100, false)
	}

	removed := ctx.removeAt(1, 3)
	if len(removed) != 2 {
		t.Fatalf("expected 2 removed records, got %d", len(removed))
	}
	if len(ctx.sent) != 3 {
		t.Fatalf("expected 3 remaining records, got %d", len(ctx.sent))
	}
	want := []PacketNumber{0, 3, 4}
	for i, rec := range ctx.sent {
		if rec.pnum != want[i] {
			t.Errorf("remaining[%d]: got pnum %d, want %d", i, rec.pnum, want[i])
		}
	}
}

func TestDropAllFreesEverything(t *testing.T) {
	ctx := newSendCtx(EncLevelInitial, DefaultConfig().Loss)
	now := time.Unix(0, 0)
	ctx.recordOnWire(now, []Frame{{Type: FramePing}}, 100, false)
	ctx.recordOnWire(now, []Frame{{Type: FramePing}}, 200, false)
	ctx.enqueue(Frame{Type: FrameOther})

	freed := ctx.dropAll()

	if freed != 300 {
		t.Errorf("expected 300 bytes freed, got %d", freed)
	}
	if !ctx.empty() {
		t.Error("expected sent queue to be empty after dropAll")
	}
	if len(ctx.frames) != 0 {
		t.Error("expected queued frames to be cleared after dropAll")
	}
}
