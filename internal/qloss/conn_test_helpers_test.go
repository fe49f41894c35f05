package qloss

import (
	"time"

	"github.com/aetherflow/qloss/pkg/guuid"
)

func guuidForTest() guuid.GUUID {
	g, err := guuid.New()
	if err != nil {
		panic(err)
	}
	return g
}

// fakeClock lets tests advance time deterministically instead of reading
// the wall clock.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }
func (c *fakeClock) advance(d time.Duration) {
	c.now = c.now.Add(d)
}

// fakeSender records every frame handed to it for immediate send or
// queued for later.
type fakeSender struct {
	sent      []Frame
	sentFlags []SendFlags
	queued    []Frame
	failOn    FrameType // SendFrame errors for this type; the zero value is FrameAck
}

func (s *fakeSender) SendFrame(level EncLevel, f Frame, flags SendFlags) error {
	if s.failOn == f.Type {
		return &ProtocolViolationError{Reason: "injected failure"}
	}
	s.sent = append(s.sent, f)
	s.sentFlags = append(s.sentFlags, flags)
	return nil
}

func (s *fakeSender) QueueFrame(level EncLevel, f Frame) {
	s.queued = append(s.queued, f)
}

// fakeStreamHost reports every stream as open unless told otherwise.
type fakeStreamHost struct {
	states map[uint64]StreamState
	acked  []Frame
}

func (h *fakeStreamHost) HandleStreamAck(f Frame) {
	h.acked = append(h.acked, f)
}

func (h *fakeStreamHost) FindStream(id uint64) (StreamState, bool) {
	if h.states == nil {
		return StreamOpen, true
	}
	s, ok := h.states[id]
	if !ok {
		return StreamOpen, true
	}
	return s, true
}

type fakePathHost struct {
	calls int
}

func (p *fakePathHost) HandlePathMTU(minSize, maxSize int) { p.calls++ }

// fakeKeyHost reports keys as available by default (zero value), so tests
// that don't care about key availability are never blocked. Set unavailable
// to true to simulate keys not yet installed for a level.
type fakeKeyHost struct {
	unavailable bool
}

func (k *fakeKeyHost) KeysAvailable(level EncLevel, isSend bool) bool {
	return !k.unavailable
}

type fakeEvents struct {
	pushes   int
	armed    map[TimerID]time.Duration
	disarmed map[TimerID]bool
}

func newFakeEvents() *fakeEvents {
	return &fakeEvents{
		armed:    make(map[TimerID]time.Duration),
		disarmed: make(map[TimerID]bool),
	}
}

func (e *fakeEvents) PostPush() { e.pushes++ }
func (e *fakeEvents) ArmTimer(id TimerID, d time.Duration) {
	e.armed[id] = d
	delete(e.disarmed, id)
}
func (e *fakeEvents) DisarmTimer(id TimerID) {
	e.disarmed[id] = true
	delete(e.armed, id)
}

type fakeCloser struct {
	closedWith error
	closed     bool
}

func (c *fakeCloser) CloseConnection(err error) {
	c.closed = true
	c.closedWith = err
}

// newTestConn builds a Conn wired entirely to fakes, for tests that drive
// the loss-recovery algorithms directly.
func newTestConn(clock *fakeClock) (*Conn, *fakeSender, *fakeStreamHost, *fakeEvents, *fakeCloser) {
	sender := &fakeSender{}
	streams := &fakeStreamHost{}
	events := newFakeEvents()
	closer := &fakeCloser{}

	cfg := DefaultConfig()
	conn := NewConn(guuidForTest(), cfg, Deps{
		Clock:   clock,
		Sender:  sender,
		Streams: streams,
		Path:    &fakePathHost{},
		Keys:    &fakeKeyHost{},
		Events:  events,
		Closer:  closer,
	})
	return conn, sender, streams, events, closer
}
