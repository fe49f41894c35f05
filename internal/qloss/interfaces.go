package qloss

import "time"

// SendFlags qualifies an immediate frame emission (e.g. PTO probes must
// bypass congestion accounting).
type SendFlags struct {
	IgnoreCongestion bool
}

// Sender is the surrounding connection's transmit path: the collaborator
// that actually puts bytes on the wire or queues a frame for the next
// outgoing packet.
type Sender interface {
	SendFrame(level EncLevel, f Frame, flags SendFlags) error
	QueueFrame(level EncLevel, f Frame)
}

// StreamState is the minimal view of stream lifecycle this core needs to
// decide whether a lost STREAM/RESET_STREAM frame should be resent.
type StreamState int

const (
	StreamOpen StreamState = iota
	StreamResetSent
	StreamResetRecvd
)

// StreamHost is the stream-layer collaborator consulted on ack and on
// loss-triggered resend.
type StreamHost interface {
	HandleStreamAck(f Frame)
	FindStream(id uint64) (state StreamState, ok bool)
}

// PathHost receives path-MTU updates observed while walking acked ranges
// at the Application encryption level.
type PathHost interface {
	HandlePathMTU(minSize, maxSize int)
}

// KeyHost answers whether keys for a given level are installed, gating
// ACK emission (a level with no send keys cannot emit).
type KeyHost interface {
	KeysAvailable(level EncLevel, isSend bool) bool
}

// TimerID names one of the two timers this core arms; at most one is
// armed at a time.
type TimerID int

const (
	TimerLoss TimerID = iota
	TimerPTO
)

// EventPoster is the scheduling collaborator: posting the "push" wakeup
// event and arming/disarming the loss/PTO timer.
type EventPoster interface {
	PostPush()
	ArmTimer(id TimerID, d time.Duration)
	DisarmTimer(id TimerID)
}

// ConnCloser is invoked with a fatal error when ACK processing fails;
// the surrounding connection performs the actual close.
type ConnCloser interface {
	CloseConnection(err error)
}
