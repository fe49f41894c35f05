package qloss

import "fmt"

// FrameEncodingError reports a malformed ACK frame: a negative computed
// packet number, or a range that overruns the preceding minimum. It
// terminates processing of the packet that carried the frame.
type FrameEncodingError struct {
	Reason string
}

func (e *FrameEncodingError) Error() string {
	return fmt.Sprintf("frame encoding error: %s", e.Reason)
}

// ProtocolViolationError reports an ACK referencing a packet number never
// sent in the relevant encryption level. It terminates processing of the
// packet that carried the frame.
type ProtocolViolationError struct {
	Reason string
}

func (e *ProtocolViolationError) Error() string {
	return fmt.Sprintf("protocol violation: %s", e.Reason)
}
