package qloss

import "fmt"

// FrameType tags the payload carried by a sent packet record, so that loss
// detection knows how (or whether) to schedule a frame for retransmission.
type FrameType uint8

const (
	FrameAck FrameType = iota
	FrameStream
	FrameResetStream
	FramePing
	FramePathChallenge
	FramePathResponse
	FrameConnectionClose
	FrameMaxData
	FrameMaxStreams
	FrameMaxStreams2
	FrameMaxStreamData
	FrameOther
)

func (t FrameType) String() string {
	switch t {
	case FrameAck:
		return "ACK"
	case FrameStream:
		return "STREAM"
	case FrameResetStream:
		return "RESET_STREAM"
	case FramePing:
		return "PING"
	case FramePathChallenge:
		return "PATH_CHALLENGE"
	case FramePathResponse:
		return "PATH_RESPONSE"
	case FrameConnectionClose:
		return "CONNECTION_CLOSE"
	case FrameMaxData:
		return "MAX_DATA"
	case FrameMaxStreams:
		return "MAX_STREAMS(bidi)"
	case FrameMaxStreams2:
		return "MAX_STREAMS(uni)"
	case FrameMaxStreamData:
		return "MAX_STREAM_DATA"
	case FrameOther:
		return "OTHER"
	default:
		return fmt.Sprintf("FrameType(%d)", uint8(t))
	}
}

// Frame is a tagged union over the frame kinds loss recovery cares about.
// Only the fields relevant to Type are populated; the rest are zero.
type Frame struct {
	Type FrameType

	// StreamID identifies the affected stream for FrameStream,
	// FrameResetStream, and FrameMaxStreamData.
	StreamID uint64

	// Offset and Length describe the byte range carried by a FrameStream;
	// loss recovery requeues the frame with them unchanged.
	Offset uint64
	Length uint64

	// Fin reports whether a FrameStream closed the stream.
	Fin bool

	// MaxStreamsType distinguishes bidirectional (false) from
	// unidirectional (true) limits when Type is FrameMaxStreams or
	// FrameMaxStreams2; kept for symmetry with the wire encoding, not
	// consulted by loss recovery itself.
	MaxStreamsType bool

	// PathData carries the 8-byte payload of a PATH_CHALLENGE or
	// PATH_RESPONSE frame, which must be byte-identical on resend.
	PathData [8]byte

	// Opaque holds an application-defined handle for FrameOther, passed
	// back to the host unchanged when the frame is deemed lost. It also
	// carries the largest packet number covered by a FrameAck record, so
	// rangeAck can drop sender-side range-DB bookkeeping once that ACK is
	// itself acknowledged.
	Opaque any
}
