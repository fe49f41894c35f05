package qloss

import (
	"context"
	"time"

	"github.com/aetherflow/qloss/pkg/guuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// peerTransportParams mirrors the peer's advertised
// transport parameters this core must respect when interpreting ACKs.
// ack_delay_exponent has no place here: AckFrame.Delay arrives already
// decoded to a real duration by the surrounding parser, so this core never
// applies the exponent itself.
type peerTransportParams struct {
	MaxAckDelay    time.Duration
	MaxIdleTimeout time.Duration
}

// Conn is the per-connection loss-recovery and congestion-control core:
// three Send Contexts, RTT/congestion state, and the loss/PTO timers, all
// driven by a single cooperative event loop. Conn carries no internal
// mutex — the caller's single event-loop goroutine is the unit of
// synchronization.
type Conn struct {
	id guuid.GUUID

	clock  Clock
	sender Sender
	streams StreamHost
	path    PathHost
	keys    KeyHost
	events  EventPoster
	closer  ConnCloser

	log     *debugLogLimiter
	trace   *tracer
	metrics *metrics

	cfg *Config

	ctxs [numEncLevels]*sendCtx
	cc   *congestionController
	rtt  rttStats

	ptoCount int
	rstPnum  PacketNumber

	ctp peerTransportParams
	tp  TransportConfig

	handshakeConfirmed bool
	closing            bool
}

// Deps bundles every external collaborator Conn needs, all consumed as
// narrow interfaces and dependency-injected at construction.
type Deps struct {
	Clock   Clock
	Sender  Sender
	Streams StreamHost
	Path    PathHost
	Keys    KeyHost
	Events  EventPoster
	Closer  ConnCloser

	Logger   *zap.Logger
	Registry prometheus.Registerer
	Tracer   *tracer
}

// NewConn constructs a Conn for one connection identified by id, wiring
// cfg's tunables into fresh Send Contexts and a NewReno congestion
// controller seeded at the configured initial window.
func NewConn(id guuid.GUUID, cfg *Config, deps Deps) *Conn {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if deps.Clock == nil {
		deps.Clock = NewClock()
	}

	c := &Conn{
		id:      id,
		clock:   deps.Clock,
		sender:  deps.Sender,
		streams: deps.Streams,
		path:    deps.Path,
		keys:    deps.Keys,
		events:  deps.Events,
		closer:  deps.Closer,
		log:     newDebugLogLimiter(deps.Logger, 50, 10),
		trace:   deps.Tracer,
		metrics: newMetrics(deps.Registry),
		cfg:     cfg,
		rstPnum: 0,
		ctp: peerTransportParams{
			MaxAckDelay:    cfg.Transport.MaxAckDelay,
			MaxIdleTimeout: cfg.Transport.MaxIdleTimeout,
		},
		tp: cfg.Transport,
	}

	for lvl := 0; lvl < numEncLevels; lvl++ {
		c.ctxs[lvl] = newSendCtx(EncLevel(lvl), cfg.Loss)
	}
	c.cc = newCongestionController(cfg.Congestion, cfg.Transport.MaxUDPPayloadSize, cfg.Transport.MaxIdleTimeout)

	return c
}

// ID returns the connection identifier used to correlate this Conn's logs,
// metrics, and traces.
func (c *Conn) ID() guuid.GUUID { return c.id }

// ConfirmHandshake marks the handshake complete, enabling max_ack_delay in
// RTT sampling and PTO base computation.
func (c *Conn) ConfirmHandshake() { c.handshakeConfirmed = true }

// SetRstPnum moves the congestion-accounting boundary forward, e.g. after
// a path validation reset.
func (c *Conn) SetRstPnum(pn PacketNumber) { c.rstPnum = pn }

// Enqueue queues f for transmission at level, to be bundled into the next
// outgoing packet at that level.
func (c *Conn) Enqueue(level EncLevel, f Frame) {
	c.ctxs[level].enqueue(f)
}

// SendPacket records fs as having just gone out in one packet at level,
// assigning the packet number and accounting plen bytes toward the
// congestion window unless ignoreCongestion is set. It returns the
// assigned packet number.
func (c *Conn) SendPacket(level EncLevel, fs []Frame, plen int, ignoreCongestion bool) PacketNumber {
	recPlen := plen
	if ignoreCongestion {
		recPlen = 0
	}
	pn := c.ctxs[level].recordOnWire(c.clock.Now(), fs, recPlen, ignoreCongestion)
	if !ignoreCongestion {
		c.cc.OnPacketSent(plen)
		c.metrics.bytesInFlight.Set(float64(c.cc.InFlight()))
		c.metrics.congestionWindow.Set(float64(c.cc.Window()))
	}
	c.rescheduleTimers()
	return pn
}

// DropKeys discards every in-flight frame at level,
// used when encryption keys for that level are discarded.
func (c *Conn) DropKeys(level EncLevel) {
	freed := c.ctxs[level].dropAll()
	if freed > 0 {
		c.cc.reduceInFlight(freed)
	}
	c.rescheduleTimers()
}

// OnPacketReceived updates the range DB for level with a newly received
// packet number.
func (c *Conn) OnPacketReceived(level EncLevel, pn PacketNumber, needAck bool) {
	c.ctxs[level].rangeDB.onPacketReceived(c.clock.Now(), pn, needAck)
}

// GenerateAck decides whether an ACK is owed for level right now.
// hasPendingFrames should report whether other data is already queued to
// piggyback the ACK on.
func (c *Conn) GenerateAck(level EncLevel, hasPendingFrames bool) (frame AckFrame, emit bool, deferFor time.Duration) {
	if c.keys != nil && !c.keys.KeysAvailable(level, true) {
		return AckFrame{}, false, 0
	}
	return c.ctxs[level].rangeDB.generateAck(c.clock.Now(), level, hasPendingFrames, c.ctp.MaxAckDelay)
}

// Close marks the connection as closing: subsequent resends of lost
// frames no longer post the wakeup event.
func (c *Conn) Close(ctx context.Context, err error) {
	c.closing = true
	c.events.DisarmTimer(TimerLoss)
	c.events.DisarmTimer(TimerPTO)
	if c.trace != nil {
		_ = c.trace.shutdown(ctx)
	}
	if c.closer != nil {
		c.closer.CloseConnection(err)
	}
}

// Statistics returns a point-in-time snapshot of congestion and RTT state,
// suitable for logging.
func (c *Conn) Statistics() map[string]int64 {
	stats := c.cc.Statistics()
	stats["smoothed_rtt_ms"] = c.rtt.avgRTT.Milliseconds()
	stats["rttvar_ms"] = c.rtt.rttvar.Milliseconds()
	stats["min_rtt_ms"] = c.rtt.minRTT.Milliseconds()
	stats["pto_count"] = int64(c.ptoCount)
	return stats
}
