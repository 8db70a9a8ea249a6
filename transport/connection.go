// Copyright 2025 The amqpd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package transport drives the per-connection AMQP 0-9-1 state machine:
// protocol version negotiation, SASL PLAIN authentication, connection.tune
// negotiation, heartbeats, and the channel multiplex loop that dispatches
// frames to broker operations. Faults split three ways: transport errors
// tear the socket down immediately, connection exceptions (5xx reply
// codes) close the connection via connection.close, channel exceptions
// (4xx) close one channel via channel.close and leave the rest running.
package transport

import (
	"bytes"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/amqpd/amqpd/auth"
	"github.com/amqpd/amqpd/broker"
	"github.com/amqpd/amqpd/common"
	"github.com/amqpd/amqpd/internal/amqperr"
	"github.com/amqpd/amqpd/internal/field"
	"github.com/amqpd/amqpd/internal/frame"
	"github.com/amqpd/amqpd/internal/methods"
	"github.com/amqpd/amqpd/internal/rescue"
	"github.com/amqpd/amqpd/logger"
	"github.com/amqpd/amqpd/metrics"
)

// serverProperties is the Connection.Start server-properties table.
func serverProperties() field.Table {
	var t field.Table
	t = t.Set("product", field.LongString(common.App))
	t = t.Set("version", field.LongString(common.Version))
	t = t.Set("platform", field.LongString("Go"))
	return t
}

// Config is the listener.* section of the broker's configuration file,
// unpacked by confengine.
type Config struct {
	Address        string `config:"address"`
	Heartbeat      uint16 `config:"heartbeat"`
	ChannelMax     uint16 `config:"channelMax"`
	FrameMax       uint32 `config:"frameMax"`
	MaxConnections int    `config:"maxConnections"`
}

func (c Config) withDefaults() Config {
	if c.Heartbeat == 0 {
		c.Heartbeat = common.DefaultHeartbeat
	}
	if c.ChannelMax == 0 {
		c.ChannelMax = common.DefaultChannelMax
	}
	if c.FrameMax == 0 {
		c.FrameMax = common.DefaultFrameMax
	}
	if c.MaxConnections <= 0 {
		c.MaxConnections = common.Concurrency() * 256
	}
	return c
}

// protocolHeader is the fixed 8-byte AMQP 0-9-1 preamble every connection
// starts with.
var protocolHeader = []byte{'A', 'M', 'Q', 'P', 0, 0, 9, 1}

// Listener accepts AMQP connections and runs one Connection goroutine per
// accepted socket.
type Listener struct {
	ln     net.Listener
	cfg    Config
	broker *broker.Broker
	auth   auth.Port

	mu    sync.Mutex
	conns map[*Connection]struct{}
}

// NewListener binds cfg.Address and returns a Listener ready to Serve.
func NewListener(cfg Config, br *broker.Broker, authPort auth.Port) (*Listener, error) {
	cfg = cfg.withDefaults()
	ln, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return nil, errors.Wrap(err, "amqp: listen")
	}
	return &Listener{ln: ln, cfg: cfg, broker: br, auth: authPort, conns: make(map[*Connection]struct{})}, nil
}

// Addr returns the listener's bound network address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Serve accepts connections until the listener is closed, spawning one
// goroutine per connection wrapped in rescue.HandleCrash so a single bad
// peer cannot take the broker process down.
func (l *Listener) Serve() error {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			return err
		}
		l.mu.Lock()
		if len(l.conns) >= l.cfg.MaxConnections {
			l.mu.Unlock()
			logger.Warnf("amqp: connection cap %d reached, rejecting %s", l.cfg.MaxConnections, conn.RemoteAddr())
			_ = conn.Close()
			continue
		}
		c := newConnection(conn, l.cfg, l.broker, l.auth)
		l.conns[c] = struct{}{}
		l.mu.Unlock()

		go func() {
			defer rescue.HandleCrash()
			c.serve()
			l.mu.Lock()
			delete(l.conns, c)
			l.mu.Unlock()
		}()
	}
}

// Close stops accepting new connections and closes every open one with a
// Connection-Forced reason.
func (l *Listener) Close() error {
	err := l.ln.Close()
	l.mu.Lock()
	conns := make([]*Connection, 0, len(l.conns))
	for c := range l.conns {
		conns = append(conns, c)
	}
	l.mu.Unlock()
	for _, c := range conns {
		c.closeWithError(amqperr.New(amqperr.ConnectionForced, "broker shutting down"))
	}
	return err
}

// Connection is one accepted AMQP socket and its negotiated parameters.
type Connection struct {
	id     string
	conn   net.Conn
	cfg    Config
	broker *broker.Broker
	auth   auth.Port

	channelMax uint16
	frameMax   uint32
	heartbeat  uint16

	writeMu sync.Mutex

	chMu     sync.Mutex
	channels map[uint16]*Channel
	// closingChs holds channel ids the server has sent Channel.Close on
	// and is still awaiting Close-Ok for. Frames arriving for them are
	// dropped silently: in Closing only Close-Ok is accepted.
	closingChs map[uint16]struct{}

	closing atomic.Bool
}

func newConnection(conn net.Conn, cfg Config, br *broker.Broker, authPort auth.Port) *Connection {
	return &Connection{
		id:         uuid.NewString(),
		conn:       conn,
		cfg:        cfg,
		broker:     br,
		auth:       authPort,
		channels:   make(map[uint16]*Channel),
		closingChs: make(map[uint16]struct{}),
	}
}

func (c *Connection) serve() {
	metrics.ConnectionsOpen.Inc()
	metrics.ConnectionsTotal.Inc()
	defer func() {
		metrics.ConnectionsOpen.Dec()
		_ = c.conn.Close()
	}()

	if err := c.handshake(); err != nil {
		logger.Warnf("amqp[%s]: handshake failed: %s", c.id, err)
		metrics.ConnectionsClosedByReason.WithLabelValues("handshake-failed").Inc()
		return
	}

	if c.heartbeat > 0 {
		done := make(chan struct{})
		defer close(done)
		go func() {
			defer rescue.HandleCrash()
			c.sendHeartbeats(done)
		}()
	}

	reason := c.loop()
	metrics.ConnectionsClosedByReason.WithLabelValues(reason).Inc()
}

// sendHeartbeats emits an empty heartbeat frame on channel 0 every
// negotiated heartbeat interval until done closes.
func (c *Connection) sendHeartbeats(done <-chan struct{}) {
	ticker := time.NewTicker(time.Duration(c.heartbeat) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := c.writeFrame(&frame.Frame{Kind: frame.Heartbeat, Channel: 0}); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// handshake runs version negotiation through Connection.Open-Ok:
// Start -> Start-Ok -> Tune -> Tune-Ok -> Open -> Open-Ok. Secure /
// Secure-Ok challenges are never issued for PLAIN.
func (c *Connection) handshake() error {
	if err := c.negotiateVersion(); err != nil {
		return err
	}

	if err := c.writeMethod(0, methods.ConnectionStart{
		VersionMajor:     0,
		VersionMinor:     9,
		ServerProperties: serverProperties(),
		Mechanisms:       []byte("PLAIN"),
		Locales:          []byte("en_US"),
	}); err != nil {
		return err
	}

	startOkFrame, err := c.readMethodFrame(0)
	if err != nil {
		return err
	}
	startOk, ok := startOkFrame.(methods.ConnectionStartOk)
	if !ok {
		return amqperr.New(amqperr.CommandInvalid, "expected connection.start-ok")
	}
	if startOk.Mechanism != "PLAIN" {
		return amqperr.Newf(amqperr.CommandInvalid, "unsupported SASL mechanism %q", startOk.Mechanism)
	}
	creds, err := auth.ParsePlainResponse(startOk.Response)
	if err != nil {
		return amqperr.New(amqperr.SyntaxError, "malformed SASL PLAIN response")
	}
	if _, err := c.auth.AuthenticatePlain(creds.AuthzID, creds.AuthcID, creds.Passwd); err != nil {
		_ = c.writeMethod(0, methods.ConnectionClose{ReplyCode: uint16(amqperr.AccessRefused), ReplyText: "authentication failed"})
		return amqperr.New(amqperr.AccessRefused, "authentication failed")
	}

	cfg := c.cfg.withDefaults()
	if err := c.writeMethod(0, methods.ConnectionTune{
		ChannelMax: cfg.ChannelMax,
		FrameMax:   cfg.FrameMax,
		Heartbeat:  cfg.Heartbeat,
	}); err != nil {
		return err
	}

	tuneOkFrame, err := c.readMethodFrame(0)
	if err != nil {
		return err
	}
	tuneOk, ok := tuneOkFrame.(methods.ConnectionTuneOk)
	if !ok {
		return amqperr.New(amqperr.CommandInvalid, "expected connection.tune-ok")
	}
	c.channelMax = negotiateCeiling(cfg.ChannelMax, tuneOk.ChannelMax)
	c.frameMax = negotiateCeiling(cfg.FrameMax, tuneOk.FrameMax)
	c.heartbeat = negotiateCeiling(cfg.Heartbeat, tuneOk.Heartbeat)

	openFrame, err := c.readMethodFrame(0)
	if err != nil {
		return err
	}
	open, ok := openFrame.(methods.ConnectionOpen)
	if !ok {
		return amqperr.New(amqperr.CommandInvalid, "expected connection.open")
	}
	_ = open.VirtualHost // virtual hosts are a Non-goal; any vhost name is accepted.

	if err := c.writeMethod(0, methods.ConnectionOpenOk{}); err != nil {
		return err
	}

	logger.Infof("amqp[%s]: connection opened from %s", c.id, c.conn.RemoteAddr())
	return nil
}

func (c *Connection) negotiateVersion() error {
	var header [8]byte
	if _, err := readFull(c.conn, header[:]); err != nil {
		return errors.Wrap(err, "amqp: read protocol header")
	}
	if !bytes.Equal(header[:5], []byte("AMQP\x00")) {
		_, _ = c.conn.Write(protocolHeader)
		return errors.New("amqp: wrong protocol preamble")
	}
	if !bytes.Equal(header[5:8], []byte{0, 9, 1}) {
		_, _ = c.conn.Write(protocolHeader)
		return errors.Errorf("amqp: unsupported protocol version %v", header[5:8])
	}
	return nil
}

// loop reads frames until the connection closes, returning a short reason
// string for metrics.ConnectionsClosedByReason.
func (c *Connection) loop() string {
	for {
		if c.heartbeat > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Duration(c.heartbeat) * time.Second))
		}
		f, err := frame.Read(c.conn, c.frameMax)
		if err != nil {
			if ae, ok := err.(*amqperr.Error); ok {
				c.closeWithError(ae)
				return "protocol-error"
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				logger.Warnf("amqp[%s]: heartbeat timeout", c.id)
				return "heartbeat-timeout"
			}
			return "read-error"
		}

		if f.Kind == frame.Heartbeat {
			continue
		}

		if f.Channel == 0 {
			if done, reason := c.handleConnectionFrame(f); done {
				return reason
			}
			continue
		}

		if err := c.dispatchChannelFrame(f); err != nil {
			if err == errClosed {
				return "connection-closed"
			}
		}
	}
}

func (c *Connection) handleConnectionFrame(f *frame.Frame) (done bool, reason string) {
	m, err := methods.Parse(f.Payload)
	if err != nil {
		c.closeWithError(err.(*amqperr.Error))
		return true, "protocol-error"
	}
	switch mm := m.(type) {
	case methods.ConnectionClose:
		_ = c.writeMethod(0, methods.ConnectionCloseOk{})
		logger.Infof("amqp[%s]: closed by peer: %d %s", c.id, mm.ReplyCode, mm.ReplyText)
		return true, "peer-closed"
	case methods.ConnectionCloseOk:
		return true, "server-closed"
	case methods.ChannelOpen:
		// Channel 0 is reserved for connection-level methods.
		c.closeWithError(amqperr.New(amqperr.ChannelError, "cannot open channel 0"))
		return true, "protocol-error"
	default:
		c.closeWithError(amqperr.New(amqperr.CommandInvalid, "unexpected method on channel 0"))
		return true, "protocol-error"
	}
}

func (c *Connection) dispatchChannelFrame(f *frame.Frame) error {
	if f.Kind == frame.Method {
		m, err := methods.Parse(f.Payload)
		if err != nil {
			c.handleError(err, f.Channel)
			return nil
		}
		if m.ClassID() == methods.ClassChannel {
			return c.handleChannelClassMethod(f.Channel, m)
		}

		ch := c.getChannel(f.Channel)
		if ch == nil {
			if c.isClosingChannel(f.Channel) {
				// Channel is in Closing: everything except Close-Ok is
				// silently dropped.
				return nil
			}
			c.closeWithError(amqperr.Newf(amqperr.ChannelError, "unknown channel %d", f.Channel))
			return errClosed
		}
		if err := ch.HandleMethod(m); err != nil {
			c.handleError(err, f.Channel)
		}
		return nil
	}

	// Header / Body frame: must belong to a channel mid-publish.
	ch := c.getChannel(f.Channel)
	if ch == nil {
		return nil
	}
	if err := ch.HandleContentFrame(f); err != nil {
		c.handleError(err, f.Channel)
	}
	return nil
}

func (c *Connection) handleChannelClassMethod(chID uint16, m methods.Method) error {
	switch mm := m.(type) {
	case methods.ChannelOpen:
		if chID == 0 || chID > c.channelMax {
			c.closeWithError(amqperr.New(amqperr.ChannelError, "channel number out of range"))
			return errClosed
		}
		c.chMu.Lock()
		_, exists := c.channels[chID]
		if exists {
			c.chMu.Unlock()
			c.closeWithError(amqperr.New(amqperr.ChannelError, "channel already open"))
			return errClosed
		}
		ch := newChannel(chID, c)
		c.channels[chID] = ch
		c.chMu.Unlock()
		metrics.ChannelsOpen.Inc()
		return c.writeMethod(chID, methods.ChannelOpenOk{})

	case methods.ChannelFlow:
		if ch := c.getChannel(chID); ch != nil {
			return c.writeMethod(chID, methods.ChannelFlowOk{Active: mm.Active})
		}
		return nil

	case methods.ChannelClose:
		ch := c.getChannel(chID)
		if ch != nil {
			c.teardownChannel(chID, ch)
		}
		c.clearClosingChannel(chID)
		return c.writeMethod(chID, methods.ChannelCloseOk{})

	case methods.ChannelCloseOk:
		c.clearClosingChannel(chID)
		return nil

	default:
		c.handleError(amqperr.New(amqperr.CommandInvalid, "unexpected channel-class method"), chID)
		return nil
	}
}

func (c *Connection) getChannel(id uint16) *Channel {
	c.chMu.Lock()
	defer c.chMu.Unlock()
	return c.channels[id]
}

func (c *Connection) isClosingChannel(id uint16) bool {
	c.chMu.Lock()
	defer c.chMu.Unlock()
	_, ok := c.closingChs[id]
	return ok
}

func (c *Connection) clearClosingChannel(id uint16) {
	c.chMu.Lock()
	delete(c.closingChs, id)
	c.chMu.Unlock()
}

// teardownChannel unregisters every consumer the channel owns, deletes
// any queue it owned exclusively, and requeues its unacked deliveries at
// the head of their source queues in arrival order.
func (c *Connection) teardownChannel(chID uint16, ch *Channel) {
	c.chMu.Lock()
	delete(c.channels, chID)
	c.chMu.Unlock()
	metrics.ChannelsOpen.Dec()

	removed, autoDelete := c.broker.RemoveChannelConsumers(ch)
	if len(removed) > 0 {
		logger.Debugf("amqp[%s]: cancelled %d consumers on channel close", c.id, len(removed))
	}
	for _, name := range autoDelete {
		_, _ = c.broker.Delete(name, false, false, nil)
	}
	for _, name := range c.broker.DeleteChannelExclusives(ch) {
		logger.Debugf("amqp[%s]: deleted exclusive queue %q on channel close", c.id, name)
	}

	for queue, msgs := range ch.drainUnacked() {
		c.broker.Requeue(queue, msgs)
	}
}

// handleError maps a protocol exception to either a channel close or a
// full connection close.
func (c *Connection) handleError(err error, chID uint16) {
	ae, ok := err.(*amqperr.Error)
	if !ok {
		ae = amqperr.Newf(amqperr.InternalError, "%s", err)
	}
	metrics.MethodErrors.WithLabelValues(fmt.Sprintf("%d", int(ae.Code))).Inc()

	if ae.IsConnectionException() {
		c.closeWithError(ae)
		return
	}

	ch := c.getChannel(chID)
	if ch != nil {
		c.teardownChannel(chID, ch)
	}
	c.chMu.Lock()
	c.closingChs[chID] = struct{}{}
	c.chMu.Unlock()
	_ = c.writeMethod(chID, methods.ChannelClose{
		ReplyCode: uint16(ae.Code),
		ReplyText: ae.Reason,
		ClassId:   ae.ClassID,
		MethodId:  ae.MethodID,
	})
}

// errClosed is a sentinel the read loop uses to stop after closeWithError
// has already written Connection.Close.
var errClosed = errors.New("amqp: connection closed")

// closeTimeout bounds how long the server waits for the peer's Close-Ok
// before tearing the socket down unilaterally.
const closeTimeout = 10 * time.Second

// closeWithError sends Connection.Close and waits briefly for the peer's
// Close-Ok before the caller tears down the socket.
func (c *Connection) closeWithError(ae *amqperr.Error) {
	if !c.closing.CompareAndSwap(false, true) {
		return
	}
	logger.Warnf("amqp[%s]: closing connection: %d %s", c.id, ae.Code, ae.Reason)
	_ = c.writeMethod(0, methods.ConnectionClose{
		ReplyCode: uint16(ae.Code),
		ReplyText: ae.Reason,
		ClassId:   ae.ClassID,
		MethodId:  ae.MethodID,
	})

	deadline := time.Now().Add(closeTimeout)
	_ = c.conn.SetReadDeadline(deadline)
	for {
		f, err := frame.Read(c.conn, c.frameMax)
		if err != nil {
			return
		}
		if f.Channel != 0 || f.Kind != frame.Method {
			continue
		}
		m, err := methods.Parse(f.Payload)
		if err != nil {
			continue
		}
		if _, ok := m.(methods.ConnectionCloseOk); ok {
			return
		}
		if _, ok := m.(methods.ConnectionClose); ok {
			_ = c.writeMethod(0, methods.ConnectionCloseOk{})
			return
		}
	}
}

func (c *Connection) writeMethod(channel uint16, m methods.Method) error {
	payload, err := methods.Serialize(m)
	if err != nil {
		return err
	}
	return c.writeFrame(&frame.Frame{Kind: frame.Method, Channel: channel, Payload: payload})
}

func (c *Connection) writeFrame(f *frame.Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return frame.Write(c.conn, f, c.frameMax)
}

// readMethodFrame reads one frame on channel and parses it as a method,
// used only during the handshake before the channel multiplex loop starts.
func (c *Connection) readMethodFrame(channel uint16) (methods.Method, error) {
	f, err := frame.Read(c.conn, 0)
	if err != nil {
		return nil, errors.Wrap(err, "amqp: read handshake frame")
	}
	if f.Channel != channel || f.Kind != frame.Method {
		return nil, amqperr.New(amqperr.UnexpectedFrame, "expected a method frame on channel 0")
	}
	return methods.Parse(f.Payload)
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := conn.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// negotiateCeiling settles one connection.tune field on the minimum of
// both proposals, 0 meaning "no limit" from that side. Heartbeats follow
// the same rule: both sides must propose 0 for them to stay off.
func negotiateCeiling[T ~uint16 | ~uint32](server, client T) T {
	switch {
	case server == 0:
		return client
	case client == 0:
		return server
	default:
		return min(server, client)
	}
}

