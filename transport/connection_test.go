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

package transport

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amqpd/amqpd/auth"
	"github.com/amqpd/amqpd/broker"
	"github.com/amqpd/amqpd/internal/content"
	"github.com/amqpd/amqpd/internal/frame"
	"github.com/amqpd/amqpd/internal/methods"
)

func newTestListener(t *testing.T) *Listener {
	t.Helper()
	br := broker.New(nil)
	users := auth.NewStaticUsers(map[string]string{"guest": "guest"})
	l, err := NewListener(Config{Address: "127.0.0.1:0"}, br, users)
	require.NoError(t, err)
	go l.Serve()
	t.Cleanup(func() { _ = l.Close() })
	return l
}

// testClient speaks just enough client-side AMQP to drive the scenarios.
type testClient struct {
	t    *testing.T
	conn net.Conn
}

func dialBroker(t *testing.T, l *Listener) *testClient {
	t.Helper()
	conn, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetDeadline(time.Now().Add(10 * time.Second))
	return &testClient{t: t, conn: conn}
}

func (c *testClient) writeFrame(f *frame.Frame) {
	c.t.Helper()
	require.NoError(c.t, frame.Write(c.conn, f, 0))
}

func (c *testClient) writeMethod(channel uint16, m methods.Method) {
	c.t.Helper()
	payload, err := methods.Serialize(m)
	require.NoError(c.t, err)
	c.writeFrame(&frame.Frame{Kind: frame.Method, Channel: channel, Payload: payload})
}

func (c *testClient) readFrame() *frame.Frame {
	c.t.Helper()
	f, err := frame.Read(c.conn, 0)
	require.NoError(c.t, err)
	return f
}

// readMethod skips heartbeat frames and returns the next method frame.
func (c *testClient) readMethod() (uint16, methods.Method) {
	c.t.Helper()
	for {
		f := c.readFrame()
		if f.Kind == frame.Heartbeat {
			continue
		}
		require.Equal(c.t, frame.Method, f.Kind)
		m, err := methods.Parse(f.Payload)
		require.NoError(c.t, err)
		return f.Channel, m
	}
}

// handshake runs the client side of version negotiation, PLAIN auth, tune
// and open. The client proposes no heartbeat preference, so the server's
// 60 s interval wins; readMethod skips any heartbeat frames regardless.
func (c *testClient) handshake() {
	c.t.Helper()
	_, err := c.conn.Write(protocolHeader)
	require.NoError(c.t, err)

	_, m := c.readMethod()
	_, ok := m.(methods.ConnectionStart)
	require.True(c.t, ok, "expected connection.start, got %T", m)

	c.writeMethod(0, methods.ConnectionStartOk{
		Mechanism: "PLAIN",
		Response:  []byte("\x00guest\x00guest"),
		Locale:    "en_US",
	})

	_, m = c.readMethod()
	tune, ok := m.(methods.ConnectionTune)
	require.True(c.t, ok, "expected connection.tune, got %T", m)

	c.writeMethod(0, methods.ConnectionTuneOk{
		ChannelMax: tune.ChannelMax,
		FrameMax:   tune.FrameMax,
		Heartbeat:  0,
	})
	c.writeMethod(0, methods.ConnectionOpen{VirtualHost: "/"})

	_, m = c.readMethod()
	_, ok = m.(methods.ConnectionOpenOk)
	require.True(c.t, ok, "expected connection.open-ok, got %T", m)
}

func (c *testClient) openChannel(id uint16) {
	c.t.Helper()
	c.writeMethod(id, methods.ChannelOpen{})
	ch, m := c.readMethod()
	require.Equal(c.t, id, ch)
	_, ok := m.(methods.ChannelOpenOk)
	require.True(c.t, ok, "expected channel.open-ok, got %T", m)
}

func (c *testClient) publish(channel uint16, routingKey string, body []byte, mandatory bool) {
	c.t.Helper()
	c.writeMethod(channel, methods.BasicPublish{RoutingKey: routingKey, Mandatory: mandatory})
	header, err := content.EncodeHeader(content.ContentHeader{
		ClassID:  methods.ClassBasic,
		BodySize: uint64(len(body)),
	})
	require.NoError(c.t, err)
	c.writeFrame(&frame.Frame{Kind: frame.Header, Channel: channel, Payload: header})
	if len(body) > 0 {
		c.writeFrame(&frame.Frame{Kind: frame.Body, Channel: channel, Payload: body})
	}
}

func TestVersionHandshake(t *testing.T) {
	l := newTestListener(t)
	c := dialBroker(t, l)

	_, err := c.conn.Write(protocolHeader)
	require.NoError(t, err)

	f := c.readFrame()
	assert.Equal(t, frame.Method, f.Kind)
	assert.Equal(t, uint16(0), f.Channel)

	m, err := methods.Parse(f.Payload)
	require.NoError(t, err)
	assert.Equal(t, uint16(10), m.ClassID())
	assert.Equal(t, uint16(10), m.MethodID())
}

func TestVersionMismatchEchoesSupportedHeader(t *testing.T) {
	l := newTestListener(t)
	c := dialBroker(t, l)

	_, err := c.conn.Write([]byte{'A', 'M', 'Q', 'P', 0, 0, 9, 0})
	require.NoError(t, err)

	got := make([]byte, 8)
	_, err = io.ReadFull(c.conn, got)
	require.NoError(t, err)
	assert.Equal(t, protocolHeader, got)

	_, err = c.conn.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
}

func TestDeclarePublishGetRoundTrip(t *testing.T) {
	l := newTestListener(t)
	c := dialBroker(t, l)
	c.handshake()
	c.openChannel(1)

	c.writeMethod(1, methods.QueueDeclare{Queue: "hello"})
	ch, m := c.readMethod()
	require.Equal(t, uint16(1), ch)
	declareOk, ok := m.(methods.QueueDeclareOk)
	require.True(t, ok, "expected queue.declare-ok, got %T", m)
	assert.Equal(t, "hello", declareOk.Queue)
	assert.Equal(t, uint32(0), declareOk.MessageCount)
	assert.Equal(t, uint32(0), declareOk.ConsumerCount)

	c.publish(1, "hello", []byte("world"), false)

	c.writeMethod(1, methods.BasicGet{Queue: "hello", NoAck: true})
	_, m = c.readMethod()
	getOk, ok := m.(methods.BasicGetOk)
	require.True(t, ok, "expected basic.get-ok, got %T", m)
	assert.Equal(t, "hello", getOk.RoutingKey)

	hf := c.readFrame()
	require.Equal(t, frame.Header, hf.Kind)
	header, err := content.DecodeHeader(hf.Payload)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), header.BodySize)

	bf := c.readFrame()
	require.Equal(t, frame.Body, bf.Kind)
	assert.Equal(t, []byte("world"), bf.Payload)
}

func TestGetOnEmptyQueueReturnsGetEmpty(t *testing.T) {
	l := newTestListener(t)
	c := dialBroker(t, l)
	c.handshake()
	c.openChannel(1)

	c.writeMethod(1, methods.QueueDeclare{Queue: "idle"})
	_, m := c.readMethod()
	_, ok := m.(methods.QueueDeclareOk)
	require.True(t, ok)

	c.writeMethod(1, methods.BasicGet{Queue: "idle", NoAck: true})
	_, m = c.readMethod()
	_, ok = m.(methods.BasicGetEmpty)
	assert.True(t, ok, "expected basic.get-empty, got %T", m)
}

func TestMandatoryPublishWithoutRouteReturns(t *testing.T) {
	l := newTestListener(t)
	c := dialBroker(t, l)
	c.handshake()
	c.openChannel(1)

	c.publish(1, "no-such-queue", []byte("lost"), true)

	_, m := c.readMethod()
	ret, ok := m.(methods.BasicReturn)
	require.True(t, ok, "expected basic.return, got %T", m)
	assert.Equal(t, uint16(312), ret.ReplyCode)

	hf := c.readFrame()
	require.Equal(t, frame.Header, hf.Kind)
	bf := c.readFrame()
	require.Equal(t, frame.Body, bf.Kind)
	assert.Equal(t, []byte("lost"), bf.Payload)
}

func TestFrameEndViolationClosesConnection(t *testing.T) {
	l := newTestListener(t)
	c := dialBroker(t, l)
	c.handshake()

	payload, err := methods.Serialize(methods.ChannelOpen{})
	require.NoError(t, err)
	raw := []byte{byte(frame.Method), 0x00, 0x01}
	raw = append(raw, byte(0), byte(0), byte(0), byte(len(payload)))
	raw = append(raw, payload...)
	raw = append(raw, 0x00) // should be 0xCE
	_, err = c.conn.Write(raw)
	require.NoError(t, err)

	_, m := c.readMethod()
	closeM, ok := m.(methods.ConnectionClose)
	require.True(t, ok, "expected connection.close, got %T", m)
	assert.Equal(t, uint16(501), closeM.ReplyCode)

	c.writeMethod(0, methods.ConnectionCloseOk{})
	_, err = c.conn.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
}

func TestExclusiveConflictAcrossConnections(t *testing.T) {
	l := newTestListener(t)

	a := dialBroker(t, l)
	a.handshake()
	a.openChannel(1)
	a.writeMethod(1, methods.QueueDeclare{Queue: "private", Exclusive: true})
	_, m := a.readMethod()
	_, ok := m.(methods.QueueDeclareOk)
	require.True(t, ok, "expected queue.declare-ok, got %T", m)

	b := dialBroker(t, l)
	b.handshake()
	b.openChannel(2)
	b.writeMethod(2, methods.QueueDeclare{Queue: "private"})
	ch, m := b.readMethod()
	require.Equal(t, uint16(2), ch)
	closeM, ok := m.(methods.ChannelClose)
	require.True(t, ok, "expected channel.close, got %T", m)
	assert.Equal(t, uint16(405), closeM.ReplyCode)
	b.writeMethod(2, methods.ChannelCloseOk{})

	// The rest of connection B keeps working.
	b.openChannel(3)
}

func TestAckUnknownTagIsChannelException(t *testing.T) {
	l := newTestListener(t)
	c := dialBroker(t, l)
	c.handshake()
	c.openChannel(1)

	c.writeMethod(1, methods.BasicAck{DeliveryTag: 99})
	_, m := c.readMethod()
	closeM, ok := m.(methods.ChannelClose)
	require.True(t, ok, "expected channel.close, got %T", m)
	assert.Equal(t, uint16(406), closeM.ReplyCode)
}

func TestConsumeDeliversPublishedMessage(t *testing.T) {
	l := newTestListener(t)
	c := dialBroker(t, l)
	c.handshake()
	c.openChannel(1)

	c.writeMethod(1, methods.QueueDeclare{Queue: "jobs"})
	_, m := c.readMethod()
	_, ok := m.(methods.QueueDeclareOk)
	require.True(t, ok)

	c.writeMethod(1, methods.BasicConsume{Queue: "jobs", NoAck: true})
	_, m = c.readMethod()
	consumeOk, ok := m.(methods.BasicConsumeOk)
	require.True(t, ok, "expected basic.consume-ok, got %T", m)
	assert.NotEmpty(t, consumeOk.ConsumerTag)

	c.publish(1, "jobs", []byte("payload"), false)

	_, m = c.readMethod()
	deliver, ok := m.(methods.BasicDeliver)
	require.True(t, ok, "expected basic.deliver, got %T", m)
	assert.Equal(t, consumeOk.ConsumerTag, deliver.ConsumerTag)
	assert.Equal(t, "jobs", deliver.RoutingKey)

	hf := c.readFrame()
	require.Equal(t, frame.Header, hf.Kind)
	bf := c.readFrame()
	require.Equal(t, frame.Body, bf.Kind)
	assert.Equal(t, []byte("payload"), bf.Payload)
}

func TestChannelZeroOpenIsChannelError(t *testing.T) {
	l := newTestListener(t)
	c := dialBroker(t, l)
	c.handshake()

	c.writeMethod(0, methods.ChannelOpen{})
	_, m := c.readMethod()
	closeM, ok := m.(methods.ConnectionClose)
	require.True(t, ok, "expected connection.close, got %T", m)
	assert.Equal(t, uint16(504), closeM.ReplyCode)
}
