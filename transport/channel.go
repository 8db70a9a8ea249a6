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
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/amqpd/amqpd/broker"
	"github.com/amqpd/amqpd/internal/amqperr"
	"github.com/amqpd/amqpd/internal/bufbytes"
	"github.com/amqpd/amqpd/internal/content"
	"github.com/amqpd/amqpd/internal/frame"
	"github.com/amqpd/amqpd/internal/methods"
	"github.com/amqpd/amqpd/logger"
	"github.com/amqpd/amqpd/metrics"
)

// pendingPublish holds a received Basic.Publish's arguments while its
// content header and body frames are still arriving.
type pendingPublish struct {
	exchange   string
	routingKey string
	mandatory  bool
	immediate  bool
}

type unackedEntry struct {
	queue    string
	msg      *broker.Message
	consumer *broker.Consumer
}

// Channel is one multiplexed AMQP channel within a Connection. It
// implements broker.Channel so the broker's delivery loop can hand
// messages back to the connection without depending on the transport
// package.
type Channel struct {
	id   uint16
	conn *Connection

	deliveryTag atomic.Uint64
	prefetch    uint16

	mu        sync.Mutex
	unacked   map[uint64]unackedEntry
	consumers map[string]string // consumer tag -> queue name
	pending   *pendingPublish
	asm       *content.Assembler
}

func newChannel(id uint16, c *Connection) *Channel {
	return &Channel{
		id:        id,
		conn:      c,
		unacked:   make(map[uint64]unackedEntry),
		consumers: make(map[string]string),
	}
}

func (ch *Channel) NextDeliveryTag() uint64 {
	return ch.deliveryTag.Add(1)
}

func (ch *Channel) RecordUnacked(tag uint64, queue string, msg *broker.Message, consumer *broker.Consumer) {
	ch.mu.Lock()
	ch.unacked[tag] = unackedEntry{queue: queue, msg: msg, consumer: consumer}
	ch.mu.Unlock()
}

// Deliver sends Basic.Deliver plus the content header and body frames for
// msg.
func (ch *Channel) Deliver(consumerTag string, deliveryTag uint64, redelivered bool, msg *broker.Message) error {
	if err := ch.conn.writeMethod(ch.id, methods.BasicDeliver{
		ConsumerTag: consumerTag,
		DeliveryTag: deliveryTag,
		Redelivered: redelivered,
		Exchange:    msg.Exchange,
		RoutingKey:  msg.RoutingKey,
	}); err != nil {
		return err
	}
	if err := ch.sendContent(msg); err != nil {
		return err
	}
	metrics.MessagesDelivered.Inc()
	return nil
}

func (ch *Channel) sendContent(msg *broker.Message) error {
	header, err := content.EncodeHeader(content.ContentHeader{
		ClassID:    methods.ClassBasic,
		BodySize:   uint64(len(msg.Body)),
		Properties: msg.Properties.Properties,
	})
	if err != nil {
		return err
	}
	if err := ch.conn.writeFrame(&frame.Frame{Kind: frame.Header, Channel: ch.id, Payload: header}); err != nil {
		return err
	}

	chunk := ch.conn.frameMax
	if chunk == 0 {
		chunk = uint32(len(msg.Body))
	}
	body := msg.Body
	for len(body) > 0 {
		n := uint32(len(body))
		if n > chunk {
			n = chunk
		}
		if err := ch.conn.writeFrame(&frame.Frame{Kind: frame.Body, Channel: ch.id, Payload: body[:n]}); err != nil {
			return err
		}
		body = body[n:]
	}
	return nil
}

// drainUnacked empties the unacked map and groups it by queue, ordered by
// delivery tag (arrival order, since tags are assigned monotonically per
// channel), for requeueing on channel close.
func (ch *Channel) drainUnacked() map[string][]*broker.Message {
	ch.mu.Lock()
	entries := ch.unacked
	ch.unacked = make(map[uint64]unackedEntry)
	ch.mu.Unlock()

	tags := make([]uint64, 0, len(entries))
	for tag := range entries {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })

	out := make(map[string][]*broker.Message)
	for _, tag := range tags {
		e := entries[tag]
		out[e.queue] = append(out[e.queue], e.msg)
	}
	return out
}

// HandleMethod dispatches one parsed method to the owning channel's
// state. Channel-class methods (open/close/flow) are intercepted by
// Connection before reaching here.
func (ch *Channel) HandleMethod(m methods.Method) error {
	ch.mu.Lock()
	midContent := ch.pending != nil
	ch.mu.Unlock()
	if midContent {
		return amqperr.New(amqperr.UnexpectedFrame, "method frame while content frames are expected").WithMethod(m.ClassID(), m.MethodID())
	}

	switch mm := m.(type) {
	case methods.ExchangeDeclare:
		return ch.handleExchangeDeclare(mm)
	case methods.ExchangeDelete:
		return ch.handleExchangeDelete(mm)

	case methods.QueueDeclare:
		return ch.handleQueueDeclare(mm)
	case methods.QueueBind:
		return ch.handleQueueBind(mm)
	case methods.QueueUnbind:
		return ch.handleQueueUnbind(mm)
	case methods.QueuePurge:
		return ch.handleQueuePurge(mm)
	case methods.QueueDelete:
		return ch.handleQueueDelete(mm)

	case methods.BasicQos:
		ch.prefetch = mm.PrefetchCount
		return ch.conn.writeMethod(ch.id, methods.BasicQosOk{})
	case methods.BasicConsume:
		return ch.handleBasicConsume(mm)
	case methods.BasicCancel:
		return ch.handleBasicCancel(mm)
	case methods.BasicPublish:
		ch.mu.Lock()
		ch.pending = &pendingPublish{exchange: mm.Exchange, routingKey: mm.RoutingKey, mandatory: mm.Mandatory, immediate: mm.Immediate}
		ch.mu.Unlock()
		return nil
	case methods.BasicGet:
		return ch.handleBasicGet(mm)
	case methods.BasicAck:
		return ch.handleAck(mm.DeliveryTag, mm.Multiple)
	case methods.BasicReject:
		return ch.handleNack(mm.DeliveryTag, false, mm.Requeue)
	case methods.BasicNack:
		return ch.handleNack(mm.DeliveryTag, mm.Multiple, mm.Requeue)
	case methods.BasicRecoverAsync:
		ch.recoverUnacked(mm.Requeue)
		return nil
	case methods.BasicRecover:
		ch.recoverUnacked(mm.Requeue)
		return ch.conn.writeMethod(ch.id, methods.BasicRecoverOk{})

	case methods.TxSelect, methods.TxCommit, methods.TxRollback:
		return amqperr.New(amqperr.NotImplemented, "transactions not supported").WithMethod(m.ClassID(), m.MethodID())

	default:
		return amqperr.New(amqperr.CommandInvalid, "unexpected method for this channel").WithMethod(m.ClassID(), m.MethodID())
	}
}

// HandleContentFrame feeds a Header or Body frame into the channel's
// in-flight publish assembler.
func (ch *Channel) HandleContentFrame(f *frame.Frame) error {
	ch.mu.Lock()
	pending := ch.pending
	ch.mu.Unlock()
	if pending == nil {
		return amqperr.New(amqperr.UnexpectedFrame, "content frame without a preceding publish")
	}

	switch f.Kind {
	case frame.Header:
		ch.mu.Lock()
		started := ch.asm != nil
		ch.mu.Unlock()
		if started {
			return amqperr.New(amqperr.UnexpectedFrame, "content header while body frames are expected")
		}
		h, err := content.DecodeHeader(f.Payload)
		if err != nil {
			return err
		}
		ch.mu.Lock()
		ch.asm = content.NewAssembler(h)
		complete := ch.asm.Complete()
		ch.mu.Unlock()
		if complete {
			return ch.finishPublish()
		}
		return nil

	case frame.Body:
		ch.mu.Lock()
		asm := ch.asm
		ch.mu.Unlock()
		if asm == nil {
			return amqperr.New(amqperr.UnexpectedFrame, "body frame before content header")
		}
		if err := asm.AddBody(f.Payload); err != nil {
			return err
		}
		if asm.Complete() {
			return ch.finishPublish()
		}
		return nil

	default:
		return amqperr.New(amqperr.UnexpectedFrame, "unexpected frame kind mid-publish")
	}
}

func (ch *Channel) finishPublish() error {
	ch.mu.Lock()
	pending := ch.pending
	asm := ch.asm
	ch.pending = nil
	ch.asm = nil
	ch.mu.Unlock()

	header, body, err := asm.Message()
	if err != nil {
		return err
	}

	if pending.immediate {
		return amqperr.New(amqperr.NotImplemented, "immediate publish not supported")
	}
	if pending.exchange != "" {
		return amqperr.New(amqperr.NotImplemented, "only the default exchange is supported").WithMethod(methods.ClassBasic, methods.BasicPublish{}.MethodID())
	}

	msg := &broker.Message{
		Exchange:   pending.exchange,
		RoutingKey: pending.routingKey,
		Mandatory:  pending.mandatory,
		Immediate:  pending.immediate,
		Properties: header,
		Body:       body,
	}
	preview := bufbytes.New(64)
	preview.Write(body)
	logger.Debugf("amqp: publish %d bytes to %q: %s", len(body), pending.routingKey, preview.PreviewText())
	metrics.MessagesPublished.Inc()
	result := ch.conn.broker.Publish(msg)
	if !result.Routed && msg.Mandatory {
		metrics.MessagesReturned.Inc()
		if err := ch.conn.writeMethod(ch.id, methods.BasicReturn{
			ReplyCode:  uint16(amqperr.NoRoute),
			ReplyText:  "no queue bound to routing key",
			Exchange:   msg.Exchange,
			RoutingKey: msg.RoutingKey,
		}); err != nil {
			return err
		}
		return ch.sendContent(msg)
	}
	return nil
}

func (ch *Channel) handleExchangeDeclare(m methods.ExchangeDeclare) error {
	if m.Exchange != "" {
		return amqperr.New(amqperr.NotImplemented, "only the default exchange is supported").WithMethod(m.ClassID(), m.MethodID())
	}
	if !m.NoWait {
		return ch.conn.writeMethod(ch.id, methods.ExchangeDeclareOk{})
	}
	return nil
}

func (ch *Channel) handleExchangeDelete(m methods.ExchangeDelete) error {
	if m.Exchange != "" {
		return amqperr.New(amqperr.NotImplemented, "only the default exchange is supported").WithMethod(m.ClassID(), m.MethodID())
	}
	if !m.NoWait {
		return ch.conn.writeMethod(ch.id, methods.ExchangeDeleteOk{})
	}
	return nil
}

func (ch *Channel) handleQueueDeclare(m methods.QueueDeclare) error {
	args, err := broker.DecodeQueueArgs(m.Arguments)
	if err != nil {
		return amqperr.Newf(amqperr.PreconditionFail, "bad queue arguments: %s", err).WithMethod(m.ClassID(), m.MethodID())
	}
	res, err := ch.conn.broker.Declare(m.Queue, m.Passive, m.Durable, m.Exclusive, m.AutoDelete, args, ch)
	if err != nil {
		if ae, ok := err.(*amqperr.Error); ok {
			return ae.WithMethod(m.ClassID(), m.MethodID())
		}
		return err
	}
	if !m.NoWait {
		return ch.conn.writeMethod(ch.id, methods.QueueDeclareOk{
			Queue:         res.Name,
			MessageCount:  res.MessageCount,
			ConsumerCount: res.ConsumerCount,
		})
	}
	return nil
}

func (ch *Channel) handleQueueBind(m methods.QueueBind) error {
	if m.Exchange != "" {
		return amqperr.New(amqperr.NotImplemented, "only the default exchange is supported").WithMethod(m.ClassID(), m.MethodID())
	}
	if _, err := ch.conn.broker.Lookup(m.Queue); err != nil {
		return err.(*amqperr.Error).WithMethod(m.ClassID(), m.MethodID())
	}
	if m.RoutingKey != "" && m.RoutingKey != m.Queue {
		return amqperr.New(amqperr.NotAllowed, "the default exchange only binds under the queue's own name").WithMethod(m.ClassID(), m.MethodID())
	}
	if !m.NoWait {
		return ch.conn.writeMethod(ch.id, methods.QueueBindOk{})
	}
	return nil
}

func (ch *Channel) handleQueueUnbind(m methods.QueueUnbind) error {
	if m.Exchange != "" {
		return amqperr.New(amqperr.NotImplemented, "only the default exchange is supported").WithMethod(m.ClassID(), m.MethodID())
	}
	if _, err := ch.conn.broker.Lookup(m.Queue); err != nil {
		return err.(*amqperr.Error).WithMethod(m.ClassID(), m.MethodID())
	}
	return ch.conn.writeMethod(ch.id, methods.QueueUnbindOk{})
}

func (ch *Channel) handleQueuePurge(m methods.QueuePurge) error {
	n, err := ch.conn.broker.Purge(m.Queue, ch)
	if err != nil {
		return err.(*amqperr.Error).WithMethod(m.ClassID(), m.MethodID())
	}
	if !m.NoWait {
		return ch.conn.writeMethod(ch.id, methods.QueuePurgeOk{MessageCount: n})
	}
	return nil
}

func (ch *Channel) handleQueueDelete(m methods.QueueDelete) error {
	n, err := ch.conn.broker.Delete(m.Queue, m.IfUnused, m.IfEmpty, ch)
	if err != nil {
		return err.(*amqperr.Error).WithMethod(m.ClassID(), m.MethodID())
	}
	if !m.NoWait {
		return ch.conn.writeMethod(ch.id, methods.QueueDeleteOk{MessageCount: n})
	}
	return nil
}

func (ch *Channel) handleBasicConsume(m methods.BasicConsume) error {
	tag := m.ConsumerTag
	if tag == "" {
		tag = generatedConsumerTag()
	}
	_, err := ch.conn.broker.Consume(m.Queue, tag, ch, m.NoLocal, m.NoAck, m.Exclusive, ch.prefetch)
	if err != nil {
		return err.(*amqperr.Error).WithMethod(m.ClassID(), m.MethodID())
	}
	ch.mu.Lock()
	ch.consumers[tag] = m.Queue
	ch.mu.Unlock()
	if !m.NoWait {
		return ch.conn.writeMethod(ch.id, methods.BasicConsumeOk{ConsumerTag: tag})
	}
	return nil
}

func (ch *Channel) handleBasicCancel(m methods.BasicCancel) error {
	ch.mu.Lock()
	queue, ok := ch.consumers[m.ConsumerTag]
	delete(ch.consumers, m.ConsumerTag)
	ch.mu.Unlock()
	if !ok {
		if !m.NoWait {
			return ch.conn.writeMethod(ch.id, methods.BasicCancelOk{ConsumerTag: m.ConsumerTag})
		}
		return nil
	}

	autoDelete, err := ch.conn.broker.Cancel(queue, m.ConsumerTag)
	if err != nil {
		return err.(*amqperr.Error).WithMethod(m.ClassID(), m.MethodID())
	}
	if autoDelete {
		_, _ = ch.conn.broker.Delete(queue, false, false, nil)
	}
	if !m.NoWait {
		return ch.conn.writeMethod(ch.id, methods.BasicCancelOk{ConsumerTag: m.ConsumerTag})
	}
	return nil
}

func (ch *Channel) handleBasicGet(m methods.BasicGet) error {
	msg, count, err := ch.conn.broker.Get(m.Queue, ch)
	if err != nil {
		return err.(*amqperr.Error).WithMethod(m.ClassID(), m.MethodID())
	}
	if msg == nil {
		return ch.conn.writeMethod(ch.id, methods.BasicGetEmpty{})
	}
	tag := ch.NextDeliveryTag()
	if !m.NoAck {
		ch.RecordUnacked(tag, m.Queue, msg, nil)
	}
	if err := ch.conn.writeMethod(ch.id, methods.BasicGetOk{
		DeliveryTag:  tag,
		Redelivered:  false,
		Exchange:     msg.Exchange,
		RoutingKey:   msg.RoutingKey,
		MessageCount: count,
	}); err != nil {
		return err
	}
	metrics.MessagesDelivered.Inc()
	return ch.sendContent(msg)
}

func (ch *Channel) handleAck(tag uint64, multiple bool) error {
	ch.mu.Lock()
	var toRelease []unackedEntry
	if multiple {
		// multiple with tag 0 acknowledges everything outstanding.
		for t, e := range ch.unacked {
			if tag == 0 || t <= tag {
				toRelease = append(toRelease, e)
				delete(ch.unacked, t)
			}
		}
	} else {
		if e, ok := ch.unacked[tag]; ok {
			toRelease = append(toRelease, e)
			delete(ch.unacked, tag)
		}
	}
	ch.mu.Unlock()

	if len(toRelease) == 0 && !multiple {
		return amqperr.Newf(amqperr.PreconditionFail, "unknown delivery tag %d", tag).
			WithMethod(methods.ClassBasic, methods.BasicAck{}.MethodID())
	}

	for _, e := range toRelease {
		if e.consumer != nil {
			e.consumer.Release()
			ch.conn.broker.Wake(e.queue)
		}
		metrics.MessagesAcked.Inc()
	}
	return nil
}

func (ch *Channel) handleNack(tag uint64, multiple, requeue bool) error {
	ch.mu.Lock()
	var toHandle []unackedEntry
	if multiple {
		for t, e := range ch.unacked {
			if tag == 0 || t <= tag {
				toHandle = append(toHandle, e)
				delete(ch.unacked, t)
			}
		}
	} else {
		if e, ok := ch.unacked[tag]; ok {
			toHandle = append(toHandle, e)
			delete(ch.unacked, tag)
		}
	}
	ch.mu.Unlock()

	for _, e := range toHandle {
		if e.consumer != nil {
			e.consumer.Release()
		}
		if requeue {
			ch.conn.broker.Requeue(e.queue, []*broker.Message{e.msg})
		} else if e.consumer != nil {
			ch.conn.broker.Wake(e.queue)
		}
	}
	return nil
}

// recoverUnacked redelivers (requeue=true) or drops the requeue decision
// for every currently unacked message on this channel (basic.recover).
func (ch *Channel) recoverUnacked(requeue bool) {
	if !requeue {
		return
	}
	for queue, msgs := range ch.drainUnacked() {
		ch.conn.broker.Requeue(queue, msgs)
	}
}

func generatedConsumerTag() string {
	id := uuid.New()
	return "amq.ctag-" + id.String()
}
