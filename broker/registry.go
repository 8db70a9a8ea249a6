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

package broker

import (
	"encoding/base64"
	"sync"

	"github.com/google/uuid"

	"github.com/amqpd/amqpd/internal/amqperr"
	"github.com/amqpd/amqpd/internal/rescue"
	"github.com/amqpd/amqpd/persistence"
)

var (
	errAccessRefused = amqperr.New(amqperr.AccessRefused, "queue in use by an exclusive consumer")
	errNotFound      = amqperr.New(amqperr.NotFound, "no queue")
	errPrecondition  = amqperr.New(amqperr.PreconditionFail, "inequivalent arg")
	errResourceLock  = amqperr.New(amqperr.ResourceLocked, "queue is locked to another channel")
)

// Broker is the broker-wide registry of queues and the default exchange.
// Every declared queue is implicitly bound to the default exchange under
// routing_key == name, so the registry map doubles as that binding table.
// One mutex guards declare/delete/lookup, acquired only briefly; the
// messages and consumers inside each Queue are guarded by that queue's
// own mutex.
type Broker struct {
	mu      sync.Mutex
	queues  map[string]*Queue
	stops   map[string]chan struct{}
	persist persistence.Port
}

// New returns an empty Broker. persist may be persistence.Noop{} when no
// durable storage backend is configured.
func New(persist persistence.Port) *Broker {
	if persist == nil {
		persist = persistence.Noop{}
	}
	return &Broker{queues: make(map[string]*Queue), stops: make(map[string]chan struct{}), persist: persist}
}

// generatedName mints a broker-generated queue name for Queue.Declare
// with an empty name, following the amq.gen-<base64> convention clients
// already expect from other brokers.
func generatedName() string {
	id := uuid.New()
	return "amq.gen-" + base64.RawURLEncoding.EncodeToString(id[:])
}

// DeclareResult is the outcome of Queue.Declare.
type DeclareResult struct {
	Name          string
	MessageCount  uint32
	ConsumerCount uint32
}

// Declare implements Queue.Declare. passive validates existence without
// mutation; no_wait only suppresses the DeclareOk reply, a transport
// concern, so the broker still returns the result and the caller decides
// whether to send it.
func (b *Broker) Declare(name string, passive, durable, exclusive, autoDelete bool, args QueueArgs, owner Channel) (DeclareResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if name == "" {
		if passive {
			return DeclareResult{}, errNotFound
		}
		name = generatedName()
		for _, exists := b.queues[name]; exists; _, exists = b.queues[name] {
			name = generatedName()
		}
	}

	if q, ok := b.queues[name]; ok {
		if err := q.checkOwner(owner); err != nil {
			return DeclareResult{}, err
		}
		if passive {
			msgs, cons := q.Counts()
			return DeclareResult{Name: name, MessageCount: msgs, ConsumerCount: cons}, nil
		}
		if !q.matchesParams(durable, exclusive, autoDelete) {
			return DeclareResult{}, errPrecondition
		}
		msgs, cons := q.Counts()
		return DeclareResult{Name: name, MessageCount: msgs, ConsumerCount: cons}, nil
	}

	if passive {
		return DeclareResult{}, errNotFound
	}

	q := newQueue(uuid.New(), name, durable, exclusive, autoDelete, args, owner)
	b.queues[name] = q
	if durable {
		_ = b.persist.PersistQueue(persistence.QueueSpec{Name: name, Durable: durable, Exclusive: exclusive, AutoDelete: autoDelete})
	}
	stop := make(chan struct{})
	b.stops[name] = stop
	go func() {
		defer rescue.HandleCrash()
		b.RunDeliveryLoop(q, stop)
	}()
	return DeclareResult{Name: name}, nil
}

// lookup returns the queue named name, or errNotFound.
func (b *Broker) lookup(name string) (*Queue, error) {
	b.mu.Lock()
	q, ok := b.queues[name]
	b.mu.Unlock()
	if !ok {
		return nil, errNotFound
	}
	return q, nil
}

// deleteLocked removes name from the registry and stops its delivery loop;
// caller holds b.mu.
func (b *Broker) deleteLocked(name string) {
	delete(b.queues, name)
	if stop, ok := b.stops[name]; ok {
		close(stop)
		delete(b.stops, name)
	}
}

// Delete implements Queue.Delete. ifUnused/ifEmpty are evaluated before
// the queue is removed from the default-exchange binding table (the
// registry map itself). owner is nil for broker-internal lifecycle
// deletions, which bypass the exclusive resource lock.
func (b *Broker) Delete(name string, ifUnused, ifEmpty bool, owner Channel) (uint32, error) {
	b.mu.Lock()
	q, ok := b.queues[name]
	if !ok {
		b.mu.Unlock()
		return 0, errNotFound
	}
	if err := q.checkOwner(owner); err != nil {
		b.mu.Unlock()
		return 0, err
	}
	msgs, cons := q.Counts()
	if ifUnused && cons > 0 {
		b.mu.Unlock()
		return 0, amqperr.New(amqperr.PreconditionFail, "queue in use")
	}
	if ifEmpty && msgs > 0 {
		b.mu.Unlock()
		return 0, amqperr.New(amqperr.PreconditionFail, "queue not empty")
	}
	b.deleteLocked(name)
	b.mu.Unlock()
	return msgs, nil
}

// Purge implements Queue.Purge.
func (b *Broker) Purge(name string, owner Channel) (uint32, error) {
	q, err := b.lookup(name)
	if err != nil {
		return 0, err
	}
	if err := q.checkOwner(owner); err != nil {
		return 0, err
	}
	return q.purge(), nil
}

// Lookup exposes the named queue for the delivery loop / Basic.Get, and
// for admin introspection.
func (b *Broker) Lookup(name string) (*Queue, error) {
	return b.lookup(name)
}

// Snapshot returns every currently-declared queue, for the admin server's
// queue listing. The slice is a point-in-time copy of the registry, not of
// each queue's internal state.
func (b *Broker) Snapshot() []*Queue {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Queue, 0, len(b.queues))
	for _, q := range b.queues {
		out = append(out, q)
	}
	return out
}

// PublishResult tells the caller whether to emit Basic.Return for a
// mandatory publish that found no queue.
type PublishResult struct {
	Routed bool
}

// Publish implements Basic.Publish against the default exchange.
// Only the default exchange (empty name) is supported; any other
// exchange is a connection exception the caller must raise before calling
// Publish.
func (b *Broker) Publish(msg *Message) PublishResult {
	q, err := b.lookup(msg.RoutingKey)
	if err != nil {
		return PublishResult{Routed: false}
	}
	if q.Durable {
		_ = b.persist.PersistMessage(q.Name, persistence.Message{
			Exchange:   msg.Exchange,
			RoutingKey: msg.RoutingKey,
			Body:       msg.Body,
		})
	}
	q.enqueue(msg)
	return PublishResult{Routed: true}
}

// Get implements Basic.Get: a synchronous, one-shot dequeue bypassing the
// consumer/delivery-loop machinery.
func (b *Broker) Get(name string, owner Channel) (*Message, uint32, error) {
	q, err := b.lookup(name)
	if err != nil {
		return nil, 0, err
	}
	if err := q.checkOwner(owner); err != nil {
		return nil, 0, err
	}
	return q.pop()
}

// Consume implements Basic.Consume. tag must already be resolved to its
// broker-generated form by the caller when the client supplied an empty
// tag.
func (b *Broker) Consume(queueName string, tag string, ch Channel, noLocal, noAck, exclusive bool, prefetch uint16) (*Consumer, error) {
	q, err := b.lookup(queueName)
	if err != nil {
		return nil, err
	}
	if err := q.checkOwner(ch); err != nil {
		return nil, err
	}
	c := newConsumer(tag, ch, noAck, exclusive, prefetch)
	if err := q.addConsumer(c); err != nil {
		return nil, err
	}
	return c, nil
}

// Cancel implements Basic.Cancel: unregister tag from queueName and
// report whether the queue's auto-delete condition now fires. When it
// does, the caller is responsible for deleting the queue via Delete.
func (b *Broker) Cancel(queueName, tag string) (autoDeleteNow bool, err error) {
	q, err := b.lookup(queueName)
	if err != nil {
		return false, err
	}
	removed, nowEmpty := q.removeConsumer(tag)
	if !removed {
		return false, nil
	}
	return nowEmpty && q.AutoDelete, nil
}

// RemoveChannelConsumers unregisters every consumer owned by ch across
// all queues (channel close), returning the (queue name, tag) pairs
// removed and the queue names whose auto-delete condition now fires.
func (b *Broker) RemoveChannelConsumers(ch Channel) (removed []QueueTag, autoDelete []string) {
	for _, q := range b.Snapshot() {
		tags := q.removeConsumersForChannel(ch)
		for _, tag := range tags {
			removed = append(removed, QueueTag{Queue: q.Name, Tag: tag})
		}
		if len(tags) > 0 {
			q.mu.Lock()
			empty := q.everHadCons && len(q.consumers) == 0 && q.AutoDelete
			q.mu.Unlock()
			if empty {
				autoDelete = append(autoDelete, q.Name)
			}
		}
	}
	return removed, autoDelete
}

// QueueTag names one (queue, consumer-tag) pair.
type QueueTag struct {
	Queue string
	Tag   string
}

// DeleteChannelExclusives deletes every queue exclusively owned by owner,
// part of tearing a channel down.
func (b *Broker) DeleteChannelExclusives(owner Channel) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	var deleted []string
	for name, q := range b.queues {
		if q.Exclusive && q.Owner == owner {
			deleted = append(deleted, name)
		}
	}
	for _, name := range deleted {
		b.deleteLocked(name)
	}
	return deleted
}

// Requeue puts msgs back at the head of queueName: unacked messages are
// requeued in arrival order when their channel closes.
func (b *Broker) Requeue(queueName string, msgs []*Message) {
	q, err := b.lookup(queueName)
	if err != nil {
		return
	}
	q.requeueFront(msgs)
}

// Wake nudges queueName's delivery loop to re-evaluate, used after
// Basic.Ack returns credit to a previously-saturated consumer.
func (b *Broker) Wake(queueName string) {
	if q, err := b.lookup(queueName); err == nil {
		q.Wake()
	}
}

// RunDeliveryLoop drives one queue's delivery loop until stop is closed.
// It is meant to run in its own goroutine, one per queue, started when the
// queue is declared.
func (b *Broker) RunDeliveryLoop(q *Queue, stop <-chan struct{}) {
	for {
		// Grab the wait channel before re-checking state: a wakeup
		// landing between deliverOnce and Wait would otherwise be lost.
		wait := q.Wait()
		c, msg, ok := q.deliverOnce()
		if !ok {
			select {
			case <-wait:
				continue
			case <-stop:
				return
			}
		}

		tag := c.Channel.NextDeliveryTag()
		if !c.NoAck {
			c.Channel.RecordUnacked(tag, q.Name, msg, c)
		}
		if err := c.Channel.Deliver(c.Tag, tag, false, msg); err != nil {
			// Delivery failed (peer gone); requeue at the head and let the
			// channel-close path clean up the consumer.
			q.requeueFront([]*Message{msg})
			continue
		}
	}
}
