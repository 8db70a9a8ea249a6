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
	"sync"

	"github.com/google/uuid"

	"github.com/amqpd/amqpd/internal/fasttime"
	"github.com/amqpd/amqpd/internal/notify"
)

// Queue is the in-memory FIFO and consumer registry for one declared
// queue. One mutex covers the message FIFO and the consumer set; the
// broker-wide registry lock is never held while touching either.
type Queue struct {
	ID         uuid.UUID
	Name       string
	Durable    bool
	Exclusive  bool
	AutoDelete bool
	Arguments  QueueArgs

	// Owner is the channel that declared this queue exclusive, nil unless
	// Exclusive is true. It is a weak back-reference: checked on every
	// operation, never extends the queue's lifetime by itself. Comparing
	// channel identities (not channel ids, which are only unique within
	// one connection) is what makes the exclusivity check hold across
	// connections.
	Owner Channel

	mu          sync.Mutex
	messages    []*Message
	consumers   []*Consumer
	roundRobin  int
	everHadCons bool

	// readable wakes delivery loops blocked on an empty queue or a
	// fully-saturated consumer set.
	readable *notify.Signal
}

func newQueue(id uuid.UUID, name string, durable, exclusive, autoDelete bool, args QueueArgs, owner Channel) *Queue {
	q := &Queue{
		ID:         id,
		Name:       name,
		Durable:    durable,
		Exclusive:  exclusive,
		AutoDelete: autoDelete,
		Arguments:  args,
		readable:   notify.NewSignal(),
	}
	if exclusive {
		q.Owner = owner
	}
	return q
}

// checkOwner enforces the resource lock on an exclusive queue: any use
// from a channel other than the declaring one is 405 ResourceLocked. A
// nil ch skips the check (broker-internal lifecycle operations).
func (q *Queue) checkOwner(ch Channel) error {
	if q.Exclusive && ch != nil && q.Owner != ch {
		return errResourceLock
	}
	return nil
}

// Counts returns (message_count, consumer_count) for Queue.DeclareOk and
// passive-declare responses.
func (q *Queue) Counts() (messages, consumers uint32) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return uint32(len(q.messages)), uint32(len(q.consumers))
}

// matchesParams reports whether a redeclare with the given flags matches
// this queue's existing properties.
func (q *Queue) matchesParams(durable, exclusive, autoDelete bool) bool {
	return q.Durable == durable && q.Exclusive == exclusive && q.AutoDelete == autoDelete
}

// enqueue appends msg to the tail and wakes any waiting delivery loop. The
// x-max-length argument is enforced RabbitMQ-style: when the queue is at
// capacity the oldest message is dropped to make room.
func (q *Queue) enqueue(msg *Message) {
	msg.EnqueuedAt = fasttime.UnixMilli()
	q.mu.Lock()
	q.messages = append(q.messages, msg)
	if max := q.Arguments.MaxLength; max != nil && *max > 0 {
		for int64(len(q.messages)) > *max {
			q.messages = q.messages[1:]
		}
	}
	q.mu.Unlock()
	q.readable.Broadcast()
}

// expired reports whether msg has outlived the queue's x-message-ttl.
func (q *Queue) expired(msg *Message) bool {
	ttl := q.Arguments.MessageTTL
	if ttl == nil || *ttl <= 0 {
		return false
	}
	return fasttime.UnixMilli()-msg.EnqueuedAt >= *ttl
}

// dropExpiredLocked discards dead messages from the head; caller holds
// q.mu. Only the head needs checking: enqueue order is arrival order, so
// everything behind a live head is younger.
func (q *Queue) dropExpiredLocked() {
	for len(q.messages) > 0 && q.expired(q.messages[0]) {
		q.messages = q.messages[1:]
	}
}

// pop dequeues the head message for Basic.Get, returning the remaining
// message count alongside it. A nil message with nil error means the queue
// is empty (Basic.GetEmpty).
func (q *Queue) pop() (*Message, uint32, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dropExpiredLocked()
	if len(q.messages) == 0 {
		return nil, 0, nil
	}
	msg := q.messages[0]
	q.messages = q.messages[1:]
	return msg, uint32(len(q.messages)), nil
}

// requeueFront pushes msgs back onto the head, in the order given, used
// when a channel closes with unacked deliveries still outstanding.
func (q *Queue) requeueFront(msgs []*Message) {
	if len(msgs) == 0 {
		return
	}
	q.mu.Lock()
	q.messages = append(append([]*Message{}, msgs...), q.messages...)
	q.mu.Unlock()
	q.readable.Broadcast()
}

func (q *Queue) purge() uint32 {
	q.mu.Lock()
	n := uint32(len(q.messages))
	q.messages = nil
	q.mu.Unlock()
	return n
}

// addConsumer registers c, enforcing the exclusive-consumer rule: an
// exclusive consumer may not share the queue with any other consumer, and
// no consumer may join a queue that already has an exclusive one.
func (q *Queue) addConsumer(c *Consumer) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if c.Exclusive && len(q.consumers) > 0 {
		return errAccessRefused
	}
	for _, existing := range q.consumers {
		if existing.Exclusive {
			return errAccessRefused
		}
	}
	q.consumers = append(q.consumers, c)
	q.everHadCons = true
	q.readable.Broadcast()
	return nil
}

// removeConsumer unregisters the consumer with tag, reporting whether the
// queue's auto-delete countdown should now fire: it had at least one
// consumer ever, and none remain.
func (q *Queue) removeConsumer(tag string) (removed bool, nowEmpty bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, c := range q.consumers {
		if c.Tag == tag {
			q.consumers = append(q.consumers[:i], q.consumers[i+1:]...)
			removed = true
			break
		}
	}
	nowEmpty = removed && q.everHadCons && len(q.consumers) == 0
	return removed, nowEmpty
}

// removeConsumersForChannel drops every consumer owned by ch (channel
// close), returning their tags for Basic.Cancel bookkeeping by the caller.
func (q *Queue) removeConsumersForChannel(ch Channel) []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	var kept []*Consumer
	var removedTags []string
	for _, c := range q.consumers {
		if c.Channel == ch {
			removedTags = append(removedTags, c.Tag)
			continue
		}
		kept = append(kept, c)
	}
	q.consumers = kept
	return removedTags
}

// deliverOnce pops one message for the next consumer with credit, round
// robin across the consumer set. It reports ok=false when there is
// nothing deliverable right now (empty queue, or every consumer out of
// credit).
func (q *Queue) deliverOnce() (c *Consumer, msg *Message, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.dropExpiredLocked()
	if len(q.messages) == 0 || len(q.consumers) == 0 {
		return nil, nil, false
	}

	n := len(q.consumers)
	for i := 0; i < n; i++ {
		idx := (q.roundRobin + i) % n
		cand := q.consumers[idx]
		if cand.tryAcquire() {
			q.roundRobin = (idx + 1) % n
			msg = q.messages[0]
			q.messages = q.messages[1:]
			return cand, msg, true
		}
	}
	return nil, nil, false
}

// Wait returns the channel to select on when the delivery loop has
// nothing to do.
func (q *Queue) Wait() <-chan struct{} {
	return q.readable.Wait()
}

// Wake re-evaluates delivery after external state changes (e.g. Basic.Ack
// releasing consumer credit).
func (q *Queue) Wake() {
	q.readable.Broadcast()
}
