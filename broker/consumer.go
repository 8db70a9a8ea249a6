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
	"golang.org/x/sync/semaphore"
)

// Channel is the subset of transport's per-channel state the broker core
// needs in order to deliver messages and track acknowledgements.
// Implemented by transport.Channel; kept as an interface here so broker
// has no dependency on the connection/transport layer.
type Channel interface {
	// NextDeliveryTag returns the next monotonically increasing delivery
	// tag scoped to this channel.
	NextDeliveryTag() uint64

	// RecordUnacked registers delivery_tag -> (queue, message, consumer) in
	// the channel's unacked map. Callers do not call it for no-ack
	// deliveries. consumer is nil for a Basic.Get delivery, which has no
	// credit to release on ack.
	RecordUnacked(tag uint64, queue string, msg *Message, consumer *Consumer)

	// Deliver sends a Basic.Deliver method plus content header and body
	// frames for msg to the peer.
	Deliver(consumerTag string, deliveryTag uint64, redelivered bool, msg *Message) error
}

// Consumer is a registered subscriber on a queue. Prefetch credit is a
// semaphore.Weighted permit pool: a consumer with prefetch N holds N
// permits, each unacked delivery takes one, each ack returns one.
type Consumer struct {
	Tag       string
	Channel   Channel
	NoAck     bool
	Exclusive bool

	// credit is nil when prefetch is unbounded: Basic.Qos prefetch-count
	// of 0 (the AMQP default), or a no-ack consumer — without acks no
	// permit would ever come back, and prefetch does not bound no-ack
	// consumers.
	credit *semaphore.Weighted
}

func newConsumer(tag string, ch Channel, noAck, exclusive bool, prefetch uint16) *Consumer {
	c := &Consumer{Tag: tag, Channel: ch, NoAck: noAck, Exclusive: exclusive}
	if prefetch > 0 && !noAck {
		c.credit = semaphore.NewWeighted(int64(prefetch))
	}
	return c
}

// tryAcquire reports whether the consumer currently has delivery credit,
// consuming one unit of it if so. A nil credit pool means unbounded
// prefetch and always succeeds.
func (c *Consumer) tryAcquire() bool {
	if c.credit == nil {
		return true
	}
	return c.credit.TryAcquire(1)
}

// Release returns one unit of delivery credit after the peer acknowledges
// or rejects a message.
func (c *Consumer) Release() {
	if c.credit != nil {
		c.credit.Release(1)
	}
}
