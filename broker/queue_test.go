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
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(args QueueArgs) *Queue {
	return newQueue(uuid.New(), "q", false, false, false, args, nil)
}

func TestRoundRobinDelivery(t *testing.T) {
	q := newTestQueue(QueueArgs{})
	ch := &fakeChannel{}

	c1 := newConsumer("c1", ch, true, false, 0)
	c2 := newConsumer("c2", ch, true, false, 0)
	require.NoError(t, q.addConsumer(c1))
	require.NoError(t, q.addConsumer(c2))

	const k = 6
	for i := 0; i < k; i++ {
		q.enqueue(&Message{Body: []byte{byte(i)}})
	}

	counts := map[*Consumer]int{}
	var order []*Consumer
	for i := 0; i < k; i++ {
		c, msg, ok := q.deliverOnce()
		require.True(t, ok)
		require.NotNil(t, msg)
		counts[c]++
		order = append(order, c)
	}

	assert.Equal(t, k/2, counts[c1])
	assert.Equal(t, k/2, counts[c2])
	for i := 1; i < len(order); i++ {
		assert.NotSame(t, order[i-1], order[i], "consecutive deliveries should alternate consumers")
	}
}

func TestPrefetchCreditLimitsDeliveries(t *testing.T) {
	q := newTestQueue(QueueArgs{})
	ch := &fakeChannel{}

	c := newConsumer("c1", ch, false, false, 2)
	require.NoError(t, q.addConsumer(c))

	for i := 0; i < 3; i++ {
		q.enqueue(&Message{Body: []byte{byte(i)}})
	}

	for i := 0; i < 2; i++ {
		_, _, ok := q.deliverOnce()
		require.True(t, ok)
	}
	_, _, ok := q.deliverOnce()
	assert.False(t, ok, "third delivery must wait for an ack")

	c.Release()
	_, _, ok = q.deliverOnce()
	assert.True(t, ok)
}

func TestPrefetchIgnoredForNoAckConsumer(t *testing.T) {
	q := newTestQueue(QueueArgs{})
	ch := &fakeChannel{}

	c := newConsumer("c1", ch, true, false, 1)
	require.NoError(t, q.addConsumer(c))

	for i := 0; i < 3; i++ {
		q.enqueue(&Message{Body: []byte{byte(i)}})
	}

	// No acks ever arrive for a no-ack consumer, so prefetch must not
	// throttle it.
	for i := 0; i < 3; i++ {
		_, _, ok := q.deliverOnce()
		require.True(t, ok)
	}
}

func TestMessageTTLExpiresOnDequeue(t *testing.T) {
	ttl := int64(1)
	q := newTestQueue(QueueArgs{MessageTTL: &ttl})

	q.enqueue(&Message{Body: []byte("stale")})
	time.Sleep(200 * time.Millisecond) // past the TTL and the clock tick

	msg, _, err := q.pop()
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestMaxLengthDropsHead(t *testing.T) {
	max := int64(2)
	q := newTestQueue(QueueArgs{MaxLength: &max})

	for _, body := range []string{"a", "b", "c"} {
		q.enqueue(&Message{Body: []byte(body)})
	}

	msg, _, err := q.pop()
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, "b", string(msg.Body))

	msg, _, err = q.pop()
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, "c", string(msg.Body))
}

func TestRemoveConsumerReportsAutoDeleteCondition(t *testing.T) {
	q := newTestQueue(QueueArgs{})
	ch := &fakeChannel{}

	require.NoError(t, q.addConsumer(newConsumer("c1", ch, true, false, 0)))

	removed, nowEmpty := q.removeConsumer("nope")
	assert.False(t, removed)
	assert.False(t, nowEmpty)

	removed, nowEmpty = q.removeConsumer("c1")
	assert.True(t, removed)
	assert.True(t, nowEmpty)
}

func TestRemoveConsumersForChannel(t *testing.T) {
	q := newTestQueue(QueueArgs{})
	mine := &fakeChannel{}
	theirs := &fakeChannel{}

	require.NoError(t, q.addConsumer(newConsumer("c1", mine, true, false, 0)))
	require.NoError(t, q.addConsumer(newConsumer("c2", theirs, true, false, 0)))
	require.NoError(t, q.addConsumer(newConsumer("c3", mine, true, false, 0)))

	tags := q.removeConsumersForChannel(mine)
	assert.ElementsMatch(t, []string{"c1", "c3"}, tags)

	_, cons := q.Counts()
	assert.Equal(t, uint32(1), cons)
}
