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
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amqpd/amqpd/internal/amqperr"
)

// fakeChannel satisfies Channel for tests without a live connection.
type fakeChannel struct {
	mu        sync.Mutex
	tag       uint64
	delivered []string // consumer tags in delivery order
}

func (f *fakeChannel) NextDeliveryTag() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tag++
	return f.tag
}

func (f *fakeChannel) RecordUnacked(tag uint64, queue string, msg *Message, consumer *Consumer) {}

func (f *fakeChannel) Deliver(consumerTag string, deliveryTag uint64, redelivered bool, msg *Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered = append(f.delivered, consumerTag)
	return nil
}

func codeOf(t *testing.T, err error) amqperr.Code {
	t.Helper()
	var aerr *amqperr.Error
	require.ErrorAs(t, err, &aerr)
	return aerr.Code
}

func TestDeclareCreatesAndRedeclareReturnsCounts(t *testing.T) {
	b := New(nil)
	ch := &fakeChannel{}

	res, err := b.Declare("work", false, false, false, false, QueueArgs{}, ch)
	require.NoError(t, err)
	assert.Equal(t, "work", res.Name)

	b.Publish(&Message{RoutingKey: "work", Body: []byte("x")})

	res, err = b.Declare("work", false, false, false, false, QueueArgs{}, ch)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), res.MessageCount)
	assert.Equal(t, uint32(0), res.ConsumerCount)
	assert.Len(t, b.Snapshot(), 1)
}

func TestDeclareMismatchedFlagsIsPreconditionFailed(t *testing.T) {
	b := New(nil)
	ch := &fakeChannel{}

	_, err := b.Declare("work", false, false, false, false, QueueArgs{}, ch)
	require.NoError(t, err)

	_, err = b.Declare("work", false, true, false, false, QueueArgs{}, ch)
	assert.Equal(t, amqperr.PreconditionFail, codeOf(t, err))
}

func TestDeclarePassive(t *testing.T) {
	b := New(nil)
	ch := &fakeChannel{}

	_, err := b.Declare("missing", true, false, false, false, QueueArgs{}, ch)
	assert.Equal(t, amqperr.NotFound, codeOf(t, err))

	_, err = b.Declare("work", false, false, false, false, QueueArgs{}, ch)
	require.NoError(t, err)

	res, err := b.Declare("work", true, false, false, false, QueueArgs{}, ch)
	require.NoError(t, err)
	assert.Equal(t, "work", res.Name)
}

func TestDeclareGeneratesName(t *testing.T) {
	b := New(nil)
	ch := &fakeChannel{}

	res, err := b.Declare("", false, false, false, false, QueueArgs{}, ch)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.Name, "amq.gen-"), "got %q", res.Name)

	res2, err := b.Declare("", false, false, false, false, QueueArgs{}, ch)
	require.NoError(t, err)
	assert.NotEqual(t, res.Name, res2.Name)
}

func TestPublishRoutesByQueueName(t *testing.T) {
	b := New(nil)
	ch := &fakeChannel{}

	_, err := b.Declare("hello", false, false, false, false, QueueArgs{}, ch)
	require.NoError(t, err)

	res := b.Publish(&Message{Exchange: "", RoutingKey: "hello", Body: []byte("world")})
	assert.True(t, res.Routed)

	msg, remaining, err := b.Get("hello", ch)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, []byte("world"), msg.Body)
	assert.Equal(t, uint32(0), remaining)
}

func TestPublishUnroutedReportsNotRouted(t *testing.T) {
	b := New(nil)
	res := b.Publish(&Message{RoutingKey: "nowhere", Body: []byte("x")})
	assert.False(t, res.Routed)
}

func TestExclusiveQueueLockedToDeclaringChannel(t *testing.T) {
	b := New(nil)
	owner := &fakeChannel{}
	other := &fakeChannel{}

	_, err := b.Declare("private", false, false, true, false, QueueArgs{}, owner)
	require.NoError(t, err)

	_, err = b.Declare("private", false, false, false, false, QueueArgs{}, other)
	assert.Equal(t, amqperr.ResourceLocked, codeOf(t, err))

	_, _, err = b.Get("private", other)
	assert.Equal(t, amqperr.ResourceLocked, codeOf(t, err))

	_, err = b.Consume("private", "ctag", other, false, true, false, 0)
	assert.Equal(t, amqperr.ResourceLocked, codeOf(t, err))

	// The declaring channel keeps full access.
	_, err = b.Declare("private", false, false, true, false, QueueArgs{}, owner)
	require.NoError(t, err)
}

func TestExclusiveQueueDeletedOnChannelClose(t *testing.T) {
	b := New(nil)
	owner := &fakeChannel{}

	_, err := b.Declare("private", false, false, true, false, QueueArgs{}, owner)
	require.NoError(t, err)

	deleted := b.DeleteChannelExclusives(owner)
	assert.Equal(t, []string{"private"}, deleted)

	_, err = b.Declare("private", true, false, false, false, QueueArgs{}, owner)
	assert.Equal(t, amqperr.NotFound, codeOf(t, err))
}

func TestExclusiveConsumerConflict(t *testing.T) {
	b := New(nil)
	ch := &fakeChannel{}

	_, err := b.Declare("work", false, false, false, false, QueueArgs{}, ch)
	require.NoError(t, err)

	_, err = b.Consume("work", "c1", ch, false, true, true, 0)
	require.NoError(t, err)

	_, err = b.Consume("work", "c2", ch, false, true, false, 0)
	assert.Equal(t, amqperr.AccessRefused, codeOf(t, err))
}

func TestAutoDeleteFiresWhenLastConsumerCancels(t *testing.T) {
	b := New(nil)
	ch := &fakeChannel{}

	_, err := b.Declare("transient", false, false, false, true, QueueArgs{}, ch)
	require.NoError(t, err)

	for _, tag := range []string{"c1", "c2"} {
		_, err = b.Consume("transient", tag, ch, false, true, false, 0)
		require.NoError(t, err)
	}

	fires, err := b.Cancel("transient", "c1")
	require.NoError(t, err)
	assert.False(t, fires)

	fires, err = b.Cancel("transient", "c2")
	require.NoError(t, err)
	assert.True(t, fires)

	_, err = b.Delete("transient", false, false, nil)
	require.NoError(t, err)

	_, err = b.Declare("transient", true, false, false, false, QueueArgs{}, ch)
	assert.Equal(t, amqperr.NotFound, codeOf(t, err))
}

func TestDeleteGuards(t *testing.T) {
	b := New(nil)
	ch := &fakeChannel{}

	// ifEmpty against a queue holding a message.
	_, err := b.Declare("filled", false, false, false, false, QueueArgs{}, ch)
	require.NoError(t, err)
	b.Publish(&Message{RoutingKey: "filled", Body: []byte("x")})

	_, err = b.Delete("filled", false, true, ch)
	assert.Equal(t, amqperr.PreconditionFail, codeOf(t, err))

	// ifUnused against a queue with a consumer.
	_, err = b.Declare("busy", false, false, false, false, QueueArgs{}, ch)
	require.NoError(t, err)
	_, err = b.Consume("busy", "c1", ch, false, true, false, 0)
	require.NoError(t, err)

	_, err = b.Delete("busy", true, false, ch)
	assert.Equal(t, amqperr.PreconditionFail, codeOf(t, err))

	n, err := b.Delete("filled", false, false, ch)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), n)
}

func TestRequeuePutsMessagesAtHead(t *testing.T) {
	b := New(nil)
	ch := &fakeChannel{}

	_, err := b.Declare("work", false, false, false, false, QueueArgs{}, ch)
	require.NoError(t, err)

	b.Publish(&Message{RoutingKey: "work", Body: []byte("third")})
	b.Requeue("work", []*Message{
		{RoutingKey: "work", Body: []byte("first")},
		{RoutingKey: "work", Body: []byte("second")},
	})

	for _, want := range []string{"first", "second", "third"} {
		msg, _, err := b.Get("work", ch)
		require.NoError(t, err)
		require.NotNil(t, msg)
		assert.Equal(t, want, string(msg.Body))
	}
}

func TestDeliveryLoopDrivesConsumer(t *testing.T) {
	b := New(nil)
	ch := &fakeChannel{}

	_, err := b.Declare("work", false, false, false, false, QueueArgs{}, ch)
	require.NoError(t, err)
	_, err = b.Consume("work", "c1", ch, false, true, false, 0)
	require.NoError(t, err)

	b.Publish(&Message{RoutingKey: "work", Body: []byte("job")})

	require.Eventually(t, func() bool {
		ch.mu.Lock()
		defer ch.mu.Unlock()
		return len(ch.delivered) == 1 && ch.delivered[0] == "c1"
	}, time.Second, 5*time.Millisecond)
}
