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

// Package persistence defines the pluggable durability boundary. The
// broker core calls PersistQueue when a durable queue is declared and
// PersistMessage when a message is published to one; it does not call
// LoadDurableQueues or AckMessage. Noop exists
// so the broker core can depend on the interface unconditionally rather
// than branching on whether a storage backend is configured.
package persistence

// QueueSpec describes a durable queue as it would be recovered on restart.
type QueueSpec struct {
	Name       string
	Durable    bool
	Exclusive  bool
	AutoDelete bool
}

// Message is the minimal envelope persisted alongside a queued body.
type Message struct {
	ID         uint64
	Exchange   string
	RoutingKey string
	Body       []byte
}

// Port is the durability boundary. Every method takes effect synchronously
// from the broker core's point of view; an implementation backed by real
// storage is responsible for its own batching/fsync policy.
type Port interface {
	LoadDurableQueues() ([]QueueSpec, error)
	PersistQueue(spec QueueSpec) error
	PersistMessage(queue string, msg Message) error
	AckMessage(queue string, id uint64) error
}

// Noop implements Port with no storage. Durable queues declared against
// it survive nothing; the flag is accepted and recorded only.
type Noop struct{}

func (Noop) LoadDurableQueues() ([]QueueSpec, error)        { return nil, nil }
func (Noop) PersistQueue(spec QueueSpec) error              { return nil }
func (Noop) PersistMessage(queue string, msg Message) error { return nil }
func (Noop) AckMessage(queue string, id uint64) error       { return nil }

var _ Port = Noop{}
