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

// Package broker implements the in-memory registry of queues and
// consumers, the default-exchange routing rule, and queue lifecycle.
// Declaring a queue implicitly binds it to the default exchange under a
// routing key equal to its name, so the registry map doubles as that
// exchange's binding table.
package broker

import "github.com/amqpd/amqpd/internal/content"

// Message is an assembled, routable unit of content.
type Message struct {
	Exchange   string
	RoutingKey string
	Mandatory  bool
	Immediate  bool
	Properties content.ContentHeader
	Body       []byte

	// EnqueuedAt is the arrival timestamp in Unix milliseconds, stamped on
	// enqueue and compared against the queue's x-message-ttl argument on
	// every dequeue.
	EnqueuedAt int64
}
