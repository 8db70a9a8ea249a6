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

// Package notify provides the "queue became readable" wakeup primitive
// the broker's delivery loops block on. A queue has exactly one condition
// worth publishing ("something changed, re-check state") and potentially
// many goroutines racing to react to it, so a swapped closed channel is
// the whole signal: no payload, no subscriber registry.
package notify

import "sync"

// Signal is an edge-triggered, many-waiters wakeup. Broadcast never blocks
// and wakes every caller that obtained its channel from Wait before the
// Broadcast; a Broadcast with no waiters is not remembered, since Wait
// returns a channel that closes on the next Broadcast.
type Signal struct {
	mu sync.Mutex
	ch chan struct{}
}

func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{})}
}

// Wait returns the channel to select on. Callers must re-check their
// condition after it closes, since Broadcast carries no payload and may
// have been triggered by an unrelated state change.
func (s *Signal) Wait() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch
}

// Broadcast wakes every current waiter.
func (s *Signal) Broadcast() {
	s.mu.Lock()
	defer s.mu.Unlock()
	close(s.ch)
	s.ch = make(chan struct{})
}
