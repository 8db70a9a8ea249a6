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

package notify

import (
	"testing"
	"time"
)

func TestSignalBroadcastWakesWaiter(t *testing.T) {
	s := NewSignal()
	waiting := s.Wait()

	done := make(chan struct{})
	go func() {
		s.Broadcast()
		close(done)
	}()

	select {
	case <-waiting:
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken")
	}
	<-done
}

func TestSignalWaitAfterBroadcastBlocksAgain(t *testing.T) {
	s := NewSignal()
	s.Broadcast()

	select {
	case <-s.Wait():
		t.Fatal("new Wait channel should not be pre-closed")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestSignalMultipleWaiters(t *testing.T) {
	s := NewSignal()
	const n = 5
	waiters := make([]<-chan struct{}, n)
	for i := range waiters {
		waiters[i] = s.Wait()
	}

	s.Broadcast()
	for _, w := range waiters {
		select {
		case <-w:
		case <-time.After(time.Second):
			t.Fatal("waiter not woken")
		}
	}
}
