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

// Package fasttime caches a coarse wall-clock timestamp so hot paths
// (message enqueue stamping, x-message-ttl expiry checks) avoid a syscall
// per message.
package fasttime

import (
	"sync/atomic"
	"time"
)

// tick bounds the clock's staleness; TTL comparisons tolerate it.
const tick = 50 * time.Millisecond

func init() {
	go func() {
		ticker := time.NewTicker(tick)
		defer ticker.Stop()
		for tm := range ticker.C {
			atomic.StoreInt64(&currentMillis, tm.UnixMilli())
		}
	}()
}

var currentMillis = time.Now().UnixMilli()

// UnixMilli returns the cached current time in Unix milliseconds.
func UnixMilli() int64 {
	return atomic.LoadInt64(&currentMillis)
}

// UnixTimestamp returns the cached current time in Unix seconds.
func UnixTimestamp() int64 {
	return UnixMilli() / 1000
}
