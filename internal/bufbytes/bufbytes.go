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

// Package bufbytes is a size-capped byte accumulator. Writes past the cap
// are discarded, which makes it safe to feed arbitrarily large message
// bodies into debug-log previews.
package bufbytes

import "unicode/utf8"

type Bytes struct {
	size int
	buf  []byte
}

func New(size int) *Bytes {
	return &Bytes{
		size: size,
	}
}

// Write appends p up to the remaining capacity; the overflow is dropped.
func (b *Bytes) Write(p []byte) {
	n := (b.size - len(b.buf)) - len(p)
	if n >= 0 {
		b.buf = append(b.buf, p...)
		return
	}

	l := b.size - len(b.buf)
	if l > 0 {
		b.buf = append(b.buf, p[:l]...)
	}
}

func (b *Bytes) Len() int {
	return len(b.buf)
}

func (b *Bytes) Text() string {
	return string(b.buf)
}

// PreviewText renders the buffer for logging: valid UTF-8 comes back
// as-is, anything else as a placeholder.
func (b *Bytes) PreviewText() string {
	if utf8.Valid(b.buf) {
		return string(b.buf)
	}
	return "<binary>"
}

func (b *Bytes) Clone() []byte {
	if b.buf == nil {
		return nil
	}
	return append([]byte{}, b.buf...)
}

func (b *Bytes) Reset() {
	b.buf = b.buf[:0]
}
