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

// Package frame implements the AMQP 0-9-1 frame codec: the 7-byte header,
// payload, and 0xCE terminator that wraps every method, content-header,
// content-body, and heartbeat frame on the wire.
package frame

import (
	"encoding/binary"
	"io"

	"github.com/valyala/bytebufferpool"

	"github.com/amqpd/amqpd/internal/amqperr"
)

type Kind uint8

const (
	Method    Kind = 1
	Header    Kind = 2
	Body      Kind = 3
	Heartbeat Kind = 8
)

func (k Kind) String() string {
	switch k {
	case Method:
		return "Method"
	case Header:
		return "Header"
	case Body:
		return "Body"
	case Heartbeat:
		return "Heartbeat"
	default:
		return "Unknown"
	}
}

func (k Kind) valid() bool {
	switch k {
	case Method, Header, Body, Heartbeat:
		return true
	default:
		return false
	}
}

// headerSize is the fixed type+channel+size prefix
const headerSize = 7

// end is the mandatory frame terminator.
const end = 0xCE

// Frame is one unit of wire transmission
type Frame struct {
	Kind    Kind
	Channel uint16
	Payload []byte
}

// Read decodes one frame from r. maxFrameSize of 0 means unbounded
// (used during negotiation before Tune completes); a non-zero value is
// enforced strictly against the payload size
func Read(r io.Reader, maxFrameSize uint32) (*Frame, error) {
	var head [headerSize]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return nil, err
	}

	kind := Kind(head[0])
	channel := binary.BigEndian.Uint16(head[1:3])
	size := binary.BigEndian.Uint32(head[3:7])

	if !kind.valid() {
		return nil, amqperr.New(amqperr.FrameError, "unknown frame type")
	}
	if kind == Heartbeat && channel != 0 {
		return nil, amqperr.New(amqperr.FrameError, "heartbeat frame on non-zero channel")
	}
	if maxFrameSize != 0 && size > maxFrameSize {
		return nil, amqperr.Newf(amqperr.FrameError, "frame size %d exceeds negotiated max %d", size, maxFrameSize)
	}

	var payload []byte
	if size > 0 {
		payload = make([]byte, size)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}
	}

	var trailer [1]byte
	if _, err := io.ReadFull(r, trailer[:]); err != nil {
		return nil, err
	}
	if trailer[0] != end {
		return nil, amqperr.New(amqperr.FrameError, "missing frame end octet")
	}

	return &Frame{Kind: kind, Channel: channel, Payload: payload}, nil
}

// Write encodes and flushes one frame to w. It validates size against
// maxFrameSize exactly as Read does, so a server never emits a frame the
// peer would be entitled to reject.
func Write(w io.Writer, f *Frame, maxFrameSize uint32) error {
	if maxFrameSize != 0 && uint32(len(f.Payload)) > maxFrameSize {
		return amqperr.Newf(amqperr.FrameError, "frame size %d exceeds negotiated max %d", len(f.Payload), maxFrameSize)
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	var head [headerSize]byte
	head[0] = byte(f.Kind)
	binary.BigEndian.PutUint16(head[1:3], f.Channel)
	binary.BigEndian.PutUint32(head[3:7], uint32(len(f.Payload)))

	buf.Write(head[:])
	buf.Write(f.Payload)
	buf.WriteByte(end)

	_, err := w.Write(buf.Bytes())
	return err
}
