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

// Package content implements the AMQP 0-9-1 content header codec and the
// assembler that joins a content-bearing method with its header frame and
// body frames into a single message. The assembler is an incremental
// accumulator driven by the per-connection frame loop: body frames for
// one channel may interleave with traffic on other channels.
package content

import (
	"github.com/pkg/errors"

	"github.com/amqpd/amqpd/internal/amqperr"
	"github.com/amqpd/amqpd/internal/field"
)

// Basic class property bit positions, high bit first, per the AMQP 0-9-1
// basic-properties table.
const (
	flagContentType     = 1 << 15
	flagContentEncoding = 1 << 14
	flagHeaders         = 1 << 13
	flagDeliveryMode    = 1 << 12
	flagPriority        = 1 << 11
	flagCorrelationID   = 1 << 10
	flagReplyTo         = 1 << 9
	flagExpiration      = 1 << 8
	flagMessageID       = 1 << 7
	flagTimestamp       = 1 << 6
	flagType            = 1 << 5
	flagUserID          = 1 << 4
	flagAppID           = 1 << 3
	// bit 1<<2 ("reserved") is never set by this implementation.
)

// BasicProperties holds the basic-class content properties that ride along
// a published message.
type BasicProperties struct {
	ContentType     string
	ContentEncoding string
	Headers         field.Table
	DeliveryMode    uint8
	Priority        uint8
	CorrelationID   string
	ReplyTo         string
	Expiration      string
	MessageID       string
	Timestamp       uint64
	Type            string
	UserID          string
	AppID           string

	hasContentType     bool
	hasContentEncoding bool
	hasHeaders         bool
	hasDeliveryMode    bool
	hasPriority        bool
	hasCorrelationID   bool
	hasReplyTo         bool
	hasExpiration      bool
	hasMessageID       bool
	hasTimestamp       bool
	hasType            bool
	hasUserID          bool
	hasAppID           bool
}

func (p *BasicProperties) SetContentType(v string) *BasicProperties {
	p.ContentType, p.hasContentType = v, true
	return p
}

func (p *BasicProperties) SetDeliveryMode(v uint8) *BasicProperties {
	p.DeliveryMode, p.hasDeliveryMode = v, true
	return p
}

func (p *BasicProperties) SetMessageID(v string) *BasicProperties {
	p.MessageID, p.hasMessageID = v, true
	return p
}

func (p *BasicProperties) SetTimestamp(v uint64) *BasicProperties {
	p.Timestamp, p.hasTimestamp = v, true
	return p
}

// Persistent reports whether delivery-mode marks the message for durable
// storage semantics. Persistence itself is a Non-goal stub.
func (p BasicProperties) Persistent() bool {
	return p.hasDeliveryMode && p.DeliveryMode == 2
}

// ContentHeader is the frame following a content-bearing method
type ContentHeader struct {
	ClassID    uint16
	Weight     uint16
	BodySize   uint64
	Properties BasicProperties
}

// EncodeHeader serializes a content-header frame payload: class-id, weight,
// body-size, one non-continued property-flags word, then the present
// fields in table order.
func EncodeHeader(h ContentHeader) ([]byte, error) {
	enc := field.NewEncoder()
	defer enc.Release()

	enc.Short(h.ClassID)
	enc.Short(h.Weight)
	enc.LongLong(h.BodySize)

	p := h.Properties
	var flags uint16
	if p.hasContentType {
		flags |= flagContentType
	}
	if p.hasContentEncoding {
		flags |= flagContentEncoding
	}
	if p.hasHeaders {
		flags |= flagHeaders
	}
	if p.hasDeliveryMode {
		flags |= flagDeliveryMode
	}
	if p.hasPriority {
		flags |= flagPriority
	}
	if p.hasCorrelationID {
		flags |= flagCorrelationID
	}
	if p.hasReplyTo {
		flags |= flagReplyTo
	}
	if p.hasExpiration {
		flags |= flagExpiration
	}
	if p.hasMessageID {
		flags |= flagMessageID
	}
	if p.hasTimestamp {
		flags |= flagTimestamp
	}
	if p.hasType {
		flags |= flagType
	}
	if p.hasUserID {
		flags |= flagUserID
	}
	if p.hasAppID {
		flags |= flagAppID
	}
	// The continuation bit (1<<0) is always clear: amqpd never emits a
	// second property-flags word.
	enc.Short(flags)

	if p.hasContentType {
		if err := enc.ShortString(p.ContentType); err != nil {
			return nil, err
		}
	}
	if p.hasContentEncoding {
		if err := enc.ShortString(p.ContentEncoding); err != nil {
			return nil, err
		}
	}
	if p.hasHeaders {
		if err := enc.Table(p.Headers); err != nil {
			return nil, err
		}
	}
	if p.hasDeliveryMode {
		enc.Octet(p.DeliveryMode)
	}
	if p.hasPriority {
		enc.Octet(p.Priority)
	}
	if p.hasCorrelationID {
		if err := enc.ShortString(p.CorrelationID); err != nil {
			return nil, err
		}
	}
	if p.hasReplyTo {
		if err := enc.ShortString(p.ReplyTo); err != nil {
			return nil, err
		}
	}
	if p.hasExpiration {
		if err := enc.ShortString(p.Expiration); err != nil {
			return nil, err
		}
	}
	if p.hasMessageID {
		if err := enc.ShortString(p.MessageID); err != nil {
			return nil, err
		}
	}
	if p.hasTimestamp {
		enc.Timestamp(p.Timestamp)
	}
	if p.hasType {
		if err := enc.ShortString(p.Type); err != nil {
			return nil, err
		}
	}
	if p.hasUserID {
		if err := enc.ShortString(p.UserID); err != nil {
			return nil, err
		}
	}
	if p.hasAppID {
		if err := enc.ShortString(p.AppID); err != nil {
			return nil, err
		}
	}

	out := make([]byte, len(enc.Bytes()))
	copy(out, enc.Bytes())
	return out, nil
}

// DecodeHeader parses a content-header frame payload. Continuation
// property-flags words are accepted (and their bit-0 chased) for wire
// compatibility with clients that pad the flags field, even though amqpd
// never emits one.
func DecodeHeader(payload []byte) (ContentHeader, error) {
	dec := field.NewDecoder(payload)
	var h ContentHeader
	var err error

	if h.ClassID, err = dec.Short(); err != nil {
		return h, amqperr.New(amqperr.SyntaxError, "truncated content header")
	}
	if h.Weight, err = dec.Short(); err != nil {
		return h, amqperr.New(amqperr.SyntaxError, "truncated content header")
	}
	if h.BodySize, err = dec.LongLong(); err != nil {
		return h, amqperr.New(amqperr.SyntaxError, "truncated content header")
	}

	var flags uint16
	for {
		word, err := dec.Short()
		if err != nil {
			return h, amqperr.New(amqperr.SyntaxError, "truncated property flags")
		}
		flags |= word &^ 1
		if word&1 == 0 {
			break
		}
	}

	p := &h.Properties
	if flags&flagContentType != 0 {
		if p.ContentType, err = dec.ShortString(); err != nil {
			return h, wrapSyntax(err)
		}
		p.hasContentType = true
	}
	if flags&flagContentEncoding != 0 {
		if p.ContentEncoding, err = dec.ShortString(); err != nil {
			return h, wrapSyntax(err)
		}
		p.hasContentEncoding = true
	}
	if flags&flagHeaders != 0 {
		if p.Headers, err = dec.Table(); err != nil {
			return h, wrapSyntax(err)
		}
		p.hasHeaders = true
	}
	if flags&flagDeliveryMode != 0 {
		if p.DeliveryMode, err = dec.Octet(); err != nil {
			return h, wrapSyntax(err)
		}
		p.hasDeliveryMode = true
	}
	if flags&flagPriority != 0 {
		if p.Priority, err = dec.Octet(); err != nil {
			return h, wrapSyntax(err)
		}
		p.hasPriority = true
	}
	if flags&flagCorrelationID != 0 {
		if p.CorrelationID, err = dec.ShortString(); err != nil {
			return h, wrapSyntax(err)
		}
		p.hasCorrelationID = true
	}
	if flags&flagReplyTo != 0 {
		if p.ReplyTo, err = dec.ShortString(); err != nil {
			return h, wrapSyntax(err)
		}
		p.hasReplyTo = true
	}
	if flags&flagExpiration != 0 {
		if p.Expiration, err = dec.ShortString(); err != nil {
			return h, wrapSyntax(err)
		}
		p.hasExpiration = true
	}
	if flags&flagMessageID != 0 {
		if p.MessageID, err = dec.ShortString(); err != nil {
			return h, wrapSyntax(err)
		}
		p.hasMessageID = true
	}
	if flags&flagTimestamp != 0 {
		if p.Timestamp, err = dec.Timestamp(); err != nil {
			return h, wrapSyntax(err)
		}
		p.hasTimestamp = true
	}
	if flags&flagType != 0 {
		if p.Type, err = dec.ShortString(); err != nil {
			return h, wrapSyntax(err)
		}
		p.hasType = true
	}
	if flags&flagUserID != 0 {
		if p.UserID, err = dec.ShortString(); err != nil {
			return h, wrapSyntax(err)
		}
		p.hasUserID = true
	}
	if flags&flagAppID != 0 {
		if p.AppID, err = dec.ShortString(); err != nil {
			return h, wrapSyntax(err)
		}
		p.hasAppID = true
	}

	if dec.Len() != 0 {
		return h, amqperr.New(amqperr.SyntaxError, "trailing bytes after content properties")
	}
	return h, nil
}

func wrapSyntax(err error) error {
	if _, ok := err.(*amqperr.Error); ok {
		return err
	}
	return amqperr.Newf(amqperr.SyntaxError, "%s", err)
}

// ErrIncomplete is returned by Assembler.Message while more body frames are
// still expected.
var ErrIncomplete = errors.New("amqp/content: message body incomplete")

// Assembler accumulates a content-header frame and the body frames that
// follow it into a single Message, enforcing the declared body-size.
// No-interleaving within a channel is enforced by the caller serializing
// frame reads per channel.
type Assembler struct {
	header   ContentHeader
	body     []byte
	complete bool
}

// NewAssembler starts assembling a message whose content header has just
// been read.
func NewAssembler(h ContentHeader) *Assembler {
	a := &Assembler{header: h, body: make([]byte, 0, h.BodySize)}
	if h.BodySize == 0 {
		a.complete = true
	}
	return a
}

// AddBody appends a body frame's payload. It returns an UnexpectedFrame
// connection exception if the accumulated size would exceed the declared
// body-size
func (a *Assembler) AddBody(chunk []byte) error {
	if a.complete {
		return amqperr.New(amqperr.UnexpectedFrame, "body frame after message already complete")
	}
	if uint64(len(a.body)+len(chunk)) > a.header.BodySize {
		return amqperr.New(amqperr.UnexpectedFrame, "body frame overruns declared body size")
	}
	a.body = append(a.body, chunk...)
	if uint64(len(a.body)) == a.header.BodySize {
		a.complete = true
	}
	return nil
}

// Complete reports whether every declared body byte has arrived.
func (a *Assembler) Complete() bool { return a.complete }

// Message returns the assembled header and body. It is an error to call
// before Complete reports true.
func (a *Assembler) Message() (ContentHeader, []byte, error) {
	if !a.complete {
		return ContentHeader{}, nil, ErrIncomplete
	}
	return a.header, a.body, nil
}
