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

package methods

import "github.com/amqpd/amqpd/internal/field"

func init() {
	register(ClassChannel, 10, parseChannelOpen)
	register(ClassChannel, 11, parseChannelOpenOk)
	register(ClassChannel, 20, parseChannelFlow)
	register(ClassChannel, 21, parseChannelFlowOk)
	register(ClassChannel, 40, parseChannelClose)
	register(ClassChannel, 41, parseChannelCloseOk)
}

type ChannelOpen struct{ OutOfBand string }

func (ChannelOpen) ClassID() uint16    { return ClassChannel }
func (ChannelOpen) MethodID() uint16   { return 10 }
func (ChannelOpen) MethodName() string { return "channel.open" }
func (m ChannelOpen) write(enc *field.Encoder) error {
	return enc.ShortString(m.OutOfBand)
}
func parseChannelOpen(dec *field.Decoder) (Method, error) {
	var m ChannelOpen
	var err error
	if m.OutOfBand, err = dec.ShortString(); err != nil {
		return nil, err
	}
	return m, nil
}

type ChannelOpenOk struct{ ChannelId []byte }

func (ChannelOpenOk) ClassID() uint16    { return ClassChannel }
func (ChannelOpenOk) MethodID() uint16   { return 11 }
func (ChannelOpenOk) MethodName() string { return "channel.open-ok" }
func (m ChannelOpenOk) write(enc *field.Encoder) error {
	enc.LongString(m.ChannelId)
	return nil
}
func parseChannelOpenOk(dec *field.Decoder) (Method, error) {
	var m ChannelOpenOk
	var err error
	if m.ChannelId, err = dec.LongString(); err != nil {
		return nil, err
	}
	return m, nil
}

type ChannelFlow struct{ Active bool }

func (ChannelFlow) ClassID() uint16    { return ClassChannel }
func (ChannelFlow) MethodID() uint16   { return 20 }
func (ChannelFlow) MethodName() string { return "channel.flow" }
func (m ChannelFlow) write(enc *field.Encoder) error {
	enc.Bits([]bool{m.Active})
	return nil
}
func parseChannelFlow(dec *field.Decoder) (Method, error) {
	bits, err := dec.Bits(1)
	if err != nil {
		return nil, err
	}
	return ChannelFlow{Active: bits[0]}, nil
}

type ChannelFlowOk struct{ Active bool }

func (ChannelFlowOk) ClassID() uint16    { return ClassChannel }
func (ChannelFlowOk) MethodID() uint16   { return 21 }
func (ChannelFlowOk) MethodName() string { return "channel.flow-ok" }
func (m ChannelFlowOk) write(enc *field.Encoder) error {
	enc.Bits([]bool{m.Active})
	return nil
}
func parseChannelFlowOk(dec *field.Decoder) (Method, error) {
	bits, err := dec.Bits(1)
	if err != nil {
		return nil, err
	}
	return ChannelFlowOk{Active: bits[0]}, nil
}

type ChannelClose struct {
	ReplyCode uint16
	ReplyText string
	ClassId   uint16
	MethodId  uint16
}

func (ChannelClose) ClassID() uint16    { return ClassChannel }
func (ChannelClose) MethodID() uint16   { return 40 }
func (ChannelClose) MethodName() string { return "channel.close" }
func (m ChannelClose) write(enc *field.Encoder) error {
	enc.Short(m.ReplyCode)
	if err := enc.ShortString(m.ReplyText); err != nil {
		return err
	}
	enc.Short(m.ClassId)
	enc.Short(m.MethodId)
	return nil
}
func parseChannelClose(dec *field.Decoder) (Method, error) {
	var m ChannelClose
	var err error
	if m.ReplyCode, err = dec.Short(); err != nil {
		return nil, err
	}
	if m.ReplyText, err = dec.ShortString(); err != nil {
		return nil, err
	}
	if m.ClassId, err = dec.Short(); err != nil {
		return nil, err
	}
	if m.MethodId, err = dec.Short(); err != nil {
		return nil, err
	}
	return m, nil
}

type ChannelCloseOk struct{}

func (ChannelCloseOk) ClassID() uint16                { return ClassChannel }
func (ChannelCloseOk) MethodID() uint16               { return 41 }
func (ChannelCloseOk) MethodName() string             { return "channel.close-ok" }
func (ChannelCloseOk) write(enc *field.Encoder) error { return nil }
func parseChannelCloseOk(dec *field.Decoder) (Method, error) {
	return ChannelCloseOk{}, nil
}
