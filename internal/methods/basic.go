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
	register(ClassBasic, 10, parseBasicQos)
	register(ClassBasic, 11, parseBasicQosOk)
	register(ClassBasic, 20, parseBasicConsume)
	register(ClassBasic, 21, parseBasicConsumeOk)
	register(ClassBasic, 30, parseBasicCancel)
	register(ClassBasic, 31, parseBasicCancelOk)
	register(ClassBasic, 40, parseBasicPublish)
	register(ClassBasic, 50, parseBasicReturn)
	register(ClassBasic, 60, parseBasicDeliver)
	register(ClassBasic, 70, parseBasicGet)
	register(ClassBasic, 71, parseBasicGetOk)
	register(ClassBasic, 72, parseBasicGetEmpty)
	register(ClassBasic, 80, parseBasicAck)
	register(ClassBasic, 90, parseBasicReject)
	register(ClassBasic, 100, parseBasicRecoverAsync)
	register(ClassBasic, 110, parseBasicRecover)
	register(ClassBasic, 111, parseBasicRecoverOk)
	register(ClassBasic, 120, parseBasicNack)
}

type BasicQos struct {
	PrefetchSize  uint32
	PrefetchCount uint16
	Global        bool
}

func (BasicQos) ClassID() uint16    { return ClassBasic }
func (BasicQos) MethodID() uint16   { return 10 }
func (BasicQos) MethodName() string { return "basic.qos" }
func (m BasicQos) write(enc *field.Encoder) error {
	enc.Long(m.PrefetchSize)
	enc.Short(m.PrefetchCount)
	enc.Bits([]bool{m.Global})
	return nil
}
func parseBasicQos(dec *field.Decoder) (Method, error) {
	var m BasicQos
	var err error
	if m.PrefetchSize, err = dec.Long(); err != nil {
		return nil, err
	}
	if m.PrefetchCount, err = dec.Short(); err != nil {
		return nil, err
	}
	bits, err := dec.Bits(1)
	if err != nil {
		return nil, err
	}
	m.Global = bits[0]
	return m, nil
}

type BasicQosOk struct{}

func (BasicQosOk) ClassID() uint16                { return ClassBasic }
func (BasicQosOk) MethodID() uint16               { return 11 }
func (BasicQosOk) MethodName() string             { return "basic.qos-ok" }
func (BasicQosOk) write(enc *field.Encoder) error { return nil }
func parseBasicQosOk(dec *field.Decoder) (Method, error) {
	return BasicQosOk{}, nil
}

type BasicConsume struct {
	Queue       string
	ConsumerTag string
	NoLocal     bool
	NoAck       bool
	Exclusive   bool
	NoWait      bool
	Arguments   field.Table
}

func (BasicConsume) ClassID() uint16    { return ClassBasic }
func (BasicConsume) MethodID() uint16   { return 20 }
func (BasicConsume) MethodName() string { return "basic.consume" }
func (m BasicConsume) write(enc *field.Encoder) error {
	enc.Short(0)
	if err := enc.ShortString(m.Queue); err != nil {
		return err
	}
	if err := enc.ShortString(m.ConsumerTag); err != nil {
		return err
	}
	enc.Bits([]bool{m.NoLocal, m.NoAck, m.Exclusive, m.NoWait})
	return enc.Table(m.Arguments)
}
func parseBasicConsume(dec *field.Decoder) (Method, error) {
	var m BasicConsume
	if _, err := dec.Short(); err != nil {
		return nil, err
	}
	var err error
	if m.Queue, err = dec.ShortString(); err != nil {
		return nil, err
	}
	if m.ConsumerTag, err = dec.ShortString(); err != nil {
		return nil, err
	}
	bits, err := dec.Bits(4)
	if err != nil {
		return nil, err
	}
	m.NoLocal, m.NoAck, m.Exclusive, m.NoWait = bits[0], bits[1], bits[2], bits[3]
	if m.Arguments, err = dec.Table(); err != nil {
		return nil, err
	}
	return m, nil
}

type BasicConsumeOk struct{ ConsumerTag string }

func (BasicConsumeOk) ClassID() uint16    { return ClassBasic }
func (BasicConsumeOk) MethodID() uint16   { return 21 }
func (BasicConsumeOk) MethodName() string { return "basic.consume-ok" }
func (m BasicConsumeOk) write(enc *field.Encoder) error {
	return enc.ShortString(m.ConsumerTag)
}
func parseBasicConsumeOk(dec *field.Decoder) (Method, error) {
	var m BasicConsumeOk
	var err error
	if m.ConsumerTag, err = dec.ShortString(); err != nil {
		return nil, err
	}
	return m, nil
}

type BasicCancel struct {
	ConsumerTag string
	NoWait      bool
}

func (BasicCancel) ClassID() uint16    { return ClassBasic }
func (BasicCancel) MethodID() uint16   { return 30 }
func (BasicCancel) MethodName() string { return "basic.cancel" }
func (m BasicCancel) write(enc *field.Encoder) error {
	if err := enc.ShortString(m.ConsumerTag); err != nil {
		return err
	}
	enc.Bits([]bool{m.NoWait})
	return nil
}
func parseBasicCancel(dec *field.Decoder) (Method, error) {
	var m BasicCancel
	var err error
	if m.ConsumerTag, err = dec.ShortString(); err != nil {
		return nil, err
	}
	bits, err := dec.Bits(1)
	if err != nil {
		return nil, err
	}
	m.NoWait = bits[0]
	return m, nil
}

type BasicCancelOk struct{ ConsumerTag string }

func (BasicCancelOk) ClassID() uint16    { return ClassBasic }
func (BasicCancelOk) MethodID() uint16   { return 31 }
func (BasicCancelOk) MethodName() string { return "basic.cancel-ok" }
func (m BasicCancelOk) write(enc *field.Encoder) error {
	return enc.ShortString(m.ConsumerTag)
}
func parseBasicCancelOk(dec *field.Decoder) (Method, error) {
	var m BasicCancelOk
	var err error
	if m.ConsumerTag, err = dec.ShortString(); err != nil {
		return nil, err
	}
	return m, nil
}

// BasicPublish is always followed by a content header and body frames;
// NeedsContent reports this.
type BasicPublish struct {
	Exchange   string
	RoutingKey string
	Mandatory  bool
	Immediate  bool
}

func (BasicPublish) ClassID() uint16    { return ClassBasic }
func (BasicPublish) MethodID() uint16   { return 40 }
func (BasicPublish) MethodName() string { return "basic.publish" }
func (m BasicPublish) write(enc *field.Encoder) error {
	enc.Short(0)
	if err := enc.ShortString(m.Exchange); err != nil {
		return err
	}
	if err := enc.ShortString(m.RoutingKey); err != nil {
		return err
	}
	enc.Bits([]bool{m.Mandatory, m.Immediate})
	return nil
}
func parseBasicPublish(dec *field.Decoder) (Method, error) {
	var m BasicPublish
	if _, err := dec.Short(); err != nil {
		return nil, err
	}
	var err error
	if m.Exchange, err = dec.ShortString(); err != nil {
		return nil, err
	}
	if m.RoutingKey, err = dec.ShortString(); err != nil {
		return nil, err
	}
	bits, err := dec.Bits(2)
	if err != nil {
		return nil, err
	}
	m.Mandatory, m.Immediate = bits[0], bits[1]
	return m, nil
}

type BasicReturn struct {
	ReplyCode  uint16
	ReplyText  string
	Exchange   string
	RoutingKey string
}

func (BasicReturn) ClassID() uint16    { return ClassBasic }
func (BasicReturn) MethodID() uint16   { return 50 }
func (BasicReturn) MethodName() string { return "basic.return" }
func (m BasicReturn) write(enc *field.Encoder) error {
	enc.Short(m.ReplyCode)
	if err := enc.ShortString(m.ReplyText); err != nil {
		return err
	}
	if err := enc.ShortString(m.Exchange); err != nil {
		return err
	}
	return enc.ShortString(m.RoutingKey)
}
func parseBasicReturn(dec *field.Decoder) (Method, error) {
	var m BasicReturn
	var err error
	if m.ReplyCode, err = dec.Short(); err != nil {
		return nil, err
	}
	if m.ReplyText, err = dec.ShortString(); err != nil {
		return nil, err
	}
	if m.Exchange, err = dec.ShortString(); err != nil {
		return nil, err
	}
	if m.RoutingKey, err = dec.ShortString(); err != nil {
		return nil, err
	}
	return m, nil
}

type BasicDeliver struct {
	ConsumerTag string
	DeliveryTag uint64
	Redelivered bool
	Exchange    string
	RoutingKey  string
}

func (BasicDeliver) ClassID() uint16    { return ClassBasic }
func (BasicDeliver) MethodID() uint16   { return 60 }
func (BasicDeliver) MethodName() string { return "basic.deliver" }
func (m BasicDeliver) write(enc *field.Encoder) error {
	if err := enc.ShortString(m.ConsumerTag); err != nil {
		return err
	}
	enc.LongLong(m.DeliveryTag)
	enc.Bits([]bool{m.Redelivered})
	if err := enc.ShortString(m.Exchange); err != nil {
		return err
	}
	return enc.ShortString(m.RoutingKey)
}
func parseBasicDeliver(dec *field.Decoder) (Method, error) {
	var m BasicDeliver
	var err error
	if m.ConsumerTag, err = dec.ShortString(); err != nil {
		return nil, err
	}
	if m.DeliveryTag, err = dec.LongLong(); err != nil {
		return nil, err
	}
	bits, err := dec.Bits(1)
	if err != nil {
		return nil, err
	}
	m.Redelivered = bits[0]
	if m.Exchange, err = dec.ShortString(); err != nil {
		return nil, err
	}
	if m.RoutingKey, err = dec.ShortString(); err != nil {
		return nil, err
	}
	return m, nil
}

type BasicGet struct {
	Queue string
	NoAck bool
}

func (BasicGet) ClassID() uint16    { return ClassBasic }
func (BasicGet) MethodID() uint16   { return 70 }
func (BasicGet) MethodName() string { return "basic.get" }
func (m BasicGet) write(enc *field.Encoder) error {
	enc.Short(0)
	if err := enc.ShortString(m.Queue); err != nil {
		return err
	}
	enc.Bits([]bool{m.NoAck})
	return nil
}
func parseBasicGet(dec *field.Decoder) (Method, error) {
	var m BasicGet
	if _, err := dec.Short(); err != nil {
		return nil, err
	}
	var err error
	if m.Queue, err = dec.ShortString(); err != nil {
		return nil, err
	}
	bits, err := dec.Bits(1)
	if err != nil {
		return nil, err
	}
	m.NoAck = bits[0]
	return m, nil
}

// BasicGetOk is always followed by a content header and body frames when
// returned in response to a successful basic.get.
type BasicGetOk struct {
	DeliveryTag  uint64
	Redelivered  bool
	Exchange     string
	RoutingKey   string
	MessageCount uint32
}

func (BasicGetOk) ClassID() uint16    { return ClassBasic }
func (BasicGetOk) MethodID() uint16   { return 71 }
func (BasicGetOk) MethodName() string { return "basic.get-ok" }
func (m BasicGetOk) write(enc *field.Encoder) error {
	enc.LongLong(m.DeliveryTag)
	enc.Bits([]bool{m.Redelivered})
	if err := enc.ShortString(m.Exchange); err != nil {
		return err
	}
	if err := enc.ShortString(m.RoutingKey); err != nil {
		return err
	}
	enc.Long(m.MessageCount)
	return nil
}
func parseBasicGetOk(dec *field.Decoder) (Method, error) {
	var m BasicGetOk
	var err error
	if m.DeliveryTag, err = dec.LongLong(); err != nil {
		return nil, err
	}
	bits, err := dec.Bits(1)
	if err != nil {
		return nil, err
	}
	m.Redelivered = bits[0]
	if m.Exchange, err = dec.ShortString(); err != nil {
		return nil, err
	}
	if m.RoutingKey, err = dec.ShortString(); err != nil {
		return nil, err
	}
	if m.MessageCount, err = dec.Long(); err != nil {
		return nil, err
	}
	return m, nil
}

type BasicGetEmpty struct{ ClusterId string }

func (BasicGetEmpty) ClassID() uint16    { return ClassBasic }
func (BasicGetEmpty) MethodID() uint16   { return 72 }
func (BasicGetEmpty) MethodName() string { return "basic.get-empty" }
func (m BasicGetEmpty) write(enc *field.Encoder) error {
	return enc.ShortString(m.ClusterId)
}
func parseBasicGetEmpty(dec *field.Decoder) (Method, error) {
	var m BasicGetEmpty
	var err error
	if m.ClusterId, err = dec.ShortString(); err != nil {
		return nil, err
	}
	return m, nil
}

type BasicAck struct {
	DeliveryTag uint64
	Multiple    bool
}

func (BasicAck) ClassID() uint16    { return ClassBasic }
func (BasicAck) MethodID() uint16   { return 80 }
func (BasicAck) MethodName() string { return "basic.ack" }
func (m BasicAck) write(enc *field.Encoder) error {
	enc.LongLong(m.DeliveryTag)
	enc.Bits([]bool{m.Multiple})
	return nil
}
func parseBasicAck(dec *field.Decoder) (Method, error) {
	var m BasicAck
	var err error
	if m.DeliveryTag, err = dec.LongLong(); err != nil {
		return nil, err
	}
	bits, err := dec.Bits(1)
	if err != nil {
		return nil, err
	}
	m.Multiple = bits[0]
	return m, nil
}

type BasicReject struct {
	DeliveryTag uint64
	Requeue     bool
}

func (BasicReject) ClassID() uint16    { return ClassBasic }
func (BasicReject) MethodID() uint16   { return 90 }
func (BasicReject) MethodName() string { return "basic.reject" }
func (m BasicReject) write(enc *field.Encoder) error {
	enc.LongLong(m.DeliveryTag)
	enc.Bits([]bool{m.Requeue})
	return nil
}
func parseBasicReject(dec *field.Decoder) (Method, error) {
	var m BasicReject
	var err error
	if m.DeliveryTag, err = dec.LongLong(); err != nil {
		return nil, err
	}
	bits, err := dec.Bits(1)
	if err != nil {
		return nil, err
	}
	m.Requeue = bits[0]
	return m, nil
}

type BasicRecoverAsync struct{ Requeue bool }

func (BasicRecoverAsync) ClassID() uint16    { return ClassBasic }
func (BasicRecoverAsync) MethodID() uint16   { return 100 }
func (BasicRecoverAsync) MethodName() string { return "basic.recover-async" }
func (m BasicRecoverAsync) write(enc *field.Encoder) error {
	enc.Bits([]bool{m.Requeue})
	return nil
}
func parseBasicRecoverAsync(dec *field.Decoder) (Method, error) {
	bits, err := dec.Bits(1)
	if err != nil {
		return nil, err
	}
	return BasicRecoverAsync{Requeue: bits[0]}, nil
}

type BasicRecover struct{ Requeue bool }

func (BasicRecover) ClassID() uint16    { return ClassBasic }
func (BasicRecover) MethodID() uint16   { return 110 }
func (BasicRecover) MethodName() string { return "basic.recover" }
func (m BasicRecover) write(enc *field.Encoder) error {
	enc.Bits([]bool{m.Requeue})
	return nil
}
func parseBasicRecover(dec *field.Decoder) (Method, error) {
	bits, err := dec.Bits(1)
	if err != nil {
		return nil, err
	}
	return BasicRecover{Requeue: bits[0]}, nil
}

type BasicRecoverOk struct{}

func (BasicRecoverOk) ClassID() uint16                { return ClassBasic }
func (BasicRecoverOk) MethodID() uint16               { return 111 }
func (BasicRecoverOk) MethodName() string             { return "basic.recover-ok" }
func (BasicRecoverOk) write(enc *field.Encoder) error { return nil }
func parseBasicRecoverOk(dec *field.Decoder) (Method, error) {
	return BasicRecoverOk{}, nil
}

type BasicNack struct {
	DeliveryTag uint64
	Multiple    bool
	Requeue     bool
}

func (BasicNack) ClassID() uint16    { return ClassBasic }
func (BasicNack) MethodID() uint16   { return 120 }
func (BasicNack) MethodName() string { return "basic.nack" }
func (m BasicNack) write(enc *field.Encoder) error {
	enc.LongLong(m.DeliveryTag)
	enc.Bits([]bool{m.Multiple, m.Requeue})
	return nil
}
func parseBasicNack(dec *field.Decoder) (Method, error) {
	var m BasicNack
	var err error
	if m.DeliveryTag, err = dec.LongLong(); err != nil {
		return nil, err
	}
	bits, err := dec.Bits(2)
	if err != nil {
		return nil, err
	}
	m.Multiple, m.Requeue = bits[0], bits[1]
	return m, nil
}
