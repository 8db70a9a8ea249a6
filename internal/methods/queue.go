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
	register(ClassQueue, 10, parseQueueDeclare)
	register(ClassQueue, 11, parseQueueDeclareOk)
	register(ClassQueue, 20, parseQueueBind)
	register(ClassQueue, 21, parseQueueBindOk)
	register(ClassQueue, 30, parseQueuePurge)
	register(ClassQueue, 31, parseQueuePurgeOk)
	register(ClassQueue, 40, parseQueueDelete)
	register(ClassQueue, 41, parseQueueDeleteOk)
	register(ClassQueue, 50, parseQueueUnbind)
	register(ClassQueue, 51, parseQueueUnbindOk)
}

type QueueDeclare struct {
	Queue      string
	Passive    bool
	Durable    bool
	Exclusive  bool
	AutoDelete bool
	NoWait     bool
	Arguments  field.Table
}

func (QueueDeclare) ClassID() uint16    { return ClassQueue }
func (QueueDeclare) MethodID() uint16   { return 10 }
func (QueueDeclare) MethodName() string { return "queue.declare" }
func (m QueueDeclare) write(enc *field.Encoder) error {
	enc.Short(0)
	if err := enc.ShortString(m.Queue); err != nil {
		return err
	}
	enc.Bits([]bool{m.Passive, m.Durable, m.Exclusive, m.AutoDelete, m.NoWait})
	return enc.Table(m.Arguments)
}
func parseQueueDeclare(dec *field.Decoder) (Method, error) {
	var m QueueDeclare
	if _, err := dec.Short(); err != nil {
		return nil, err
	}
	var err error
	if m.Queue, err = dec.ShortString(); err != nil {
		return nil, err
	}
	bits, err := dec.Bits(5)
	if err != nil {
		return nil, err
	}
	m.Passive, m.Durable, m.Exclusive, m.AutoDelete, m.NoWait = bits[0], bits[1], bits[2], bits[3], bits[4]
	if m.Arguments, err = dec.Table(); err != nil {
		return nil, err
	}
	return m, nil
}

type QueueDeclareOk struct {
	Queue         string
	MessageCount  uint32
	ConsumerCount uint32
}

func (QueueDeclareOk) ClassID() uint16    { return ClassQueue }
func (QueueDeclareOk) MethodID() uint16   { return 11 }
func (QueueDeclareOk) MethodName() string { return "queue.declare-ok" }
func (m QueueDeclareOk) write(enc *field.Encoder) error {
	if err := enc.ShortString(m.Queue); err != nil {
		return err
	}
	enc.Long(m.MessageCount)
	enc.Long(m.ConsumerCount)
	return nil
}
func parseQueueDeclareOk(dec *field.Decoder) (Method, error) {
	var m QueueDeclareOk
	var err error
	if m.Queue, err = dec.ShortString(); err != nil {
		return nil, err
	}
	if m.MessageCount, err = dec.Long(); err != nil {
		return nil, err
	}
	if m.ConsumerCount, err = dec.Long(); err != nil {
		return nil, err
	}
	return m, nil
}

type QueueBind struct {
	Queue      string
	Exchange   string
	RoutingKey string
	NoWait     bool
	Arguments  field.Table
}

func (QueueBind) ClassID() uint16    { return ClassQueue }
func (QueueBind) MethodID() uint16   { return 20 }
func (QueueBind) MethodName() string { return "queue.bind" }
func (m QueueBind) write(enc *field.Encoder) error {
	enc.Short(0)
	if err := enc.ShortString(m.Queue); err != nil {
		return err
	}
	if err := enc.ShortString(m.Exchange); err != nil {
		return err
	}
	if err := enc.ShortString(m.RoutingKey); err != nil {
		return err
	}
	enc.Bits([]bool{m.NoWait})
	return enc.Table(m.Arguments)
}
func parseQueueBind(dec *field.Decoder) (Method, error) {
	var m QueueBind
	if _, err := dec.Short(); err != nil {
		return nil, err
	}
	var err error
	if m.Queue, err = dec.ShortString(); err != nil {
		return nil, err
	}
	if m.Exchange, err = dec.ShortString(); err != nil {
		return nil, err
	}
	if m.RoutingKey, err = dec.ShortString(); err != nil {
		return nil, err
	}
	bits, err := dec.Bits(1)
	if err != nil {
		return nil, err
	}
	m.NoWait = bits[0]
	if m.Arguments, err = dec.Table(); err != nil {
		return nil, err
	}
	return m, nil
}

type QueueBindOk struct{}

func (QueueBindOk) ClassID() uint16                { return ClassQueue }
func (QueueBindOk) MethodID() uint16               { return 21 }
func (QueueBindOk) MethodName() string             { return "queue.bind-ok" }
func (QueueBindOk) write(enc *field.Encoder) error { return nil }
func parseQueueBindOk(dec *field.Decoder) (Method, error) {
	return QueueBindOk{}, nil
}

type QueueUnbind struct {
	Queue      string
	Exchange   string
	RoutingKey string
	Arguments  field.Table
}

func (QueueUnbind) ClassID() uint16    { return ClassQueue }
func (QueueUnbind) MethodID() uint16   { return 50 }
func (QueueUnbind) MethodName() string { return "queue.unbind" }
func (m QueueUnbind) write(enc *field.Encoder) error {
	enc.Short(0)
	if err := enc.ShortString(m.Queue); err != nil {
		return err
	}
	if err := enc.ShortString(m.Exchange); err != nil {
		return err
	}
	if err := enc.ShortString(m.RoutingKey); err != nil {
		return err
	}
	return enc.Table(m.Arguments)
}
func parseQueueUnbind(dec *field.Decoder) (Method, error) {
	var m QueueUnbind
	if _, err := dec.Short(); err != nil {
		return nil, err
	}
	var err error
	if m.Queue, err = dec.ShortString(); err != nil {
		return nil, err
	}
	if m.Exchange, err = dec.ShortString(); err != nil {
		return nil, err
	}
	if m.RoutingKey, err = dec.ShortString(); err != nil {
		return nil, err
	}
	if m.Arguments, err = dec.Table(); err != nil {
		return nil, err
	}
	return m, nil
}

type QueueUnbindOk struct{}

func (QueueUnbindOk) ClassID() uint16                { return ClassQueue }
func (QueueUnbindOk) MethodID() uint16               { return 51 }
func (QueueUnbindOk) MethodName() string             { return "queue.unbind-ok" }
func (QueueUnbindOk) write(enc *field.Encoder) error { return nil }
func parseQueueUnbindOk(dec *field.Decoder) (Method, error) {
	return QueueUnbindOk{}, nil
}

type QueuePurge struct {
	Queue  string
	NoWait bool
}

func (QueuePurge) ClassID() uint16    { return ClassQueue }
func (QueuePurge) MethodID() uint16   { return 30 }
func (QueuePurge) MethodName() string { return "queue.purge" }
func (m QueuePurge) write(enc *field.Encoder) error {
	enc.Short(0)
	if err := enc.ShortString(m.Queue); err != nil {
		return err
	}
	enc.Bits([]bool{m.NoWait})
	return nil
}
func parseQueuePurge(dec *field.Decoder) (Method, error) {
	var m QueuePurge
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
	m.NoWait = bits[0]
	return m, nil
}

type QueuePurgeOk struct{ MessageCount uint32 }

func (QueuePurgeOk) ClassID() uint16    { return ClassQueue }
func (QueuePurgeOk) MethodID() uint16   { return 31 }
func (QueuePurgeOk) MethodName() string { return "queue.purge-ok" }
func (m QueuePurgeOk) write(enc *field.Encoder) error {
	enc.Long(m.MessageCount)
	return nil
}
func parseQueuePurgeOk(dec *field.Decoder) (Method, error) {
	var m QueuePurgeOk
	var err error
	if m.MessageCount, err = dec.Long(); err != nil {
		return nil, err
	}
	return m, nil
}

type QueueDelete struct {
	Queue    string
	IfUnused bool
	IfEmpty  bool
	NoWait   bool
}

func (QueueDelete) ClassID() uint16    { return ClassQueue }
func (QueueDelete) MethodID() uint16   { return 40 }
func (QueueDelete) MethodName() string { return "queue.delete" }
func (m QueueDelete) write(enc *field.Encoder) error {
	enc.Short(0)
	if err := enc.ShortString(m.Queue); err != nil {
		return err
	}
	enc.Bits([]bool{m.IfUnused, m.IfEmpty, m.NoWait})
	return nil
}
func parseQueueDelete(dec *field.Decoder) (Method, error) {
	var m QueueDelete
	if _, err := dec.Short(); err != nil {
		return nil, err
	}
	var err error
	if m.Queue, err = dec.ShortString(); err != nil {
		return nil, err
	}
	bits, err := dec.Bits(3)
	if err != nil {
		return nil, err
	}
	m.IfUnused, m.IfEmpty, m.NoWait = bits[0], bits[1], bits[2]
	return m, nil
}

type QueueDeleteOk struct{ MessageCount uint32 }

func (QueueDeleteOk) ClassID() uint16    { return ClassQueue }
func (QueueDeleteOk) MethodID() uint16   { return 41 }
func (QueueDeleteOk) MethodName() string { return "queue.delete-ok" }
func (m QueueDeleteOk) write(enc *field.Encoder) error {
	enc.Long(m.MessageCount)
	return nil
}
func parseQueueDeleteOk(dec *field.Decoder) (Method, error) {
	var m QueueDeleteOk
	var err error
	if m.MessageCount, err = dec.Long(); err != nil {
		return nil, err
	}
	return m, nil
}
