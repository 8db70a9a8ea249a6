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

// Exchange class methods are parsed and serialized in full even though
// the broker core only implements the default exchange; declaring any
// other exchange replies 540 Not-Implemented from the channel FSM, not
// from this codec.

func init() {
	register(ClassExchange, 10, parseExchangeDeclare)
	register(ClassExchange, 11, parseExchangeDeclareOk)
	register(ClassExchange, 20, parseExchangeDelete)
	register(ClassExchange, 21, parseExchangeDeleteOk)
}

type ExchangeDeclare struct {
	Exchange   string
	Type       string
	Passive    bool
	Durable    bool
	AutoDelete bool
	Internal   bool
	NoWait     bool
	Arguments  field.Table
}

func (ExchangeDeclare) ClassID() uint16    { return ClassExchange }
func (ExchangeDeclare) MethodID() uint16   { return 10 }
func (ExchangeDeclare) MethodName() string { return "exchange.declare" }
func (m ExchangeDeclare) write(enc *field.Encoder) error {
	enc.Short(0)
	if err := enc.ShortString(m.Exchange); err != nil {
		return err
	}
	if err := enc.ShortString(m.Type); err != nil {
		return err
	}
	enc.Bits([]bool{m.Passive, m.Durable, m.AutoDelete, m.Internal, m.NoWait})
	return enc.Table(m.Arguments)
}
func parseExchangeDeclare(dec *field.Decoder) (Method, error) {
	var m ExchangeDeclare
	if _, err := dec.Short(); err != nil {
		return nil, err
	}
	var err error
	if m.Exchange, err = dec.ShortString(); err != nil {
		return nil, err
	}
	if m.Type, err = dec.ShortString(); err != nil {
		return nil, err
	}
	bits, err := dec.Bits(5)
	if err != nil {
		return nil, err
	}
	m.Passive, m.Durable, m.AutoDelete, m.Internal, m.NoWait = bits[0], bits[1], bits[2], bits[3], bits[4]
	if m.Arguments, err = dec.Table(); err != nil {
		return nil, err
	}
	return m, nil
}

type ExchangeDeclareOk struct{}

func (ExchangeDeclareOk) ClassID() uint16                { return ClassExchange }
func (ExchangeDeclareOk) MethodID() uint16               { return 11 }
func (ExchangeDeclareOk) MethodName() string             { return "exchange.declare-ok" }
func (ExchangeDeclareOk) write(enc *field.Encoder) error { return nil }
func parseExchangeDeclareOk(dec *field.Decoder) (Method, error) {
	return ExchangeDeclareOk{}, nil
}

type ExchangeDelete struct {
	Exchange string
	IfUnused bool
	NoWait   bool
}

func (ExchangeDelete) ClassID() uint16    { return ClassExchange }
func (ExchangeDelete) MethodID() uint16   { return 20 }
func (ExchangeDelete) MethodName() string { return "exchange.delete" }
func (m ExchangeDelete) write(enc *field.Encoder) error {
	enc.Short(0)
	if err := enc.ShortString(m.Exchange); err != nil {
		return err
	}
	enc.Bits([]bool{m.IfUnused, m.NoWait})
	return nil
}
func parseExchangeDelete(dec *field.Decoder) (Method, error) {
	var m ExchangeDelete
	if _, err := dec.Short(); err != nil {
		return nil, err
	}
	var err error
	if m.Exchange, err = dec.ShortString(); err != nil {
		return nil, err
	}
	bits, err := dec.Bits(2)
	if err != nil {
		return nil, err
	}
	m.IfUnused, m.NoWait = bits[0], bits[1]
	return m, nil
}

type ExchangeDeleteOk struct{}

func (ExchangeDeleteOk) ClassID() uint16                { return ClassExchange }
func (ExchangeDeleteOk) MethodID() uint16               { return 21 }
func (ExchangeDeleteOk) MethodName() string             { return "exchange.delete-ok" }
func (ExchangeDeleteOk) write(enc *field.Encoder) error { return nil }
func parseExchangeDeleteOk(dec *field.Decoder) (Method, error) {
	return ExchangeDeleteOk{}, nil
}
