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

// Package methods is the AMQP 0-9-1 method codec: for every (class-id,
// method-id) pair it parses and serializes the argument tuple using the
// field codec. One file per class; each method registers its parser in an
// init so Parse stays a single table lookup.
package methods

import (
	"github.com/amqpd/amqpd/internal/amqperr"
	"github.com/amqpd/amqpd/internal/field"
)

// Class ids.
const (
	ClassConnection uint16 = 10
	ClassChannel    uint16 = 20
	ClassExchange   uint16 = 40
	ClassQueue      uint16 = 50
	ClassBasic      uint16 = 60
	ClassTx         uint16 = 90
)

var classNames = map[uint16]string{
	ClassConnection: "connection",
	ClassChannel:    "channel",
	ClassExchange:   "exchange",
	ClassQueue:      "queue",
	ClassBasic:      "basic",
	ClassTx:         "tx",
}

func ClassName(classID uint16) string {
	if n, ok := classNames[classID]; ok {
		return n
	}
	return "unknown"
}

// Method is a tagged union over every (class,method) pair in AMQP 0-9-1.
type Method interface {
	ClassID() uint16
	MethodID() uint16
	MethodName() string
	// write serializes the argument tuple (without the class/method
	// header) into enc.
	write(enc *field.Encoder) error
}

type classMethod struct {
	class  uint16
	method uint16
}

type parseFunc func(dec *field.Decoder) (Method, error)

var parsers = map[classMethod]parseFunc{}

func register(class, method uint16, f parseFunc) {
	parsers[classMethod{class, method}] = f
}

// needsContent is the set of methods that are followed by a content
// header + body frames
var needsContent = map[classMethod]bool{
	{ClassBasic, 40}: true, // Publish
	{ClassBasic, 50}: true, // Return
	{ClassBasic, 60}: true, // Deliver
	{ClassBasic, 71}: true, // Get-Ok
}

// NeedsContent reports whether m must be followed by a ContentHeader frame
// and N body frames before it is considered complete
func NeedsContent(m Method) bool {
	return needsContent[classMethod{m.ClassID(), m.MethodID()}]
}

// Parse decodes the payload of a method frame into its typed Method. Unconsumed trailing
// bytes are a syntax error
func Parse(payload []byte) (Method, error) {
	dec := field.NewDecoder(payload)
	classID, err := dec.Short()
	if err != nil {
		return nil, amqperr.New(amqperr.SyntaxError, "truncated method header")
	}
	methodID, err := dec.Short()
	if err != nil {
		return nil, amqperr.New(amqperr.SyntaxError, "truncated method header")
	}

	parse, ok := parsers[classMethod{classID, methodID}]
	if !ok {
		return nil, amqperr.New(amqperr.CommandInvalid, "unknown class/method").WithMethod(classID, methodID)
	}

	m, err := parse(dec)
	if err != nil {
		if _, ok := err.(*amqperr.Error); ok {
			return nil, err
		}
		return nil, amqperr.Newf(amqperr.SyntaxError, "%s", err).WithMethod(classID, methodID)
	}
	if dec.Len() != 0 {
		return nil, amqperr.New(amqperr.SyntaxError, "trailing bytes after method arguments").WithMethod(classID, methodID)
	}
	return m, nil
}

// Serialize encodes m's class-id, method-id, and argument tuple into a
// single method-frame payload.
func Serialize(m Method) ([]byte, error) {
	enc := field.NewEncoder()
	defer enc.Release()

	enc.Short(m.ClassID())
	enc.Short(m.MethodID())
	if err := m.write(enc); err != nil {
		return nil, err
	}

	out := make([]byte, len(enc.Bytes()))
	copy(out, enc.Bytes())
	return out, nil
}
