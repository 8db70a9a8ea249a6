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

// Package field implements the AMQP 0-9-1 field-value type system: the
// recursive, tagged-union value that embeds inside field tables, field
// arrays, and method arguments.
package field

import "fmt"

// Value is a decoded AMQP field value. Decoding dispatches with a byte
// switch over the wire tag; encoding uses a type switch over the concrete
// wrapper types.
type Value interface {
	tag() byte
	fmt.Stringer
}

// Wire tag letters.
const (
	TagBoolean        = 't'
	TagShortShortInt  = 'b'
	TagShortShortUInt = 'B'
	TagShortInt       = 'U'
	TagShortUInt      = 'u'
	TagLongInt        = 'I'
	TagLongUInt       = 'i'
	TagLongLongInt    = 'L'
	TagLongLongUInt   = 'l'
	TagFloat          = 'f'
	TagDouble         = 'd'
	TagDecimal        = 'D'
	TagShortString    = 's'
	TagLongString     = 'S'
	TagFieldArray     = 'A'
	TagTimestamp      = 'T'
	TagFieldTable     = 'F'
	TagVoid           = 'V'
)

type Boolean bool

func (Boolean) tag() byte        { return TagBoolean }
func (v Boolean) String() string { return fmt.Sprintf("%t", bool(v)) }

type ShortShortInt int8

func (ShortShortInt) tag() byte        { return TagShortShortInt }
func (v ShortShortInt) String() string { return fmt.Sprintf("%d", int8(v)) }

type ShortShortUInt uint8

func (ShortShortUInt) tag() byte        { return TagShortShortUInt }
func (v ShortShortUInt) String() string { return fmt.Sprintf("%d", uint8(v)) }

type ShortInt int16

func (ShortInt) tag() byte        { return TagShortInt }
func (v ShortInt) String() string { return fmt.Sprintf("%d", int16(v)) }

type ShortUInt uint16

func (ShortUInt) tag() byte        { return TagShortUInt }
func (v ShortUInt) String() string { return fmt.Sprintf("%d", uint16(v)) }

type LongInt int32

func (LongInt) tag() byte        { return TagLongInt }
func (v LongInt) String() string { return fmt.Sprintf("%d", int32(v)) }

type LongUInt uint32

func (LongUInt) tag() byte        { return TagLongUInt }
func (v LongUInt) String() string { return fmt.Sprintf("%d", uint32(v)) }

type LongLongInt int64

func (LongLongInt) tag() byte        { return TagLongLongInt }
func (v LongLongInt) String() string { return fmt.Sprintf("%d", int64(v)) }

type LongLongUInt uint64

func (LongLongUInt) tag() byte        { return TagLongLongUInt }
func (v LongLongUInt) String() string { return fmt.Sprintf("%d", uint64(v)) }

type Float float32

func (Float) tag() byte        { return TagFloat }
func (v Float) String() string { return fmt.Sprintf("%g", float32(v)) }

type Double float64

func (Double) tag() byte        { return TagDouble }
func (v Double) String() string { return fmt.Sprintf("%g", float64(v)) }

// Decimal is a scaled decimal: value * 10^-scale.
type Decimal struct {
	Scale uint8
	Value uint32
}

func (Decimal) tag() byte { return TagDecimal }
func (v Decimal) String() string {
	return fmt.Sprintf("%d e-%d", v.Value, v.Scale)
}

type ShortString string

func (ShortString) tag() byte        { return TagShortString }
func (v ShortString) String() string { return string(v) }

// LongString is opaque bytes, not necessarily UTF-8.
type LongString []byte

func (LongString) tag() byte        { return TagLongString }
func (v LongString) String() string { return string(v) }

type FieldArray []Value

func (FieldArray) tag() byte { return TagFieldArray }
func (v FieldArray) String() string {
	return fmt.Sprintf("%v", []Value(v))
}

// Timestamp is seconds since the Unix epoch, carried as a raw u64.
type Timestamp uint64

func (Timestamp) tag() byte        { return TagTimestamp }
func (v Timestamp) String() string { return fmt.Sprintf("%d", uint64(v)) }

type Void struct{}

func (Void) tag() byte      { return TagVoid }
func (Void) String() string { return "<void>" }

// Pair is a single (name, value) entry of a Table, in wire order.
type Pair struct {
	Name  string
	Value Value
}

// Table is a field-table: an ordered sequence of name/value pairs.
//
// The wire format is order-insensitive, but an ordered container lets the
// codec round-trip bit-for-bit when the caller does not mutate or reorder
// the table.
type Table []Pair

func (Table) tag() byte { return TagFieldTable }
func (t Table) String() string {
	return fmt.Sprintf("%v", []Pair(t))
}

// Get returns the first value stored under name.
func (t Table) Get(name string) (Value, bool) {
	for _, p := range t {
		if p.Name == name {
			return p.Value, true
		}
	}
	return nil, false
}

// Set replaces (or appends) the value stored under name.
func (t Table) Set(name string, v Value) Table {
	for i, p := range t {
		if p.Name == name {
			t[i].Value = v
			return t
		}
	}
	return append(t, Pair{Name: name, Value: v})
}

// Equal reports structural equality, used by round-trip tests.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.tag() != b.tag() {
		return false
	}
	switch av := a.(type) {
	case FieldArray:
		bv := b.(FieldArray)
		if len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Table:
		bv := b.(Table)
		if len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i].Name != bv[i].Name || !Equal(av[i].Value, bv[i].Value) {
				return false
			}
		}
		return true
	case LongString:
		return string(av) == string(b.(LongString))
	default:
		return a == b
	}
}
