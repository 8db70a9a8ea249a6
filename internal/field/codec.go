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

package field

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
	"github.com/valyala/bytebufferpool"
)

// ErrSyntax marks a connection-fatal 502 syntax-error: every
// primitive decoder either consumes exactly the bytes it needs or fails
// with this error.
var ErrSyntax = errors.New("amqp/field: syntax error")

func syntaxf(format string, args ...any) error {
	return errors.Wrapf(ErrSyntax, format, args...)
}

// Decoder is a cursor over an in-memory method/table payload. It never
// performs I/O; every method consumes exactly the bytes the primitive
// requires or returns ErrSyntax.
type Decoder struct {
	b []byte
}

func NewDecoder(b []byte) *Decoder {
	return &Decoder{b: b}
}

// Remaining returns the unconsumed tail. The method codec uses this to
// reject trailing garbage after the last declared argument.
func (d *Decoder) Remaining() []byte { return d.b }

func (d *Decoder) Len() int { return len(d.b) }

func (d *Decoder) take(n int) ([]byte, error) {
	if len(d.b) < n {
		return nil, syntaxf("need %d bytes, have %d", n, len(d.b))
	}
	b := d.b[:n]
	d.b = d.b[n:]
	return b, nil
}

func (d *Decoder) Octet() (uint8, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *Decoder) Short() (uint16, error) {
	b, err := d.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (d *Decoder) Long() (uint32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (d *Decoder) LongLong() (uint64, error) {
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (d *Decoder) Timestamp() (uint64, error) {
	return d.LongLong()
}

func (d *Decoder) Float32() (float32, error) {
	v, err := d.Long()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

func (d *Decoder) Float64() (float64, error) {
	v, err := d.LongLong()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// ShortString decodes a u8-length-prefixed UTF-8 string.
func (d *Decoder) ShortString() (string, error) {
	n, err := d.Octet()
	if err != nil {
		return "", err
	}
	b, err := d.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// LongString decodes a u32-length-prefixed opaque byte string.
func (d *Decoder) LongString() ([]byte, error) {
	n, err := d.Long()
	if err != nil {
		return nil, err
	}
	b, err := d.take(int(n))
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// Bits decodes n consecutive packed boolean flags. The caller always
// advances by ceil(n/8) octets regardless of how many bits it reads back
// out.
func (d *Decoder) Bits(n int) ([]bool, error) {
	octets := (n + 7) / 8
	b, err := d.take(octets)
	if err != nil {
		return nil, err
	}
	out := make([]bool, 0, n)
	for i := 0; i < n; i++ {
		byteIdx := i / 8
		bitIdx := uint(i % 8)
		out = append(out, (b[byteIdx]>>bitIdx)&1 == 1)
	}
	return out, nil
}

// Table decodes a u32-length-prefixed sequence of (shortstr, field-value)
// pairs, recursively.
func (d *Decoder) Table() (Table, error) {
	n, err := d.Long()
	if err != nil {
		return nil, err
	}
	body, err := d.take(int(n))
	if err != nil {
		return nil, err
	}
	sub := NewDecoder(body)
	var t Table
	for sub.Len() > 0 {
		name, err := sub.ShortString()
		if err != nil {
			return nil, err
		}
		v, err := sub.Value()
		if err != nil {
			return nil, err
		}
		t = append(t, Pair{Name: name, Value: v})
	}
	return t, nil
}

// Array decodes a u32-length-prefixed sequence of field values.
func (d *Decoder) Array() (FieldArray, error) {
	n, err := d.Long()
	if err != nil {
		return nil, err
	}
	body, err := d.take(int(n))
	if err != nil {
		return nil, err
	}
	sub := NewDecoder(body)
	var arr FieldArray
	for sub.Len() > 0 {
		v, err := sub.Value()
		if err != nil {
			return nil, err
		}
		arr = append(arr, v)
	}
	return arr, nil
}

// Value dispatches on the 1-byte tag over the 18-row tag table. Unknown
// tags are a syntax error.
func (d *Decoder) Value() (Value, error) {
	tag, err := d.Octet()
	if err != nil {
		return nil, err
	}
	switch tag {
	case TagBoolean:
		b, err := d.Octet()
		if err != nil {
			return nil, err
		}
		switch b {
		case 0:
			return Boolean(false), nil
		case 1:
			return Boolean(true), nil
		default:
			return nil, syntaxf("invalid boolean octet %d", b)
		}
	case TagShortShortInt:
		v, err := d.Octet()
		return ShortShortInt(int8(v)), err
	case TagShortShortUInt:
		v, err := d.Octet()
		return ShortShortUInt(v), err
	case TagShortInt:
		v, err := d.Short()
		return ShortInt(int16(v)), err
	case TagShortUInt:
		v, err := d.Short()
		return ShortUInt(v), err
	case TagLongInt:
		v, err := d.Long()
		return LongInt(int32(v)), err
	case TagLongUInt:
		v, err := d.Long()
		return LongUInt(v), err
	case TagLongLongInt:
		v, err := d.LongLong()
		return LongLongInt(int64(v)), err
	case TagLongLongUInt:
		v, err := d.LongLong()
		return LongLongUInt(v), err
	case TagFloat:
		v, err := d.Float32()
		return Float(v), err
	case TagDouble:
		v, err := d.Float64()
		return Double(v), err
	case TagDecimal:
		scale, err := d.Octet()
		if err != nil {
			return nil, err
		}
		val, err := d.Long()
		if err != nil {
			return nil, err
		}
		return Decimal{Scale: scale, Value: val}, nil
	case TagShortString:
		v, err := d.ShortString()
		return ShortString(v), err
	case TagLongString:
		v, err := d.LongString()
		return LongString(v), err
	case TagFieldArray:
		return d.Array()
	case TagTimestamp:
		v, err := d.Timestamp()
		return Timestamp(v), err
	case TagFieldTable:
		return d.Table()
	case TagVoid:
		return Void{}, nil
	default:
		return nil, syntaxf("unknown field tag %q", tag)
	}
}

// Encoder serializes primitives and field values into a pooled buffer.
type Encoder struct {
	buf *bytebufferpool.ByteBuffer
}

func NewEncoder() *Encoder {
	return &Encoder{buf: bytebufferpool.Get()}
}

// Release returns the underlying buffer to the pool. Call after Bytes()
// has been copied out, or not at all if ownership of Bytes() is retained.
func (e *Encoder) Release() { bytebufferpool.Put(e.buf) }

func (e *Encoder) Bytes() []byte { return e.buf.Bytes() }

func (e *Encoder) Octet(v uint8) { e.buf.WriteByte(v) }

func (e *Encoder) Short(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	e.buf.Write(b[:])
}

func (e *Encoder) Long(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	e.buf.Write(b[:])
}

func (e *Encoder) LongLong(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	e.buf.Write(b[:])
}

func (e *Encoder) Timestamp(v uint64) { e.LongLong(v) }

func (e *Encoder) Float32(v float32) { e.Long(math.Float32bits(v)) }

func (e *Encoder) Float64(v float64) { e.LongLong(math.Float64bits(v)) }

// ShortString encodes a shortstr. Strings longer than 255 bytes are a
// programmer error: the encoder returns a typed error rather than
// truncating silently.
func (e *Encoder) ShortString(s string) error {
	if len(s) > math.MaxUint8 {
		return errors.Errorf("amqp/field: shortstr %q exceeds 255 bytes", s)
	}
	e.Octet(uint8(len(s)))
	e.buf.WriteString(s)
	return nil
}

func (e *Encoder) LongString(b []byte) {
	e.Long(uint32(len(b)))
	e.buf.Write(b)
}

// Bits encodes consecutive boolean flags, packing LSB-first into
// successive octets
func (e *Encoder) Bits(bits []bool) {
	octets := (len(bits) + 7) / 8
	packed := make([]byte, octets)
	for i, b := range bits {
		if b {
			packed[i/8] |= 1 << uint(i%8)
		}
	}
	e.buf.Write(packed)
}

func (e *Encoder) Table(t Table) error {
	sub := NewEncoder()
	defer sub.Release()
	for _, p := range t {
		if err := sub.ShortString(p.Name); err != nil {
			return err
		}
		if err := sub.Value(p.Value); err != nil {
			return err
		}
	}
	e.Long(uint32(len(sub.Bytes())))
	e.buf.Write(sub.Bytes())
	return nil
}

func (e *Encoder) Array(a FieldArray) error {
	sub := NewEncoder()
	defer sub.Release()
	for _, v := range a {
		if err := sub.Value(v); err != nil {
			return err
		}
	}
	e.Long(uint32(len(sub.Bytes())))
	e.buf.Write(sub.Bytes())
	return nil
}

// Value encodes a tagged field value: the tag octet followed by its body.
func (e *Encoder) Value(v Value) error {
	e.Octet(v.tag())
	switch vv := v.(type) {
	case Boolean:
		if vv {
			e.Octet(1)
		} else {
			e.Octet(0)
		}
	case ShortShortInt:
		e.Octet(uint8(vv))
	case ShortShortUInt:
		e.Octet(uint8(vv))
	case ShortInt:
		e.Short(uint16(vv))
	case ShortUInt:
		e.Short(uint16(vv))
	case LongInt:
		e.Long(uint32(vv))
	case LongUInt:
		e.Long(uint32(vv))
	case LongLongInt:
		e.LongLong(uint64(vv))
	case LongLongUInt:
		e.LongLong(uint64(vv))
	case Float:
		e.Float32(float32(vv))
	case Double:
		e.Float64(float64(vv))
	case Decimal:
		e.Octet(vv.Scale)
		e.Long(vv.Value)
	case ShortString:
		return e.ShortString(string(vv))
	case LongString:
		e.LongString(vv)
	case FieldArray:
		return e.Array(vv)
	case Timestamp:
		e.Timestamp(uint64(vv))
	case Table:
		return e.Table(vv)
	case Void:
	default:
		return errors.Errorf("amqp/field: unknown value type %T", v)
	}
	return nil
}
