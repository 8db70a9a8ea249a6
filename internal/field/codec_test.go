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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		v    Value
	}{
		{"boolean true", Boolean(true)},
		{"boolean false", Boolean(false)},
		{"short short int", ShortShortInt(-12)},
		{"short short uint", ShortShortUInt(200)},
		{"short int", ShortInt(-1000)},
		{"short uint", ShortUInt(40000)},
		{"long int", LongInt(-70000)},
		{"long uint", LongUInt(4000000000)},
		{"long long int", LongLongInt(-1 << 40)},
		{"long long uint", LongLongUInt(1 << 40)},
		{"float", Float(3.5)},
		{"double", Double(2.71828)},
		{"decimal", Decimal{Scale: 2, Value: 1234}},
		{"short string", ShortString("hello")},
		{"long string", LongString([]byte("a long opaque blob"))},
		{"timestamp", Timestamp(1700000000)},
		{"void", Void{}},
		{"field array", FieldArray{LongInt(1), ShortString("two"), Boolean(true)}},
		{
			"nested table", Table{
				{Name: "x-str", Value: LongString([]byte("hi"))},
				{Name: "x-nest", Value: Table{{Name: "n", Value: LongInt(-7)}}},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			enc := NewEncoder()
			defer enc.Release()
			require.NoError(t, enc.Value(tc.v))

			dec := NewDecoder(enc.Bytes())
			got, err := dec.Value()
			require.NoError(t, err)
			assert.Equal(t, 0, dec.Len(), "decoder should consume exactly the encoded bytes")
			assert.True(t, Equal(tc.v, got), "expected %v, got %v", tc.v, got)
		})
	}
}

func TestNestedTableRoundTrip(t *testing.T) {
	in := Table{
		{Name: "x-str", Value: LongString([]byte("hi"))},
		{Name: "x-nest", Value: Table{{Name: "n", Value: LongInt(-7)}}},
	}

	enc := NewEncoder()
	defer enc.Release()
	require.NoError(t, enc.Table(in))

	dec := NewDecoder(enc.Bytes())
	out, err := dec.Table()
	require.NoError(t, err)
	assert.True(t, Equal(in, out))
}

func TestShortStringTooLong(t *testing.T) {
	enc := NewEncoder()
	defer enc.Release()
	big := make([]byte, 256)
	err := enc.ShortString(string(big))
	assert.Error(t, err)
}

func TestBitsPacking(t *testing.T) {
	enc := NewEncoder()
	defer enc.Release()
	bits := []bool{true, false, true, true, false, false, false, false, true}
	enc.Bits(bits)
	assert.Equal(t, 2, len(enc.Bytes()), "9 bits pack into ceil(9/8)=2 octets")

	dec := NewDecoder(enc.Bytes())
	got, err := dec.Bits(len(bits))
	require.NoError(t, err)
	assert.Equal(t, bits, got)
}

func TestUnknownTagIsSyntaxError(t *testing.T) {
	dec := NewDecoder([]byte{'?'})
	_, err := dec.Value()
	assert.ErrorIs(t, err, ErrSyntax)
}

func TestTableGetSet(t *testing.T) {
	tbl := Table{{Name: "a", Value: LongInt(1)}}
	tbl = tbl.Set("b", LongInt(2))
	tbl = tbl.Set("a", LongInt(10))

	v, ok := tbl.Get("a")
	require.True(t, ok)
	assert.Equal(t, LongInt(10), v)

	v, ok = tbl.Get("b")
	require.True(t, ok)
	assert.Equal(t, LongInt(2), v)

	_, ok = tbl.Get("missing")
	assert.False(t, ok)
}
