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

package frame

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amqpd/amqpd/internal/amqperr"
)

func TestReadWriteRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		f    *Frame
	}{
		{"method frame", &Frame{Kind: Method, Channel: 1, Payload: []byte{1, 2, 3}}},
		{"empty heartbeat", &Frame{Kind: Heartbeat, Channel: 0, Payload: nil}},
		{"body frame", &Frame{Kind: Body, Channel: 7, Payload: []byte("world")}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Write(&buf, tc.f, 0))

			got, err := Read(&buf, 0)
			require.NoError(t, err)
			assert.Equal(t, tc.f.Kind, got.Kind)
			assert.Equal(t, tc.f.Channel, got.Channel)
			assert.Equal(t, tc.f.Payload, got.Payload)
		})
	}
}

func TestReadRejectsBadFrameEnd(t *testing.T) {
	raw := []byte{
		byte(Method),
		0x00, 0x01,
		0x00, 0x00, 0x00, 0x03,
		1, 2, 3,
		0x00, // should be 0xCE
	}

	_, err := Read(bytes.NewReader(raw), 0)
	require.Error(t, err)
	var ce *amqperr.Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, amqperr.FrameError, ce.Code)
}

func TestReadRejectsHeartbeatOnNonZeroChannel(t *testing.T) {
	raw := []byte{
		byte(Heartbeat),
		0x00, 0x01,
		0x00, 0x00, 0x00, 0x00,
		0xCE,
	}

	_, err := Read(bytes.NewReader(raw), 0)
	require.Error(t, err)
	var ce *amqperr.Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, amqperr.FrameError, ce.Code)
}

func TestReadRejectsOversizeFrame(t *testing.T) {
	raw := []byte{
		byte(Method),
		0x00, 0x00,
		0x00, 0x00, 0x00, 0x05,
		1, 2, 3, 4, 5,
		0xCE,
	}

	_, err := Read(bytes.NewReader(raw), 4)
	require.Error(t, err)
	var ce *amqperr.Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, amqperr.FrameError, ce.Code)
}

func TestWriteRejectsOversizeFrame(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, &Frame{Kind: Method, Channel: 0, Payload: []byte{1, 2, 3, 4, 5}}, 4)
	require.Error(t, err)
}
