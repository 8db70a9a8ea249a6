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

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/amqpd/amqpd/internal/amqperr"
	"github.com/amqpd/amqpd/internal/field"
)

func TestMethodRoundTrip(t *testing.T) {
	cases := []Method{
		ConnectionStart{
			VersionMajor: 0, VersionMinor: 9,
			ServerProperties: field.Table{{Name: "product", Value: field.ShortString("amqpd")}},
			Mechanisms:       []byte("PLAIN"),
			Locales:          []byte("en_US"),
		},
		ConnectionStartOk{
			ClientProperties: field.Table{{Name: "platform", Value: field.ShortString("go")}},
			Mechanism:        "PLAIN",
			Response:         []byte("\x00guest\x00guest"),
			Locale:           "en_US",
		},
		ConnectionTune{ChannelMax: 2047, FrameMax: 131072, Heartbeat: 60},
		ConnectionOpen{VirtualHost: "/"},
		ConnectionOpenOk{},
		ConnectionClose{ReplyCode: 200, ReplyText: "goodbye", ClassId: 0, MethodId: 0},
		ConnectionCloseOk{},

		ChannelOpen{},
		ChannelOpenOk{ChannelId: []byte{}},
		ChannelClose{ReplyCode: 404, ReplyText: "not found", ClassId: 50, MethodId: 10},
		ChannelCloseOk{},

		ExchangeDeclare{Exchange: "amq.direct", Type: "direct", Durable: true},
		ExchangeDeclareOk{},
		ExchangeDelete{Exchange: "amq.direct"},
		ExchangeDeleteOk{},

		QueueDeclare{Queue: "work", Durable: true, Arguments: field.Table{{Name: "x-max-length", Value: field.LongInt(10)}}},
		QueueDeclareOk{Queue: "work", MessageCount: 0, ConsumerCount: 0},
		QueueBind{Queue: "work", Exchange: "amq.direct", RoutingKey: "k"},
		QueueBindOk{},
		QueueUnbind{Queue: "work", Exchange: "amq.direct", RoutingKey: "k"},
		QueueUnbindOk{},
		QueuePurge{Queue: "work"},
		QueuePurgeOk{MessageCount: 3},
		QueueDelete{Queue: "work", IfUnused: true},
		QueueDeleteOk{MessageCount: 0},

		BasicQos{PrefetchCount: 10},
		BasicQosOk{},
		BasicConsume{Queue: "work", ConsumerTag: "ctag-1"},
		BasicConsumeOk{ConsumerTag: "ctag-1"},
		BasicCancel{ConsumerTag: "ctag-1"},
		BasicCancelOk{ConsumerTag: "ctag-1"},
		BasicPublish{Exchange: "", RoutingKey: "work"},
		BasicReturn{ReplyCode: 312, ReplyText: "no route", Exchange: "", RoutingKey: "x"},
		BasicDeliver{ConsumerTag: "ctag-1", DeliveryTag: 1, Exchange: "", RoutingKey: "work"},
		BasicGet{Queue: "work"},
		BasicGetOk{DeliveryTag: 1, Exchange: "", RoutingKey: "work", MessageCount: 0},
		BasicGetEmpty{},
		BasicAck{DeliveryTag: 1, Multiple: true},
		BasicReject{DeliveryTag: 1, Requeue: true},
		BasicRecoverAsync{Requeue: true},
		BasicRecover{Requeue: true},
		BasicRecoverOk{},
		BasicNack{DeliveryTag: 1, Multiple: true, Requeue: true},

		TxSelect{}, TxSelectOk{}, TxCommit{}, TxCommitOk{}, TxRollback{}, TxRollbackOk{},
	}

	for _, want := range cases {
		t.Run(want.MethodName(), func(t *testing.T) {
			payload, err := Serialize(want)
			require.NoError(t, err)

			got, err := Parse(payload)
			require.NoError(t, err)
			require.Equal(t, want, got)
		})
	}
}

func TestParseUnknownMethodIsCommandInvalid(t *testing.T) {
	enc := field.NewEncoder()
	defer enc.Release()
	enc.Short(9999)
	enc.Short(1)

	_, err := Parse(enc.Bytes())
	require.Error(t, err)

	var aerr *amqperr.Error
	require.ErrorAs(t, err, &aerr)
	require.Equal(t, amqperr.CommandInvalid, aerr.Code)
}

func TestParseTrailingBytesIsSyntaxError(t *testing.T) {
	enc := field.NewEncoder()
	defer enc.Release()
	enc.Short(ClassChannel)
	enc.Short(41) // channel.close-ok, takes no args
	enc.Octet(0xFF)

	_, err := Parse(enc.Bytes())
	require.Error(t, err)

	var aerr *amqperr.Error
	require.ErrorAs(t, err, &aerr)
	require.Equal(t, amqperr.SyntaxError, aerr.Code)
}

func TestNeedsContent(t *testing.T) {
	require.True(t, NeedsContent(BasicPublish{}))
	require.True(t, NeedsContent(BasicReturn{}))
	require.True(t, NeedsContent(BasicDeliver{}))
	require.True(t, NeedsContent(BasicGetOk{}))
	require.False(t, NeedsContent(BasicGetEmpty{}))
	require.False(t, NeedsContent(QueueDeclare{}))
}
