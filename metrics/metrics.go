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

// Package metrics holds the broker's Prometheus instrumentation:
// connection, channel, queue, consumer, and message counters exposed on
// the admin server's /metrics route.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/amqpd/amqpd/common"
)

var (
	Uptime = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: common.App,
		Name:      "uptime",
		Help:      "Uptime in seconds",
	})

	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: common.App,
		Name:      "build_info",
		Help:      "Build information",
	}, []string{"version", "git_hash", "build_time"})

	ConnectionsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: common.App,
		Name:      "connections_open",
		Help:      "Currently open client connections",
	})

	ConnectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: common.App,
		Name:      "connections_total",
		Help:      "Client connections accepted since start",
	})

	ConnectionsClosedByReason = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: common.App,
		Name:      "connections_closed_total",
		Help:      "Closed connections by reason",
	}, []string{"reason"})

	ChannelsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: common.App,
		Name:      "channels_open",
		Help:      "Currently open channels across all connections",
	})

	QueuesTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: common.App,
		Name:      "queues",
		Help:      "Queues currently declared",
	})

	ConsumersTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: common.App,
		Name:      "consumers",
		Help:      "Consumers currently registered across all queues",
	})

	MessagesPublished = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: common.App,
		Name:      "messages_published_total",
		Help:      "Messages accepted via basic.publish",
	})

	MessagesDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: common.App,
		Name:      "messages_delivered_total",
		Help:      "Messages dispatched via basic.deliver or basic.get-ok",
	})

	MessagesAcked = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: common.App,
		Name:      "messages_acked_total",
		Help:      "Messages acknowledged via basic.ack",
	})

	MessagesReturned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: common.App,
		Name:      "messages_returned_total",
		Help:      "Messages bounced back via basic.return (no route)",
	})

	MethodErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: common.App,
		Name:      "method_errors_total",
		Help:      "Protocol exceptions raised while dispatching a method, by reply code",
	}, []string{"code"})
)
