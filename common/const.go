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

package common

const (
	// App is the process/metrics-namespace name.
	App = "amqpd"

	// Version is the broker's release version.
	Version = "v0.1.0"

	// DefaultFrameMax is the max_frame_size proposed in Connection.Tune
	// when the configuration leaves it unset.
	DefaultFrameMax = 131072

	// DefaultChannelMax is the channel_max proposed in Connection.Tune
	// when the configuration leaves it unset.
	DefaultChannelMax = 2047

	// DefaultHeartbeat is the heartbeat interval, in seconds, proposed in
	// Connection.Tune when the configuration leaves it unset.
	DefaultHeartbeat = 60
)
