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

package confengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testYaml = `
listener:
  address: ":5672"
  heartbeat: 30

auth:
  users:
    guest: guest

server:
  enabled: true
  address: ":9092"
`

func TestLoadContentAndUnpackChild(t *testing.T) {
	conf, err := LoadContent([]byte(testYaml))
	require.NoError(t, err)

	assert.True(t, conf.Has("listener"))
	assert.False(t, conf.Has("nonexistent"))
	assert.True(t, conf.Enabled("server"))

	var listener struct {
		Address   string `config:"address"`
		Heartbeat uint16 `config:"heartbeat"`
	}
	require.NoError(t, conf.UnpackChild("listener", &listener))
	assert.Equal(t, ":5672", listener.Address)
	assert.Equal(t, uint16(30), listener.Heartbeat)

	var authCfg struct {
		Users map[string]string `config:"users"`
	}
	require.NoError(t, conf.UnpackChild("auth", &authCfg))
	assert.Equal(t, "guest", authCfg.Users["guest"])
}

func TestUnpackChildMissingSection(t *testing.T) {
	conf, err := LoadContent([]byte(testYaml))
	require.NoError(t, err)

	var out struct{}
	assert.Error(t, conf.UnpackChild("missing", &out))
}
