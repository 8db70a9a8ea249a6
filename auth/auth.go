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

// Package auth implements the SASL boundary the connection handshake
// authenticates through, plus a PLAIN mechanism backed by a static
// credential table loaded from configuration.
package auth

import (
	"sync"

	"github.com/pkg/errors"
)

// ErrAuthFailed is returned by Port.AuthenticatePlain on bad credentials;
// the connection FSM maps it to Connection.Close(403 AccessRefused).
var ErrAuthFailed = errors.New("amqp/auth: authentication failed")

// Identity is the principal a successful authentication resolves to.
type Identity struct {
	AuthzID string
	AuthcID string
}

// Port verifies the credentials presented during the connection
// handshake.
type Port interface {
	AuthenticatePlain(authzid, authcid, passwd string) (Identity, error)
}

// StaticUsers is a Port backed by an authcid→password table, loaded from
// the `auth.users` configuration section. SetUsers swaps the table on
// config reload without interrupting in-flight handshakes.
type StaticUsers struct {
	mu    sync.RWMutex
	users map[string]string
}

func NewStaticUsers(users map[string]string) *StaticUsers {
	return &StaticUsers{users: users}
}

func (s *StaticUsers) AuthenticatePlain(authzid, authcid, passwd string) (Identity, error) {
	s.mu.RLock()
	want, ok := s.users[authcid]
	s.mu.RUnlock()
	if !ok || want != passwd {
		return Identity{}, ErrAuthFailed
	}
	return Identity{AuthzID: authzid, AuthcID: authcid}, nil
}

func (s *StaticUsers) SetUsers(users map[string]string) {
	s.mu.Lock()
	s.users = users
	s.mu.Unlock()
}

var _ Port = (*StaticUsers)(nil)

// PlainCredentials is the parsed form of a Connection.Start-Ok response for
// the PLAIN mechanism.
type PlainCredentials struct {
	AuthzID string
	AuthcID string
	Passwd  string
}

// ParsePlainResponse splits a SASL PLAIN response of the form
// "\0authzid\0authcid\0passwd" into its three NUL-delimited fields. An
// empty authzid is permitted. RFC 4616 clients that omit the
// leading NUL ("authzid\0authcid\0passwd") are accepted as well.
func ParsePlainResponse(response []byte) (PlainCredentials, error) {
	parts := splitNUL(response)
	if len(parts) == 4 && parts[0] == "" {
		parts = parts[1:]
	}
	if len(parts) != 3 {
		return PlainCredentials{}, errors.New("amqp/auth: malformed SASL PLAIN response")
	}
	return PlainCredentials{
		AuthzID: parts[0],
		AuthcID: parts[1],
		Passwd:  parts[2],
	}, nil
}

func splitNUL(b []byte) []string {
	var out []string
	start := 0
	for i, c := range b {
		if c == 0 {
			out = append(out, string(b[start:i]))
			start = i + 1
		}
	}
	out = append(out, string(b[start:]))
	return out
}
