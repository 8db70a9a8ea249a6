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

package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePlainResponse(t *testing.T) {
	creds, err := ParsePlainResponse([]byte("\x00guest\x00guest"))
	require.NoError(t, err)
	require.Equal(t, PlainCredentials{AuthzID: "", AuthcID: "guest", Passwd: "guest"}, creds)
}

func TestParsePlainResponseWithAuthzID(t *testing.T) {
	creds, err := ParsePlainResponse([]byte("acct\x00user\x00pass"))
	require.NoError(t, err)
	require.Equal(t, PlainCredentials{AuthzID: "acct", AuthcID: "user", Passwd: "pass"}, creds)
}

func TestParsePlainResponseMalformed(t *testing.T) {
	_, err := ParsePlainResponse([]byte("onlyonepart"))
	require.Error(t, err)
}

func TestParsePlainResponseLeadingNUL(t *testing.T) {
	creds, err := ParsePlainResponse([]byte("\x00acct\x00user\x00pass"))
	require.NoError(t, err)
	require.Equal(t, PlainCredentials{AuthzID: "acct", AuthcID: "user", Passwd: "pass"}, creds)
}

func TestStaticUsersAuthenticate(t *testing.T) {
	port := NewStaticUsers(map[string]string{"guest": "guest"})

	id, err := port.AuthenticatePlain("", "guest", "guest")
	require.NoError(t, err)
	require.Equal(t, "guest", id.AuthcID)

	_, err = port.AuthenticatePlain("", "guest", "wrong")
	require.ErrorIs(t, err, ErrAuthFailed)

	_, err = port.AuthenticatePlain("", "nobody", "x")
	require.ErrorIs(t, err, ErrAuthFailed)
}

func TestStaticUsersSetUsers(t *testing.T) {
	port := NewStaticUsers(map[string]string{"guest": "guest"})
	port.SetUsers(map[string]string{"svc": "s3cret"})

	_, err := port.AuthenticatePlain("", "guest", "guest")
	require.ErrorIs(t, err, ErrAuthFailed)

	id, err := port.AuthenticatePlain("", "svc", "s3cret")
	require.NoError(t, err)
	require.Equal(t, "svc", id.AuthcID)
}
