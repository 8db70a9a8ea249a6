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

import "github.com/amqpd/amqpd/internal/field"

func init() {
	register(ClassConnection, 10, parseConnectionStart)
	register(ClassConnection, 11, parseConnectionStartOk)
	register(ClassConnection, 20, parseConnectionSecure)
	register(ClassConnection, 21, parseConnectionSecureOk)
	register(ClassConnection, 30, parseConnectionTune)
	register(ClassConnection, 31, parseConnectionTuneOk)
	register(ClassConnection, 40, parseConnectionOpen)
	register(ClassConnection, 41, parseConnectionOpenOk)
	register(ClassConnection, 50, parseConnectionClose)
	register(ClassConnection, 51, parseConnectionCloseOk)
}

type ConnectionStart struct {
	VersionMajor     uint8
	VersionMinor     uint8
	ServerProperties field.Table
	Mechanisms       []byte
	Locales          []byte
}

func (ConnectionStart) ClassID() uint16    { return ClassConnection }
func (ConnectionStart) MethodID() uint16   { return 10 }
func (ConnectionStart) MethodName() string { return "connection.start" }
func (m ConnectionStart) write(enc *field.Encoder) error {
	enc.Octet(m.VersionMajor)
	enc.Octet(m.VersionMinor)
	if err := enc.Table(m.ServerProperties); err != nil {
		return err
	}
	enc.LongString(m.Mechanisms)
	enc.LongString(m.Locales)
	return nil
}
func parseConnectionStart(dec *field.Decoder) (Method, error) {
	var m ConnectionStart
	var err error
	if m.VersionMajor, err = dec.Octet(); err != nil {
		return nil, err
	}
	if m.VersionMinor, err = dec.Octet(); err != nil {
		return nil, err
	}
	if m.ServerProperties, err = dec.Table(); err != nil {
		return nil, err
	}
	if m.Mechanisms, err = dec.LongString(); err != nil {
		return nil, err
	}
	if m.Locales, err = dec.LongString(); err != nil {
		return nil, err
	}
	return m, nil
}

type ConnectionStartOk struct {
	ClientProperties field.Table
	Mechanism        string
	Response         []byte
	Locale           string
}

func (ConnectionStartOk) ClassID() uint16    { return ClassConnection }
func (ConnectionStartOk) MethodID() uint16   { return 11 }
func (ConnectionStartOk) MethodName() string { return "connection.start-ok" }
func (m ConnectionStartOk) write(enc *field.Encoder) error {
	if err := enc.Table(m.ClientProperties); err != nil {
		return err
	}
	if err := enc.ShortString(m.Mechanism); err != nil {
		return err
	}
	enc.LongString(m.Response)
	return enc.ShortString(m.Locale)
}
func parseConnectionStartOk(dec *field.Decoder) (Method, error) {
	var m ConnectionStartOk
	var err error
	if m.ClientProperties, err = dec.Table(); err != nil {
		return nil, err
	}
	if m.Mechanism, err = dec.ShortString(); err != nil {
		return nil, err
	}
	if m.Response, err = dec.LongString(); err != nil {
		return nil, err
	}
	if m.Locale, err = dec.ShortString(); err != nil {
		return nil, err
	}
	return m, nil
}

type ConnectionSecure struct{ Challenge []byte }

func (ConnectionSecure) ClassID() uint16    { return ClassConnection }
func (ConnectionSecure) MethodID() uint16   { return 20 }
func (ConnectionSecure) MethodName() string { return "connection.secure" }
func (m ConnectionSecure) write(enc *field.Encoder) error {
	enc.LongString(m.Challenge)
	return nil
}
func parseConnectionSecure(dec *field.Decoder) (Method, error) {
	var m ConnectionSecure
	var err error
	if m.Challenge, err = dec.LongString(); err != nil {
		return nil, err
	}
	return m, nil
}

type ConnectionSecureOk struct{ Response []byte }

func (ConnectionSecureOk) ClassID() uint16    { return ClassConnection }
func (ConnectionSecureOk) MethodID() uint16   { return 21 }
func (ConnectionSecureOk) MethodName() string { return "connection.secure-ok" }
func (m ConnectionSecureOk) write(enc *field.Encoder) error {
	enc.LongString(m.Response)
	return nil
}
func parseConnectionSecureOk(dec *field.Decoder) (Method, error) {
	var m ConnectionSecureOk
	var err error
	if m.Response, err = dec.LongString(); err != nil {
		return nil, err
	}
	return m, nil
}

type ConnectionTune struct {
	ChannelMax uint16
	FrameMax   uint32
	Heartbeat  uint16
}

func (ConnectionTune) ClassID() uint16    { return ClassConnection }
func (ConnectionTune) MethodID() uint16   { return 30 }
func (ConnectionTune) MethodName() string { return "connection.tune" }
func (m ConnectionTune) write(enc *field.Encoder) error {
	enc.Short(m.ChannelMax)
	enc.Long(m.FrameMax)
	enc.Short(m.Heartbeat)
	return nil
}
func parseConnectionTune(dec *field.Decoder) (Method, error) {
	var m ConnectionTune
	var err error
	if m.ChannelMax, err = dec.Short(); err != nil {
		return nil, err
	}
	if m.FrameMax, err = dec.Long(); err != nil {
		return nil, err
	}
	if m.Heartbeat, err = dec.Short(); err != nil {
		return nil, err
	}
	return m, nil
}

type ConnectionTuneOk struct {
	ChannelMax uint16
	FrameMax   uint32
	Heartbeat  uint16
}

func (ConnectionTuneOk) ClassID() uint16    { return ClassConnection }
func (ConnectionTuneOk) MethodID() uint16   { return 31 }
func (ConnectionTuneOk) MethodName() string { return "connection.tune-ok" }
func (m ConnectionTuneOk) write(enc *field.Encoder) error {
	enc.Short(m.ChannelMax)
	enc.Long(m.FrameMax)
	enc.Short(m.Heartbeat)
	return nil
}
func parseConnectionTuneOk(dec *field.Decoder) (Method, error) {
	var m ConnectionTuneOk
	var err error
	if m.ChannelMax, err = dec.Short(); err != nil {
		return nil, err
	}
	if m.FrameMax, err = dec.Long(); err != nil {
		return nil, err
	}
	if m.Heartbeat, err = dec.Short(); err != nil {
		return nil, err
	}
	return m, nil
}

type ConnectionOpen struct {
	VirtualHost string
	// Capabilities and Insist are reserved-1/reserved-2 in the 0-9-1
	// spec; parsed for wire fidelity but otherwise unused.
	Capabilities string
	Insist       bool
}

func (ConnectionOpen) ClassID() uint16    { return ClassConnection }
func (ConnectionOpen) MethodID() uint16   { return 40 }
func (ConnectionOpen) MethodName() string { return "connection.open" }
func (m ConnectionOpen) write(enc *field.Encoder) error {
	if err := enc.ShortString(m.VirtualHost); err != nil {
		return err
	}
	if err := enc.ShortString(m.Capabilities); err != nil {
		return err
	}
	enc.Bits([]bool{m.Insist})
	return nil
}
func parseConnectionOpen(dec *field.Decoder) (Method, error) {
	var m ConnectionOpen
	var err error
	if m.VirtualHost, err = dec.ShortString(); err != nil {
		return nil, err
	}
	if m.Capabilities, err = dec.ShortString(); err != nil {
		return nil, err
	}
	bits, err := dec.Bits(1)
	if err != nil {
		return nil, err
	}
	m.Insist = bits[0]
	return m, nil
}

type ConnectionOpenOk struct{ KnownHosts string }

func (ConnectionOpenOk) ClassID() uint16    { return ClassConnection }
func (ConnectionOpenOk) MethodID() uint16   { return 41 }
func (ConnectionOpenOk) MethodName() string { return "connection.open-ok" }
func (m ConnectionOpenOk) write(enc *field.Encoder) error {
	return enc.ShortString(m.KnownHosts)
}
func parseConnectionOpenOk(dec *field.Decoder) (Method, error) {
	var m ConnectionOpenOk
	var err error
	if m.KnownHosts, err = dec.ShortString(); err != nil {
		return nil, err
	}
	return m, nil
}

type ConnectionClose struct {
	ReplyCode uint16
	ReplyText string
	ClassId   uint16
	MethodId  uint16
}

func (ConnectionClose) ClassID() uint16    { return ClassConnection }
func (ConnectionClose) MethodID() uint16   { return 50 }
func (ConnectionClose) MethodName() string { return "connection.close" }
func (m ConnectionClose) write(enc *field.Encoder) error {
	enc.Short(m.ReplyCode)
	if err := enc.ShortString(m.ReplyText); err != nil {
		return err
	}
	enc.Short(m.ClassId)
	enc.Short(m.MethodId)
	return nil
}
func parseConnectionClose(dec *field.Decoder) (Method, error) {
	var m ConnectionClose
	var err error
	if m.ReplyCode, err = dec.Short(); err != nil {
		return nil, err
	}
	if m.ReplyText, err = dec.ShortString(); err != nil {
		return nil, err
	}
	if m.ClassId, err = dec.Short(); err != nil {
		return nil, err
	}
	if m.MethodId, err = dec.Short(); err != nil {
		return nil, err
	}
	return m, nil
}

type ConnectionCloseOk struct{}

func (ConnectionCloseOk) ClassID() uint16                { return ClassConnection }
func (ConnectionCloseOk) MethodID() uint16               { return 51 }
func (ConnectionCloseOk) MethodName() string             { return "connection.close-ok" }
func (ConnectionCloseOk) write(enc *field.Encoder) error { return nil }
func parseConnectionCloseOk(dec *field.Decoder) (Method, error) {
	return ConnectionCloseOk{}, nil
}
