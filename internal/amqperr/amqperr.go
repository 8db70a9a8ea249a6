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

// Package amqperr holds the AMQP 0-9-1 reply-code taxonomy shared by the
// framing codec, method codec, and connection/channel state machines.
package amqperr

import "fmt"

// Code is a reply-code carried in Connection.Close / Channel.Close.
type Code uint16

const (
	ContentTooLarge  Code = 311
	NoRoute          Code = 312
	NoConsumers      Code = 313
	ConnectionForced Code = 320
	InvalidPath      Code = 402
	AccessRefused    Code = 403
	NotFound         Code = 404
	ResourceLocked   Code = 405
	PreconditionFail Code = 406
	FrameError       Code = 501
	SyntaxError      Code = 502
	CommandInvalid   Code = 503
	ChannelError     Code = 504
	UnexpectedFrame  Code = 505
	ResourceError    Code = 506
	NotAllowed       Code = 530
	NotImplemented   Code = 540
	InternalError    Code = 541
)

var names = map[Code]string{
	ContentTooLarge:  "CONTENT-TOO-LARGE",
	NoRoute:          "NO-ROUTE",
	NoConsumers:      "NO-CONSUMERS",
	ConnectionForced: "CONNECTION-FORCED",
	InvalidPath:      "INVALID-PATH",
	AccessRefused:    "ACCESS-REFUSED",
	NotFound:         "NOT-FOUND",
	ResourceLocked:   "RESOURCE-LOCKED",
	PreconditionFail: "PRECONDITION-FAILED",
	FrameError:       "FRAME-ERROR",
	SyntaxError:      "SYNTAX-ERROR",
	CommandInvalid:   "COMMAND-INVALID",
	ChannelError:     "CHANNEL-ERROR",
	UnexpectedFrame:  "UNEXPECTED-FRAME",
	ResourceError:    "RESOURCE-ERROR",
	NotAllowed:       "NOT-ALLOWED",
	NotImplemented:   "NOT-IMPLEMENTED",
	InternalError:    "INTERNAL-ERROR",
}

func (c Code) String() string {
	if n, ok := names[c]; ok {
		return n
	}
	return "UNKNOWN"
}

// IsConnectionLevel reports whether code targets Connection.Close (5xx)
// as opposed to Channel.Close (4xx)
func (c Code) IsConnectionLevel() bool {
	return c >= 500
}

// Error is a coded AMQP exception: a connection exception (5xx) or a
// channel exception (4xx) three-layer taxonomy.
type Error struct {
	Code   Code
	Reason string
	// Class/Method identify the method being processed when the error was
	// raised, for Connection.Close/Channel.Close's failing-class-id /
	// failing-method-id fields. Zero when not applicable.
	ClassID  uint16
	MethodID uint16
}

func New(code Code, reason string) *Error {
	return &Error{Code: code, Reason: reason}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Reason: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Code, e.Code, e.Reason)
}

// WithMethod returns a copy of the error annotated with the
// (class,method) under dispatch. It must not mutate the receiver: the
// broker returns shared sentinel errors, and connections annotate them
// concurrently.
func (e *Error) WithMethod(classID, methodID uint16) *Error {
	cp := *e
	cp.ClassID = classID
	cp.MethodID = methodID
	return &cp
}

// IsConnectionException reports whether this error must close the whole
// connection (5xx) rather than a single channel (4xx).
func (e *Error) IsConnectionException() bool {
	return e.Code.IsConnectionLevel()
}
