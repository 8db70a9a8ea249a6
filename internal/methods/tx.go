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

// Tx class methods are parsed for wire fidelity only; the channel FSM
// replies 540 Not-Implemented to tx.select rather than ever entering a
// transactional state.

func init() {
	register(ClassTx, 10, parseTxSelect)
	register(ClassTx, 11, parseTxSelectOk)
	register(ClassTx, 20, parseTxCommit)
	register(ClassTx, 21, parseTxCommitOk)
	register(ClassTx, 30, parseTxRollback)
	register(ClassTx, 31, parseTxRollbackOk)
}

type TxSelect struct{}

func (TxSelect) ClassID() uint16                { return ClassTx }
func (TxSelect) MethodID() uint16               { return 10 }
func (TxSelect) MethodName() string             { return "tx.select" }
func (TxSelect) write(enc *field.Encoder) error { return nil }
func parseTxSelect(dec *field.Decoder) (Method, error) {
	return TxSelect{}, nil
}

type TxSelectOk struct{}

func (TxSelectOk) ClassID() uint16                { return ClassTx }
func (TxSelectOk) MethodID() uint16               { return 11 }
func (TxSelectOk) MethodName() string             { return "tx.select-ok" }
func (TxSelectOk) write(enc *field.Encoder) error { return nil }
func parseTxSelectOk(dec *field.Decoder) (Method, error) {
	return TxSelectOk{}, nil
}

type TxCommit struct{}

func (TxCommit) ClassID() uint16                { return ClassTx }
func (TxCommit) MethodID() uint16               { return 20 }
func (TxCommit) MethodName() string             { return "tx.commit" }
func (TxCommit) write(enc *field.Encoder) error { return nil }
func parseTxCommit(dec *field.Decoder) (Method, error) {
	return TxCommit{}, nil
}

type TxCommitOk struct{}

func (TxCommitOk) ClassID() uint16                { return ClassTx }
func (TxCommitOk) MethodID() uint16               { return 21 }
func (TxCommitOk) MethodName() string             { return "tx.commit-ok" }
func (TxCommitOk) write(enc *field.Encoder) error { return nil }
func parseTxCommitOk(dec *field.Decoder) (Method, error) {
	return TxCommitOk{}, nil
}

type TxRollback struct{}

func (TxRollback) ClassID() uint16                { return ClassTx }
func (TxRollback) MethodID() uint16               { return 30 }
func (TxRollback) MethodName() string             { return "tx.rollback" }
func (TxRollback) write(enc *field.Encoder) error { return nil }
func parseTxRollback(dec *field.Decoder) (Method, error) {
	return TxRollback{}, nil
}

type TxRollbackOk struct{}

func (TxRollbackOk) ClassID() uint16                { return ClassTx }
func (TxRollbackOk) MethodID() uint16               { return 31 }
func (TxRollbackOk) MethodName() string             { return "tx.rollback-ok" }
func (TxRollbackOk) write(enc *field.Encoder) error { return nil }
func parseTxRollbackOk(dec *field.Decoder) (Method, error) {
	return TxRollbackOk{}, nil
}
