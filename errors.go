// Copyright (c) 2022 Stable Cloud Computing, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqld

import (
	"errors"
	"fmt"

	"github.com/stablecc/scclib-sqlite/sqldh"
)

// Kind classifies an Error. KindState and KindProtocol are precondition
// violations (caller bugs, never worth retrying); KindConnection,
// KindCompile, and KindExecution report failures from the engine.
type Kind int

const (
	KindConnection Kind = iota + 1 // opening or reopening a session failed
	KindState                      // transaction guard used in the wrong state
	KindProtocol                   // cursor operation precondition violated
	KindCompile                    // the engine rejected the SQL
	KindExecution                  // the engine failed mid-execution
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "ConnectionError"
	case KindState:
		return "StateError"
	case KindProtocol:
		return "ProtocolError"
	case KindCompile:
		return "CompileError"
	case KindExecution:
		return "ExecutionError"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is the error type returned by this package.
type Error struct {
	Kind Kind       // failure classification
	Code sqldh.Code // engine result code; zero for precondition violations
	Op   string     // operation that failed, e.g. "Req.ExecSelect"
	Msg  string     // diagnostic text, from sqlite3_errmsg when available
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s: %s: %s (%v)", e.Op, e.Kind, e.Msg, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Msg)
}

// reserr converts an engine error into an *Error, preferring the
// connection's sqlite3_errmsg diagnostic over the bare result code.
func reserr(kind Kind, op string, db sqldh.DB, err error) error {
	if err == nil {
		return nil
	}
	e := &Error{Kind: kind, Op: op, Msg: err.Error()}
	var ec sqldh.ErrCode
	if errors.As(err, &ec) {
		e.Code = sqldh.Code(ec)
	}
	if db != nil {
		if msg := db.ErrMsg(); msg != "" {
			e.Msg = msg
		}
	}
	return e
}

// precondition reports a caller bug: an operation invoked in violation
// of its documented preconditions.
func precondition(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

var errClosed = &Error{Kind: KindConnection, Op: "Conn", Msg: "connection is closed"}
