// Copyright (c) 2022 Stable Cloud Computing, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqld

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stablecc/scclib-sqlite/sqldh"
)

func TestKindString(t *testing.T) {
	assert.Equal(t, "ConnectionError", KindConnection.String())
	assert.Equal(t, "StateError", KindState.String())
	assert.Equal(t, "ProtocolError", KindProtocol.String())
	assert.Equal(t, "CompileError", KindCompile.String())
	assert.Equal(t, "ExecutionError", KindExecution.String())
	assert.Equal(t, "Kind(99)", Kind(99).String())
}

func TestErrorFormat(t *testing.T) {
	e := &Error{Kind: KindExecution, Code: sqldh.SQLITE_CONSTRAINT,
		Op: "Req.Exec", Msg: "UNIQUE constraint failed: t.a"}
	assert.Equal(t,
		"Req.Exec: ExecutionError: UNIQUE constraint failed: t.a (SQLITE_CONSTRAINT)",
		e.Error())

	e = &Error{Kind: KindProtocol, Op: "Req.NextRow", Msg: "no current row data"}
	assert.Equal(t, "Req.NextRow: ProtocolError: no current row data", e.Error())
}

func TestReserr(t *testing.T) {
	assert.NoError(t, reserr(KindExecution, "op", nil, nil))

	err := reserr(KindExecution, "op", nil, sqldh.ErrCode(sqldh.SQLITE_BUSY))
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, KindExecution, e.Kind)
	assert.Equal(t, sqldh.SQLITE_BUSY, e.Code)
	assert.Equal(t, "SQLITE_BUSY", e.Msg)
}

// Engine errors surfaced through the cursor carry the connection's
// errmsg diagnostic, not just the bare result code.
func TestErrorCarriesErrmsg(t *testing.T) {
	conn := memConn(t)
	req := NewReq(conn)
	defer req.Close()

	req.Append("select * from no_such_table;")
	err := req.Exec()
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, KindCompile, e.Kind)
	assert.Equal(t, sqldh.SQLITE_ERROR, e.Code.Primary())
	assert.Contains(t, e.Msg, "no such table")
}
