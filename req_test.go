// Copyright (c) 2022 Stable Cloud Computing, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqld

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memConn opens a shared-cache in-memory database named after the test,
// so concurrent tests never collide.
func memConn(t *testing.T) *Conn {
	t.Helper()
	conn, err := Open("file:" + t.Name() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func fileConn(t *testing.T, path string) *Conn {
	t.Helper()
	conn, err := Open("file:" + path)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func kindOf(t *testing.T, err error) Kind {
	t.Helper()
	var e *Error
	require.ErrorAs(t, err, &e)
	return e.Kind
}

func TestReqExecSelect(t *testing.T) {
	conn := memConn(t)
	req := NewReq(conn)
	defer req.Close()

	req.Append(
		"create table t(a TEXT, b INT) STRICT;",
		"insert into t values('hello!', 1);",
		"insert into t values('goodbye', 2);",
		"select * from t;",
	)

	cols, err := req.ExecSelect()
	require.NoError(t, err)
	require.Equal(t, 2, cols)

	name, err := req.ColName(0)
	require.NoError(t, err)
	assert.Equal(t, "a", name)
	name, err = req.ColName(1)
	require.NoError(t, err)
	assert.Equal(t, "b", name)

	text, err := req.ColText(0)
	require.NoError(t, err)
	assert.Equal(t, "hello!", text)
	n, err := req.ColInt(1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	cols, err = req.NextRow()
	require.NoError(t, err)
	require.Equal(t, 2, cols)

	text, err = req.ColText(0)
	require.NoError(t, err)
	assert.Equal(t, "goodbye", text)
	n, err = req.ColInt(1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	cols, err = req.NextRow()
	require.NoError(t, err)
	assert.Equal(t, 0, cols)

	cols, err = req.ExecSelect()
	require.NoError(t, err)
	assert.Equal(t, 0, cols)
}

// Exec must run every statement in the buffer, including ones after an
// interior query, and discard that query's rows.
func TestReqExecInteriorSelect(t *testing.T) {
	conn := memConn(t)
	req := NewReq(conn)
	defer req.Close()

	big := int64(1) << 48

	req.Append(
		"create table t(a VARCHAR PRIMARY KEY, b DOUBLE, c INTEGER DEFAULT 0);",
		"insert into t (a, b) values('hello!', 1.1);",
	)
	fmt.Fprintf(req, "insert into t values('goodbye', 2.2, %d);", big)
	req.Append(
		"select * from t;",
		"insert into t (a, b) values('until we meet again', 3.3);",
	)

	require.NoError(t, req.Exec())

	req.Clear()
	req.Append("select b,c from t where a is 'goodbye';")
	cols, err := req.ExecSelect()
	require.NoError(t, err)
	require.Equal(t, 2, cols)

	b, err := req.ColReal(0)
	require.NoError(t, err)
	assert.Equal(t, 2.2, b)
	c, err := req.ColInt64(1)
	require.NoError(t, err)
	assert.Equal(t, big, c)

	// the insert after the interior select must have executed too
	req.Clear()
	req.Append("select count(*) from t;")
	cols, err = req.ExecSelect()
	require.NoError(t, err)
	require.Equal(t, 1, cols)
	n, err := req.ColInt(0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestReqBlobRoundTrip(t *testing.T) {
	conn := memConn(t)
	req := NewReq(conn)
	defer req.Close()

	req.Append(
		"create table t(a BLOB) STRICT;",
		"insert into t values(x'deadbeef');",
		"select * from t;",
	)

	cols, err := req.ExecSelect()
	require.NoError(t, err)
	require.Equal(t, 1, cols)

	v, err := req.ColBlob(0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, v)
}

// Clear must return the cursor to a state indistinguishable from a
// newly constructed one.
func TestReqClearFreshState(t *testing.T) {
	conn := memConn(t)
	req := NewReq(conn)
	defer req.Close()

	req.Append(
		"create table t(a INT);",
		"insert into t values(1);",
		"select * from t;",
	)
	cols, err := req.ExecSelect()
	require.NoError(t, err)
	require.Equal(t, 1, cols)

	req.Clear() // row still pending, Clear discards it

	req.Append("select 41+1;")
	cols, err = req.ExecSelect()
	require.NoError(t, err)
	require.Equal(t, 1, cols)
	n, err := req.ColInt(0)
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	cols, err = req.NextRow()
	require.NoError(t, err)
	assert.Equal(t, 0, cols)
	cols, err = req.ExecSelect()
	require.NoError(t, err)
	assert.Equal(t, 0, cols)
}

// Reset preserves the buffer so the same SQL can be executed again.
func TestReqResetReexecutes(t *testing.T) {
	conn := memConn(t)
	setup := NewReq(conn)
	defer setup.Close()
	setup.Append(
		"create table t(a INT);",
		"insert into t values(7);",
	)
	require.NoError(t, setup.Exec())

	req := NewReq(conn)
	defer req.Close()
	req.Append("select a from t;")

	for run := 0; run < 2; run++ {
		cols, err := req.ExecSelect()
		require.NoError(t, err, "run %d", run)
		require.Equal(t, 1, cols, "run %d", run)
		n, err := req.ColInt(0)
		require.NoError(t, err)
		assert.Equal(t, 7, n)
		cols, err = req.NextRow()
		require.NoError(t, err)
		require.Equal(t, 0, cols)
		cols, err = req.ExecSelect()
		require.NoError(t, err)
		require.Equal(t, 0, cols)

		req.Reset()
	}
}

// The buffer is a queue of pending text: more SQL can be appended after
// earlier statements already executed.
func TestReqAppendAfterExec(t *testing.T) {
	conn := memConn(t)
	req := NewReq(conn)
	defer req.Close()

	req.Append("create table t(a INT);")
	require.NoError(t, req.Exec())

	req.Append("insert into t values(5);", "select a from t;")
	cols, err := req.ExecSelect()
	require.NoError(t, err)
	require.Equal(t, 1, cols)
	n, err := req.ColInt(0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

// Empty statements and comments between real ones must not stop the
// incremental compile loop early.
func TestReqEmptyStatements(t *testing.T) {
	conn := memConn(t)
	req := NewReq(conn)
	defer req.Close()

	req.Append("; -- leading noise\n", ";", "select 3;", ";")
	cols, err := req.ExecSelect()
	require.NoError(t, err)
	require.Equal(t, 1, cols)
	n, err := req.ColInt(0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	cols, err = req.NextRow()
	require.NoError(t, err)
	require.Equal(t, 0, cols)
	cols, err = req.ExecSelect()
	require.NoError(t, err)
	assert.Equal(t, 0, cols)
}

func TestReqProtocolErrors(t *testing.T) {
	conn := memConn(t)

	t.Run("next row without statement", func(t *testing.T) {
		req := NewReq(conn)
		defer req.Close()
		_, err := req.NextRow()
		assert.Equal(t, KindProtocol, kindOf(t, err))
	})

	t.Run("column without row", func(t *testing.T) {
		req := NewReq(conn)
		defer req.Close()
		_, err := req.ColText(0)
		assert.Equal(t, KindProtocol, kindOf(t, err))
	})

	t.Run("exec with pending row", func(t *testing.T) {
		req := NewReq(conn)
		defer req.Close()
		req.Append("select 1;")
		_, err := req.ExecSelect()
		require.NoError(t, err)

		_, err = req.ExecSelect()
		assert.Equal(t, KindProtocol, kindOf(t, err))
		err = req.Exec()
		assert.Equal(t, KindProtocol, kindOf(t, err))
	})

	t.Run("column out of range", func(t *testing.T) {
		req := NewReq(conn)
		defer req.Close()
		req.Append("select 1, 2;")
		cols, err := req.ExecSelect()
		require.NoError(t, err)
		require.Equal(t, 2, cols)

		_, err = req.ColText(2)
		assert.Equal(t, KindProtocol, kindOf(t, err))
		_, err = req.ColInt(-1)
		assert.Equal(t, KindProtocol, kindOf(t, err))
	})

	t.Run("next row after drain", func(t *testing.T) {
		req := NewReq(conn)
		defer req.Close()
		req.Append("select 1;")
		_, err := req.ExecSelect()
		require.NoError(t, err)
		cols, err := req.NextRow()
		require.NoError(t, err)
		require.Equal(t, 0, cols)

		_, err = req.NextRow()
		assert.Equal(t, KindProtocol, kindOf(t, err))
	})
}

func TestReqCompileError(t *testing.T) {
	conn := memConn(t)
	req := NewReq(conn)
	defer req.Close()

	req.Append("this is not sql;")
	err := req.Exec()
	require.Error(t, err)
	assert.Equal(t, KindCompile, kindOf(t, err))
	assert.Contains(t, err.Error(), "syntax error")
}

// A failed statement mid-buffer aborts the call but does not undo the
// statements that already executed.
func TestReqExecutionError(t *testing.T) {
	conn := memConn(t)
	req := NewReq(conn)
	defer req.Close()

	req.Append(
		"create table t(a INT UNIQUE);",
		"insert into t values(1);",
		"insert into t values(1);", // UNIQUE violation, reported by step
		"insert into t values(2);", // never reached
	)
	err := req.Exec()
	require.Error(t, err)
	assert.Equal(t, KindExecution, kindOf(t, err))
	assert.Contains(t, err.Error(), "UNIQUE")

	req.Clear()
	req.Append("select count(*) from t;")
	cols, err := req.ExecSelect()
	require.NoError(t, err)
	require.Equal(t, 1, cols)
	n, err := req.ColInt(0)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "first insert persists, later ones do not")
}

// Two connections to one file-backed database: an uncommitted insert is
// invisible to the second connection, visible after commit, and gone
// after rollback.
func TestTwoConnsTransactionVisibility(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	conn := fileConn(t, path)
	conn.BusyTimeout(5 * time.Second) // in case of lock contention

	r := NewReq(conn)
	defer r.Close()
	r.Append("create table t(a ANY) STRICT;")
	require.NoError(t, r.Exec())

	x := NewTrans(conn)
	defer x.Close()

	require.NoError(t, x.Begin())
	r.Clear()
	r.Append("insert into t values(12345);")
	require.NoError(t, r.Exec())

	conn2 := fileConn(t, path)
	r2 := NewReq(conn2)
	defer r2.Close()
	r2.Append("select * from t;")

	cols, err := r2.ExecSelect()
	require.NoError(t, err)
	assert.Equal(t, 0, cols, "uncommitted insert must not be visible")

	require.NoError(t, x.Commit())

	r2.Reset()
	cols, err = r2.ExecSelect()
	require.NoError(t, err)
	require.Equal(t, 1, cols, "committed insert must be visible")
	n, err := r2.ColInt(0)
	require.NoError(t, err)
	assert.Equal(t, 12345, n)
	cols, err = r2.NextRow()
	require.NoError(t, err)
	require.Equal(t, 0, cols)

	require.NoError(t, x.Begin())
	r.Clear()
	r.Append("insert into t values(45678);")
	require.NoError(t, r.Exec())
	require.NoError(t, x.Abort())

	r.Clear()
	r.Append("select * from t where a is 45678;")
	cols, err = r.ExecSelect()
	require.NoError(t, err)
	assert.Equal(t, 0, cols, "aborted insert must be rolled back")
}
