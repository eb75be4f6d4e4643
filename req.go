// Copyright (c) 2022 Stable Cloud Computing, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqld

import (
	"fmt"

	"github.com/stablecc/scclib-sqlite/sqldh"
)

// Req is an incremental request cursor: a growable buffer of
// semicolon-separated SQL text, compiled and executed one statement at
// a time.
//
// The engine's compiler consumes a prefix of its input and reports
// where it stopped, so the buffer acts as a queue of pending text: pos
// marks the start of not-yet-compiled SQL and only moves forward
// (Clear and Reset rewind it). At most one compiled statement exists
// at a time; it is released before every new compile and on Clear,
// Reset, and Close. cols is the single authoritative "row pending"
// signal: it is nonzero exactly while the last step produced a row.
type Req struct {
	conn *Conn
	buf  []byte
	pos  int
	stmt sqldh.Stmt
	cols int
}

// NewReq creates a cursor bound to conn with an empty buffer.
func NewReq(conn *Conn) *Req { return &Req{conn: conn} }

// Append appends the given SQL fragments to the buffer and returns the
// cursor, so a request can be built stream-style:
//
//	req.Append(
//		"create table t(one int, two int);",
//		"insert into t values(1, 2);",
//		"select * from t;",
//	)
func (r *Req) Append(sql ...string) *Req {
	for _, s := range sql {
		r.buf = append(r.buf, s...)
	}
	return r
}

// Write appends p to the buffer, implementing io.Writer so the cursor
// can be a fmt.Fprintf or io.Copy target.
func (r *Req) Write(p []byte) (int, error) {
	r.buf = append(r.buf, p...)
	return len(p), nil
}

// WriteString appends s to the buffer, implementing io.StringWriter.
func (r *Req) WriteString(s string) (int, error) {
	r.buf = append(r.buf, s...)
	return len(s), nil
}

// Close releases the compiled statement, if any. It is idempotent and
// always succeeds; the buffer is left intact.
func (r *Req) Close() error {
	r.finalize()
	return nil
}

// finalize releases the compiled statement. It runs on every path that
// compiles a new statement, resets, clears, or closes the cursor, so
// no statement handle survives past the cursor's next compile.
func (r *Req) finalize() {
	if r.stmt != nil {
		r.stmt.Finalize() // a step error, if any, was already reported
		r.stmt = nil
	}
}

// Clear empties the buffer and returns the cursor to its initial
// state, as if newly constructed.
func (r *Req) Clear() {
	r.finalize()
	r.buf = r.buf[:0]
	r.pos = 0
	r.cols = 0
}

// Reset rewinds the cursor to the start of the buffer without clearing
// it, so the same SQL can be executed again.
func (r *Req) Reset() {
	r.finalize()
	r.pos = 0
	r.cols = 0
}

// prepare compiles the next statement starting at pos and advances pos
// past the compiled text. On return with no error and a nil statement
// the buffer is exhausted, or holds only whitespace and comments.
func (r *Req) prepare(op string) error {
	r.finalize()

	if r.conn.db == nil {
		return precondition(KindConnection, op, errClosed.Msg)
	}
	if r.pos >= len(r.buf) {
		return nil
	}

	head := string(r.buf[r.pos:])
	stmt, remaining, err := r.conn.db.Prepare(head)
	if err != nil {
		return reserr(KindCompile, op, r.conn.db, err)
	}
	r.pos += len(head) - len(remaining)
	r.stmt = stmt
	return nil
}

// ExecSelect executes statements from the buffer, in order, until one
// produces row data or nothing is left to execute. It returns the
// number of columns in the available row, or 0 when the buffer is
// exhausted. A pending row must be drained with NextRow (or the cursor
// cleared) before calling ExecSelect again.
func (r *Req) ExecSelect() (int, error) {
	const op = "Req.ExecSelect"
	if r.cols != 0 {
		return 0, precondition(KindProtocol, op, "called with current row data")
	}

	for {
		mark := r.pos
		if err := r.prepare(op); err != nil {
			return 0, err
		}
		if r.stmt == nil {
			// an empty statement (bare semicolon) compiles to nothing
			// but can still have SQL after it
			if r.pos > mark && r.pos < len(r.buf) {
				continue
			}
			return 0, nil
		}

		row, err := r.stmt.Step()
		if err != nil {
			return 0, reserr(KindExecution, op, r.conn.db, err)
		}
		if !row { // no row data, go on to the next statement
			continue
		}

		r.cols = r.stmt.ColumnCount()
		return r.cols, nil
	}
}

// Exec drains the whole buffer, discarding any row data. A failed
// compile or step aborts immediately; statements already executed are
// not undone (use Trans for atomicity).
func (r *Req) Exec() error {
	if r.cols != 0 {
		return precondition(KindProtocol, "Req.Exec", "called with current row data")
	}

	for {
		n, err := r.ExecSelect()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		for r.cols != 0 {
			if _, err := r.NextRow(); err != nil {
				return err
			}
		}
		// run ExecSelect again for any statements after the query
	}
}

// NextRow steps the current statement once more. It returns the column
// count of the next row, or 0 once the statement is exhausted. With
// multiple queries in one buffer, call ExecSelect again after NextRow
// returns 0.
func (r *Req) NextRow() (int, error) {
	const op = "Req.NextRow"
	if r.stmt == nil {
		return 0, precondition(KindProtocol, op, "no compiled statement")
	}
	if r.cols == 0 {
		return 0, precondition(KindProtocol, op, "no current row data")
	}

	row, err := r.stmt.Step()
	if err != nil {
		return 0, reserr(KindExecution, op, r.conn.db, err)
	}
	if !row {
		r.cols = 0
		return 0, nil
	}
	return r.stmt.ColumnCount(), nil
}

// colCheck validates the preconditions shared by all column accessors:
// a compiled statement, a pending row, and col within [0, cols).
func (r *Req) colCheck(op string, col int) error {
	if r.stmt == nil {
		return precondition(KindProtocol, op, "no compiled statement")
	}
	if r.cols == 0 {
		return precondition(KindProtocol, op, "no current row data")
	}
	if col < 0 || col >= r.cols {
		return precondition(KindProtocol, op,
			fmt.Sprintf("column %d out of range [0,%d)", col, r.cols))
	}
	return nil
}

// ColName returns the name of the zero-indexed column.
func (r *Req) ColName(col int) (string, error) {
	if err := r.colCheck("Req.ColName", col); err != nil {
		return "", err
	}
	return r.stmt.ColumnName(col), nil
}

// ColText returns the column value as UTF-8 TEXT, coerced by the
// engine's dynamic typing rules.
func (r *Req) ColText(col int) (string, error) {
	if err := r.colCheck("Req.ColText", col); err != nil {
		return "", err
	}
	return r.stmt.ColumnText(col), nil
}

// ColInt returns the column value as a 32-bit INTEGER.
func (r *Req) ColInt(col int) (int, error) {
	if err := r.colCheck("Req.ColInt", col); err != nil {
		return 0, err
	}
	return r.stmt.ColumnInt(col), nil
}

// ColInt64 returns the column value as a 64-bit INTEGER.
func (r *Req) ColInt64(col int) (int64, error) {
	if err := r.colCheck("Req.ColInt64", col); err != nil {
		return 0, err
	}
	return r.stmt.ColumnInt64(col), nil
}

// ColReal returns the column value as a 64-bit REAL.
func (r *Req) ColReal(col int) (float64, error) {
	if err := r.colCheck("Req.ColReal", col); err != nil {
		return 0, err
	}
	return r.stmt.ColumnDouble(col), nil
}

// ColBlob returns the column's BLOB value as an exact-length copy.
func (r *Req) ColBlob(col int) ([]byte, error) {
	if err := r.colCheck("Req.ColBlob", col); err != nil {
		return nil, err
	}
	return r.stmt.ColumnBlob(col), nil
}
