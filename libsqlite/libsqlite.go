// Copyright (c) 2022 Stable Cloud Computing, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package libsqlite implements the sqldh engine boundary on the pure-Go
// SQLite build from modernc.org, so the module needs no C toolchain.
//
// Pointers into the engine's address space are uintptrs managed through
// modernc.org/libc; every value handed back to Go (text, blobs, names)
// is copied out before the engine can reuse the memory.
package libsqlite

import (
	"fmt"
	"sync"
	"time"
	"unsafe"

	"modernc.org/libc"
	"modernc.org/libc/sys/types"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/stablecc/scclib-sqlite/sqldh"
)

const ptrSize = int(unsafe.Sizeof(uintptr(0)))

// DB is an sqlite3* database connection object.
// https://sqlite.org/c3ref/sqlite3.html
//
// A DB owns one libc.TLS, which is not safe for concurrent use, so mu
// serializes every engine call. Statements prepared on a DB share its
// lock, which is what lets independent cursors use one connection from
// multiple goroutines.
//
// Outstanding statements keep the handle and TLS alive: Close with
// statements still prepared only marks the DB closed, and the last
// Finalize releases the engine resources. Without that, a statement
// surviving its connection would hand a dead TLS to the engine.
type DB struct {
	mu     sync.Mutex
	tls    *libc.TLS
	db     uintptr // sqlite3*
	nstmt  int     // statements prepared and not yet finalized
	closed bool    // Close was called; release pending on nstmt == 0
}

// Stmt is an sqlite3_stmt* prepared statement object.
// https://sqlite.org/c3ref/stmt.html
type Stmt struct {
	db   *DB
	stmt uintptr // sqlite3_stmt*
}

// Open is sqlite3_open_v2.
//
// An error opening the database can still allocate a handle; Open
// closes it before returning, so a failed Open holds no resources and
// the returned error carries the engine's diagnostic text.
//
// https://sqlite.org/c3ref/open.html
func Open(uri string, flags sqldh.OpenFlags) (sqldh.DB, error) {
	db := &DB{tls: libc.NewTLS()}
	h, err := db.openV2(uri, int32(flags))
	if err != nil {
		if h != 0 {
			sqlite3.Xsqlite3_close_v2(db.tls, h)
		}
		db.tls.Close()
		return nil, err
	}
	db.db = h
	return db, nil
}

func (db *DB) openV2(name string, flags int32) (uintptr, error) {
	var p, s uintptr
	defer func() {
		db.free(p)
		db.free(s)
	}()

	p, err := db.malloc(ptrSize)
	if err != nil {
		return 0, err
	}
	if s, err = libc.CString(name); err != nil {
		return 0, err
	}

	rc := sqlite3.Xsqlite3_open_v2(db.tls, s, p, flags, 0)
	h := *(*uintptr)(unsafe.Pointer(p))
	if rc != sqlite3.SQLITE_OK {
		msg := libc.GoString(sqlite3.Xsqlite3_errstr(db.tls, rc))
		if h != 0 {
			msg = libc.GoString(sqlite3.Xsqlite3_errmsg(db.tls, h))
		}
		return h, fmt.Errorf("sqlite3_open_v2 %q: %s: %w", name, msg, sqldh.ErrCode(rc))
	}
	return h, nil
}

// Close is sqlite3_close_v2. It is idempotent.
//
// With statements still outstanding, Close marks the DB closed (new
// Prepare calls fail) and the last Finalize performs the actual
// release; the statements remain usable until then, matching the
// engine's own deferred-close semantics.
//
// https://sqlite.org/c3ref/close.html
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return nil
	}
	db.closed = true
	if db.nstmt > 0 {
		return nil
	}
	return db.release()
}

// release frees the handle and TLS. The caller holds db.mu and has
// ensured no statements are outstanding.
func (db *DB) release() error {
	var err error
	if db.db != 0 {
		if rc := sqlite3.Xsqlite3_close_v2(db.tls, db.db); rc != sqlite3.SQLITE_OK {
			err = errCode(rc)
		}
		db.db = 0
	}
	if db.tls != nil {
		db.tls.Close()
		db.tls = nil
	}
	return err
}

// ErrMsg is sqlite3_errmsg.
// https://sqlite.org/c3ref/errcode.html
func (db *DB) ErrMsg() string {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.db == 0 {
		return ""
	}
	return libc.GoString(sqlite3.Xsqlite3_errmsg(db.tls, db.db))
}

// Changes is sqlite3_changes.
// https://sqlite.org/c3ref/changes.html
func (db *DB) Changes() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return int(sqlite3.Xsqlite3_changes(db.tls, db.db))
}

// LastInsertRowid is sqlite3_last_insert_rowid.
// https://sqlite.org/c3ref/last_insert_rowid.html
func (db *DB) LastInsertRowid() int64 {
	db.mu.Lock()
	defer db.mu.Unlock()
	return sqlite3.Xsqlite3_last_insert_rowid(db.tls, db.db)
}

// BusyTimeout is sqlite3_busy_timeout.
// https://www.sqlite.org/c3ref/busy_timeout.html
func (db *DB) BusyTimeout(d time.Duration) {
	db.mu.Lock()
	defer db.mu.Unlock()
	sqlite3.Xsqlite3_busy_timeout(db.tls, db.db, int32(d.Milliseconds()))
}

// Prepare is sqlite3_prepare_v2.
//
// The engine compiles one statement at a time and reports where it
// stopped through pzTail; Prepare surfaces that as the unconsumed
// remainder of query. A nil Stmt with a nil error means query held no
// statement (whitespace or comments only).
//
// https://www.sqlite.org/c3ref/prepare.html
func (db *DB) Prepare(query string) (sqldh.Stmt, string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed || db.db == 0 {
		return nil, "", sqldh.CodeAsError(sqldh.SQLITE_MISUSE)
	}

	var zsql, ppstmt, pptail uintptr
	defer func() {
		db.free(zsql)
		db.free(ppstmt)
		db.free(pptail)
	}()

	zsql, err := libc.CString(query)
	if err != nil {
		return nil, "", err
	}
	if ppstmt, err = db.malloc(ptrSize); err != nil {
		return nil, "", err
	}
	if pptail, err = db.malloc(ptrSize); err != nil {
		return nil, "", err
	}

	// nByte includes the terminating NUL so the engine can reuse the
	// zero-terminated buffer without a copy.
	rc := sqlite3.Xsqlite3_prepare_v2(db.tls, db.db, zsql, int32(len(query))+1, ppstmt, pptail)
	if rc != sqlite3.SQLITE_OK {
		return nil, "", errCode(rc)
	}

	consumed := int(*(*uintptr)(unsafe.Pointer(pptail)) - zsql)
	if consumed > len(query) {
		consumed = len(query)
	}
	remaining := query[consumed:]

	pstmt := *(*uintptr)(unsafe.Pointer(ppstmt))
	if pstmt == 0 {
		return nil, remaining, nil
	}
	db.nstmt++
	return &Stmt{db: db, stmt: pstmt}, remaining, nil
}

func (db *DB) malloc(n int) (uintptr, error) {
	if p := libc.Xmalloc(db.tls, types.Size_t(n)); p != 0 || n == 0 {
		return p, nil
	}
	return 0, fmt.Errorf("libsqlite: cannot allocate %d bytes", n)
}

func (db *DB) free(p uintptr) {
	if p != 0 {
		libc.Xfree(db.tls, p)
	}
}

// Finalize is sqlite3_finalize. It is idempotent. Finalizing the last
// outstanding statement of a closed DB completes the deferred close.
// https://sqlite.org/c3ref/finalize.html
func (s *Stmt) Finalize() error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if s.stmt == 0 {
		return nil
	}
	err := errCode(sqlite3.Xsqlite3_finalize(s.db.tls, s.stmt))
	s.stmt = 0
	s.db.nstmt--
	if s.db.closed && s.db.nstmt == 0 {
		if rerr := s.db.release(); err == nil {
			err = rerr
		}
	}
	return err
}

// Step is sqlite3_step.
//	For SQLITE_ROW, Step returns (true, nil).
//	For SQLITE_DONE, Step returns (false, nil).
//	For any error, Step returns (false, err).
// https://www.sqlite.org/c3ref/step.html
func (s *Stmt) Step() (row bool, err error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if s.stmt == 0 {
		return false, sqldh.CodeAsError(sqldh.SQLITE_MISUSE)
	}
	switch rc := sqlite3.Xsqlite3_step(s.db.tls, s.stmt); rc {
	case sqlite3.SQLITE_ROW:
		return true, nil
	case sqlite3.SQLITE_DONE:
		return false, nil
	default:
		return false, errCode(rc)
	}
}

// ColumnCount is sqlite3_column_count.
// https://sqlite.org/c3ref/column_count.html
func (s *Stmt) ColumnCount() int {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.stmt == 0 {
		return 0
	}
	return int(sqlite3.Xsqlite3_column_count(s.db.tls, s.stmt))
}

// ColumnName is sqlite3_column_name.
// https://sqlite.org/c3ref/column_name.html
func (s *Stmt) ColumnName(col int) string {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.stmt == 0 {
		return ""
	}
	return libc.GoString(sqlite3.Xsqlite3_column_name(s.db.tls, s.stmt, int32(col)))
}

// ColumnText is sqlite3_column_text.
// https://sqlite.org/c3ref/column_blob.html
func (s *Stmt) ColumnText(col int) string {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if s.stmt == 0 {
		return ""
	}
	p := sqlite3.Xsqlite3_column_text(s.db.tls, s.stmt, int32(col))
	n := int(sqlite3.Xsqlite3_column_bytes(s.db.tls, s.stmt, int32(col)))
	if p == 0 || n == 0 {
		return ""
	}
	b := make([]byte, n)
	copy(b, (*libc.RawMem)(unsafe.Pointer(p))[:n:n])
	return string(b)
}

// ColumnBlob is sqlite3_column_blob. The returned slice is a copy owned
// by the caller; a NULL or zero-length value returns nil.
// https://sqlite.org/c3ref/column_blob.html
func (s *Stmt) ColumnBlob(col int) []byte {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if s.stmt == 0 {
		return nil
	}
	p := sqlite3.Xsqlite3_column_blob(s.db.tls, s.stmt, int32(col))
	n := int(sqlite3.Xsqlite3_column_bytes(s.db.tls, s.stmt, int32(col)))
	if p == 0 || n == 0 {
		return nil
	}
	b := make([]byte, n)
	copy(b, (*libc.RawMem)(unsafe.Pointer(p))[:n:n])
	return b
}

// ColumnDouble is sqlite3_column_double.
// https://sqlite.org/c3ref/column_blob.html
func (s *Stmt) ColumnDouble(col int) float64 {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.stmt == 0 {
		return 0
	}
	return sqlite3.Xsqlite3_column_double(s.db.tls, s.stmt, int32(col))
}

// ColumnInt is sqlite3_column_int.
// https://sqlite.org/c3ref/column_blob.html
func (s *Stmt) ColumnInt(col int) int {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.stmt == 0 {
		return 0
	}
	return int(sqlite3.Xsqlite3_column_int(s.db.tls, s.stmt, int32(col)))
}

// ColumnInt64 is sqlite3_column_int64.
// https://sqlite.org/c3ref/column_blob.html
func (s *Stmt) ColumnInt64(col int) int64 {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.stmt == 0 {
		return 0
	}
	return sqlite3.Xsqlite3_column_int64(s.db.tls, s.stmt, int32(col))
}

// ColumnType is sqlite3_column_type.
// https://www.sqlite.org/c3ref/column_blob.html
func (s *Stmt) ColumnType(col int) sqldh.ColumnType {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.stmt == 0 {
		return 0
	}
	return sqldh.ColumnType(sqlite3.Xsqlite3_column_type(s.db.tls, s.stmt, int32(col)))
}

func errCode(code int32) error { return sqldh.CodeAsError(sqldh.Code(code)) }
