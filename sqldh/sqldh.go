// Copyright (c) 2022 Stable Cloud Computing, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sqldh declares the engine boundary of the sqld layer: the
// subset of the sqlite3 C interface that the connection, transaction
// guard, and request cursor consume, plus the SQLite result codes and
// open flags they traffic in.
package sqldh

// Given everything in here has an sqldh. prefix, why not strip the
// SQLITE_ prefix from constants? Because this way standard names show
// up in search.

import "time"

// OpenFunc is sqlite3_open_v2.
//
// https://sqlite.org/c3ref/open.html
type OpenFunc func(uri string, flags OpenFlags) (DB, error)

// DB is an sqlite3* database connection object.
// https://sqlite.org/c3ref/sqlite3.html
type DB interface {
	// Close is sqlite3_close_v2.
	// https://sqlite.org/c3ref/close.html
	Close() error
	// ErrMsg is sqlite3_errmsg: the diagnostic text for the most
	// recent failure on this connection.
	// https://sqlite.org/c3ref/errcode.html
	ErrMsg() string
	// Changes is sqlite3_changes.
	// https://sqlite.org/c3ref/changes.html
	Changes() int
	// LastInsertRowid is sqlite3_last_insert_rowid.
	// https://sqlite.org/c3ref/last_insert_rowid.html
	LastInsertRowid() int64
	// BusyTimeout is sqlite3_busy_timeout.
	// https://www.sqlite.org/c3ref/busy_timeout.html
	BusyTimeout(time.Duration)
	// Prepare is sqlite3_prepare_v2. It compiles the first statement
	// in query and returns the unconsumed remainder of query, which is
	// how callers track their position in a multi-statement buffer.
	// A nil stmt with a nil error means query contained no statement
	// (whitespace or comments only); remaining is still valid.
	// https://www.sqlite.org/c3ref/prepare.html
	Prepare(query string) (stmt Stmt, remaining string, err error)
}

// Stmt is an sqlite3_stmt* prepared statement object.
// https://sqlite.org/c3ref/stmt.html
type Stmt interface {
	// Finalize is sqlite3_finalize.
	// https://sqlite.org/c3ref/finalize.html
	Finalize() error
	// Step is sqlite3_step.
	//	For SQLITE_ROW, Step returns (true, nil).
	//	For SQLITE_DONE, Step returns (false, nil).
	//	For any error, Step returns (false, err).
	// https://www.sqlite.org/c3ref/step.html
	Step() (row bool, err error)
	// ColumnCount is sqlite3_column_count.
	// https://sqlite.org/c3ref/column_count.html
	ColumnCount() int
	// ColumnName is sqlite3_column_name.
	// https://sqlite.org/c3ref/column_name.html
	ColumnName(col int) string
	// ColumnText is sqlite3_column_text.
	// https://sqlite.org/c3ref/column_blob.html
	ColumnText(col int) string
	// ColumnBlob is sqlite3_column_blob. The returned slice is a copy
	// owned by the caller.
	// https://sqlite.org/c3ref/column_blob.html
	ColumnBlob(col int) []byte
	// ColumnDouble is sqlite3_column_double.
	// https://sqlite.org/c3ref/column_blob.html
	ColumnDouble(col int) float64
	// ColumnInt is sqlite3_column_int.
	// https://sqlite.org/c3ref/column_blob.html
	ColumnInt(col int) int
	// ColumnInt64 is sqlite3_column_int64.
	// https://sqlite.org/c3ref/column_blob.html
	ColumnInt64(col int) int64
	// ColumnType is sqlite3_column_type.
	// https://www.sqlite.org/c3ref/column_blob.html
	ColumnType(col int) ColumnType
}

// ColumnType are constants for each of the SQLite datatypes.
// https://www.sqlite.org/c3ref/c_blob.html
type ColumnType int

const (
	SQLITE_INTEGER ColumnType = 1
	SQLITE_FLOAT   ColumnType = 2
	SQLITE_TEXT    ColumnType = 3
	SQLITE_BLOB    ColumnType = 4
	SQLITE_NULL    ColumnType = 5
)

func (t ColumnType) String() string {
	switch t {
	case SQLITE_INTEGER:
		return "SQLITE_INTEGER"
	case SQLITE_FLOAT:
		return "SQLITE_FLOAT"
	case SQLITE_TEXT:
		return "SQLITE_TEXT"
	case SQLITE_BLOB:
		return "SQLITE_BLOB"
	case SQLITE_NULL:
		return "SQLITE_NULL"
	default:
		return "UNKNOWN_SQLITE_DATATYPE"
	}
}

// OpenFlags are flags used when opening a DB.
//
// https://www.sqlite.org/c3ref/c_open_autoproxy.html
type OpenFlags int

const (
	SQLITE_OPEN_READONLY     OpenFlags = 0x00000001
	SQLITE_OPEN_READWRITE    OpenFlags = 0x00000002
	SQLITE_OPEN_CREATE       OpenFlags = 0x00000004
	SQLITE_OPEN_URI          OpenFlags = 0x00000040
	SQLITE_OPEN_MEMORY       OpenFlags = 0x00000080
	SQLITE_OPEN_NOMUTEX      OpenFlags = 0x00008000
	SQLITE_OPEN_FULLMUTEX    OpenFlags = 0x00010000
	SQLITE_OPEN_SHAREDCACHE  OpenFlags = 0x00020000
	SQLITE_OPEN_PRIVATECACHE OpenFlags = 0x00040000

	// OpenFlagsDefault matches the connection-string grammar the layer
	// documents: URI filenames, read/write/create, and a serialized
	// (fully mutexed) connection that independent cursors may share.
	OpenFlagsDefault = SQLITE_OPEN_READWRITE |
		SQLITE_OPEN_CREATE |
		SQLITE_OPEN_URI |
		SQLITE_OPEN_FULLMUTEX
)

var openFlagsStrings = map[OpenFlags]string{
	SQLITE_OPEN_READONLY:     "SQLITE_OPEN_READONLY",
	SQLITE_OPEN_READWRITE:    "SQLITE_OPEN_READWRITE",
	SQLITE_OPEN_CREATE:       "SQLITE_OPEN_CREATE",
	SQLITE_OPEN_URI:          "SQLITE_OPEN_URI",
	SQLITE_OPEN_MEMORY:       "SQLITE_OPEN_MEMORY",
	SQLITE_OPEN_NOMUTEX:      "SQLITE_OPEN_NOMUTEX",
	SQLITE_OPEN_FULLMUTEX:    "SQLITE_OPEN_FULLMUTEX",
	SQLITE_OPEN_SHAREDCACHE:  "SQLITE_OPEN_SHAREDCACHE",
	SQLITE_OPEN_PRIVATECACHE: "SQLITE_OPEN_PRIVATECACHE",
}

var allOpenFlags = []OpenFlags{
	SQLITE_OPEN_READONLY,
	SQLITE_OPEN_READWRITE,
	SQLITE_OPEN_CREATE,
	SQLITE_OPEN_URI,
	SQLITE_OPEN_MEMORY,
	SQLITE_OPEN_NOMUTEX,
	SQLITE_OPEN_FULLMUTEX,
	SQLITE_OPEN_SHAREDCACHE,
	SQLITE_OPEN_PRIVATECACHE,
}

func (o OpenFlags) String() string {
	var flags []byte
	for _, flag := range allOpenFlags {
		if o&flag == 0 {
			continue
		}
		if len(flags) > 0 {
			flags = append(flags, '|')
		}
		flags = append(flags, openFlagsStrings[flag]...)
	}
	return string(flags)
}
