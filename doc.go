// Copyright (c) 2022 Stable Cloud Computing, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sqld layers three cooperating handles over the sqlite3 C
// interface: a connection (Conn), a transaction guard (Trans), and an
// incremental request cursor (Req).
//
// The cursor is the interesting part. SQL text is appended to its
// buffer in any number of writes, then compiled and executed one
// statement at a time:
//
//	conn, err := sqld.Open(sqld.MemoryURI)
//	...
//	req := sqld.NewReq(conn)
//	defer req.Close()
//
//	req.Append(
//		"create table t(a TEXT, b INT) STRICT;",
//		"insert into t values('hello', 1);",
//		"select * from t;",
//	)
//	cols, err := req.ExecSelect()
//	for cols != 0 {
//		name, _ := req.ColText(0)
//		...
//		cols, err = req.NextRow()
//	}
//
// Statements execute strictly in buffer order, rows are pulled one at a
// time, and everything is synchronous: calls block until the engine
// returns. A Conn may be shared by independent cursors concurrently; a
// single Req or Trans must not be used from multiple goroutines at once.
//
// Engine access goes through the sqldh interfaces, implemented by the
// libsqlite package on the pure-Go SQLite build from modernc.org.
package sqld
