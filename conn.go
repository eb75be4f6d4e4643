// Copyright (c) 2022 Stable Cloud Computing, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqld

import (
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/stablecc/scclib-sqlite/libsqlite"
	"github.com/stablecc/scclib-sqlite/sqldh"
)

// MemoryURI is the default connection string: a shared-cache in-memory
// database. See https://sqlite.org/inmemorydb.html and
// https://sqlite.org/sharedcache.html.
const MemoryURI = "file:mem?mode=memory&cache=shared"

// Conn owns one open database session.
//
// Connection strings use the sqlite URI grammar
// (https://sqlite.org/uri.html) and are passed to the engine unparsed.
//
// Once open, independent cursors may use the same Conn concurrently;
// the engine arbitrates access. Reopen and Close are not safe to race
// against concurrent use of the connection. A Conn holds at most one
// session handle and must not be copied.
type Conn struct {
	db  sqldh.DB
	uri string
}

// Open opens a session. An empty uri opens MemoryURI.
func Open(uri string) (*Conn, error) {
	c := &Conn{}
	if err := c.open("Conn.Open", uri); err != nil {
		return nil, err
	}
	return c, nil
}

// Reopen closes the current session, if any, and opens uri in its
// place. On failure the Conn is left closed, holding no handle. A
// failure of the implicit close is logged, not returned; the old
// handle is dropped either way.
func (c *Conn) Reopen(uri string) error {
	if err := c.Close(); err != nil {
		lgr.Printf("[WARN] close before reopen failed: %v", err)
	}
	return c.open("Conn.Reopen", uri)
}

func (c *Conn) open(op, uri string) error {
	if uri == "" {
		uri = MemoryURI
	}
	db, err := libsqlite.Open(uri, sqldh.OpenFlagsDefault)
	if err != nil {
		return reserr(KindConnection, op, nil, err)
	}
	c.db = db
	c.uri = uri
	return nil
}

// Close releases the session handle. It is a no-op on an already
// closed Conn.
func (c *Conn) Close() error {
	if c.db == nil {
		return nil
	}
	db := c.db
	c.db = nil
	return reserr(KindConnection, "Conn.Close", nil, db.Close())
}

// URI reports the connection string the session was opened with. It is
// informational only.
func (c *Conn) URI() string { return c.uri }

// LastInsertRowid reports the rowid of the most recent successful
// insert on this connection, per sqlite3_last_insert_rowid.
func (c *Conn) LastInsertRowid() int64 {
	if c.db == nil {
		return 0
	}
	return c.db.LastInsertRowid()
}

// Changes reports the number of rows modified by the most recently
// completed statement, per sqlite3_changes.
func (c *Conn) Changes() int {
	if c.db == nil {
		return 0
	}
	return c.db.Changes()
}

// BusyTimeout sets the engine's busy handler timeout for this session.
func (c *Conn) BusyTimeout(d time.Duration) {
	if c.db != nil {
		c.db.BusyTimeout(d)
	}
}
