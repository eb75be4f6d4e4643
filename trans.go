// Copyright (c) 2022 Stable Cloud Computing, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqld

import "github.com/go-pkgz/lgr"

// Trans is a transaction guard bound to one connection. It starts
// inactive and moves Inactive -> Begin -> Active -> Commit/Abort ->
// Inactive.
//
// A Trans is not synchronized; callers using one guard from multiple
// goroutines must serialize access themselves.
type Trans struct {
	conn   *Conn
	active bool
}

// NewTrans binds a guard to conn.
func NewTrans(conn *Conn) *Trans { return &Trans{conn: conn} }

// Active reports whether a transaction is currently open.
func (t *Trans) Active() bool { return t.active }

// Begin issues BEGIN. It fails with a StateError if the transaction is
// already active.
func (t *Trans) Begin() error {
	if t.active {
		return precondition(KindState, "Trans.Begin", "transaction already active")
	}
	if err := t.exec("BEGIN;"); err != nil {
		return err
	}
	t.active = true
	return nil
}

// Commit issues COMMIT. It fails with a StateError if the transaction
// is not active.
func (t *Trans) Commit() error {
	if !t.active {
		return precondition(KindState, "Trans.Commit", "transaction not active")
	}
	if err := t.exec("COMMIT;"); err != nil {
		return err
	}
	t.active = false
	return nil
}

// Abort issues ROLLBACK. It fails with a StateError if the transaction
// is not active.
func (t *Trans) Abort() error {
	if !t.active {
		return precondition(KindState, "Trans.Abort", "transaction not active")
	}
	if err := t.exec("ROLLBACK;"); err != nil {
		return err
	}
	t.active = false
	return nil
}

// Close aborts a still-active transaction so one is never silently
// left open. A failure of that implicit abort is logged and swallowed:
// Close itself never fails.
func (t *Trans) Close() error {
	if !t.active {
		return nil
	}
	if err := t.Abort(); err != nil {
		lgr.Printf("[WARN] implicit rollback failed: %v", err)
		t.active = false
	}
	return nil
}

// exec runs script through a one-shot scratch cursor.
func (t *Trans) exec(script string) error {
	r := NewReq(t.conn)
	defer r.Close()
	r.Append(script)
	return r.Exec()
}
