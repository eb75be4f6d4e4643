// Copyright (c) 2022 Stable Cloud Computing, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqld

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransStateMachine(t *testing.T) {
	conn := memConn(t)
	x := NewTrans(conn)
	defer x.Close()

	assert.False(t, x.Active())

	require.NoError(t, x.Begin())
	assert.True(t, x.Active())

	err := x.Begin()
	assert.Equal(t, KindState, kindOf(t, err), "nested begin must fail")
	assert.True(t, x.Active(), "failed begin leaves the transaction open")

	require.NoError(t, x.Commit())
	assert.False(t, x.Active())

	err = x.Commit()
	assert.Equal(t, KindState, kindOf(t, err), "commit without begin must fail")
	err = x.Abort()
	assert.Equal(t, KindState, kindOf(t, err), "abort without begin must fail")

	require.NoError(t, x.Begin())
	require.NoError(t, x.Abort())
	assert.False(t, x.Active())
}

func TestTransCloseAborts(t *testing.T) {
	conn := memConn(t)

	req := NewReq(conn)
	defer req.Close()
	req.Append("create table t(a INT);")
	require.NoError(t, req.Exec())

	x := NewTrans(conn)
	require.NoError(t, x.Begin())

	req.Clear()
	req.Append("insert into t values(1);")
	require.NoError(t, req.Exec())

	require.NoError(t, x.Close())
	assert.False(t, x.Active())

	req.Clear()
	req.Append("select * from t;")
	cols, err := req.ExecSelect()
	require.NoError(t, err)
	assert.Equal(t, 0, cols, "close must roll back the open transaction")
}

func TestTransCloseInactiveNoop(t *testing.T) {
	conn := memConn(t)
	x := NewTrans(conn)
	require.NoError(t, x.Close())
	require.NoError(t, x.Close())

	// the guard is still usable after Close
	require.NoError(t, x.Begin())
	require.NoError(t, x.Commit())
}
