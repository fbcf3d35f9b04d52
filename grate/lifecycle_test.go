// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package grate

import (
	"testing"

	"github.com/lind-project/lind-wasm-sub000/imfs"
	"github.com/lind-project/lind-wasm-sub000/internal/metrics"
	"github.com/lind-project/lind-wasm-sub000/threei"
	"github.com/lind-project/lind-wasm-sub000/threei/addrspace"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const targetCage = 5

func newTestGrate(t *testing.T) (*Grate, *addrspace.Registry) {
	t.Helper()
	spaces := addrspace.NewRegistry()
	backend := func(call threei.Call) (int64, error) { return -1, nil }
	tt := threei.New(spaces, backend)
	m := metrics.New(prometheus.NewRegistry())
	g := New(1, tt, spaces, Config{}, m)
	g.registerHandlersFor(targetCage)
	return g, spaces
}

// End-to-end: open/write/read/close driven entirely through registered
// 3i handlers, marshalling through simulated cage memory.
func TestGrateHandlesOpenWriteReadClose(t *testing.T) {
	g, spaces := newTestGrate(t)
	callerSpace := spaces.Get(targetCage)

	pathAddr := uint64(1000)
	require.NoError(t, callerSpace.Write(pathAddr, []byte("/hello\x00")))

	openRet := g.Threei.MakeThreeiCall(threei.Call{
		SyscallNum: SysOpen,
		TargetCage: targetCage,
		Args: [6]threei.CallArg{
			{Value: pathAddr, Cage: targetCage},
			{Value: uint64(imfs.OCreat | imfs.ORdWr)},
			{Value: 0o644},
		},
	})
	require.GreaterOrEqual(t, openRet, int64(0))
	fd := uint64(openRet)

	bufAddr := uint64(2000)
	require.NoError(t, callerSpace.Write(bufAddr, []byte("payload")))

	writeRet := g.Threei.MakeThreeiCall(threei.Call{
		SyscallNum: SysWrite,
		TargetCage: targetCage,
		Args: [6]threei.CallArg{
			{Value: fd},
			{Value: bufAddr, Cage: targetCage},
			{Value: 7},
		},
	})
	assert.EqualValues(t, 7, writeRet)

	seekRet := g.Threei.MakeThreeiCall(threei.Call{
		SyscallNum: SysLseek,
		TargetCage: targetCage,
		Args: [6]threei.CallArg{
			{Value: fd},
			{Value: 0},
			{Value: uint64(imfs.SeekSet)},
		},
	})
	assert.EqualValues(t, 0, seekRet)

	readAddr := uint64(3000)
	readRet := g.Threei.MakeThreeiCall(threei.Call{
		SyscallNum: SysRead,
		TargetCage: targetCage,
		Args: [6]threei.CallArg{
			{Value: fd},
			{Value: readAddr, Cage: targetCage},
			{Value: 7},
		},
	})
	assert.EqualValues(t, 7, readRet)

	got, err := callerSpace.Read(readAddr, 7)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))

	closeRet := g.Threei.MakeThreeiCall(threei.Call{
		SyscallNum: SysClose,
		TargetCage: targetCage,
		Args:       [6]threei.CallArg{{Value: fd}},
	})
	assert.EqualValues(t, 0, closeRet)
}

func TestForkCageRegistersHandlersBeforeExec(t *testing.T) {
	g, _ := newTestGrate(t)

	err := g.ForkCage(targetCage+1, "/bin/true", nil)
	require.NoError(t, err)

	ret := g.Threei.MakeThreeiCall(threei.Call{SyscallNum: SysFcntl, TargetCage: targetCage + 1})
	assert.NotEqual(t, int64(-1), ret, "fcntl should have reached the grate's handler, not the stub backend")

	require.NoError(t, g.Wait())
}
