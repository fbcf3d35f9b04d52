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

package imfs

import (
	"testing"
	"time"

	"github.com/lind-project/lind-wasm-sub000/imfs/errno"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNow() time.Time { return time.Unix(1700000000, 0) }

func TestNodeStoreAllocateUsesNextWhenFreeListEmpty(t *testing.T) {
	s := newNodeStore(4)
	n0, err := s.allocate("a", KindRegular, 0o644, fixedNow)
	require.NoError(t, err)
	n1, err := s.allocate("b", KindRegular, 0o644, fixedNow)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n0.index)
	assert.EqualValues(t, 1, n1.index)
}

func TestNodeStoreFreeListIsLIFO(t *testing.T) {
	s := newNodeStore(4)
	n0, err := s.allocate("a", KindRegular, 0o644, fixedNow)
	require.NoError(t, err)
	n1, err := s.allocate("b", KindRegular, 0o644, fixedNow)
	require.NoError(t, err)

	s.free(n0.index)
	s.free(n1.index)

	reused, err := s.allocate("c", KindRegular, 0o644, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, n1.index, reused.index, "most recently freed slot should be reused first")
}

func TestNodeStoreExhaustionReturnsENOMEM(t *testing.T) {
	s := newNodeStore(1)
	_, err := s.allocate("a", KindRegular, 0o644, fixedNow)
	require.NoError(t, err)

	_, err = s.allocate("b", KindRegular, 0o644, fixedNow)
	assert.ErrorIs(t, err, errno.ENOMEM)
}

func TestNodeStoreNameTooLong(t *testing.T) {
	s := newNodeStore(4)
	long := make([]byte, MaxNodeName+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err := s.allocate(string(long), KindRegular, 0o644, fixedNow)
	assert.ErrorIs(t, err, errno.ENAMETOOLONG)
}

func TestNodeStoreGetRejectsFreedSlot(t *testing.T) {
	s := newNodeStore(4)
	n, err := s.allocate("a", KindRegular, 0o644, fixedNow)
	require.NoError(t, err)
	s.free(n.index)

	_, err = s.get(n.index)
	assert.ErrorIs(t, err, errno.EBADF)
}
