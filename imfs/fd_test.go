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

	"github.com/lind-project/lind-wasm-sub000/imfs/errno"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFDTableAllocateStartsAtFirstUserFD(t *testing.T) {
	tbl := newFDTable(16)
	fd, err := tbl.allocate(NodeIndex(0), ORdOnly)
	require.NoError(t, err)
	assert.EqualValues(t, FirstUserFD, fd)
}

func TestFDTableFreeListIsLIFO(t *testing.T) {
	tbl := newFDTable(16)
	a, err := tbl.allocate(NodeIndex(0), ORdOnly)
	require.NoError(t, err)
	b, err := tbl.allocate(NodeIndex(0), ORdOnly)
	require.NoError(t, err)

	tbl.releaseSlot(a)
	tbl.releaseSlot(b)

	reused, err := tbl.allocate(NodeIndex(0), ORdOnly)
	require.NoError(t, err)
	assert.Equal(t, b, reused)
}

func TestFDTableExhaustionReturnsEMFILE(t *testing.T) {
	tbl := newFDTable(FirstUserFD + 1)
	_, err := tbl.allocate(NodeIndex(0), ORdOnly)
	require.NoError(t, err)

	_, err = tbl.allocate(NodeIndex(0), ORdOnly)
	assert.ErrorIs(t, err, errno.EMFILE)
}

func TestFDTableResolveFollowsDupLink(t *testing.T) {
	tbl := newFDTable(16)
	orig, err := tbl.allocate(NodeIndex(5), ORdWr)
	require.NoError(t, err)

	dup, err := tbl.allocate(NodeIndex(0), 0)
	require.NoError(t, err)
	tbl.fds[dup] = FileDesc{live: true, hasLink: true, link: orig}

	resolved, fd, err := tbl.resolve(dup)
	require.NoError(t, err)
	assert.Equal(t, orig, resolved)
	assert.EqualValues(t, 5, fd.nodeIndex)
}

func TestFDTableGetRejectsClosedSlot(t *testing.T) {
	tbl := newFDTable(16)
	fd, err := tbl.allocate(NodeIndex(0), ORdOnly)
	require.NoError(t, err)
	tbl.releaseSlot(fd)

	_, err = tbl.get(fd)
	assert.ErrorIs(t, err, errno.EBADF)
}
