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

package imfs_test

import (
	"testing"

	"github.com/lind-project/lind-wasm-sub000/imfs"
	"github.com/lind-project/lind-wasm-sub000/imfs/errno"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadDirYieldsDotEntriesAndChildren(t *testing.T) {
	fs := imfs.New(imfs.Config{})
	require.NoError(t, fs.Mkdir(testCage, "/dir", 0o755))
	fd, err := fs.Open(testCage, "/dir/child", imfs.OCreat|imfs.OWrOnly, 0o644)
	require.NoError(t, err)
	require.NoError(t, fs.Close(testCage, fd))

	ds, err := fs.OpenDir(testCage, "/dir")
	require.NoError(t, err)

	var names []string
	for {
		ent, err := ds.ReadDir()
		require.NoError(t, err)
		if ent == nil {
			break
		}
		names = append(names, ent.Name)
	}
	assert.ElementsMatch(t, []string{".", "..", "child"}, names)

	require.NoError(t, fs.CloseDir(testCage, ds))
}

func TestRewindReplaysSameSnapshot(t *testing.T) {
	fs := imfs.New(imfs.Config{})
	require.NoError(t, fs.Mkdir(testCage, "/dir", 0o755))

	ds, err := fs.OpenDir(testCage, "/dir")
	require.NoError(t, err)

	first, err := ds.ReadDir()
	require.NoError(t, err)
	ds.Rewind()
	second, err := ds.ReadDir()
	require.NoError(t, err)
	assert.Equal(t, first.Name, second.Name)
}

func TestPathconfNameMax(t *testing.T) {
	fs := imfs.New(imfs.Config{})
	require.NoError(t, fs.Mkdir(testCage, "/d", 0o755))

	v, err := fs.Pathconf(testCage, "/d", imfs.PCNameMax)
	require.NoError(t, err)
	assert.Equal(t, imfs.MaxNodeName, v)
}

func TestPathconfInvalidName(t *testing.T) {
	fs := imfs.New(imfs.Config{})
	require.NoError(t, fs.Mkdir(testCage, "/d", 0o755))

	_, err := fs.Pathconf(testCage, "/d", 999)
	assert.ErrorIs(t, err, errno.EINVAL)
}
