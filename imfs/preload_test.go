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
	"os"
	"path/filepath"
	"testing"

	"github.com/lind-project/lind-wasm-sub000/imfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreloadFileCreatesParentsAndCopiesContent(t *testing.T) {
	dir := t.TempDir()
	hostPath := filepath.Join(dir, "src.txt")
	require.NoError(t, os.WriteFile(hostPath, []byte("content"), 0o644))

	fs := imfs.New(imfs.Config{})
	require.NoError(t, fs.PreloadFile(testCage, hostPath, "/a/b/dst.txt"))

	fd, err := fs.Open(testCage, "/a/b/dst.txt", imfs.ORdOnly, 0)
	require.NoError(t, err)
	buf := make([]byte, len("content"))
	n, err := fs.Read(testCage, fd, buf)
	require.NoError(t, err)
	assert.Equal(t, "content", string(buf[:n]))
}

func TestPreloadDirRecursivelyMirrorsTree(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "top.txt"), []byte("top"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "nested.txt"), []byte("nested"), 0o644))

	fs := imfs.New(imfs.Config{})
	require.NoError(t, fs.PreloadDir(testCage, dir, "/mnt"))

	fd, err := fs.Open(testCage, "/mnt/top.txt", imfs.ORdOnly, 0)
	require.NoError(t, err)
	buf := make([]byte, 3)
	_, err = fs.Read(testCage, fd, buf)
	require.NoError(t, err)
	assert.Equal(t, "top", string(buf))

	fd2, err := fs.Open(testCage, "/mnt/sub/nested.txt", imfs.ORdOnly, 0)
	require.NoError(t, err)
	buf2 := make([]byte, 6)
	_, err = fs.Read(testCage, fd2, buf2)
	require.NoError(t, err)
	assert.Equal(t, "nested", string(buf2))
}

func TestDumpFileWritesHostFile(t *testing.T) {
	fs := imfs.New(imfs.Config{})
	fd, err := fs.Open(testCage, "/out.txt", imfs.OCreat|imfs.OWrOnly, 0o644)
	require.NoError(t, err)
	_, err = fs.Write(testCage, fd, []byte("dumped"))
	require.NoError(t, err)
	require.NoError(t, fs.Close(testCage, fd))

	dir := t.TempDir()
	hostPath := filepath.Join(dir, "out", "result.txt")
	require.NoError(t, fs.DumpFile(testCage, "/out.txt", hostPath))

	got, err := os.ReadFile(hostPath)
	require.NoError(t, err)
	assert.Equal(t, "dumped", string(got))
}
