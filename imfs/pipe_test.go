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
	"time"

	"github.com/lind-project/lind-wasm-sub000/imfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Scenario 5 / P8: pipe-echo, FIFO ordering for a single writer.
func TestPipeEcho(t *testing.T) {
	fs := imfs.New(imfs.Config{})

	rfd, wfd, err := fs.Pipe(testCage)
	require.NoError(t, err)

	_, err = fs.Write(testCage, wfd, []byte("abc"))
	require.NoError(t, err)

	buf := make([]byte, 3)
	n, err := fs.Read(testCage, rfd, buf)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "abc", string(buf))
}

func TestPipeFIFOOrder(t *testing.T) {
	fs := imfs.New(imfs.Config{})
	rfd, wfd, err := fs.Pipe(testCage)
	require.NoError(t, err)

	_, err = fs.Write(testCage, wfd, []byte("first"))
	require.NoError(t, err)
	buf := make([]byte, 5)
	n, err := fs.Read(testCage, rfd, buf)
	require.NoError(t, err)
	assert.Equal(t, "first", string(buf[:n]))

	_, err = fs.Write(testCage, wfd, []byte("second"))
	require.NoError(t, err)
	buf2 := make([]byte, 6)
	n, err = fs.Read(testCage, rfd, buf2)
	require.NoError(t, err)
	assert.Equal(t, "second", string(buf2[:n]))
}

// EOF: writer closed, buffer empty.
func TestPipeEOFOnWriterClose(t *testing.T) {
	fs := imfs.New(imfs.Config{})
	rfd, wfd, err := fs.Pipe(testCage)
	require.NoError(t, err)

	require.NoError(t, fs.Close(testCage, wfd))

	buf := make([]byte, 3)
	n, err := fs.Read(testCage, rfd, buf)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

// Read blocks until a concurrent writer produces data.
func TestPipeReadBlocksUntilWrite(t *testing.T) {
	fs := imfs.New(imfs.Config{})
	rfd, wfd, err := fs.Pipe(testCage)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		time.Sleep(20 * time.Millisecond)
		_, werr := fs.Write(testCage, wfd, []byte("late"))
		assert.NoError(t, werr)
		close(done)
	}()

	buf := make([]byte, 4)
	n, err := fs.Read(testCage, rfd, buf)
	require.NoError(t, err)
	assert.Equal(t, "late", string(buf[:n]))
	<-done
}
