package imfsfuse_test

import (
	"context"
	"os"
	"syscall"
	"testing"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lind-project/lind-wasm-sub000/imfs"
	"github.com/lind-project/lind-wasm-sub000/imfsfuse"
)

const testCage imfs.CageID = 1

func newTestFS(t *testing.T) (*imfs.FS, *imfsfuse.FS) {
	t.Helper()
	core := imfs.New(imfs.Config{})
	return core, imfsfuse.New(core, testCage)
}

func TestCreateFileThenLookUpInodeRoundTrips(t *testing.T) {
	_, fuseFS := newTestFS(t)
	ctx := context.Background()

	createOp := &fuseops.CreateFileOp{
		Parent: fuseops.RootInodeID,
		Name:   "hello.txt",
		Mode:   0644,
	}
	require.NoError(t, fuseFS.CreateFile(ctx, createOp))
	assert.NotZero(t, createOp.Entry.Child)

	lookupOp := &fuseops.LookUpInodeOp{
		Parent: fuseops.RootInodeID,
		Name:   "hello.txt",
	}
	require.NoError(t, fuseFS.LookUpInode(ctx, lookupOp))
	assert.Equal(t, createOp.Entry.Child, lookupOp.Entry.Child)
}

func TestWriteFileThenReadFileRoundTrips(t *testing.T) {
	_, fuseFS := newTestFS(t)
	ctx := context.Background()

	createOp := &fuseops.CreateFileOp{Parent: fuseops.RootInodeID, Name: "data.bin", Mode: 0666}
	require.NoError(t, fuseFS.CreateFile(ctx, createOp))

	writeOp := &fuseops.WriteFileOp{
		Inode:  createOp.Entry.Child,
		Data:   []byte("payload"),
		Offset: 0,
	}
	require.NoError(t, fuseFS.WriteFile(ctx, writeOp))

	readOp := &fuseops.ReadFileOp{
		Inode:  createOp.Entry.Child,
		Dst:    make([]byte, 7),
		Offset: 0,
	}
	err := fuseFS.ReadFile(ctx, readOp)
	require.NoError(t, err)
	assert.Equal(t, 7, readOp.BytesRead)
	assert.Equal(t, "payload", string(readOp.Dst[:readOp.BytesRead]))
}

func TestMkDirThenRmDir(t *testing.T) {
	_, fuseFS := newTestFS(t)
	ctx := context.Background()

	mkdirOp := &fuseops.MkDirOp{Parent: fuseops.RootInodeID, Name: "sub", Mode: 0755}
	require.NoError(t, fuseFS.MkDir(ctx, mkdirOp))
	assert.NotZero(t, mkdirOp.Entry.Child)

	rmdirOp := &fuseops.RmDirOp{Parent: fuseops.RootInodeID, Name: "sub"}
	require.NoError(t, fuseFS.RmDir(ctx, rmdirOp))

	lookupOp := &fuseops.LookUpInodeOp{Parent: fuseops.RootInodeID, Name: "sub"}
	assert.Error(t, fuseFS.LookUpInode(ctx, lookupOp))
}

func TestCreateSymlinkThenReadSymlink(t *testing.T) {
	_, fuseFS := newTestFS(t)
	ctx := context.Background()

	require.NoError(t, fuseFS.CreateFile(ctx, &fuseops.CreateFileOp{Parent: fuseops.RootInodeID, Name: "hello.txt", Mode: 0644}))

	symOp := &fuseops.CreateSymlinkOp{Parent: fuseops.RootInodeID, Name: "link", Target: "/hello.txt"}
	require.NoError(t, fuseFS.CreateSymlink(ctx, symOp))

	readOp := &fuseops.ReadSymlinkOp{Inode: symOp.Entry.Child}
	require.NoError(t, fuseFS.ReadSymlink(ctx, readOp))
	assert.Equal(t, "/hello.txt", readOp.Target)
}

func TestOpenDirReadDirReleaseDirHandle(t *testing.T) {
	_, fuseFS := newTestFS(t)
	ctx := context.Background()

	require.NoError(t, fuseFS.MkDir(ctx, &fuseops.MkDirOp{Parent: fuseops.RootInodeID, Name: "d1", Mode: 0755}))
	require.NoError(t, fuseFS.MkDir(ctx, &fuseops.MkDirOp{Parent: fuseops.RootInodeID, Name: "d2", Mode: 0755}))

	openOp := &fuseops.OpenDirOp{Inode: fuseops.RootInodeID}
	require.NoError(t, fuseFS.OpenDir(ctx, openOp))
	assert.NotZero(t, openOp.Handle)

	readOp := &fuseops.ReadDirOp{
		Inode:  fuseops.RootInodeID,
		Handle: openOp.Handle,
		Dst:    make([]byte, 4096),
	}
	require.NoError(t, fuseFS.ReadDir(ctx, readOp))
	assert.Greater(t, readOp.BytesRead, 0)

	require.NoError(t, fuseFS.ReleaseDirHandle(ctx, &fuseops.ReleaseDirHandleOp{Handle: openOp.Handle}))
}

func TestRenameMovesEntry(t *testing.T) {
	_, fuseFS := newTestFS(t)
	ctx := context.Background()

	createOp := &fuseops.CreateFileOp{Parent: fuseops.RootInodeID, Name: "old.txt", Mode: 0644}
	require.NoError(t, fuseFS.CreateFile(ctx, createOp))

	renameOp := &fuseops.RenameOp{
		OldParent: fuseops.RootInodeID,
		OldName:   "old.txt",
		NewParent: fuseops.RootInodeID,
		NewName:   "new.txt",
	}
	require.NoError(t, fuseFS.Rename(ctx, renameOp))

	assert.Error(t, fuseFS.LookUpInode(ctx, &fuseops.LookUpInodeOp{Parent: fuseops.RootInodeID, Name: "old.txt"}))
	require.NoError(t, fuseFS.LookUpInode(ctx, &fuseops.LookUpInodeOp{Parent: fuseops.RootInodeID, Name: "new.txt"}))
}

func TestSetInodeAttributesChmod(t *testing.T) {
	_, fuseFS := newTestFS(t)
	ctx := context.Background()

	createOp := &fuseops.CreateFileOp{Parent: fuseops.RootInodeID, Name: "perm.txt", Mode: 0644}
	require.NoError(t, fuseFS.CreateFile(ctx, createOp))

	newMode := os.FileMode(0600)
	require.NoError(t, fuseFS.SetInodeAttributes(ctx, &fuseops.SetInodeAttributesOp{
		Inode: createOp.Entry.Child,
		Mode:  &newMode,
	}))

	attrOp := &fuseops.GetInodeAttributesOp{Inode: createOp.Entry.Child}
	require.NoError(t, fuseFS.GetInodeAttributes(ctx, attrOp))
	assert.Equal(t, newMode.Perm(), attrOp.Attributes.Mode.Perm())
}

func TestUnsupportedOpsReturnENOSYS(t *testing.T) {
	_, fuseFS := newTestFS(t)
	ctx := context.Background()

	assert.ErrorIs(t, fuseFS.MkNode(ctx, &fuseops.MkNodeOp{Parent: fuseops.RootInodeID, Name: "dev", Mode: 0}), syscall.ENOSYS)
	assert.ErrorIs(t, fuseFS.CreateLink(ctx, &fuseops.CreateLinkOp{Parent: fuseops.RootInodeID, Name: "hardlink"}), syscall.ENOSYS)
	assert.ErrorIs(t, fuseFS.GetXattr(ctx, &fuseops.GetXattrOp{Inode: fuseops.RootInodeID}), syscall.ENOSYS)
}
