// Package imfsfuse exposes an imfs.FS to the host kernel's real
// filesystem layer through jacobsa/fuse, translating fuseops.*Op
// requests into the corresponding inode-addressed imfs operations. This
// mirrors the teacher's own fs.fileSystem (legacy fs/fs.go), which plays
// exactly this translating role between jacobsa/fuse and GCS object
// metadata; here the backing store is imfs.FS instead of a gcs.Bucket.
package imfsfuse

import (
	"context"
	"io"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"

	"github.com/lind-project/lind-wasm-sub000/imfs"
	"github.com/lind-project/lind-wasm-sub000/imfs/errno"
	"github.com/lind-project/lind-wasm-sub000/internal/logger"
)

// FS adapts one imfs.FS, addressed under a single fixed cage id, to
// jacobsa/fuse's fuseutil.FileSystem interface. FUSE inode IDs are
// imfs.NodeIndex shifted by one (fuseops.RootInodeID == 1, imfs's root
// node index is 0).
type FS struct {
	fs   *imfs.FS
	cage imfs.CageID

	mu      sync.Mutex
	dirHandles map[fuseops.HandleID]*imfs.DirStream
	nextDirH   fuseops.HandleID
}

var _ fuseutil.FileSystem = (*FS)(nil)

// New wraps fs for FUSE mounting. Every request this FS serves is issued
// against cage, so a single imfsfuse.FS exposes exactly one cage's view
// of the filesystem to the host kernel.
func New(fs *imfs.FS, cage imfs.CageID) *FS {
	return &FS{fs: fs, cage: cage, dirHandles: make(map[fuseops.HandleID]*imfs.DirStream), nextDirH: 1}
}

func toInode(idx imfs.NodeIndex) fuseops.InodeID   { return fuseops.InodeID(idx) + 1 }
func toIndex(id fuseops.InodeID) imfs.NodeIndex    { return imfs.NodeIndex(id) - 1 }

// errnoToFuse translates this core's errno sentinels into the syscall
// errno values jacobsa/fuse expects returned from FileSystem methods.
func errnoToFuse(err error) error {
	if err == nil {
		return nil
	}
	e, ok := err.(errno.Errno)
	if !ok {
		logger.Errorf("imfsfuse: unrecognized error: %v", err)
		return syscall.EIO
	}
	return syscall.Errno(e.Value())
}

func attrFromStat(st imfs.Stat) fuseops.InodeAttributes {
	return fuseops.InodeAttributes{
		Size:   uint64(st.Size),
		Nlink:  1,
		Mode:   os.FileMode(st.Mode),
		Atime:  time.Unix(0, st.Atime),
		Mtime:  time.Unix(0, st.Mtime),
		Ctime:  time.Unix(0, st.Ctime),
		Crtime: time.Unix(0, st.Btime),
		Uid:    st.Uid,
		Gid:    st.Gid,
	}
}

func (f *FS) StatFS(ctx context.Context, op *fuseops.StatFSOp) error {
	return nil
}

func (f *FS) LookUpInode(ctx context.Context, op *fuseops.LookUpInodeOp) error {
	child, err := f.fs.LookupChild(toIndex(op.Parent), op.Name)
	if err != nil {
		return errnoToFuse(err)
	}
	st, err := f.fs.StatNode(child)
	if err != nil {
		return errnoToFuse(err)
	}
	op.Entry = fuseops.ChildInodeEntry{
		Child:      toInode(child),
		Attributes: attrFromStat(st),
	}
	return nil
}

func (f *FS) GetInodeAttributes(ctx context.Context, op *fuseops.GetInodeAttributesOp) error {
	st, err := f.fs.StatNode(toIndex(op.Inode))
	if err != nil {
		return errnoToFuse(err)
	}
	op.Attributes = attrFromStat(st)
	return nil
}

// SetInodeAttributes only supports chmod; this core has no mutable
// timestamps or truncate-by-inode primitive at the imfs layer, matching
// the narrow chmod/fchmod surface imfs/file.go exposes.
func (f *FS) SetInodeAttributes(ctx context.Context, op *fuseops.SetInodeAttributesOp) error {
	if op.Mode != nil {
		path, err := f.fs.PathOf(toIndex(op.Inode))
		if err != nil {
			return errnoToFuse(err)
		}
		if err := f.fs.Chmod(f.cage, path, uint32(*op.Mode)); err != nil {
			return errnoToFuse(err)
		}
	}
	st, err := f.fs.StatNode(toIndex(op.Inode))
	if err != nil {
		return errnoToFuse(err)
	}
	op.Attributes = attrFromStat(st)
	return nil
}

func (f *FS) ForgetInode(ctx context.Context, op *fuseops.ForgetInodeOp) error {
	return nil
}

func (f *FS) MkDir(ctx context.Context, op *fuseops.MkDirOp) error {
	path, err := f.childPath(op.Parent, op.Name)
	if err != nil {
		return errnoToFuse(err)
	}
	if err := f.fs.Mkdir(f.cage, path, uint32(op.Mode)); err != nil {
		return errnoToFuse(err)
	}
	child, err := f.fs.LookupChild(toIndex(op.Parent), op.Name)
	if err != nil {
		return errnoToFuse(err)
	}
	st, err := f.fs.StatNode(child)
	if err != nil {
		return errnoToFuse(err)
	}
	op.Entry = fuseops.ChildInodeEntry{Child: toInode(child), Attributes: attrFromStat(st)}
	return nil
}

func (f *FS) MkNode(ctx context.Context, op *fuseops.MkNodeOp) error {
	return syscall.ENOSYS // imfs_mknod is EOPNOTSUPP in the original core
}

func (f *FS) CreateFile(ctx context.Context, op *fuseops.CreateFileOp) error {
	path, err := f.childPath(op.Parent, op.Name)
	if err != nil {
		return errnoToFuse(err)
	}
	fd, err := f.fs.Open(f.cage, path, imfs.OCreat|imfs.OWrOnly, uint32(op.Mode))
	if err != nil {
		return errnoToFuse(err)
	}
	defer f.fs.Close(f.cage, fd)

	child, err := f.fs.LookupChild(toIndex(op.Parent), op.Name)
	if err != nil {
		return errnoToFuse(err)
	}
	st, err := f.fs.StatNode(child)
	if err != nil {
		return errnoToFuse(err)
	}
	op.Entry = fuseops.ChildInodeEntry{Child: toInode(child), Attributes: attrFromStat(st)}
	return nil
}

func (f *FS) CreateLink(ctx context.Context, op *fuseops.CreateLinkOp) error {
	return syscall.ENOSYS
}

func (f *FS) CreateSymlink(ctx context.Context, op *fuseops.CreateSymlinkOp) error {
	path, err := f.childPath(op.Parent, op.Name)
	if err != nil {
		return errnoToFuse(err)
	}
	if err := f.fs.Symlink(f.cage, op.Target, path); err != nil {
		return errnoToFuse(err)
	}
	child, err := f.fs.LookupChild(toIndex(op.Parent), op.Name)
	if err != nil {
		return errnoToFuse(err)
	}
	st, err := f.fs.StatNode(child)
	if err != nil {
		return errnoToFuse(err)
	}
	op.Entry = fuseops.ChildInodeEntry{Child: toInode(child), Attributes: attrFromStat(st)}
	return nil
}

func (f *FS) Rename(ctx context.Context, op *fuseops.RenameOp) error {
	oldPath, err := f.childPath(op.OldParent, op.OldName)
	if err != nil {
		return errnoToFuse(err)
	}
	newPath, err := f.childPath(op.NewParent, op.NewName)
	if err != nil {
		return errnoToFuse(err)
	}
	return errnoToFuse(f.fs.Rename(f.cage, oldPath, newPath))
}

func (f *FS) RmDir(ctx context.Context, op *fuseops.RmDirOp) error {
	path, err := f.childPath(op.Parent, op.Name)
	if err != nil {
		return errnoToFuse(err)
	}
	return errnoToFuse(f.fs.Rmdir(f.cage, path))
}

func (f *FS) Unlink(ctx context.Context, op *fuseops.UnlinkOp) error {
	path, err := f.childPath(op.Parent, op.Name)
	if err != nil {
		return errnoToFuse(err)
	}
	return errnoToFuse(f.fs.Unlink(f.cage, path))
}

func (f *FS) OpenDir(ctx context.Context, op *fuseops.OpenDirOp) error {
	path, err := f.pathOf(op.Inode)
	if err != nil {
		return errnoToFuse(err)
	}
	ds, err := f.fs.OpenDir(f.cage, path)
	if err != nil {
		return errnoToFuse(err)
	}

	f.mu.Lock()
	h := f.nextDirH
	f.nextDirH++
	f.dirHandles[h] = ds
	f.mu.Unlock()

	op.Handle = h
	return nil
}

func (f *FS) ReadDir(ctx context.Context, op *fuseops.ReadDirOp) error {
	f.mu.Lock()
	ds, ok := f.dirHandles[op.Handle]
	f.mu.Unlock()
	if !ok {
		return syscall.EBADF
	}

	n := 0
	for {
		ent, err := ds.ReadDir()
		if err != nil {
			return errnoToFuse(err)
		}
		if ent == nil {
			break
		}
		written := fuseutil.WriteDirent(op.Dst[n:], fuseops.Dirent{
			Offset: fuseops.DirOffset(n + 1),
			Inode:  toInode(ent.Inode),
			Name:   ent.Name,
			Type:   direntType(ent.Kind),
		})
		if written == 0 {
			break
		}
		n += written
	}
	op.BytesRead = n
	return nil
}

func (f *FS) ReleaseDirHandle(ctx context.Context, op *fuseops.ReleaseDirHandleOp) error {
	f.mu.Lock()
	ds, ok := f.dirHandles[op.Handle]
	delete(f.dirHandles, op.Handle)
	f.mu.Unlock()
	if ok {
		f.fs.CloseDir(f.cage, ds)
	}
	return nil
}

func (f *FS) OpenFile(ctx context.Context, op *fuseops.OpenFileOp) error {
	return nil // lazily opened per-request below; this core has no O_* flags on the FUSE open path
}

func (f *FS) ReadFile(ctx context.Context, op *fuseops.ReadFileOp) error {
	path, err := f.pathOf(op.Inode)
	if err != nil {
		return errnoToFuse(err)
	}
	fd, err := f.fs.Open(f.cage, path, imfs.ORdOnly, 0)
	if err != nil {
		return errnoToFuse(err)
	}
	defer f.fs.Close(f.cage, fd)

	n, err := f.fs.PRead(f.cage, fd, op.Dst, op.Offset)
	op.BytesRead = n
	if err != nil {
		return errnoToFuse(err)
	}
	if n == 0 {
		return io.EOF
	}
	return nil
}

func (f *FS) WriteFile(ctx context.Context, op *fuseops.WriteFileOp) error {
	path, err := f.pathOf(op.Inode)
	if err != nil {
		return errnoToFuse(err)
	}
	fd, err := f.fs.Open(f.cage, path, imfs.OWrOnly, 0)
	if err != nil {
		return errnoToFuse(err)
	}
	defer f.fs.Close(f.cage, fd)

	_, err = f.fs.PWrite(f.cage, fd, op.Data, op.Offset)
	return errnoToFuse(err)
}

func (f *FS) SyncFile(ctx context.Context, op *fuseops.SyncFileOp) error  { return nil }
func (f *FS) FlushFile(ctx context.Context, op *fuseops.FlushFileOp) error { return nil }

func (f *FS) ReleaseFileHandle(ctx context.Context, op *fuseops.ReleaseFileHandleOp) error {
	return nil
}

func (f *FS) ReadSymlink(ctx context.Context, op *fuseops.ReadSymlinkOp) error {
	target, err := f.fs.ReadLinkNode(toIndex(op.Inode))
	if err != nil {
		return errnoToFuse(err)
	}
	op.Target = target
	return nil
}

func (f *FS) RemoveXattr(ctx context.Context, op *fuseops.RemoveXattrOp) error { return syscall.ENOSYS }
func (f *FS) GetXattr(ctx context.Context, op *fuseops.GetXattrOp) error      { return syscall.ENOSYS }
func (f *FS) ListXattr(ctx context.Context, op *fuseops.ListXattrOp) error    { return syscall.ENOSYS }
func (f *FS) SetXattr(ctx context.Context, op *fuseops.SetXattrOp) error      { return syscall.ENOSYS }
func (f *FS) Fallocate(ctx context.Context, op *fuseops.FallocateOp) error    { return syscall.ENOSYS }

func (f *FS) Destroy() {}

func direntType(kind imfs.NodeKind) fuseutil.DirentType {
	switch kind {
	case imfs.KindDirectory:
		return fuseutil.DT_Directory
	case imfs.KindSymlink:
		return fuseutil.DT_Link
	default:
		return fuseutil.DT_File
	}
}

func (f *FS) pathOf(id fuseops.InodeID) (string, error) {
	return f.fs.PathOf(toIndex(id))
}

func (f *FS) childPath(parent fuseops.InodeID, name string) (string, error) {
	parentPath, err := f.pathOf(parent)
	if err != nil {
		return "", err
	}
	if parentPath == "/" {
		return "/" + name, nil
	}
	return parentPath + "/" + name, nil
}

// Mount mounts fs at mountPoint using jacobsa/fuse, blocking until
// unmounted. Grounded on the teacher's cmd/mount.go driving fuse.Mount
// over an fs.fileSystem.
func Mount(ctx context.Context, mountPoint string, fs *FS) error {
	server := fuseutil.NewFileSystemServer(fs)
	mfs, err := fuse.Mount(mountPoint, server, &fuse.MountConfig{
		ReadOnly: false,
	})
	if err != nil {
		return err
	}
	return mfs.Join(ctx)
}
