//go:build !linux

// On non-Linux hosts jacobsa/fuse has no backing kernel driver, so this
// front end falls back to bazil.org/fuse, the library rclone and
// perkeep both reach for on Darwin/BSD mounts.
package imfsfuse

import (
	"context"
	"os"
	"time"

	"bazil.org/fuse"
	bazilfs "bazil.org/fuse/fs"

	"github.com/lind-project/lind-wasm-sub000/imfs"
)

// BazilFS is the bazil.org/fuse analogue of FS: one imfs.FS, one cage.
type BazilFS struct {
	fs   *imfs.FS
	cage imfs.CageID
}

func NewBazil(fs *imfs.FS, cage imfs.CageID) *BazilFS {
	return &BazilFS{fs: fs, cage: cage}
}

func (b *BazilFS) Root() (bazilfs.Node, error) {
	return &bazilNode{b: b, idx: b.fs.Root()}, nil
}

// MountBazil mounts fs at mountPoint and serves it until ctx is
// canceled, matching perkeep's fuse.Mount + fs.Serve pairing.
func MountBazil(ctx context.Context, mountPoint string, b *BazilFS) error {
	c, err := fuse.Mount(mountPoint, fuse.FSName("imfs"), fuse.Subtype("imfsfuse"))
	if err != nil {
		return err
	}
	defer c.Close()

	errCh := make(chan error, 1)
	go func() { errCh <- bazilfs.Serve(c, b) }()

	select {
	case <-ctx.Done():
		return fuse.Unmount(mountPoint)
	case err := <-errCh:
		return err
	}
}

type bazilNode struct {
	b   *BazilFS
	idx imfs.NodeIndex
}

var _ bazilfs.Node = (*bazilNode)(nil)
var _ bazilfs.NodeStringLookuper = (*bazilNode)(nil)
var _ bazilfs.HandleReadDirAller = (*bazilNode)(nil)
var _ bazilfs.HandleReadAller = (*bazilNode)(nil)

func (n *bazilNode) Attr(ctx context.Context, a *fuse.Attr) error {
	st, err := n.b.fs.StatNode(n.idx)
	if err != nil {
		return fuse.ENOENT
	}
	a.Inode = st.Ino
	a.Mode = os.FileMode(st.Mode)
	a.Size = uint64(st.Size)
	a.Mtime = time.Unix(0, st.Mtime)
	a.Ctime = time.Unix(0, st.Ctime)
	a.Atime = time.Unix(0, st.Atime)
	return nil
}

func (n *bazilNode) Lookup(ctx context.Context, name string) (bazilfs.Node, error) {
	child, err := n.b.fs.LookupChild(n.idx, name)
	if err != nil {
		return nil, fuse.ENOENT
	}
	return &bazilNode{b: n.b, idx: child}, nil
}

func (n *bazilNode) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	entries, err := n.b.fs.Children(n.idx)
	if err != nil {
		return nil, fuse.EIO
	}
	out := make([]fuse.Dirent, 0, len(entries))
	for _, e := range entries {
		typ := fuse.DT_File
		if e.Kind == imfs.KindDirectory {
			typ = fuse.DT_Dir
		}
		out = append(out, fuse.Dirent{Inode: uint64(e.Inode), Name: e.Name, Type: typ})
	}
	return out, nil
}

func (n *bazilNode) ReadAll(ctx context.Context) ([]byte, error) {
	path, err := n.b.fs.PathOf(n.idx)
	if err != nil {
		return nil, fuse.EIO
	}
	fd, err := n.b.fs.Open(n.b.cage, path, imfs.ORdOnly, 0)
	if err != nil {
		return nil, fuse.ENOENT
	}
	defer n.b.fs.Close(n.b.cage, fd)

	var out []byte
	buf := make([]byte, imfs.ChunkSize)
	for {
		nread, err := n.b.fs.Read(n.b.cage, fd, buf)
		if nread > 0 {
			out = append(out, buf[:nread]...)
		}
		if nread == 0 || err != nil {
			break
		}
	}
	return out, nil
}
