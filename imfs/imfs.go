package imfs

import (
	"sync"
	"time"

	"github.com/lind-project/lind-wasm-sub000/imfs/errno"
	"github.com/lind-project/lind-wasm-sub000/internal/logger"
)

// Config bounds the pools New allocates. Zero values fall back to the
// defaults from imfs.h (MAX_NODES / MAX_FDS).
type Config struct {
	MaxNodes   int
	MaxFDs     int
	MaxCages   int
	NowForTest func() time.Time // overridable for deterministic tests
}

// FS is the process-wide service object owning the node pool and every
// cage's file-descriptor table. All of its exported methods are safe for
// concurrent use by multiple cages and multiple threads within a cage, per
// spec.md §5: a single mutex serializes mutation, matching the teacher's
// own single fileSystem-lock design (gcsfuse's fs.fileSystem.mu).
type FS struct {
	mu sync.Mutex

	nodes *nodeStore
	fds   map[CageID]*fdTable

	maxFDs int
	now    func() time.Time
}

// New constructs an FS and creates the root node (pool index 0), whose
// parent is itself.
func New(cfg Config) *FS {
	if cfg.MaxNodes == 0 {
		cfg.MaxNodes = DefaultMaxNodes
	}
	if cfg.MaxFDs == 0 {
		cfg.MaxFDs = DefaultMaxFDs
	}
	now := cfg.NowForTest
	if now == nil {
		now = time.Now
	}

	fs := &FS{
		nodes:  newNodeStore(cfg.MaxNodes),
		fds:    make(map[CageID]*fdTable),
		maxFDs: cfg.MaxFDs,
		now:    now,
	}

	root, err := fs.nodes.allocate("", KindDirectory, uint32(SIfdir|0o755), fs.now)
	if err != nil {
		panic("imfs: failed to allocate root node: " + err.Error())
	}
	root.parentIndex = root.index
	attachDotEntries(root, root.index)

	return fs
}

// fdTableFor returns the cage's fd table, creating it lazily on first use
// (a cage is implicitly registered the first time it touches the fs).
func (fs *FS) fdTableFor(cage CageID) (*fdTable, error) {
	t, ok := fs.fds[cage]
	if !ok {
		t = newFDTable(fs.maxFDs)
		fs.fds[cage] = t
	}
	return t, nil
}

// CopyFDTables implements the supplemented imfs_copy_fd_tables operation
// (see SPEC_FULL.md §D): dstCage inherits a snapshot of srcCage's live
// descriptors, each bumping the shared node's open_count. This is wired
// into grate.ForkCage so a forked cage inherits its parent's IMFS
// descriptors, resolving spec.md §9 open question #7.
func (fs *FS) CopyFDTables(dstCage, srcCage CageID) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	src, err := fs.fdTableFor(srcCage)
	if err != nil {
		return err
	}
	dst, err := fs.fdTableFor(dstCage)
	if err != nil {
		return err
	}

	for i := range src.fds {
		old := &src.fds[i]
		if !old.live {
			continue
		}
		idx := FDIndex(i)
		if int(idx) >= len(dst.fds) {
			continue
		}
		dst.fds[idx] = *old
		if !old.hasLink {
			n, err := fs.nodes.get(old.nodeIndex)
			if err == nil {
				n.openCount++
			}
		}
		if idx+1 > dst.next {
			dst.next = idx + 1
		}
	}

	logger.Debugf("imfs: copied fd table cage=%d -> cage=%d", srcCage, dstCage)
	return nil
}

func attachDotEntries(dir *Node, selfIndex NodeIndex) {
	dir.children = append(dir.children,
		dirEnt{name: ".", child: selfIndex},
		dirEnt{name: "..", child: dir.parentIndex},
	)
}

// checkNodeIsDir is a small helper used by several operations.
func (fs *FS) checkNodeIsDir(idx NodeIndex) (*Node, error) {
	n, err := fs.nodes.get(idx)
	if err != nil {
		return nil, err
	}
	if n.kind != KindDirectory {
		return nil, errno.ENOTDIR
	}
	return n, nil
}
