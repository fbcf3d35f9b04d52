package imfs

import (
	"strings"

	"github.com/lind-project/lind-wasm-sub000/imfs/errno"
)

// splitPath breaks path into its '/'-separated components, dropping empty
// components produced by a leading slash or repeated slashes.
func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// resolveStart picks the node a relative path resolution begins from,
// implementing the dirFd / AT_FDCWD rule from spec.md §4.1.
func (fs *FS) resolveStart(cage CageID, dirFd FDIndex) (NodeIndex, error) {
	if dirFd == AtFDCwd {
		return 0, nil
	}
	table, err := fs.fdTableFor(cage)
	if err != nil {
		return 0, err
	}
	_, fd, err := table.resolve(dirFd)
	if err != nil {
		return 0, err
	}
	return fd.nodeIndex, nil
}

// resolveBase picks the node a path's resolution begins from: root for an
// absolute path, resolveStart's dirFd/AT_FDCWD node otherwise.
func (fs *FS) resolveBase(cage CageID, dirFd FDIndex, path string) (NodeIndex, error) {
	if path != "" && path[0] == '/' {
		return 0, nil
	}
	return fs.resolveStart(cage, dirFd)
}

// walk resolves components one at a time starting from start, following
// one-level symlinks exactly as resolve's former inline loop did.
func (fs *FS) walk(start NodeIndex, components []string) (NodeIndex, error) {
	cur := start
	for _, name := range components {
		if len(name) > MaxNodeName {
			return 0, errno.ENAMETOOLONG
		}

		dir, err := fs.nodes.get(cur)
		if err != nil {
			return 0, err
		}
		if dir.kind != KindDirectory {
			return 0, errno.ENOTDIR
		}

		child, ok := lookupChild(dir, name)
		if !ok {
			return 0, errno.ENOENT
		}

		target, err := fs.nodes.get(child)
		if err != nil {
			return 0, err
		}
		if target.kind == KindSymlink {
			target, err = fs.nodes.get(target.target)
			if err != nil {
				return 0, err
			}
			cur = target.index
			continue
		}
		cur = child
	}

	return cur, nil
}

// resolve implements spec.md §4.1's resolve(cage, dir_fd, path) -> NodeIndex.
func (fs *FS) resolve(cage CageID, dirFd FDIndex, path string) (NodeIndex, error) {
	if path == "" {
		return 0, errno.ENOENT
	}
	start, err := fs.resolveBase(cage, dirFd, path)
	if err != nil {
		return 0, err
	}
	return fs.walk(start, splitPath(path))
}

// resolveParent returns the parent directory of path's last component
// together with that component's name, for creation calls. The parent
// is walked from the same dirFd/AT_FDCWD base resolve would use, rather
// than re-resolved as an absolute path, so a multi-component relative
// path under a non-AT_FDCWD dirFd still resolves intermediate
// directories from dirFd instead of root.
func (fs *FS) resolveParent(cage CageID, dirFd FDIndex, path string) (NodeIndex, string, error) {
	components := splitPath(path)
	if len(components) == 0 {
		return 0, "", errno.ENOENT
	}
	last := components[len(components)-1]

	start, err := fs.resolveBase(cage, dirFd, path)
	if err != nil {
		return 0, "", err
	}

	parent, err := fs.walk(start, components[:len(components)-1])
	if err != nil {
		return 0, "", err
	}
	dir, err := fs.nodes.get(parent)
	if err != nil {
		return 0, "", err
	}
	if dir.kind != KindDirectory {
		return 0, "", errno.ENOTDIR
	}
	return parent, last, nil
}

func lookupChild(dir *Node, name string) (NodeIndex, bool) {
	for _, e := range dir.children {
		if e.name == name {
			return e.child, true
		}
	}
	return 0, false
}
