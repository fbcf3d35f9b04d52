package imfs

import (
	"io"
	"os"
	"path/filepath"

	"github.com/lind-project/lind-wasm-sub000/internal/logger"
)

// PreloadFile copies one host file into the filesystem at destPath,
// creating any missing parent directories along the way. Grounded in
// open_grate.c's load_file: walk destPath's components creating
// directories, open/create the destination node, then copy the host
// file's full contents in ChunkSize-sized reads.
func (fs *FS) PreloadFile(cage CageID, hostPath, destPath string) error {
	if err := fs.ensureParents(cage, destPath); err != nil {
		return err
	}

	src, err := os.Open(hostPath)
	if err != nil {
		return err
	}
	defer src.Close()

	fd, err := fs.Open(cage, destPath, OCreat|OWrOnly|OTrunc, 0o777)
	if err != nil {
		return err
	}
	defer fs.Close(cage, fd)

	buf := make([]byte, ChunkSize)
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := fs.Write(cage, fd, buf[:n]); werr != nil {
				return werr
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return rerr
		}
	}

	logger.Debugf("imfs: preloaded host=%s -> %s cage=%d", hostPath, destPath, cage)
	return nil
}

// PreloadDir recursively mirrors a host directory tree into the
// filesystem rooted at destPath, matching open_grate.c's load_folder:
// every host subdirectory becomes an IMFS directory, every regular file
// is copied with PreloadFile, and anything else (sockets, devices,
// symlinks) is skipped with a warning rather than failing the whole
// walk.
func (fs *FS) PreloadDir(cage CageID, hostPath, destPath string) error {
	if err := fs.ensureParents(cage, destPath+"/."); err != nil {
		return err
	}
	if err := fs.mkdirIfMissing(cage, destPath); err != nil {
		return err
	}

	entries, err := os.ReadDir(hostPath)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		hostChild := filepath.Join(hostPath, entry.Name())
		destChild := destPath + "/" + entry.Name()

		info, err := entry.Info()
		if err != nil {
			logger.Warnf("imfs: preload stat failed host=%s: %v", hostChild, err)
			continue
		}

		switch {
		case info.IsDir():
			if err := fs.PreloadDir(cage, hostChild, destChild); err != nil {
				return err
			}
		case info.Mode().IsRegular():
			if err := fs.PreloadFile(cage, hostChild, destChild); err != nil {
				return err
			}
		default:
			logger.Warnf("imfs: preload skipping non-regular host=%s", hostChild)
		}
	}
	return nil
}

// DumpFile writes one filesystem file's full contents out to a host
// path, creating host parent directories as needed and appending to
// (or creating) the destination. Grounded in open_grate.c's dump_file,
// used at cage teardown to persist a grate's working-directory output.
func (fs *FS) DumpFile(cage CageID, srcPath, hostPath string) error {
	if err := os.MkdirAll(filepath.Dir(hostPath), 0o755); err != nil {
		return err
	}

	dst, err := os.OpenFile(hostPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o777)
	if err != nil {
		return err
	}
	defer dst.Close()

	fd, err := fs.Open(cage, srcPath, ORdOnly, 0)
	if err != nil {
		return err
	}
	defer fs.Close(cage, fd)

	buf := make([]byte, ChunkSize)
	for {
		n, err := fs.Read(cage, fd, buf)
		if n <= 0 || err != nil {
			break
		}
		if _, err := dst.Write(buf[:n]); err != nil {
			return err
		}
	}

	logger.Debugf("imfs: dumped %s -> host=%s cage=%d", srcPath, hostPath, cage)
	return nil
}

// ensureParents mkdir -p's every component of path except the last,
// mirroring load_file's split_path loop. Mkdir already succeeds on an
// existing directory; any other mkdir error is swallowed, matching the
// original's ignore-mkdir-errno behavior.
func (fs *FS) ensureParents(cage CageID, path string) error {
	components := splitPath(path)
	if len(components) <= 1 {
		return nil
	}
	cur := ""
	for _, c := range components[:len(components)-1] {
		cur += "/" + c
		fs.mkdirIfMissing(cage, cur)
	}
	return nil
}

func (fs *FS) mkdirIfMissing(cage CageID, path string) error {
	// Ignore the error unconditionally (EEXIST when a non-directory holds
	// the name; an existing directory is not an error), mirroring the
	// original's ignore-and-continue behavior on mkdir failure.
	fs.Mkdir(cage, path, 0o755)
	return nil
}
