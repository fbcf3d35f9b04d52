// Package imfs is a fully in-memory POSIX-like filesystem shared by every
// cage in the sandbox. It is the Go-native reimplementation of the
// lind_syscall/imfs.c core: a bounded node pool, per-cage file-descriptor
// tables, and a handful of file operations with POSIX semantics.
//
// The package follows the teacher's arena-of-handles style (see
// fs/inode in this repository's history): nodes are never referenced by
// pointer outside of the node store itself, only by NodeIndex, so the
// store is free to move, reuse, or bounds-check slots.
package imfs

import "time"

// NodeIndex is a stable handle into the node pool. It doubles as the
// inode number reported through stat.
type NodeIndex int32

// FDIndex is a stable handle into a single cage's file-descriptor table.
type FDIndex int32

// CageID identifies one guest process (cage) within the sandbox.
type CageID uint64

// NodeKind tags which of Node's kind-specific fields are valid.
type NodeKind uint8

const (
	// KindFree marks an unused node-pool slot.
	KindFree NodeKind = iota
	KindRegular
	KindDirectory
	KindSymlink
	KindPipe
)

// Size limits mirror MAX_NODE_NAME / MAX_NODE_SIZE / MAX_FDS / MAX_NODES /
// MAX_DEPTH from imfs.h. They are defaults; a Config may override the pool
// sizes when New is called.
const (
	MaxNodeName = 64 // bytes, excluding the null terminator
	ChunkSize   = 1024
	MaxDepth    = 10
	PipeBufSize = 1024

	DefaultMaxNodes = 1024
	DefaultMaxFDs   = 1024

	// FirstUserFD is the first fd handed out to a cage; 0/1/2 are reserved
	// for stdin/stdout/stderr, which this core does not model directly but
	// leaves room for.
	FirstUserFD = 3
)

// chunk is one 1 KiB block of a regular file's byte stream.
type chunk struct {
	data [ChunkSize]byte
	used int
	next *chunk
}

// dirEnt is one (name, child) pair in a directory's inline child array.
type dirEnt struct {
	name  string
	child NodeIndex
}

// pipeState is the kind-specific payload for KindPipe.
type pipeState struct {
	buf      [PipeBufSize]byte
	writeOff int
	readFD   FDIndex
	writeFD  FDIndex
	hasRead  bool
	hasWrite bool
}

// Node represents one filesystem object: a regular file, directory,
// symlink, or pipe. See spec.md §3 for the field-level contract.
type Node struct {
	kind        NodeKind
	index       NodeIndex
	name        string
	mode        uint32
	parentIndex NodeIndex
	openCount   int
	doomed      bool

	atime, mtime, ctime, btime time.Time

	// KindRegular
	chunkHead  *chunk
	chunkTail  *chunk
	totalSize  int64

	// KindDirectory
	children []dirEnt

	// KindSymlink
	target NodeIndex

	// KindPipe
	pipe *pipeState
}

// FileDesc is one entry in a cage's file-descriptor table.
type FileDesc struct {
	live      bool
	link      FDIndex // >=0 when this slot is a dup of another slot
	hasLink   bool
	nodeIndex NodeIndex
	offset    int64
	flags     int
}
