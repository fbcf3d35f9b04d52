package imfs

import "golang.org/x/sys/unix"

// Open flags and mode bits are the host's own POSIX constants (via
// golang.org/x/sys/unix) rather than hand-rolled values, so that a caller
// translating real glibc flag words needs no further mapping.
const (
	ORdOnly   = unix.O_RDONLY
	OWrOnly   = unix.O_WRONLY
	ORdWr     = unix.O_RDWR
	OAccmode  = unix.O_ACCMODE
	OAppend   = unix.O_APPEND
	OCreat    = unix.O_CREAT
	ODirectory = unix.O_DIRECTORY
	OExcl     = unix.O_EXCL
	OTrunc    = unix.O_TRUNC

	SeekSet  = unix.SEEK_SET
	SeekCur  = unix.SEEK_CUR
	SeekEnd  = unix.SEEK_END
	SeekHole = unix.SEEK_HOLE
	SeekData = unix.SEEK_DATA

	SIfmt = unix.S_IFMT
	SIfreg = unix.S_IFREG
	SIfdir = unix.S_IFDIR
	SIflnk = unix.S_IFLNK

	// Permission bit masks used by the access checks in openat.
	permOtherRead  = 0o004
	permOtherWrite = 0o002

	// F_GETFL is the only fcntl op implemented.
	FGetFL = unix.F_GETFL
)

// AtFDCwd mirrors the libc sentinel used when a path is to be resolved
// relative to "no open directory fd" (the core has no per-cage cwd).
const AtFDCwd = unix.AT_FDCWD
