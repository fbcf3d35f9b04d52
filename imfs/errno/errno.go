// Package errno defines the POSIX error kinds the IMFS core reports through
// its operations. Callers at the syscall-dispatch boundary translate these
// into a negative errno value; everywhere else they are ordinary Go errors.
package errno

import "errors"

// Errno is a POSIX error kind. It implements error so it can be returned
// and compared directly with errors.Is.
type Errno int

func (e Errno) Error() string {
	if s, ok := names[e]; ok {
		return s
	}
	return "unknown errno"
}

// Is allows errors.Is(err, errno.ENOENT) to work even when err wraps this
// value (e.g. via fmt.Errorf("%w", ...)).
func (e Errno) Is(target error) bool {
	var other Errno
	if errors.As(target, &other) {
		return e == other
	}
	return false
}

const (
	ENOENT Errno = iota + 1
	ENOTDIR
	EISDIR
	EEXIST
	ENAMETOOLONG
	EACCES
	EBADF
	EINVAL
	EMFILE
	ENOMEM
	EBUSY
	ENOSYS
	EOPNOTSUPP
	ETIMEDOUT
	EAGAIN
	EINTR
	EOVERFLOW
	EPIPE
	ENOTCONN
	ECONNREFUSED
	EADDRINUSE
	EFAULT
)

var names = map[Errno]string{
	ENOENT:       "ENOENT",
	ENOTDIR:      "ENOTDIR",
	EISDIR:       "EISDIR",
	EEXIST:       "EEXIST",
	ENAMETOOLONG: "ENAMETOOLONG",
	EACCES:       "EACCES",
	EBADF:        "EBADF",
	EINVAL:       "EINVAL",
	EMFILE:       "EMFILE",
	ENOMEM:       "ENOMEM",
	EBUSY:        "EBUSY",
	ENOSYS:       "ENOSYS",
	EOPNOTSUPP:   "EOPNOTSUPP",
	ETIMEDOUT:    "ETIMEDOUT",
	EAGAIN:       "EAGAIN",
	EINTR:        "EINTR",
	EOVERFLOW:    "EOVERFLOW",
	EPIPE:        "EPIPE",
	ENOTCONN:     "ENOTCONN",
	ECONNREFUSED: "ECONNREFUSED",
	EADDRINUSE:   "EADDRINUSE",
	EFAULT:       "EFAULT",
}

// Value returns the platform errno integer value for use at the syscall
// dispatch boundary. Numbering follows Linux x86-64, matching the
// syscall-number table the rest of the core uses.
func (e Errno) Value() int {
	if v, ok := values[e]; ok {
		return v
	}
	return values[EINVAL]
}

var values = map[Errno]int{
	ENOENT:       2,
	ENOTDIR:      20,
	EISDIR:       21,
	EEXIST:       17,
	ENAMETOOLONG: 36,
	EACCES:       13,
	EBADF:        9,
	EINVAL:       22,
	EMFILE:       24,
	ENOMEM:       12,
	EBUSY:        16,
	ENOSYS:       38,
	EOPNOTSUPP:   95,
	ETIMEDOUT:    110,
	EAGAIN:       11,
	EINTR:        4,
	EOVERFLOW:    75,
	EPIPE:        32,
	ENOTCONN:     107,
	ECONNREFUSED: 111,
	EADDRINUSE:   98,
	EFAULT:       14,
}
