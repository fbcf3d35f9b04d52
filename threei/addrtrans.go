// Package threei implements the guest-host ABI boundary described by
// spec.md §§4.6-4.8: address translation between a cage's 32-bit guest
// pointers and the host's flat address space, and the three 3i call
// primitives (make_threei_call, register_handler,
// copy_data_between_cages) layered on top of it.
package threei

import (
	"sync"

	"github.com/lind-project/lind-wasm-sub000/imfs/errno"
	"github.com/lind-project/lind-wasm-sub000/threei/addrspace"
)

// Translator caches each cage's host base address (B_c) on first use,
// mirroring spec.md §4.6: "the address translator caches B_c and the
// cage id on first use."
type Translator struct {
	spaces *addrspace.Registry

	mu     sync.Mutex
	bases  map[uint64]uint64
}

func NewTranslator(spaces *addrspace.Registry) *Translator {
	return &Translator{spaces: spaces, bases: make(map[uint64]uint64)}
}

// Base returns (and caches) cage's host base address B_c.
func (t *Translator) Base(cage uint64) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if b, ok := t.bases[cage]; ok {
		return b
	}
	b := t.spaces.Get(cage).BaseAddr()
	t.bases[cage] = b
	return b
}

// Translate converts a guest pointer p belonging to cage into its
// host-absolute form. A guest NULL (p == 0) translates to host 0,
// exactly as spec.md §4.6 requires, rather than Base(cage)+0 — so
// callers must treat a translated 0 as "no address" and never
// dereference it.
func (t *Translator) Translate(cage uint64, p uint32) uint64 {
	if p == 0 {
		return 0
	}
	return t.Base(cage) + uint64(p)
}

// CheckFutexAlignment enforces spec.md §4.6's 8-byte alignment
// requirement for futex words before the host call is made.
func CheckFutexAlignment(hostAddr uint64) error {
	if hostAddr%8 != 0 {
		return errno.EINVAL
	}
	return nil
}
