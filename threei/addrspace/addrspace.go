// Package addrspace simulates the per-cage linear memory regions that a
// real lind-wasm host projects into a single flat host address space, so
// that threei's address translation and copy_data_between_cages have
// something concrete to operate on in a test or single-process
// deployment of this runtime. It provides no futex primitives.
package addrspace

import (
	"sync"

	"github.com/lind-project/lind-wasm-sub000/imfs/errno"
)

// DefaultSize is the linear memory region handed to a cage that does not
// request a specific size.
const DefaultSize = 64 << 20 // 64 MiB, a generous default wasm heap

// Space is one cage's simulated linear memory: a single contiguous byte
// slice addressed by 32-bit guest offsets, exactly as lind-wasm exposes a
// cage's wasm linear memory to the host as one flat region.
type Space struct {
	mu   sync.Mutex
	mem  []byte
	cage uint64
}

// Registry tracks one Space per cage id, created lazily on first touch.
type Registry struct {
	mu     sync.Mutex
	spaces map[uint64]*Space
}

func NewRegistry() *Registry {
	return &Registry{spaces: make(map[uint64]*Space)}
}

// Get returns (creating if necessary) the Space for cage, sized to
// DefaultSize.
func (r *Registry) Get(cage uint64) *Space {
	r.mu.Lock()
	defer r.mu.Unlock()
	sp, ok := r.spaces[cage]
	if !ok {
		sp = &Space{mem: make([]byte, DefaultSize), cage: cage}
		r.spaces[cage] = sp
	}
	return sp
}

// Remove drops a cage's memory region, e.g. after it exits.
func (r *Registry) Remove(cage uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.spaces, cage)
}

// Read copies length bytes starting at guest offset addr into a new
// slice. addr == 0 (the translated form of a guest NULL) is always an
// error, matching a real host trapping on a null dereference.
func (s *Space) Read(addr uint64, length int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if addr == 0 {
		return nil, errno.EFAULT
	}
	if int(addr)+length > len(s.mem) || length < 0 {
		return nil, errno.EFAULT
	}
	out := make([]byte, length)
	copy(out, s.mem[addr:int(addr)+length])
	return out, nil
}

// ReadCString behaves like Read but stops at the first NUL byte or
// maxLen, whichever comes first, matching copy_data_between_cages'
// copy_type == 1 semantics.
func (s *Space) ReadCString(addr uint64, maxLen int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if addr == 0 {
		return nil, errno.EFAULT
	}
	end := int(addr) + maxLen
	if end > len(s.mem) {
		end = len(s.mem)
	}
	for i := int(addr); i < end; i++ {
		if s.mem[i] == 0 {
			out := make([]byte, i-int(addr))
			copy(out, s.mem[addr:i])
			return out, nil
		}
	}
	out := make([]byte, end-int(addr))
	copy(out, s.mem[addr:end])
	return out, nil
}

// Write copies data into the space starting at guest offset addr.
func (s *Space) Write(addr uint64, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if addr == 0 {
		return errno.EFAULT
	}
	if int(addr)+len(data) > len(s.mem) {
		return errno.EFAULT
	}
	copy(s.mem[addr:int(addr)+len(data)], data)
	return nil
}

// BaseAddr returns the simulated host-absolute base address for this
// cage's region: in-process, this is a synthetic value (the cage id
// shifted left by 40 bits), disjoint per cage and cached by callers the way a real lind-get-memory-base host
// call result would be cached (see threei.Translator).
func (s *Space) BaseAddr() uint64 {
	return uint64(uintptr(0)) + s.cage<<40 // disjoint per-cage synthetic base
}
