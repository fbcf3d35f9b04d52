// Package grate implements the userland syscall-interposition runtime
// described by spec.md §§4.8-4.9: a dispatcher that routes 3i calls
// into Go handler functions, and the fork/register/exec/wait/dump
// lifecycle a grate process drives around a target cage.
package grate

import (
	"sync"
	"sync/atomic"

	"github.com/lind-project/lind-wasm-sub000/threei"
)

// HandlerFunc is the Go-native shape of the handler a grate installs for
// one syscall: spec.md §4.8's "fn(cage_id, arg1, arg1_cage, ..., arg6,
// arg6_cage) -> i64", minus the guest-pointer marshalling (handlers call
// back into Runtime for that).
type HandlerFunc func(cageID uint64, args [6]threei.CallArg) int64

// Registry maps the opaque "guest-relative function pointer" a grate
// hands to register_handler back to the actual Go closure that
// implements it. In a real lind-wasm host this pointer is resolved by
// the wasm runtime's own function table; here, where handlers are
// ordinary Go functions rather than wasm exports, it is simply an
// atomically incrementing handle assigned at registration time.
type Registry struct {
	mu       sync.RWMutex
	handlers map[uint64]HandlerFunc
	next     uint64
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[uint64]HandlerFunc), next: 1}
}

// Add installs fn and returns the handle to pass as handler_fn_ptr to
// threei.RegisterHandler. Handle 0 is never issued, so it can double as
// the "null pointer" sentinel spec.md §4.8 requires dispatch to reject.
func (r *Registry) Add(fn HandlerFunc) uint64 {
	handle := atomic.AddUint64(&r.next, 1) - 1
	r.mu.Lock()
	r.handlers[handle] = fn
	r.mu.Unlock()
	return handle
}

func (r *Registry) lookup(fnPtr uint64) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.handlers[fnPtr]
	return fn, ok
}

// Remove drops a previously registered handler.
func (r *Registry) Remove(fnPtr uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, fnPtr)
}
