package grate

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/lind-project/lind-wasm-sub000/internal/logger"
	"github.com/lind-project/lind-wasm-sub000/threei"
)

// defaultMaxConcurrentDispatch bounds how many of a Runtime's handler
// calls may run at once. spec.md §5 allows multiple threads within a
// cage to call concurrently; this caps how many of those calls this
// grate services in parallel rather than letting an unbounded number
// of goroutines pile up against imfs.FS's single mutex at once.
const defaultMaxConcurrentDispatch = 64

// Runtime is one grate process's dispatcher: it owns the local handler
// registry that register_handler's fnPtr values resolve against, and
// satisfies threei.Dispatcher so a Threei instance can route calls into
// it. One Runtime per grate, matching spec.md §4.9 step 1's "the
// grate's main ... populates the global node and fd tables" — each
// grate runs its own Runtime and its own imfs.FS.
type Runtime struct {
	CageID   uint64
	Handlers *Registry

	sem *semaphore.Weighted
}

func NewRuntime(cageID uint64) *Runtime {
	return &Runtime{
		CageID:   cageID,
		Handlers: NewRegistry(),
		sem:      semaphore.NewWeighted(defaultMaxConcurrentDispatch),
	}
}

// Dispatch implements spec.md §4.8's dispatcher entry point: interpret
// fnPtr as a handler, and tail-call it with the requester's cage id and
// arguments. A zero fnPtr (the registry's reserved "null" handle) is
// rejected with -1, matching "a null pointer must be rejected with -1."
func (rt *Runtime) Dispatch(grateCage uint64, fnPtr uint64, cageID uint64, args [6]threei.CallArg) int64 {
	if fnPtr == 0 {
		return -1
	}
	if grateCage != rt.CageID {
		logger.Warnf("grate: dispatch routed to wrong runtime: want cage=%d got cage=%d", rt.CageID, grateCage)
		return -1
	}

	fn, ok := rt.Handlers.lookup(fnPtr)
	if !ok {
		logger.Warnf("grate: dispatch: no handler registered for fnPtr=%d", fnPtr)
		return -1
	}

	if err := rt.sem.Acquire(context.Background(), 1); err != nil {
		logger.Warnf("grate: dispatch: acquire concurrency slot: %v", err)
		return -1
	}
	defer rt.sem.Release(1)

	return fn(cageID, args)
}
