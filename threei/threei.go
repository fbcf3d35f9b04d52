package threei

import (
	"sync"

	"github.com/lind-project/lind-wasm-sub000/imfs/errno"
	"github.com/lind-project/lind-wasm-sub000/internal/logger"
	"github.com/lind-project/lind-wasm-sub000/threei/addrspace"
)

// UnusedArg is the sentinel value filling unused argument slots in a
// 3i call, per spec.md §6.
const UnusedArg uint64 = 0xDEADBEEFDEADBEEF

// LindAbort is returned by copy_data_between_cages on a cross-cage
// access policy violation, per spec.md §4.7/§6: the sentinel 0xE0010001
// reinterpreted as a signed 32-bit return value.
const LindAbort int32 = -536805375

// CallArg is one (value, owning-cage) argument pair, matching the
// argN/argN_cage parameter pairs in make_threei_call's signature.
type CallArg struct {
	Value uint64
	Cage  uint64
}

// Call bundles one make_threei_call invocation's parameters.
type Call struct {
	SyscallNum     uint32
	SyscallName    string
	SelfCage       uint64
	TargetCage     uint64
	Args           [6]CallArg
	TranslateErrno bool
}

// HandlerEntry is what register_handler stores: which grate owns the
// interposition and the guest-relative pointer to its handler function.
type HandlerEntry struct {
	GrateCage uint64
	FnPtr     uint64
}

type handlerKey struct {
	targetCage uint64
	syscallNum uint64
}

// Dispatcher invokes a registered handler inside its owning grate,
// implementing spec.md §4.8's dispatcher contract. grate.Runtime
// satisfies this so threei never imports grate directly (grate imports
// threei, not the other way around).
type Dispatcher interface {
	Dispatch(grateCage uint64, fnPtr uint64, cageID uint64, args [6]CallArg) int64
}

// Backend answers a 3i call that has no registered grate handler,
// standing in for "the host's default backend" from spec.md §4.7.
type Backend func(call Call) (int64, error)

// Threei is the process-wide 3i call machinery: the handler registry,
// address translator, and whichever Dispatcher/Backend are wired in.
type Threei struct {
	Translator *Translator
	Spaces     *addrspace.Registry

	mu       sync.Mutex
	handlers map[handlerKey]HandlerEntry

	dispatcher Dispatcher
	backend    Backend

	lastErrno map[uint64]int32 // per-cage simulated thread-local errno
}

func New(spaces *addrspace.Registry, backend Backend) *Threei {
	return &Threei{
		Translator: NewTranslator(spaces),
		Spaces:     spaces,
		handlers:   make(map[handlerKey]HandlerEntry),
		backend:    backend,
		lastErrno:  make(map[uint64]int32),
	}
}

// SetDispatcher wires in the grate runtime responsible for invoking
// registered handlers. Left nil, any registered syscall fails closed.
func (t *Threei) SetDispatcher(d Dispatcher) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dispatcher = d
}

// RegisterHandler implements spec.md §4.7's register_handler: flag == 0
// deregisters, any other value registers/overwrites the entry for
// (targetCage, targetSyscallNum).
func (t *Threei) RegisterHandler(targetCage, targetSyscallNum uint64, flag int, grateCageID, handlerFnPtr uint64) int32 {
	key := handlerKey{targetCage: targetCage, syscallNum: targetSyscallNum}

	t.mu.Lock()
	defer t.mu.Unlock()

	if flag == 0 {
		delete(t.handlers, key)
		logger.Debugf("threei: deregistered syscall=%d target_cage=%d", targetSyscallNum, targetCage)
		return 0
	}

	t.handlers[key] = HandlerEntry{GrateCage: grateCageID, FnPtr: handlerFnPtr}
	logger.Debugf("threei: registered syscall=%d target_cage=%d -> grate_cage=%d", targetSyscallNum, targetCage, grateCageID)
	return 0
}

// MakeThreeiCall implements spec.md §4.7's make_threei_call: route to a
// registered grate handler if one exists for (call.TargetCage,
// call.SyscallNum), else fall through to the default backend. A
// negative backend/handler result with TranslateErrno set is recorded
// as the calling cage's simulated errno and reported back as -1.
func (t *Threei) MakeThreeiCall(call Call) int64 {
	t.mu.Lock()
	entry, registered := t.handlers[handlerKey{targetCage: call.TargetCage, syscallNum: uint64(call.SyscallNum)}]
	dispatcher := t.dispatcher
	t.mu.Unlock()

	var ret int64
	if registered && dispatcher != nil {
		ret = dispatcher.Dispatch(entry.GrateCage, entry.FnPtr, call.TargetCage, call.Args)
	} else {
		var err error
		ret, err = t.backend(call)
		if err != nil {
			if e, ok := err.(errno.Errno); ok {
				ret = int64(-e.Value())
			} else {
				ret = -1
			}
		}
	}

	if call.TranslateErrno && ret < 0 {
		t.setErrno(call.SelfCage, int32(-ret))
		return -1
	}
	t.clearErrno(call.SelfCage)
	return ret
}

func (t *Threei) setErrno(cage uint64, v int32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastErrno[cage] = v
}

func (t *Threei) clearErrno(cage uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.lastErrno, cage)
}

// Errno returns the simulated errno last set for cage by MakeThreeiCall,
// or 0 if the most recent call succeeded.
func (t *Threei) Errno(cage uint64) int32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErrno[cage]
}

// CopyDataBetweenCages implements spec.md §4.7's copy_data_between_cages.
// copyType 0 copies exactly length bytes; copyType 1 stops at the first
// NUL byte (a C-string copy). Returns 0 on success or LindAbort on a
// translation failure, standing in for "cross-cage access policy
// violation" since this simulation has no separate policy layer beyond
// address-space bounds checking.
func (t *Threei) CopyDataBetweenCages(currentCage, owningCage uint64, srcAddr uint64, srcCage uint64, dstAddr uint64, dstCage uint64, length int, copyType int) int32 {
	srcSpace := t.Spaces.Get(srcCage)
	dstSpace := t.Spaces.Get(dstCage)

	var data []byte
	var err error
	if copyType == 1 {
		data, err = srcSpace.ReadCString(srcAddr, length)
	} else {
		data, err = srcSpace.Read(srcAddr, length)
	}
	if err != nil {
		logger.Warnf("threei: copy_data_between_cages read failed src_cage=%d: %v", srcCage, err)
		return LindAbort
	}

	if err := dstSpace.Write(dstAddr, data); err != nil {
		logger.Warnf("threei: copy_data_between_cages write failed dst_cage=%d: %v", dstCage, err)
		return LindAbort
	}
	return 0
}
