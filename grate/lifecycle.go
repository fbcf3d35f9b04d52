package grate

import (
	"context"
	"os/exec"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/lind-project/lind-wasm-sub000/imfs"
	"github.com/lind-project/lind-wasm-sub000/imfs/errno"
	"github.com/lind-project/lind-wasm-sub000/internal/logger"
	"github.com/lind-project/lind-wasm-sub000/internal/metrics"
	"github.com/lind-project/lind-wasm-sub000/threei"
	"github.com/lind-project/lind-wasm-sub000/threei/addrspace"
)

var syscallNames = map[uint64]string{
	SysRead:  "READ",
	SysWrite: "WRITE",
	SysOpen:  "OPEN",
	SysClose: "CLOSE",
	SysLseek: "LSEEK",
	SysFcntl: "FCNTL",
}

// Syscall numbers this grate is willing to interpose, in Linux x86-64
// numbering per spec.md §6.
const (
	SysRead  = 0
	SysWrite = 1
	SysOpen  = 2
	SysClose = 3
	SysLseek = 8
	SysFcntl = 72
)

// Config bounds one Grate's resources.
type Config struct {
	IMFS       imfs.Config
	TraceEvery time.Duration // minimum gap between dispatch trace log lines
}

// Grate is one grate process: its own IMFS instance, its own dispatcher
// Runtime, and the shared 3i call machinery it registers handlers
// against. New installs this Grate's Runtime as the Threei's only
// dispatcher, replacing any earlier one, so handlers registered by an
// earlier Grate on the same Threei are no longer reachable through it.
type Grate struct {
	CageID  uint64
	FS      *imfs.FS
	Runtime *Runtime
	Threei  *threei.Threei
	Spaces  *addrspace.Registry

	limiter *rate.Limiter
	group   *errgroup.Group
	ctx     context.Context
	fnPtrs  map[uint64]uint64
	metrics *metrics.Metrics
}

// New constructs a Grate bound to an existing 3i call bus, per spec.md
// §4.9 step 1 ("calling imfs_init() to populate the global node and fd
// tables"). m may be nil, in which case dispatch latency/error metrics
// are simply not recorded.
func New(cageID uint64, t *threei.Threei, spaces *addrspace.Registry, cfg Config, m *metrics.Metrics) *Grate {
	traceEvery := cfg.TraceEvery
	if traceEvery == 0 {
		traceEvery = 50 * time.Millisecond
	}

	rt := NewRuntime(cageID)
	g := &Grate{
		CageID:  cageID,
		FS:      imfs.New(cfg.IMFS),
		Runtime: rt,
		Threei:  t,
		Spaces:  spaces,
		limiter: rate.NewLimiter(rate.Every(traceEvery), 1),
		metrics: m,
	}
	grp, ctx := errgroup.WithContext(context.Background())
	g.group = grp
	g.ctx = ctx

	t.SetDispatcher(rt)
	g.installDefaultHandlers()
	return g
}

// Preload implements spec.md §4.9 step 2: recursively load a host
// directory tree into this grate's IMFS before any child cage execs, so
// the child can see files from its perspective immediately.
func (g *Grate) Preload(hostRoot, destRoot string) error {
	return g.FS.PreloadDir(imfs.CageID(g.CageID), hostRoot, destRoot)
}

// ForkCage implements spec.md §4.9 step 3: register this grate's
// handlers for targetCage against the shared syscall table, have
// targetCage inherit this grate's own open descriptors (the supplemented
// CopyFDTables operation, resolving §9 open question #7), then exec the
// target binary. Registration happens before exec so the recorded cage
// id matches the process that will actually issue the syscalls, exactly
// as spec.md §4.9 step 3 requires.
func (g *Grate) ForkCage(targetCage uint64, path string, args []string) error {
	if err := g.FS.CopyFDTables(imfs.CageID(targetCage), imfs.CageID(g.CageID)); err != nil {
		return err
	}
	g.registerHandlersFor(targetCage)

	g.group.Go(func() error {
		cmd := exec.CommandContext(g.ctx, path, args...)
		if err := cmd.Run(); err != nil {
			logger.Warnf("grate: target cage=%d exec %s failed: %v", targetCage, path, err)
			return err
		}
		return nil
	})
	return nil
}

// Wait implements spec.md §4.9 step 4's "waiting for the worker".
func (g *Grate) Wait() error {
	return g.group.Wait()
}

// Dump implements spec.md §4.9 step 4's optional "dumping modified IMFS
// state back to the host filesystem".
func (g *Grate) Dump(srcPath, hostPath string) error {
	return g.FS.DumpFile(imfs.CageID(g.CageID), srcPath, hostPath)
}

func (g *Grate) registerHandlersFor(targetCage uint64) {
	for _, sys := range []uint64{SysOpen, SysLseek, SysRead, SysWrite, SysClose, SysFcntl} {
		g.Threei.RegisterHandler(targetCage, sys, 1, g.CageID, g.fnPtrFor(sys))
	}
}

// fnPtrFor returns the stable registry handle for one of this grate's
// installed default handlers (installDefaultHandlers assigns them once
// at construction time, keyed by syscall number).
func (g *Grate) fnPtrFor(sys uint64) uint64 {
	return g.fnPtrs[sys]
}

func (g *Grate) installDefaultHandlers() {
	g.fnPtrs = make(map[uint64]uint64, 6)
	g.fnPtrs[SysOpen] = g.Runtime.Handlers.Add(g.handleOpen)
	g.fnPtrs[SysLseek] = g.Runtime.Handlers.Add(g.handleLseek)
	g.fnPtrs[SysRead] = g.Runtime.Handlers.Add(g.handleRead)
	g.fnPtrs[SysWrite] = g.Runtime.Handlers.Add(g.handleWrite)
	g.fnPtrs[SysClose] = g.Runtime.Handlers.Add(g.handleClose)
	g.fnPtrs[SysFcntl] = g.Runtime.Handlers.Add(g.handleFcntl)
}

// trace logs a rate-limited dispatch trace line and, when metrics are
// wired in, records dispatch latency/error counters per syscall.
func (g *Grate) trace(sys uint64, ret int64, start time.Time) {
	name := syscallNames[sys]
	if g.limiter.Allow() {
		logger.Tracef("grate: %s = %d", name, ret)
	}
	if g.metrics != nil {
		g.metrics.DispatchLatency.WithLabelValues(name).Observe(time.Since(start).Seconds())
		if ret < 0 {
			g.metrics.DispatchErrors.WithLabelValues(name).Inc()
		}
	}
}

func retOf(err error) int64 {
	if err == nil {
		return 0
	}
	if e, ok := err.(errno.Errno); ok {
		return int64(-e.Value())
	}
	return -1
}

// handleOpen implements open_grate.c's open_grate: copy the path string
// out of the requesting cage's memory, then drive imfs.Open under the
// requester's own cage id.
func (g *Grate) handleOpen(cageID uint64, args [6]threei.CallArg) int64 {
	start := time.Now()
	pathBytes, err := g.Spaces.Get(args[0].Cage).ReadCString(args[0].Value, 256)
	if err != nil {
		g.trace(SysOpen, -1, start)
		return -1
	}
	fd, err := g.FS.Open(imfs.CageID(cageID), string(pathBytes), int(args[1].Value), uint32(args[2].Value))
	ret := int64(fd)
	if err != nil {
		ret = retOf(err)
	}
	g.trace(SysOpen, ret, start)
	return ret
}

func (g *Grate) handleLseek(cageID uint64, args [6]threei.CallArg) int64 {
	start := time.Now()
	off, err := g.FS.Lseek(imfs.CageID(cageID), imfs.FDIndex(args[0].Value), int64(args[1].Value), int(args[2].Value))
	ret := off
	if err != nil {
		ret = retOf(err)
	}
	g.trace(SysLseek, ret, start)
	return ret
}

// handleRead implements open_grate.c's read_grate: read into a local
// buffer, then copy the result out to the destination cage's memory if
// a non-NULL destination pointer was supplied.
func (g *Grate) handleRead(cageID uint64, args [6]threei.CallArg) int64 {
	start := time.Now()
	count := int(args[2].Value)
	buf := make([]byte, count)
	n, err := g.FS.Read(imfs.CageID(cageID), imfs.FDIndex(args[0].Value), buf)
	if err != nil {
		ret := retOf(err)
		g.trace(SysRead, ret, start)
		return ret
	}
	if args[1].Value != 0 {
		g.Spaces.Get(args[1].Cage).Write(args[1].Value, buf[:n])
	}
	g.trace(SysRead, int64(n), start)
	return int64(n)
}

// handleWrite implements open_grate.c's write_grate: copy the source
// buffer in from the caller's memory, then drive imfs.Write.
func (g *Grate) handleWrite(cageID uint64, args [6]threei.CallArg) int64 {
	start := time.Now()
	count := int(args[2].Value)
	data, err := g.Spaces.Get(args[1].Cage).Read(args[1].Value, count)
	if err != nil {
		g.trace(SysWrite, -1, start)
		return -1
	}
	n, err := g.FS.Write(imfs.CageID(cageID), imfs.FDIndex(args[0].Value), data)
	ret := int64(n)
	if err != nil {
		ret = retOf(err)
	}
	g.trace(SysWrite, ret, start)
	return ret
}

func (g *Grate) handleClose(cageID uint64, args [6]threei.CallArg) int64 {
	start := time.Now()
	err := g.FS.Close(imfs.CageID(cageID), imfs.FDIndex(args[0].Value))
	ret := retOf(err)
	g.trace(SysClose, ret, start)
	return ret
}

func (g *Grate) handleFcntl(cageID uint64, args [6]threei.CallArg) int64 {
	start := time.Now()
	v, err := g.FS.Fcntl(imfs.CageID(cageID), imfs.FDIndex(args[0].Value), int(args[1].Value), int(args[2].Value))
	ret := int64(v)
	if err != nil {
		ret = retOf(err)
	}
	g.trace(SysFcntl, ret, start)
	return ret
}
