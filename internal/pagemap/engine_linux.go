//go:build linux

package pagemap

import (
	"context"
	"fmt"
	"unsafe"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// ProbeUffd reports whether userfaultfd(2) is usable in this environment.
// Common failure: vm.unprivileged_userfaultfd=0 without CAP_SYS_PTRACE.
// Tests use this to skip rather than fail where the facility isn't
// available, mirroring the teacher's ProbeUffd in internal/vm/uffd_linux.go.
func ProbeUffd() bool { return probeUffd() }

// Open maps a size-byte anonymous region backed by handler, registers it
// for userfaultfd missing-page faults, and starts the background fault
// loop, using the package's default worker pool width. size is handler's
// reported byte length (possibly 0, rounded up to one page internally per
// the Zero-byte mapping design note).
func Open(ctx context.Context, handler FaultHandler, size int64) (*Engine, error) {
	return OpenWithWorkers(ctx, handler, size, maxConcurrentWorkers)
}

// OpenWithWorkers is Open with the fault-handling worker pool width sourced
// from a loaded config.Config's workers tunable instead of the package
// default.
func OpenWithWorkers(ctx context.Context, handler FaultHandler, size int64, workers int) (*Engine, error) {
	if workers <= 0 {
		workers = maxConcurrentWorkers
	}
	nbytes := size
	if nbytes == 0 {
		nbytes = 1
	}
	rounded := uintptr(roundUpToPageSize(int(nbytes)))

	ufd, err := openUffd()
	if err != nil {
		return nil, fmt.Errorf("opening userfaultfd: %w", err)
	}

	data, err := unix.Mmap(-1, 0, int(rounded), unix.PROT_READ, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_NORESERVE)
	if err != nil {
		unix.Close(ufd)
		return nil, fmt.Errorf("mmap anonymous region: %w", err)
	}
	base := uintptr(unsafe.Pointer(&data[0]))

	if err := registerRange(ufd, base, uint64(rounded)); err != nil {
		unix.Munmap(data)
		unix.Close(ufd)
		return nil, fmt.Errorf("registering uffd range: %w", err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	e := &Engine{
		state:           stateRegistered,
		handler:         handler,
		base:            base,
		length:          rounded,
		lengthUnrounded: size,
		uffdFD:          ufd,
		log:             log.WithFields(log.Fields{"component": "pagemap.Engine"}),
		cancel:          cancel,
		faultLoopDone:   make(chan struct{}),
		sem:             make(chan struct{}, workers),
	}

	e.setState(stateRunning)
	go e.faultLoop(loopCtx)

	return e, nil
}

// faultLoop polls the uffd fd (100ms timeout, so the context is checked at
// least 10x/sec) and dispatches each fault to the bounded worker pool.
// Ported from run_userfault_handler_scoped in original_source/userfaultfd.rs,
// replacing the rayon scope with a semaphore-bounded goroutine pool and the
// Arc<RwLock<bool>> die flag with context cancellation.
func (e *Engine) faultLoop(ctx context.Context) {
	defer close(e.faultLoopDone)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, ok, err := readFaultMsg(e.uffdFD)
		if err != nil {
			e.log.WithError(err).Error("unrecoverable error reading userfaultfd; stopping fault loop")
			return
		}
		if !ok {
			continue
		}

		faultAddr := uintptr(roundDownToPageSize(int(msg.address)))
		offset := int64(faultAddr - e.base)

		e.sem <- struct{}{}
		e.workerWG.Add(1)
		go e.handleFault(ctx, offset, faultAddr)
	}
}

// handleFault runs in a bounded worker goroutine: it asks the handler for
// pages, installs each with UFFDIO_COPY, then evicts cold pages with
// madvise(MADV_DONTNEED). An unexpected kernel error is treated as fatal
// for this region: the panic is recovered at this goroutine boundary,
// logged, and the region is torn down rather than crashing the process.
func (e *Engine) handleFault(ctx context.Context, offset int64, faultAddr uintptr) {
	defer func() { <-e.sem; e.workerWG.Done() }()

	entry := e.log.WithFields(log.Fields{"trace_id": e.newTraceID(), "offset": offset})

	defer func() {
		if r := recover(); r != nil {
			entry.Errorf("fault worker panicked, tearing down region: %v", r)
			go e.Close()
		}
	}()

	pages, evictions, err := e.handler.HandleFault(ctx, offset)
	if err != nil {
		// Fatal by default, per spec.md's documented baseline choice for
		// fault-time handler errors: surface as a panic recovered above.
		panic(fmt.Errorf("handler fault at offset %d: %w", offset, err))
	}

	// dst must advance by each installed page's length between COPY
	// installments. The original pagefault_handle in userfaultfd.rs left
	// dst pinned at faultAddr across every page in a multi-page read-ahead
	// batch (see DESIGN.md's dst-advance note), so every COPY after the
	// first hit an already-installed address and failed with EEXIST; this
	// port makes the advancing contract explicit so a read-ahead of N pages
	// installs at N consecutive addresses.
	// Pages installed from one fault may be views into a single shared
	// backing allocation (DummyHandler's per-page slices of one read-ahead
	// buffer): release it only after every view has been consumed by the
	// kernel, not after the first, or later views would be copying out of
	// already-unmapped memory.
	dst := faultAddr
	for _, page := range pages {
		length := uint64(page.Len())
		if err := copyPage(e.uffdFD, dst, page.Addr(), length); err != nil {
			panic(fmt.Errorf("UFFDIO_COPY at %#x: %w", dst, err))
		}
		dst += uintptr(length)
	}
	for _, page := range pages {
		page.Release()
	}

	for _, pageNum := range evictions {
		evictAddr := e.base + uintptr(pageNum*pageSize)
		data := unsafe.Slice((*byte)(unsafe.Pointer(evictAddr)), pageSize)
		if err := unix.Madvise(data, unix.MADV_DONTNEED); err != nil {
			panic(fmt.Errorf("madvise(MADV_DONTNEED) at %#x: %w", evictAddr, err))
		}
	}
}

func closeUffdFD(fd int) error {
	return unix.Close(fd)
}

func unmapRegion(base uintptr, length uintptr) error {
	data := unsafe.Slice((*byte)(unsafe.Pointer(base)), int(length))
	return unix.Munmap(data)
}

// Bytes exposes the mapped region as a read-only byte slice of its
// unrounded length.
func (e *Engine) Bytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(e.base)), int(e.lengthUnrounded))
}
