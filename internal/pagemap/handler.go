package pagemap

import (
	"context"
	"unsafe"

	"golang.org/x/sys/unix"
)

// pageSize caches the runtime page size; the heuristic and page allocator
// both round against it.
var pageSize = unix.Getpagesize()

// PageSize returns the system page size used by the engine.
func PageSize() int { return pageSize }

func roundUpToPageSize(n int) int {
	if n%pageSize == 0 {
		return n
	}
	return n + (pageSize - n%pageSize)
}

func roundDownToPageSize(n int) int {
	return n - n%pageSize
}

// Page is a view over a region of anonymous memory that can be installed
// into a faulting address range with UFFDIO_COPY. backingAddr/backingSize
// describe the underlying allocation and mirror the original's
// MMapPages.do_unmap: only the view that owns the backing allocation
// (ownsBacking) unmaps it on Release, and it unmaps the allocation as a
// whole even though the view itself may only be one page of it (e.g.
// DummyHandler's per-page slices of one big read-ahead buffer).
type Page struct {
	addr        uintptr
	size        int
	ownsBacking bool
	backingAddr uintptr
	backingSize int
}

// NewPage anonymously mmaps size bytes (rounded up to a page) as the
// vehicle for a single UFFDIO_COPY install. The caller must call Release
// once the kernel has consumed it (or on an error path that never submits
// it), matching MMapPages::new / its Drop impl.
func NewPage(size int) (Page, error) {
	rounded := roundUpToPageSize(size)
	data, err := unix.Mmap(-1, 0, rounded, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return Page{}, err
	}
	addr := uintptr(unsafe.Pointer(&data[0]))
	return Page{addr: addr, size: rounded, ownsBacking: true, backingAddr: addr, backingSize: rounded}, nil
}

// Bytes exposes the page's backing memory for filling before install.
func (p Page) Bytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(p.addr)), p.size)
}

// Addr is the vehicle page's address, the "src" of UFFDIO_COPY.
func (p Page) Addr() uintptr { return p.addr }

// Len is the vehicle page's size in bytes.
func (p Page) Len() int { return p.size }

// Sub returns a view into this page's backing memory at the given
// byte offset, not owning the backing allocation. Used by handlers that
// fill one large buffer and hand back a sequence of one-page views
// (DummyHandler).
func (p Page) Sub(offset, length int) Page {
	return Page{
		addr:        p.addr + uintptr(offset),
		size:        length,
		ownsBacking: false,
		backingAddr: p.backingAddr,
		backingSize: p.backingSize,
	}
}

// WithOwnership returns a copy of p that owns the whole backing
// allocation on Release, regardless of which sub-view p itself is.
func (p Page) WithOwnership() Page {
	p.ownsBacking = true
	return p
}

// Release unmaps the backing memory if this view owns it.
func (p Page) Release() error {
	if !p.ownsBacking || p.backingSize == 0 {
		return nil
	}
	data := unsafe.Slice((*byte)(unsafe.Pointer(p.backingAddr)), p.backingSize)
	return unix.Munmap(data)
}

// FaultHandler is the capability contract a backing store implements to
// serve page faults for a mapped region. Each handler's constructor
// (NewDummyHandler, NewObjectStoreHandler) builds it and reports the
// region's byte size (possibly not page-aligned); HandleFault
// is called once per fault with the page-aligned offset into the region
// and returns the pages to install plus any page numbers the heuristic
// wants evicted as a side effect of this fault.
//
// Go realizes the original's per-backend generic MMapHandler trait as an
// interface: a region owns exactly one concrete handler instance and pays
// one virtual call per fault, which is negligible next to the I/O the call
// triggers.
type FaultHandler interface {
	// HandleFault returns the pages to install at offset (already rounded
	// down to a page boundary by the caller) and the page numbers (region-
	// relative, in pages) that should be evicted as a result of this read.
	HandleFault(ctx context.Context, offset int64) (pages []Page, evictions []int, err error)

	// Close releases any resources held by the handler (network clients,
	// file descriptors). Called once when the owning region is unmapped.
	Close() error
}
