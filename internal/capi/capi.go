// Command capi is the C ABI surface for mmapurl: three exported symbols
// (mmapurl_map, mmapurl_unmap, mmapurl_errstr) built with
// `go build -buildmode=c-shared`, generalizing the S3-only
// mmap_s3/munmap_s3/mmap_s3_errstr functions from
// original_source/src/capi.rs to any RangeFetcher-backed mapping.
package main

/*
#include <stddef.h>
*/
import "C"

import (
	"context"
	"sync"
	"unsafe"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/dsmmcken/mmapurl/internal/pagemap"
)

// Stable error codes, kept in sync with the mmapurl.h header shipped
// alongside the shared library. Numbering matches the original's
// MMAP_S3_* constants in capi.rs so existing callers porting off the
// Rust implementation don't need to renumber anything.
const (
	errOK               C.int = 0
	errErrno            C.int = 1
	errIOError          C.int = 2
	errSizeNotReturned  C.int = 3
	errNotFound         C.int = 4
	errPermissionDenied C.int = 5
	errNoBodyReturned   C.int = 6
	errInvalidURL       C.int = 7
	errUnknown          C.int = 8
)

var errStrings = map[C.int]*C.char{}

func init() {
	for code, s := range map[C.int]string{
		errOK:               "MMAPURL_OK",
		errErrno:            "MMAPURL_ERRNO",
		errIOError:          "MMAPURL_IOERROR",
		errSizeNotReturned:  "MMAPURL_SIZE_NOT_RETURNED",
		errNotFound:         "MMAPURL_NOT_FOUND",
		errPermissionDenied: "MMAPURL_PERMISSION_ERROR",
		errNoBodyReturned:   "MMAPURL_NO_BODY_RETURNED",
		errInvalidURL:       "MMAPURL_INVALID_URL",
		errUnknown:          "MMAPURL_UNKNOWN",
	} {
		errStrings[code] = C.CString(s)
	}
}

// registryEntry pairs a live engine with the handle ID logged at map/unmap
// time, so operators can correlate a C-ABI pointer across log lines even
// after the pointer is reused by a later mapping (pointers get reused;
// UUIDs don't).
type registryEntry struct {
	engine *pagemap.Engine
	id     uuid.UUID
}

var (
	registryMu sync.RWMutex
	registry   = map[uintptr]*registryEntry{}
)

func objectStoreErrorToCode(err error) C.int {
	switch pagemap.AsObjectStoreError(err) {
	case pagemap.ErrNone:
		return errOK
	case pagemap.ErrInvalidURL:
		return errInvalidURL
	case pagemap.ErrSizeNotReturned:
		return errSizeNotReturned
	case pagemap.ErrNoBody:
		return errNoBodyReturned
	case pagemap.ErrNotFound:
		return errNotFound
	case pagemap.ErrPermissionDenied:
		return errPermissionDenied
	case pagemap.ErrIO:
		return errIOError
	default:
		return errUnknown
	}
}

//export mmapurl_map
func mmapurl_map(url *C.char, sz *C.size_t, errOut *C.int) unsafe.Pointer {
	var errN C.int
	if errOut == nil {
		errOut = &errN
	}
	var szN C.size_t
	if sz == nil {
		sz = &szN
	}
	*sz = 0
	*errOut = errOK

	goURL := C.GoString(url)

	handler, size, err := pagemap.NewObjectStoreHandler(context.Background(), goURL)
	if err != nil {
		*errOut = objectStoreErrorToCode(err)
		return nil
	}

	engine, err := pagemap.Open(context.Background(), handler, size)
	if err != nil {
		*errOut = errErrno
		return nil
	}

	id := uuid.New()
	registryMu.Lock()
	registry[engine.Addr()] = &registryEntry{engine: engine, id: id}
	registryMu.Unlock()

	*sz = C.size_t(engine.Len())
	log.WithFields(log.Fields{"handle": id.String(), "url": goURL, "size": engine.Len()}).Info("mmapurl_map")

	return unsafe.Pointer(engine.Addr())
}

//export mmapurl_unmap
func mmapurl_unmap(ptr unsafe.Pointer) C.int {
	addr := uintptr(ptr)

	registryMu.Lock()
	entry, ok := registry[addr]
	if ok {
		delete(registry, addr)
	}
	registryMu.Unlock()

	if !ok {
		return -1
	}

	if err := entry.engine.Close(); err != nil {
		log.WithFields(log.Fields{"handle": entry.id.String()}).WithError(err).Error("mmapurl_unmap: teardown error")
		return -1
	}
	log.WithFields(log.Fields{"handle": entry.id.String()}).Info("mmapurl_unmap")
	return 0
}

//export mmapurl_errstr
func mmapurl_errstr(code C.int) *C.char {
	if s, ok := errStrings[code]; ok {
		return s
	}
	return errStrings[errUnknown]
}

func main() {}
