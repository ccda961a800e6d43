package pagemap

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/oklog/ulid"
	log "github.com/sirupsen/logrus"
)

// engineState is the PagingEngine lifecycle, exactly spec.md's
// Init -> Registered -> Running -> Draining -> Terminated.
type engineState int

const (
	stateInit engineState = iota
	stateRegistered
	stateRunning
	stateDraining
	stateTerminated
)

func (s engineState) String() string {
	switch s {
	case stateInit:
		return "init"
	case stateRegistered:
		return "registered"
	case stateRunning:
		return "running"
	case stateDraining:
		return "draining"
	case stateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// maxConcurrentWorkers bounds the fault-handling worker pool, the Go
// analogue of the original's rayon::ThreadPoolBuilder(16) and the e2b
// example's errgroup.Group.SetLimit.
const maxConcurrentWorkers = 16

// Engine owns one demand-paged MappedRegion: the anonymous backing
// mapping, the userfaultfd registration, and the background fault loop
// that installs pages via handler and evicts cold ones via the heuristic
// state embedded in the handler.
//
// FaultContext from spec.md's data model is realized as this struct's
// private fields: base address, rounded/unrounded length, the uffd fd, and
// a context.CancelFunc-driven should-exit signal generalizing the
// teacher's die/done bool-flag pattern in uffd_linux.go.
type Engine struct {
	mu    sync.Mutex
	state engineState

	handler FaultHandler

	base           uintptr
	length         uintptr // rounded up to page size
	lengthUnrounded int64

	uffdFD int

	log *log.Entry

	cancel        context.CancelFunc
	faultLoopDone chan struct{}

	sem chan struct{} // worker pool semaphore, workers wide (maxConcurrentWorkers by default)

	workerWG sync.WaitGroup

	traceMu sync.Mutex // guards ulid generation, which isn't safe for concurrent use
}

// newTraceID returns a lexically sortable ID for one fault-loop dispatch,
// attached to the worker's log fields so grepping a log file keeps fault
// batches in temporal order even across concurrent workers.
func (e *Engine) newTraceID() string {
	e.traceMu.Lock()
	defer e.traceMu.Unlock()
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return ""
	}
	return id.String()
}

// Len reports the region's unrounded byte length, per spec.md's Zero-byte
// mapping design note (a zero-byte map still rounds up to one page
// internally but reports Len()==0).
func (e *Engine) Len() int64 { return e.lengthUnrounded }

// Addr returns the region's base address.
func (e *Engine) Addr() uintptr { return e.base }

// currentState returns the engine's current lifecycle state under lock.
func (e *Engine) currentState() engineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// setState transitions the engine's lifecycle state under lock.
func (e *Engine) setState(s engineState) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// Close drains the fault loop, tears down the uffd registration and
// anonymous mapping, and closes the handler. Teardown aggregates every
// independent failure (uffd fd close, munmap, handler close) via
// go-multierror rather than reporting only the first, the way a
// production teardown path should account for all of what went wrong.
func (e *Engine) Close() error {
	e.setState(stateDraining)

	var result *multierror.Error

	if e.cancel != nil {
		e.cancel()
	}
	if e.faultLoopDone != nil {
		<-e.faultLoopDone
	}
	e.workerWG.Wait()

	if err := closeUffdFD(e.uffdFD); err != nil {
		result = multierror.Append(result, fmt.Errorf("closing uffd fd: %w", err))
	}
	if err := unmapRegion(e.base, e.length); err != nil {
		result = multierror.Append(result, fmt.Errorf("unmapping region: %w", err))
	}
	if err := e.handler.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("closing handler: %w", err))
	}

	e.setState(stateTerminated)
	return result.ErrorOrNil()
}
