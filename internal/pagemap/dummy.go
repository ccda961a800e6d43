package pagemap

import "context"

// DummyHandler fills memory with bytes predictable from their offset:
// byte = (offset * 13) mod 256. It uses the same read-ahead heuristic as
// ObjectStoreHandler and exists as a conformance oracle: any engine change
// can be checked against this handler's output without touching the
// network, exactly as userfaultfd_dummy.rs served the original.
type DummyHandler struct {
	size      int64
	heuristic *Heuristic
}

// NewDummyHandler returns a handler for a size-byte dummy region using the
// package's default heuristic tunables.
func NewDummyHandler(size int64) (*DummyHandler, int64, error) {
	return NewDummyHandlerWithTunables(size, DefaultTunables())
}

// NewDummyHandlerWithTunables is NewDummyHandler with slice sizes and
// residency caps sourced from a loaded config.Config.
func NewDummyHandlerWithTunables(size int64, t Tunables) (*DummyHandler, int64, error) {
	h := NewHeuristicWithTunables(t.Level1SliceSize, t.Level2SliceSize, t.MaxResidentPages, t.EvictLowWater)
	return &DummyHandler{size: size, heuristic: h}, size, nil
}

// HandleFault fills one read-ahead-sized buffer and returns it as a
// sequence of one-page views, mirroring DummyPageIterator: the first view
// owns the backing allocation, later views borrow from it.
func (d *DummyHandler) HandleFault(_ context.Context, offset int64) ([]Page, []int, error) {
	off := int(offset)
	actualReadSz := d.heuristic.ReadaheadHeuristic(off, pageSize, pageSize)

	length := actualReadSz
	if int64(off+actualReadSz) > d.size {
		length = int(d.size) - off
	}
	length = roundUpToPageSize(length)

	base, err := NewPage(length)
	if err != nil {
		return nil, nil, err
	}

	buf := base.Bytes()
	for i := 0; i < len(buf); i++ {
		buf[i] = byte(((i + off) * 13) & 0xFF)
	}

	numPages := base.Len() / pageSize
	pages := make([]Page, numPages)
	for i := 0; i < numPages; i++ {
		pages[i] = base.Sub(i*pageSize, pageSize)
	}
	// The first view carries ownership of the whole backing allocation;
	// released once, after the last page built from it is installed.
	pages[0] = pages[0].WithOwnership()

	d.heuristic.MarkPagesAsRead(off/pageSize, (off+base.Len())/pageSize)
	evictions := d.heuristic.EvictPagesIfNeeded()

	return pages, evictions, nil
}

// Close is a no-op; DummyHandler holds no external resources.
func (d *DummyHandler) Close() error { return nil }
