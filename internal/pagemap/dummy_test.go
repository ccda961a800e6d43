package pagemap

import (
	"context"
	"testing"
)

func TestDummyHandlerHandleFault(t *testing.T) {
	h, size, err := NewDummyHandler(4096 * 200)
	if err != nil {
		t.Fatal(err)
	}
	if size != 4096*200 {
		t.Fatalf("size = %d, want %d", size, 4096*200)
	}

	pages, _, err := h.HandleFault(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) == 0 {
		t.Fatal("expected at least one page")
	}

	for i, page := range pages {
		buf := page.Bytes()
		for j, b := range buf {
			off := i*pageSize + j
			want := byte((off * 13) & 0xFF)
			if b != want {
				t.Fatalf("page %d byte %d = %d, want %d", i, j, b, want)
			}
		}
	}
	for _, page := range pages {
		page.Release()
	}
}

func TestDummyHandlerTailShorterThanReadahead(t *testing.T) {
	const size = 4096*3 + 10
	h, reportedSize, err := NewDummyHandler(size)
	if err != nil {
		t.Fatal(err)
	}
	if reportedSize != size {
		t.Fatalf("reportedSize = %d, want %d", reportedSize, size)
	}

	// Fault on the last, partial page: only 10 bytes remain, less than the
	// one-page read the heuristic asks for, so the read is capped to the
	// object's tail and rounded up to one page.
	pages, _, err := h.HandleFault(context.Background(), 4096*3)
	if err != nil {
		t.Fatal(err)
	}
	var total int
	for _, p := range pages {
		total += p.Len()
	}
	if total == 0 {
		t.Fatal("expected non-empty read")
	}
	if total != pageSize {
		t.Fatalf("total = %d, want %d (10-byte tail rounded up to one page)", total, pageSize)
	}
	for _, p := range pages {
		p.Release()
	}
}
