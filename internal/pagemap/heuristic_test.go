package pagemap

import "testing"

func TestRoundupSlice1(t *testing.T) {
	const pageSize = 4096

	tests := []struct {
		name   string
		offset int
		sz     int
		want   int
	}{
		{
			name:   "one page at offset zero extends to just below one slice",
			offset: 0,
			sz:     pageSize,
			want:   pageSize * (level1SliceSize - 1),
		},
		{
			name:   "one page at offset one page extends to just below one slice minus the page",
			offset: pageSize,
			sz:     pageSize,
			want:   pageSize * (level1SliceSize - 2),
		},
		{
			name:   "non page aligned read",
			offset: 1111,
			sz:     pageSize,
			want:   pageSize * (level1SliceSize - 2),
		},
		{
			name:   "after one slice read",
			offset: level1SliceSize * pageSize,
			sz:     pageSize,
			want:   pageSize * (level1SliceSize - 1),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := roundupSlice1(tt.offset, tt.sz, pageSize, level1SliceSize); got != tt.want {
				t.Errorf("roundupSlice1(%d, %d) = %d, want %d", tt.offset, tt.sz, got, tt.want)
			}
		})
	}
}

func TestHeuristicMarkAndEvict(t *testing.T) {
	h := NewHeuristic()
	h.MarkPagesAsRead(0, 5)

	evictions := h.EvictPagesIfNeeded()
	if evictions != nil {
		t.Fatalf("expected no evictions below maxResidentPages, got %v", evictions)
	}

	h.MarkPagesAsRead(5, maxResidentPages+100)
	evictions = h.EvictPagesIfNeeded()
	if len(evictions) == 0 {
		t.Fatal("expected evictions once resident count exceeds maxResidentPages")
	}
	for i := 1; i < len(evictions); i++ {
		if evictions[i] <= evictions[i-1] {
			t.Fatalf("evictions not sorted ascending: %v", evictions)
		}
	}
	// oldest pages (0, 1, 2, ...) should be the ones evicted first.
	if evictions[0] != 0 {
		t.Errorf("expected oldest page 0 evicted first, got %d", evictions[0])
	}
}

func TestReadaheadHeuristicFillsSlice(t *testing.T) {
	const pageSize = 4096
	h := NewHeuristic()

	// Mark every page but the last in slice 0 as read; the next fault
	// should trigger read-ahead since it would complete the slice.
	h.MarkPagesAsRead(0, level1SliceSize-1)

	got := h.ReadaheadHeuristic((level1SliceSize-1)*pageSize, pageSize, pageSize)
	if got <= pageSize {
		t.Errorf("expected read-ahead to extend beyond one page, got %d", got)
	}
}

func TestReadaheadHeuristicNoReadahead(t *testing.T) {
	const pageSize = 4096
	h := NewHeuristic()

	got := h.ReadaheadHeuristic(0, pageSize, pageSize)
	if got != pageSize {
		t.Errorf("expected no read-ahead on first fault of a fresh slice, got %d", got)
	}
}
