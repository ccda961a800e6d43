//go:build linux

package pagemap

import (
	"context"
	"math/rand"
	"sync"
	"testing"
)

func requireUffd(t *testing.T) {
	t.Helper()
	if !ProbeUffd() {
		t.Skip("userfaultfd(2) unavailable in this environment")
	}
}

func expectByte(t *testing.T, got byte, offset int) {
	t.Helper()
	want := byte((offset * 13) & 0xFF)
	if got != want {
		t.Fatalf("byte at offset %d = %d, want %d", offset, got, want)
	}
}

func TestEngineOnePage(t *testing.T) {
	requireUffd(t)

	handler, size, err := NewDummyHandler(4096)
	if err != nil {
		t.Fatal(err)
	}
	e, err := Open(context.Background(), handler, size)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	data := e.Bytes()
	if len(data) != 4096 {
		t.Fatalf("len(data) = %d, want 4096", len(data))
	}
	for i, b := range data {
		expectByte(t, b, i)
	}
}

func TestEngineZeroBytePage(t *testing.T) {
	requireUffd(t)

	handler, size, err := NewDummyHandler(0)
	if err != nil {
		t.Fatal(err)
	}
	e, err := Open(context.Background(), handler, size)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	if len(e.Bytes()) != 0 {
		t.Fatalf("len(data) = %d, want 0", len(e.Bytes()))
	}
}

func TestEngineFullLinearScan(t *testing.T) {
	requireUffd(t)

	const total = 4096 * 32000 // ~125MiB, matches the original's t32000_page_test
	handler, size, err := NewDummyHandler(total)
	if err != nil {
		t.Fatal(err)
	}
	e, err := Open(context.Background(), handler, size)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	data := e.Bytes()
	if len(data) != total {
		t.Fatalf("len(data) = %d, want %d", len(data), total)
	}
	for i := 0; i < len(data); i++ {
		expectByte(t, data[i], i)
	}
}

func TestEngineIdempotentRepeatedScans(t *testing.T) {
	requireUffd(t)

	const total = 4096 * 4000
	handler, size, err := NewDummyHandler(total)
	if err != nil {
		t.Fatal(err)
	}
	e, err := Open(context.Background(), handler, size)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	data := e.Bytes()
	for pass := 0; pass < 3; pass++ {
		for i := 0; i < len(data); i++ {
			expectByte(t, data[i], i)
		}
	}
}

func TestEngineRandomPermutationScan(t *testing.T) {
	requireUffd(t)

	const pages = 8000
	const total = 4096 * pages
	handler, size, err := NewDummyHandler(total)
	if err != nil {
		t.Fatal(err)
	}
	e, err := Open(context.Background(), handler, size)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	data := e.Bytes()
	order := rand.Perm(pages)
	for _, page := range order {
		for i := page * 4096; i < (page+1)*4096; i++ {
			expectByte(t, data[i], i)
		}
	}
}

func TestEngineConcurrentScanners(t *testing.T) {
	requireUffd(t)

	const total = 4096 * 4000
	handler, size, err := NewDummyHandler(total)
	if err != nil {
		t.Fatal(err)
	}
	e, err := Open(context.Background(), handler, size)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	data := e.Bytes()

	var wg sync.WaitGroup
	errs := make(chan string, 10)
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < len(data); i++ {
				if want := byte((i * 13) & 0xFF); data[i] != want {
					errs <- "byte mismatch during concurrent scan"
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Error(msg)
	}
}
