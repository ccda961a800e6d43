package pagemap

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
)

type fakeFetcher struct {
	data []byte
}

func (f *fakeFetcher) Size(_ context.Context, _, _ string) (int64, error) {
	return int64(len(f.data)), nil
}

func (f *fakeFetcher) FetchRange(_ context.Context, _, _ string, offset, length int64) ([]byte, error) {
	if offset+length > int64(len(f.data)) {
		return nil, errors.New("range out of bounds")
	}
	return f.data[offset : offset+length], nil
}

func TestSplitURL(t *testing.T) {
	tests := []struct {
		url        string
		wantScheme string
		wantBucket string
		wantKey    string
		wantOK     bool
	}{
		{"https://mybucket/path/to/key", "https", "mybucket", "path/to/key", true},
		{"s3://mybucket/key", "s3", "mybucket", "key", true},
		{"not-a-url", "", "", "", false},
		{"https://missing-key", "", "", "", false},
	}
	for _, tt := range tests {
		scheme, bucket, key, ok := splitURL(tt.url)
		if ok != tt.wantOK || scheme != tt.wantScheme || bucket != tt.wantBucket || key != tt.wantKey {
			t.Errorf("splitURL(%q) = (%q, %q, %q, %v), want (%q, %q, %q, %v)",
				tt.url, scheme, bucket, key, ok, tt.wantScheme, tt.wantBucket, tt.wantKey, tt.wantOK)
		}
	}
}

func TestObjectStoreHandlerInvalidURL(t *testing.T) {
	_, _, err := NewObjectStoreHandler(context.Background(), "not-a-url")
	if !errors.Is(err, ErrInvalidURL) {
		t.Fatalf("expected ErrInvalidURL, got %v", err)
	}
}

func TestObjectStoreHandlerHandleFault(t *testing.T) {
	content := bytes.Repeat([]byte("hello from mmapurl "), 1000)
	RegisterScheme("faketest", func(time.Duration) RangeFetcher { return &fakeFetcher{data: content} })

	h, size, err := NewObjectStoreHandler(context.Background(), "faketest://bucket/key")
	if err != nil {
		t.Fatal(err)
	}
	if size != int64(len(content)) {
		t.Fatalf("size = %d, want %d", size, len(content))
	}

	pages, _, err := h.HandleFault(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 1 {
		t.Fatalf("expected a single vehicle page, got %d", len(pages))
	}
	got := pages[0].Bytes()[:pageSize]
	if !bytes.Equal(got, content[:pageSize]) {
		t.Fatal("first page contents don't match source object")
	}
	pages[0].Release()
}
