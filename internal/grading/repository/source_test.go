package repository_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"dezolver/internal/common/storage"
	"dezolver/internal/grading/repository"
)

// fakeObjectStorage keeps objects in a map.
type fakeObjectStorage struct {
	objects map[string][]byte
}

func newFakeObjectStorage() *fakeObjectStorage {
	return &fakeObjectStorage{objects: make(map[string][]byte)}
}

func (f *fakeObjectStorage) GetObject(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	data, ok := f.objects[bucket+"/"+key]
	if !ok {
		return nil, fmt.Errorf("object %s/%s not found", bucket, key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeObjectStorage) PutObject(_ context.Context, bucket, key string, reader io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	f.objects[bucket+"/"+key] = data
	return nil
}

func (f *fakeObjectStorage) StatObject(_ context.Context, bucket, key string) (storage.ObjectStat, error) {
	data, ok := f.objects[bucket+"/"+key]
	if !ok {
		return storage.ObjectStat{}, fmt.Errorf("object %s/%s not found", bucket, key)
	}
	return storage.ObjectStat{SizeBytes: int64(len(data))}, nil
}

func TestSourceArchiveRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newFakeObjectStorage()
	archive := repository.NewSourceArchive(store, "grader", "sources/")

	source := strings.Repeat("print('hello world')\n", 100)
	key, err := archive.Put(ctx, "s1", source)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if key == "" {
		t.Fatal("empty object key")
	}

	got, err := archive.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != source {
		t.Fatalf("round trip mismatch: got %d bytes, want %d", len(got), len(source))
	}

	// The stored object is actually compressed.
	stat, err := store.StatObject(ctx, "grader", key)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if stat.SizeBytes >= int64(len(source)) {
		t.Fatalf("stored %d bytes for %d byte source, want smaller", stat.SizeBytes, len(source))
	}
}

func TestSourceArchiveGetUnknownKey(t *testing.T) {
	archive := repository.NewSourceArchive(newFakeObjectStorage(), "grader", "sources/")
	if _, err := archive.Get(context.Background(), "sources/submissions/nope.gz"); err == nil {
		t.Fatal("get unknown key succeeded, want error")
	}
}
