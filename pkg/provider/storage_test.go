package provider

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/blobmux/blobmux/pkg/blobmux"
)

// fakeStorage is an in-memory blobmux.Storage used by the dispatcher and
// handler tests. It counts backend calls so tests can assert an operation
// never reached it.
type fakeStorage struct {
	mu      sync.Mutex
	buckets map[string]map[string][]byte
	calls   int
	// getDelay stalls GetObjectRange to simulate a slow read
	getDelay time.Duration
}

var _ blobmux.Storage = (*fakeStorage)(nil)

func newFakeStorage() *fakeStorage {
	return &fakeStorage{buckets: make(map[string]map[string][]byte)}
}

func (f *fakeStorage) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeStorage) record() {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
}

func (f *fakeStorage) ContainerExists(ctx context.Context, container string) (bool, error) {
	f.record()
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.buckets[container]
	return ok, nil
}

func (f *fakeStorage) CreateContainer(ctx context.Context, container string) error {
	f.record()
	f.mu.Lock()
	defer f.mu.Unlock()
	// creating an owned container is idempotent
	if _, ok := f.buckets[container]; !ok {
		f.buckets[container] = make(map[string][]byte)
	}
	return nil
}

func (f *fakeStorage) DeleteContainer(ctx context.Context, container string) error {
	f.record()
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.buckets, container)
	return nil
}

func (f *fakeStorage) GetContainerInfo(ctx context.Context, container string) (blobmux.ContainerMetadata, error) {
	f.record()
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.buckets[container]; !ok {
		return blobmux.ContainerMetadata{}, &blobmux.NotFoundError{Kind: "container", Name: container}
	}
	return blobmux.ContainerMetadata{}, nil
}

func (f *fakeStorage) ListObjects(ctx context.Context, container string, limit, offset *uint64) ([]string, error) {
	f.record()
	f.mu.Lock()
	defer f.mu.Unlock()
	bucket, ok := f.buckets[container]
	if !ok {
		return nil, &blobmux.NotFoundError{Kind: "container", Name: container}
	}
	names := make([]string, 0, len(bucket))
	for name := range bucket {
		names = append(names, name)
	}
	if offset != nil {
		if *offset >= uint64(len(names)) {
			return []string{}, nil
		}
		names = names[*offset:]
	}
	if limit != nil && uint64(len(names)) > *limit {
		names = names[:*limit]
	}
	return names, nil
}

func (f *fakeStorage) CopyObject(ctx context.Context, src, dest blobmux.ObjectID) error {
	f.record()
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.buckets[src.Container][src.Object]
	if !ok {
		return &blobmux.NotFoundError{Kind: "object", Name: src.Container + "/" + src.Object}
	}
	if _, ok := f.buckets[dest.Container]; !ok {
		f.buckets[dest.Container] = make(map[string][]byte)
	}
	f.buckets[dest.Container][dest.Object] = append([]byte(nil), data...)
	return nil
}

func (f *fakeStorage) DeleteObject(ctx context.Context, container, object string) error {
	f.record()
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.buckets[container], object)
	return nil
}

func (f *fakeStorage) DeleteObjects(ctx context.Context, container string, objects []string) error {
	if len(objects) == 0 {
		return nil
	}
	f.record()
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, object := range objects {
		delete(f.buckets[container], object)
	}
	return nil
}

func (f *fakeStorage) GetObjectRange(ctx context.Context, id blobmux.ObjectID, start, end uint64) (io.ReadCloser, error) {
	f.record()
	if f.getDelay > 0 {
		time.Sleep(f.getDelay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.buckets[id.Container][id.Object]
	if !ok {
		return nil, &blobmux.NotFoundError{Kind: "object", Name: id.Container + "/" + id.Object}
	}
	if start > uint64(len(data)) {
		start = uint64(len(data))
	}
	if end > uint64(len(data)) {
		end = uint64(len(data))
	}
	return ioutil.NopCloser(bytes.NewReader(data[start:end])), nil
}

func (f *fakeStorage) PutObject(ctx context.Context, id blobmux.ObjectID, data []byte) error {
	f.record()
	f.mu.Lock()
	defer f.mu.Unlock()
	bucket, ok := f.buckets[id.Container]
	if !ok {
		return &blobmux.NotFoundError{Kind: "container", Name: id.Container}
	}
	bucket[id.Object] = append([]byte(nil), data...)
	return nil
}

func (f *fakeStorage) HasObject(ctx context.Context, container, object string) (bool, error) {
	f.record()
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.buckets[container][object]
	return ok, nil
}

func (f *fakeStorage) GetObjectInfo(ctx context.Context, container, object string) (blobmux.ObjectMetadata, error) {
	f.record()
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.buckets[container][object]
	if !ok {
		return blobmux.ObjectMetadata{}, &blobmux.NotFoundError{Kind: "object", Name: container + "/" + object}
	}
	return blobmux.ObjectMetadata{Size: uint64(len(data))}, nil
}

// errReader always fails, standing in for a broken inbound data stream.
type errReader struct{}

func (errReader) Read([]byte) (int, error) {
	return 0, errors.New("stream reset")
}
