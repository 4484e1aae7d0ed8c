package repository

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"

	"dezolver/internal/common/storage"
	appErr "dezolver/pkg/errors"
)

// SourceArchive keeps gzip-compressed copies of submitted source code in
// object storage, keyed by submission id. Archiving is best-effort from the
// pipeline's point of view; the submission row carries the source either way.
type SourceArchive struct {
	storage storage.ObjectStorage
	bucket  string
	prefix  string
}

// NewSourceArchive creates an archive writing under bucket/prefix.
func NewSourceArchive(store storage.ObjectStorage, bucket, prefix string) *SourceArchive {
	return &SourceArchive{storage: store, bucket: bucket, prefix: prefix}
}

// Put compresses and stores the source, returning the object key.
func (a *SourceArchive) Put(ctx context.Context, submissionID, source string) (string, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(source)); err != nil {
		return "", appErr.Wrapf(err, appErr.StorageError, "compress source failed")
	}
	if err := zw.Close(); err != nil {
		return "", appErr.Wrapf(err, appErr.StorageError, "compress source failed")
	}

	key := fmt.Sprintf("%ssubmissions/%s.gz", a.prefix, submissionID)
	if err := a.storage.PutObject(ctx, a.bucket, key, bytes.NewReader(buf.Bytes()), int64(buf.Len()), "application/gzip"); err != nil {
		return "", appErr.Wrapf(err, appErr.StorageError, "store source failed")
	}
	return key, nil
}

// Get fetches and decompresses the source stored under key.
func (a *SourceArchive) Get(ctx context.Context, key string) (string, error) {
	obj, err := a.storage.GetObject(ctx, a.bucket, key)
	if err != nil {
		return "", appErr.Wrapf(err, appErr.StorageError, "fetch source failed")
	}
	defer obj.Close()

	zr, err := gzip.NewReader(obj)
	if err != nil {
		return "", appErr.Wrapf(err, appErr.StorageError, "decompress source failed")
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return "", appErr.Wrapf(err, appErr.StorageError, "decompress source failed")
	}
	return string(data), nil
}
