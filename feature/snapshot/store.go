package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"inventory-sync/core/storage"

	"github.com/minio/minio-go/v7"
)

// ErrNoSnapshot is returned by a Store that holds no snapshot yet.
var ErrNoSnapshot = errors.New("no snapshot")

// Store persists encoded snapshots.
type Store interface {
	// Read returns the stored snapshot or ErrNoSnapshot.
	Read(ctx context.Context) ([]byte, error)
	// Write replaces the stored snapshot.
	Write(ctx context.Context, data []byte) error
	// Location describes where the snapshot lives.
	Location() string
}

// FileStore keeps the snapshot in a local file.
type FileStore struct {
	Path string
}

// Read reads the snapshot file.
func (s FileStore) Read(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSnapshot
	}
	return data, err
}

// Write replaces the snapshot file atomically.
func (s FileStore) Write(ctx context.Context, data []byte) error {
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.Path)
}

// Location returns the file path.
func (s FileStore) Location() string { return s.Path }

// ObjectStore keeps the snapshot in an object storage bucket.
type ObjectStore struct {
	client storage.Client
	bucket string
	region string
	object string
}

// NewObjectStore creates an object store for bucket/object.
func NewObjectStore(client storage.Client, bucket, region, object string) *ObjectStore {
	return &ObjectStore{client: client, bucket: bucket, region: region, object: object}
}

// Read downloads the snapshot object.
func (s *ObjectStore) Read(ctx context.Context) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.object, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.translate(err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.translate(err)
	}
	return data, nil
}

// Write uploads the snapshot, creating the bucket when needed.
func (s *ObjectStore) Write(ctx context.Context, data []byte) error {
	if err := storage.EnsureBucket(ctx, s.client, s.bucket, s.region); err != nil {
		return err
	}
	_, err := s.client.PutObject(ctx, s.bucket, s.object, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/yaml",
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", s.Location(), err)
	}
	return nil
}

// Location returns the bucket and object name.
func (s *ObjectStore) Location() string { return s.bucket + "/" + s.object }

func (s *ObjectStore) translate(err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return ErrNoSnapshot
	}
	return fmt.Errorf("download %s: %w", s.Location(), err)
}
