package storage

import (
	"context"
	"errors"
	"io"
	"mime"
	"path"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when an object does not exist.
	ErrNotFound = errors.New("object not found")

	// ErrExists is returned when a create would overwrite an object.
	ErrExists = errors.New("object already exists")

	// ErrInvalidKey is returned for keys that escape the bucket.
	ErrInvalidKey = errors.New("invalid object key")
)

// Object describes a stored object.
type Object struct {
	Bucket      string
	Key         string
	Size        int64
	ContentType string
	CreatedAt   time.Time
}

// Name returns the last key segment.
func (o Object) Name() string {
	return path.Base(o.Key)
}

// PutOptions controls a write.
type PutOptions struct {
	ContentType string
	// Overwrite replaces an existing object instead of failing with
	// ErrExists.
	Overwrite bool
}

// ObjectStore is implemented by the storage backends.
type ObjectStore interface {
	Put(ctx context.Context, bucket, key string, r io.Reader, opts PutOptions) (Object, error)
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, Object, error)
	// List returns objects under prefix, newest first, at most limit.
	List(ctx context.Context, bucket, prefix string, limit int) ([]Object, error)
	Delete(ctx context.Context, bucket, key string) error
	PublicURL(bucket, key string) string
}

// ReadAll fetches a whole object.
func ReadAll(ctx context.Context, s ObjectStore, bucket, key string) ([]byte, Object, error) {
	rc, obj, err := s.Get(ctx, bucket, key)
	if err != nil {
		return nil, Object{}, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, Object{}, err
	}
	return data, obj, nil
}

// ContentTypeFor guesses a content type from the key extension.
func ContentTypeFor(key string) string {
	ext := strings.ToLower(path.Ext(key))
	switch ext {
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".xls":
		return "application/vnd.ms-excel"
	case ".pdf":
		return "application/pdf"
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// cleanKey rejects keys that are empty, absolute or contain dot segments.
func cleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", ErrInvalidKey
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", ErrInvalidKey
		}
	}
	return key, nil
}

// checkObject validates a bucket name and an object key.
func checkObject(bucket, key string) error {
	if _, err := cleanKey(bucket); err != nil || strings.Contains(bucket, "/") {
		return ErrInvalidKey
	}
	_, err := cleanKey(key)
	return err
}

// checkPrefix accepts an empty prefix or a clean key with an optional
// trailing slash.
func checkPrefix(prefix string) error {
	if prefix == "" {
		return nil
	}
	_, err := cleanKey(strings.TrimSuffix(prefix, "/"))
	return err
}

func joinURL(base, bucket, key string) string {
	return strings.TrimRight(base, "/") + "/" + bucket + "/" + key
}
