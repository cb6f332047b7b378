package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LocalStore implements ObjectStore on the local filesystem. Each bucket is
// a directory under the root.
type LocalStore struct {
	root          string
	publicBaseURL string
}

// NewLocalStore creates a LocalStore rooted at dir.
func NewLocalStore(dir, publicBaseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	return &LocalStore{root: dir, publicBaseURL: publicBaseURL}, nil
}

func (s *LocalStore) path(bucket, key string) (string, error) {
	if err := checkObject(bucket, key); err != nil {
		return "", err
	}
	return filepath.Join(s.root, bucket, filepath.FromSlash(key)), nil
}

// Put writes an object. Without Overwrite an existing object is left alone
// and ErrExists is returned.
func (s *LocalStore) Put(_ context.Context, bucket, key string, r io.Reader, opts PutOptions) (Object, error) {
	p, err := s.path(bucket, key)
	if err != nil {
		return Object{}, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return Object{}, fmt.Errorf("creating object directory: %w", err)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if opts.Overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(p, flags, 0644)
	if errors.Is(err, fs.ErrExist) {
		return Object{}, ErrExists
	}
	if err != nil {
		return Object{}, fmt.Errorf("creating object: %w", err)
	}

	size, err := io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(p)
		return Object{}, fmt.Errorf("writing object: %w", err)
	}

	info, err := os.Stat(p)
	if err != nil {
		return Object{}, fmt.Errorf("stat object: %w", err)
	}
	ct := opts.ContentType
	if ct == "" {
		ct = ContentTypeFor(key)
	}
	return Object{Bucket: bucket, Key: key, Size: size, ContentType: ct, CreatedAt: info.ModTime()}, nil
}

// Get opens an object for reading.
func (s *LocalStore) Get(_ context.Context, bucket, key string) (io.ReadCloser, Object, error) {
	p, err := s.path(bucket, key)
	if err != nil {
		return nil, Object{}, err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, Object{}, ErrNotFound
	}
	if err != nil {
		return nil, Object{}, fmt.Errorf("opening object: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, Object{}, fmt.Errorf("stat object: %w", err)
	}
	if info.IsDir() {
		f.Close()
		return nil, Object{}, ErrNotFound
	}
	return f, s.object(bucket, key, info), nil
}

// List walks the prefix directory. The prefix must name a folder (end with
// "/") or be empty.
func (s *LocalStore) List(_ context.Context, bucket, prefix string, limit int) ([]Object, error) {
	if err := checkPrefix(prefix); err != nil {
		return nil, err
	}
	base, err := s.path(bucket, "x")
	if err != nil {
		return nil, err
	}
	bucketDir := filepath.Dir(base)

	var list []Object
	err = filepath.WalkDir(bucketDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(bucketDir, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		list = append(list, s.object(bucket, key, info))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing objects: %w", err)
	}

	sortNewestFirst(list)
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

// Delete removes an object.
func (s *LocalStore) Delete(_ context.Context, bucket, key string) error {
	p, err := s.path(bucket, key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("removing object: %w", err)
	}
	return nil
}

// PublicURL returns the URL the local API serves the object under.
func (s *LocalStore) PublicURL(bucket, key string) string {
	if s.publicBaseURL == "" {
		return "file://" + filepath.ToSlash(filepath.Join(s.root, bucket, filepath.FromSlash(key)))
	}
	return joinURL(s.publicBaseURL, bucket, key)
}

func (s *LocalStore) object(bucket, key string, info fs.FileInfo) Object {
	return Object{
		Bucket:      bucket,
		Key:         key,
		Size:        info.Size(),
		ContentType: ContentTypeFor(key),
		CreatedAt:   info.ModTime(),
	}
}

func sortNewestFirst(list []Object) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].Key > list[j].Key
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
}
