package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type s3Object struct {
	data        []byte
	contentType string
	modified    time.Time
}

// fakeS3 is a path-style S3 endpoint keeping objects in memory. Every
// object is stamped one minute after the previous one.
type fakeS3 struct {
	mu       sync.Mutex
	objects  map[string]s3Object
	clock    time.Time
	requests int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{
		objects: map[string]s3Object{},
		clock:   time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func s3Error(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>%s</Code><Message>%s</Message></Error>`, code, code)
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++

	bucket, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if bucket == "locked" {
		s3Error(w, http.StatusForbidden, "AccessDenied")
		return
	}
	id := bucket + "/" + key
	obj, exists := f.objects[id]

	switch {
	case key == "" && r.Method == http.MethodGet:
		f.list(w, bucket, r.URL.Query().Get("prefix"))

	case r.Method == http.MethodPut:
		if exists && r.Header.Get("If-None-Match") == "*" {
			s3Error(w, http.StatusPreconditionFailed, "PreconditionFailed")
			return
		}
		data, _ := io.ReadAll(r.Body)
		f.clock = f.clock.Add(time.Minute)
		f.objects[id] = s3Object{data: data, contentType: r.Header.Get("Content-Type"), modified: f.clock}
		w.WriteHeader(http.StatusOK)

	case !exists && r.Method == http.MethodHead:
		w.WriteHeader(http.StatusNotFound)

	case !exists:
		s3Error(w, http.StatusNotFound, "NoSuchKey")

	case r.Method == http.MethodHead, r.Method == http.MethodGet:
		w.Header().Set("Content-Type", obj.contentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(obj.data)))
		w.Header().Set("Last-Modified", obj.modified.Format(http.TimeFormat))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = w.Write(obj.data)
		}

	case r.Method == http.MethodDelete:
		delete(f.objects, id)
		w.WriteHeader(http.StatusNoContent)

	default:
		s3Error(w, http.StatusMethodNotAllowed, "MethodNotAllowed")
	}
}

func (f *fakeS3) list(w http.ResponseWriter, bucket, prefix string) {
	var keys []string
	for id := range f.objects {
		b, key, _ := strings.Cut(id, "/")
		if b == bucket && strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">`)
	fmt.Fprintf(&buf, "<Name>%s</Name><Prefix>%s</Prefix><KeyCount>%d</KeyCount><MaxKeys>1000</MaxKeys><IsTruncated>false</IsTruncated>", bucket, prefix, len(keys))
	for _, key := range keys {
		obj := f.objects[bucket+"/"+key]
		fmt.Fprintf(&buf, "<Contents><Key>%s</Key><LastModified>%s</LastModified><Size>%d</Size></Contents>",
			key, obj.modified.Format("2006-01-02T15:04:05.000Z"), len(obj.data))
	}
	buf.WriteString("</ListBucketResult>")

	w.Header().Set("Content-Type", "application/xml")
	_, _ = w.Write(buf.Bytes())
}

func (f *fakeS3) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests
}

func newTestS3Store(t *testing.T) (*S3Store, *fakeS3) {
	t.Helper()
	fake := newFakeS3()
	ts := httptest.NewServer(fake)
	t.Cleanup(ts.Close)

	client := s3.New(s3.Options{
		Region:                     "us-east-1",
		BaseEndpoint:               aws.String(ts.URL),
		UsePathStyle:               true,
		Credentials:                credentials.NewStaticCredentialsProvider("key", "secret", ""),
		HTTPClient:                 ts.Client(),
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	})
	return NewS3StoreWithClient(client, S3Options{Endpoint: ts.URL, PathStyle: true}), fake
}

func TestS3Store_PutGet(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestS3Store(t)

	obj, err := store.Put(ctx, "pdf-files", "u1/1-quote.pdf", strings.NewReader("%PDF-1.4"), PutOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(8), obj.Size)
	assert.Equal(t, "application/pdf", obj.ContentType)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 1, 0, 0, time.UTC), obj.CreatedAt.UTC())

	rc, got, err := store.Get(ctx, "pdf-files", "u1/1-quote.pdf")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))
	assert.Equal(t, "application/pdf", got.ContentType)
	assert.Equal(t, int64(8), got.Size)
}

func TestS3Store_PutWithoutOverwrite(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestS3Store(t)

	_, err := store.Put(ctx, "excel-files", "u1/1-prices.xlsx", strings.NewReader("first"), PutOptions{})
	require.NoError(t, err)

	_, err = store.Put(ctx, "excel-files", "u1/1-prices.xlsx", strings.NewReader("second"), PutOptions{})
	assert.ErrorIs(t, err, ErrExists)

	_, err = store.Put(ctx, "excel-files", "u1/1-prices.xlsx", strings.NewReader("third"), PutOptions{Overwrite: true})
	require.NoError(t, err)

	data, _, err := ReadAll(ctx, store, "excel-files", "u1/1-prices.xlsx")
	require.NoError(t, err)
	assert.Equal(t, "third", string(data))
}

func TestS3Store_GetMissing(t *testing.T) {
	store, _ := newTestS3Store(t)

	_, _, err := store.Get(context.Background(), "pdf-files", "u1/missing.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestS3Store_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestS3Store(t)

	for _, key := range []string{"u1/a.pdf", "u2/b.pdf", "u1/c.pdf", "u1/d.pdf"} {
		_, err := store.Put(ctx, "pdf-files", key, strings.NewReader("x"), PutOptions{})
		require.NoError(t, err)
	}

	list, err := store.List(ctx, "pdf-files", "u1/", 0)
	require.NoError(t, err)
	var keys []string
	for _, o := range list {
		keys = append(keys, o.Key)
	}
	assert.Equal(t, []string{"u1/d.pdf", "u1/c.pdf", "u1/a.pdf"}, keys)
	assert.Equal(t, "application/pdf", list[0].ContentType)

	list, err = store.List(ctx, "pdf-files", "u1/", 2)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = store.List(ctx, "pdf-files", "u3/", 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestS3Store_Delete(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestS3Store(t)

	_, err := store.Put(ctx, "pdf-files", "u1/a.pdf", strings.NewReader("x"), PutOptions{})
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "pdf-files", "u1/a.pdf"))
	assert.ErrorIs(t, store.Delete(ctx, "pdf-files", "u1/a.pdf"), ErrNotFound)
}

func TestS3Store_UpstreamError(t *testing.T) {
	store, _ := newTestS3Store(t)

	_, _, err := store.Get(context.Background(), "locked", "u1/a.pdf")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "s3 get failed")
}

func TestS3Store_InvalidKeys(t *testing.T) {
	ctx := context.Background()
	store, fake := newTestS3Store(t)

	_, err := store.Put(ctx, "pdf-files", "../a.pdf", strings.NewReader("x"), PutOptions{})
	assert.ErrorIs(t, err, ErrInvalidKey)
	_, _, err = store.Get(ctx, "pdf-files", "u1/../../a.pdf")
	assert.ErrorIs(t, err, ErrInvalidKey)
	_, _, err = store.Get(ctx, "pdf-files/u1", "a.pdf")
	assert.ErrorIs(t, err, ErrInvalidKey)
	_, err = store.List(ctx, "pdf-files", "../", 0)
	assert.ErrorIs(t, err, ErrInvalidKey)
	assert.ErrorIs(t, store.Delete(ctx, "pdf-files", ""), ErrInvalidKey)
	assert.ErrorIs(t, store.Delete(ctx, "pdf-files", "/u1/a.pdf"), ErrInvalidKey)

	assert.Zero(t, fake.requestCount())
}
