package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/msmeflow/quoteflow/internal/backend"
	"github.com/msmeflow/quoteflow/internal/instrumentation"
	"github.com/msmeflow/quoteflow/internal/logging"
	"github.com/msmeflow/quoteflow/internal/records"
	"github.com/msmeflow/quoteflow/internal/storage"
)

// ListLimit bounds how many files are listed.
const ListLimit = 100

// ErrForbidden is returned for paths outside the user's folder.
var ErrForbidden = errors.New("path does not belong to the user")

// UploadedFile is a listed upload.
type UploadedFile struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	UploadDate string `json:"uploadDate"`
	Size       string `json:"size"`
	URL        string `json:"url"`
	Path       string `json:"path"`

	createdAt time.Time
}

// Ingestor sends workbooks to the backend index.
type Ingestor interface {
	IngestQuotations(ctx context.Context, accessToken string, files []backend.File) error
	IngestPriceLists(ctx context.Context, accessToken string, files []backend.File) error
}

// Request is one upload.
type Request struct {
	UserID      string
	AccessToken string
	Type        Type
	Name        string
	ContentType string
	Data        []byte
}

// Result describes a finished upload.
type Result struct {
	File UploadedFile `json:"file"`
	// Ingested is false when the backend could not index the workbook.
	// The object is stored either way.
	Ingested bool `json:"ingested"`
}

// Service runs uploads against an object store.
type Service struct {
	store    storage.ObjectStore
	records  records.Store
	ingestor Ingestor
	logger   *slog.Logger
	metrics  *instrumentation.Metrics
	audit    *instrumentation.AuditLogger
	now      func() time.Time
}

// Options holds the dependencies of a Service. Records and Ingestor may be
// nil.
type Options struct {
	Store    storage.ObjectStore
	Records  records.Store
	Ingestor Ingestor
	Logger   *slog.Logger
	Metrics  *instrumentation.Metrics
	Audit    *instrumentation.AuditLogger
}

// NewService creates a Service.
func NewService(opts Options) *Service {
	return &Service{
		store:    opts.Store,
		records:  opts.Records,
		ingestor: opts.Ingestor,
		logger:   logging.WithComponent(opts.Logger, "upload"),
		metrics:  opts.Metrics,
		audit:    opts.Audit,
		now:      time.Now,
	}
}

// Upload validates and stores a file.
func (s *Service) Upload(ctx context.Context, req Request) (Result, error) {
	if err := ValidateFile(req.Type, req.Name, req.ContentType, int64(len(req.Data))); err != nil {
		s.metrics.RecordUpload(ctx, string(req.Type), instrumentation.StatusError)
		return Result{}, err
	}

	key := ObjectKey(req.UserID, req.Name, s.now())
	action := instrumentation.NewAction(ctx, instrumentation.ActionUpload, req.UserID, key)
	obj, err := s.store.Put(ctx, req.Type.Bucket(), key, bytes.NewReader(req.Data), storage.PutOptions{
		ContentType: DetectMime(req.Name, req.ContentType),
	})
	s.audit.Log(action.Complete(err))
	if err != nil {
		s.metrics.RecordUpload(ctx, string(req.Type), instrumentation.StatusError)
		return Result{}, fmt.Errorf("failed to store %s: %w", req.Name, err)
	}
	s.metrics.RecordUpload(ctx, string(req.Type), instrumentation.StatusSuccess)
	s.logger.Info("file uploaded", logging.File(key), logging.UserHash(req.UserID))

	res := Result{File: s.format(obj), Ingested: true}
	if kind, ok := req.Type.RecordKind(); ok {
		res.Ingested = s.index(ctx, req, kind, key)
	}
	return res, nil
}

// index records the upload and sends it for ingestion. Failures are logged
// and reported through the returned flag.
func (s *Service) index(ctx context.Context, req Request, kind records.Kind, key string) bool {
	if s.records != nil {
		if _, err := s.records.Save(ctx, req.UserID, kind, []string{key}); err != nil {
			s.logger.Warn("failed to record upload", logging.File(key), logging.Err(err))
		}
	}
	if s.ingestor == nil {
		return false
	}

	files := []backend.File{{Name: req.Name, ContentType: DetectMime(req.Name, req.ContentType), Data: req.Data}}
	var err error
	if kind == records.KindPriceList {
		err = s.ingestor.IngestPriceLists(ctx, req.AccessToken, files)
	} else {
		err = s.ingestor.IngestQuotations(ctx, req.AccessToken, files)
	}
	if err != nil {
		s.logger.Warn("backend ingestion failed", logging.File(key), logging.Err(err))
		return false
	}
	return true
}

// List returns the user's files across both buckets, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]UploadedFile, error) {
	var files []UploadedFile
	for _, bucket := range []string{BucketExcel, BucketPDF} {
		objs, err := s.store.List(ctx, bucket, userID+"/", ListLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", bucket, err)
		}
		for _, o := range objs {
			files = append(files, s.format(o))
		}
	}
	sortFiles(files)
	if len(files) > ListLimit {
		files = files[:ListLimit]
	}
	return files, nil
}

// Open returns the content of one of the user's files.
func (s *Service) Open(ctx context.Context, userID, path string) ([]byte, error) {
	if err := ownPath(userID, path); err != nil {
		return nil, err
	}
	data, _, err := storage.ReadAll(ctx, s.store, BucketFor(path), path)
	return data, err
}

// Update overwrites an existing file in place.
func (s *Service) Update(ctx context.Context, userID, path string, data []byte) (UploadedFile, error) {
	if err := ownPath(userID, path); err != nil {
		return UploadedFile{}, err
	}
	if int64(len(data)) > MaxFileSize {
		return UploadedFile{}, &ValidationError{Field: "file", Message: MsgTooLarge}
	}

	bucket := BucketFor(path)
	action := instrumentation.NewAction(ctx, instrumentation.ActionOverwrite, userID, path)
	obj, err := s.store.Put(ctx, bucket, path, bytes.NewReader(data), storage.PutOptions{Overwrite: true})
	s.audit.Log(action.Complete(err))
	if err != nil {
		return UploadedFile{}, fmt.Errorf("failed to update %s: %w", path, err)
	}
	s.logger.Info("file updated", logging.File(path))
	return s.format(obj), nil
}

// Delete removes a file and its records.
func (s *Service) Delete(ctx context.Context, userID, path string) error {
	if err := ownPath(userID, path); err != nil {
		return err
	}

	action := instrumentation.NewAction(ctx, instrumentation.ActionDelete, userID, path)
	err := s.store.Delete(ctx, BucketFor(path), path)
	s.audit.Log(action.Complete(err))
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	if s.records != nil {
		if _, err := s.records.DeletePath(ctx, userID, path); err != nil {
			s.logger.Warn("failed to delete upload records", logging.File(path), logging.Err(err))
		}
	}
	s.logger.Info("file deleted", logging.File(path))
	return nil
}

// BucketFor picks the bucket of an existing path from its extension.
func BucketFor(path string) string {
	if FileType(path) == "PDF" {
		return BucketPDF
	}
	return BucketExcel
}

func ownPath(userID, path string) error {
	if userID == "" || !strings.HasPrefix(path, userID+"/") {
		return ErrForbidden
	}
	return nil
}

func (s *Service) format(o storage.Object) UploadedFile {
	return UploadedFile{
		Name:       o.Name(),
		Type:       FileType(o.Key),
		UploadDate: o.CreatedAt.Local().Format("01/02/2006"),
		Size:       FormatFileSize(o.Size),
		URL:        s.store.PublicURL(o.Bucket, o.Key),
		Path:       o.Key,
		createdAt:  o.CreatedAt,
	}
}

func sortFiles(files []UploadedFile) {
	sort.SliceStable(files, func(i, j int) bool { return files[i].createdAt.After(files[j].createdAt) })
}
