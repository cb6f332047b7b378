package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Options configures NewS3Store.
type S3Options struct {
	// Endpoint is set for S3-compatible services (MinIO, R2, Supabase).
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	PathStyle bool
	// PublicBaseURL overrides the URL prefix of public object links.
	PublicBaseURL string
}

// S3Store implements ObjectStore on an S3-compatible service.
type S3Store struct {
	client *s3.Client
	opts   S3Options
}

// NewS3Store creates an S3Store. Static credentials are used when both keys
// are set, the default AWS credential chain otherwise.
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(opts.Region)}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.PathStyle
	})
	return NewS3StoreWithClient(client, opts), nil
}

// NewS3StoreWithClient wraps an existing client.
func NewS3StoreWithClient(client *s3.Client, opts S3Options) *S3Store {
	return &S3Store{client: client, opts: opts}
}

// Put uploads an object. Without Overwrite the write is conditional on the
// key being absent.
func (s *S3Store) Put(ctx context.Context, bucket, key string, r io.Reader, opts PutOptions) (Object, error) {
	if err := checkObject(bucket, key); err != nil {
		return Object{}, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return Object{}, fmt.Errorf("reading object body: %w", err)
	}
	ct := opts.ContentType
	if ct == "" {
		ct = ContentTypeFor(key)
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(ct),
	}
	if !opts.Overwrite {
		input.IfNoneMatch = aws.String("*")
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return Object{}, mapS3Error(err, "put")
	}

	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return Object{}, mapS3Error(err, "head")
	}
	return Object{
		Bucket:      bucket,
		Key:         key,
		Size:        int64(len(data)),
		ContentType: ct,
		CreatedAt:   aws.ToTime(head.LastModified),
	}, nil
}

// Get downloads an object.
func (s *S3Store) Get(ctx context.Context, bucket, key string) (io.ReadCloser, Object, error) {
	if err := checkObject(bucket, key); err != nil {
		return nil, Object{}, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, Object{}, mapS3Error(err, "get")
	}
	return out.Body, Object{
		Bucket:      bucket,
		Key:         key,
		Size:        aws.ToInt64(out.ContentLength),
		ContentType: aws.ToString(out.ContentType),
		CreatedAt:   aws.ToTime(out.LastModified),
	}, nil
}

// List pages through the prefix and returns the newest objects first.
func (s *S3Store) List(ctx context.Context, bucket, prefix string, limit int) ([]Object, error) {
	if err := checkObject(bucket, "x"); err != nil {
		return nil, err
	}
	if err := checkPrefix(prefix); err != nil {
		return nil, err
	}
	var list []Object
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, mapS3Error(err, "list")
		}
		for _, o := range page.Contents {
			key := aws.ToString(o.Key)
			list = append(list, Object{
				Bucket:      bucket,
				Key:         key,
				Size:        aws.ToInt64(o.Size),
				ContentType: ContentTypeFor(key),
				CreatedAt:   aws.ToTime(o.LastModified),
			})
		}
	}

	sortNewestFirst(list)
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

// Delete removes an object. S3 does not report missing keys on delete, so a
// HeadObject runs first.
func (s *S3Store) Delete(ctx context.Context, bucket, key string) error {
	if err := checkObject(bucket, key); err != nil {
		return err
	}
	if _, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)}); err != nil {
		return mapS3Error(err, "head")
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}); err != nil {
		return mapS3Error(err, "delete")
	}
	return nil
}

// PublicURL builds the public link of an object.
func (s *S3Store) PublicURL(bucket, key string) string {
	switch {
	case s.opts.PublicBaseURL != "":
		return joinURL(s.opts.PublicBaseURL, bucket, key)
	case s.opts.Endpoint != "" && s.opts.PathStyle:
		return joinURL(s.opts.Endpoint, bucket, key)
	case s.opts.Endpoint != "":
		scheme, host, ok := strings.Cut(s.opts.Endpoint, "://")
		if !ok {
			return joinURL(s.opts.Endpoint, bucket, key)
		}
		return scheme + "://" + bucket + "." + strings.TrimRight(host, "/") + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, s.opts.Region, key)
}

func mapS3Error(err error, op string) error {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	if errors.As(err, &nsk) || errors.As(err, &nf) {
		return ErrNotFound
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return ErrNotFound
		case "PreconditionFailed", "ConditionalRequestConflict":
			return ErrExists
		}
	}
	return fmt.Errorf("s3 %s failed: %w", op, err)
}
