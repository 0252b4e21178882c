package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/auth-platform/file-upload/internal/domain"
	"github.com/auth-platform/file-upload/internal/observability"
	"github.com/auth-platform/file-upload/internal/resilience"
)

// S3Store is an S3-backed Store, wrapped in a circuit breaker so repeated
// IO failures stop hammering a degraded bucket.
type S3Store struct {
	client  *s3.Client
	bucket  string
	breaker *resilience.CircuitBreaker
	metrics *observability.Metrics
}

// S3Config configures the S3-backed Object Store Adapter.
type S3Config struct {
	Region   string
	Bucket   string
	Endpoint string // set for S3-compatible services (MinIO, localstack)
}

// NewS3Store dials AWS and returns a ready Store. metrics may be nil in
// tests.
func NewS3Store(ctx context.Context, cfg S3Config, metrics *observability.Metrics) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var client *s3.Client
	if cfg.Endpoint != "" {
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	} else {
		client = s3.NewFromConfig(awsCfg)
	}

	presets := resilience.DefaultConfigs()
	return &S3Store{
		client:  client,
		bucket:  cfg.Bucket,
		breaker: resilience.NewCircuitBreaker(presets["s3"]),
		metrics: metrics,
	}, nil
}

func (s *S3Store) record(operation, status string, start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordStorageOperation(operation, status, time.Since(start).Seconds())
	}
}

func (s *S3Store) Put(ctx context.Context, key string, data []byte) error {
	start := time.Now()
	if !s.breaker.Allow() {
		s.record("put", "circuit_open", start)
		return domain.New(domain.KindStorage, "object store circuit open", nil)
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		s.breaker.RecordFailure()
		s.record("put", "error", start)
		return domain.New(domain.KindStorage, "put failed", err)
	}
	s.breaker.RecordSuccess()
	s.record("put", "ok", start)
	return nil
}

func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	if !s.breaker.Allow() {
		s.record("get", "circuit_open", start)
		return nil, domain.New(domain.KindStorage, "object store circuit open", nil)
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			s.breaker.RecordSuccess()
			s.record("get", "not_found", start)
			return nil, domain.New(domain.KindNotFound, "object not found", err)
		}
		s.breaker.RecordFailure()
		s.record("get", "error", start)
		return nil, domain.New(domain.KindStorage, "get failed", err)
	}
	defer out.Body.Close()
	s.breaker.RecordSuccess()
	s.record("get", "ok", start)
	return io.ReadAll(out.Body)
}

// GetStream returns the response body directly from S3 without buffering
// it, so the Validator can hash/parse an object up to MaxFileSize without
// holding it all in memory at once.
func (s *S3Store) GetStream(ctx context.Context, key string) (io.ReadCloser, error) {
	start := time.Now()
	if !s.breaker.Allow() {
		s.record("get_stream", "circuit_open", start)
		return nil, domain.New(domain.KindStorage, "object store circuit open", nil)
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			s.breaker.RecordSuccess()
			s.record("get_stream", "not_found", start)
			return nil, domain.New(domain.KindNotFound, "object not found", err)
		}
		s.breaker.RecordFailure()
		s.record("get_stream", "error", start)
		return nil, domain.New(domain.KindStorage, "get_stream failed", err)
	}
	s.breaker.RecordSuccess()
	s.record("get_stream", "ok", start)
	return out.Body, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	start := time.Now()
	if !s.breaker.Allow() {
		s.record("delete", "circuit_open", start)
		return domain.New(domain.KindStorage, "object store circuit open", nil)
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		// S3 delete of a missing key is not an error from AWS either, but
		// guard against transport failures still counting against us.
		s.breaker.RecordFailure()
		s.record("delete", "error", start)
		return domain.New(domain.KindStorage, "delete failed", err)
	}
	s.breaker.RecordSuccess()
	s.record("delete", "ok", start)
	return nil
}

func (s *S3Store) PutStream(ctx context.Context, key string, r io.Reader) error {
	start := time.Now()
	if !s.breaker.Allow() {
		s.record("put_stream", "circuit_open", start)
		return domain.New(domain.KindStorage, "object store circuit open", nil)
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   r,
	})
	if err != nil {
		s.breaker.RecordFailure()
		s.record("put_stream", "error", start)
		return domain.New(domain.KindStorage, "put_stream failed", err)
	}
	s.breaker.RecordSuccess()
	s.record("put_stream", "ok", start)
	return nil
}

// List enumerates keys under prefix in sorted order, implementing Lister.
func (s *S3Store) List(ctx context.Context, prefix string) ([]string, error) {
	start := time.Now()
	if !s.breaker.Allow() {
		s.record("list", "circuit_open", start)
		return nil, domain.New(domain.KindStorage, "object store circuit open", nil)
	}
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			s.breaker.RecordFailure()
			s.record("list", "error", start)
			return nil, domain.New(domain.KindStorage, "list failed", err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	s.breaker.RecordSuccess()
	s.record("list", "ok", start)
	sort.Strings(keys)
	return keys, nil
}

// Ping checks bucket reachability, for health.StorageChecker.
func (s *S3Store) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	return err
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NoSuchKey" || code == "NotFound"
	}
	return strings.Contains(err.Error(), "NoSuchKey")
}
