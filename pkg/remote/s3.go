package remote

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type s3ParsedUri struct {
	Bucket string
	Path   string
}

var _ Fetcher = &S3Fetcher{}

type S3Client interface {
	GetObject(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type S3Fetcher struct {
	uri  *s3ParsedUri
	lock *sync.Mutex
	svc  S3Client
}

func NewS3Fetcher(uri string) (*S3Fetcher, error) {
	parsed, err := parseS3Uri(uri)
	if err != nil {
		return nil, err
	}
	return &S3Fetcher{
		uri:  parsed,
		lock: &sync.Mutex{},
	}, nil
}

// NewS3FetcherWithClient uses svc instead of resolving a client for the bucket region.
func NewS3FetcherWithClient(uri string, svc S3Client) (*S3Fetcher, error) {
	f, err := NewS3Fetcher(uri)
	if err != nil {
		return nil, err
	}
	f.svc = svc
	return f, nil
}

func parseS3Uri(uri string) (*s3ParsedUri, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return nil, ErrInvalidURI
	}
	key := strings.TrimPrefix(parsed.Path, "/")
	if parsed.Host == "" || key == "" {
		return nil, ErrInvalidURI
	}
	return &s3ParsedUri{
		Bucket: parsed.Host,
		Path:   key,
	}, nil
}

func (f *S3Fetcher) getService(ctx context.Context) (S3Client, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.svc != nil {
		return f.svc, nil
	}
	const defaultRegion = "us-east-1"
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(defaultRegion))
	if err != nil {
		return nil, err
	}
	svc := s3.NewFromConfig(cfg)
	region, err := manager.GetBucketRegion(ctx, svc, f.uri.Bucket)
	if err != nil {
		if s3IsNotFoundErr(err) {
			return nil, ErrDoesNotExist
		}
		return nil, err
	}
	if region != defaultRegion {
		cfg, err = config.LoadDefaultConfig(ctx, config.WithRegion(region))
		if err != nil {
			return nil, err
		}
		svc = s3.NewFromConfig(cfg)
	}
	f.svc = svc
	return svc, nil
}

func s3IsNotFoundErr(err error) bool {
	if err == nil {
		return false
	}
	var nf *types.NotFound
	var nsk *types.NoSuchKey
	var bnf manager.BucketNotFound
	return errors.As(err, &nf) || errors.As(err, &nsk) || errors.As(err, &bnf)
}

func (f *S3Fetcher) Fetch(ctx context.Context, startOffset *int64, endOffset *int64) (io.ReadCloser, error) {
	svc, err := f.getService(ctx)
	if err != nil {
		return nil, err
	}
	rng := buildRange(startOffset, endOffset)
	start := time.Now()
	out, err := svc.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.uri.Bucket),
		Key:    aws.String(f.uri.Path),
		Range:  rng,
	})
	slog.Debug("s3:GetObject", "bucket", f.uri.Bucket, "key", f.uri.Path, "range", aws.ToString(rng),
		"took_ms", time.Since(start).Milliseconds(), "error", err)
	if s3IsNotFoundErr(err) {
		return nil, ErrDoesNotExist
	} else if err != nil {
		return nil, err
	}
	return out.Body, nil
}
