// Package s3 stores archive blobs in an S3-compatible bucket (AWS or MinIO).
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"nestcore/internal/blob/core"
)

const defaultRegion = "us-east-1"

// Config describes the bucket and how to reach it. Credentials fall back to
// the default AWS chain when AccessKeyID is empty.
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	Prefix          string
	PathStyle       bool
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	// HTTPClient replaces the SDK transport; tests point it at a fake bucket.
	HTTPClient *http.Client
}

// Store implements core.Store on a single bucket. Keys are stored under
// Config.Prefix.
type Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// New builds a store from cfg.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.HTTPClient != nil {
			o.HTTPClient = cfg.HTTPClient
		}
	})
	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &Store{client: client, bucket: cfg.Bucket, prefix: prefix}, nil
}

func (s *Store) Driver() core.Driver { return core.DriverS3 }

// Bucket reports the target bucket name.
func (s *Store) Bucket() string { return s.bucket }

func (s *Store) objectKey(key string) (string, string, error) {
	k, err := core.CleanKey(key)
	if err != nil {
		return "", "", err
	}
	return k, s.prefix + k, nil
}

// Write uploads r unless the key already exists. The existence check and the
// upload are not atomic; archive keys carry a random suffix so collisions are
// not expected in practice.
func (s *Store) Write(ctx context.Context, key string, r io.Reader, opts core.WriteOptions) (core.Object, error) {
	k, full, err := s.objectKey(key)
	if err != nil {
		return core.Object{}, err
	}
	if _, err := s.head(ctx, k, full); err == nil {
		return core.Object{}, fmt.Errorf("%w: %s", core.ErrExists, k)
	} else if !errors.Is(err, core.ErrNotFound) {
		return core.Object{}, err
	}
	input := &s3.PutObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(full), Body: r}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if len(opts.Labels) > 0 {
		input.Metadata = core.CloneLabels(opts.Labels)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return core.Object{}, fmt.Errorf("put %s: %w", k, err)
	}
	return s.head(ctx, k, full)
}

func (s *Store) Open(ctx context.Context, key string) (core.Object, io.ReadCloser, error) {
	k, full, err := s.objectKey(key)
	if err != nil {
		return core.Object{}, nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(full)})
	if err != nil {
		return core.Object{}, nil, translate(k, err)
	}
	obj := toObject(k, aws.ToInt64(out.ContentLength), out.ContentType, out.ETag, out.Metadata, out.LastModified)
	return obj, out.Body, nil
}

func (s *Store) Stat(ctx context.Context, key string) (core.Object, error) {
	k, full, err := s.objectKey(key)
	if err != nil {
		return core.Object{}, err
	}
	return s.head(ctx, k, full)
}

func (s *Store) Remove(ctx context.Context, key string) (bool, error) {
	k, full, err := s.objectKey(key)
	if err != nil {
		return false, err
	}
	if _, err := s.head(ctx, k, full); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(full)}); err != nil {
		return false, translate(k, err)
	}
	return true, nil
}

// List pages through ListObjectsV2. Listed objects carry size and timestamp
// only; use Stat for labels.
func (s *Store) List(ctx context.Context, prefix string) ([]core.Object, error) {
	var out []core.Object
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix + prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		for _, item := range page.Contents {
			key := strings.TrimPrefix(aws.ToString(item.Key), s.prefix)
			out = append(out, toObject(key, aws.ToInt64(item.Size), nil, item.ETag, nil, item.LastModified))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *Store) head(ctx context.Context, key, full string) (core.Object, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(full)})
	if err != nil {
		return core.Object{}, translate(key, err)
	}
	return toObject(key, aws.ToInt64(out.ContentLength), out.ContentType, out.ETag, out.Metadata, out.LastModified), nil
}

func translate(key string, err error) error {
	var re *awshttp.ResponseError
	if errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound {
		return fmt.Errorf("%w: %s", core.ErrNotFound, key)
	}
	return err
}

func toObject(key string, size int64, contentType, etag *string, labels map[string]string, modified *time.Time) core.Object {
	obj := core.Object{
		Key:         key,
		Size:        size,
		ContentType: aws.ToString(contentType),
		Checksum:    strings.Trim(aws.ToString(etag), `"`),
		Labels:      core.CloneLabels(labels),
	}
	if modified != nil {
		obj.StoredAt = modified.UTC()
	}
	return obj
}
