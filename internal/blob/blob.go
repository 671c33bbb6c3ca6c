// Package blob is the single entry point for archive blob storage. Callers
// depend on the Store contract here and never import the infra backends.
package blob

import (
	"context"
	"fmt"
	"os"
	"strings"

	"nestcore/internal/blob/core"
	fsstore "nestcore/internal/infra/blob/fs"
	memstore "nestcore/internal/infra/blob/memory"
	s3store "nestcore/internal/infra/blob/s3"
)

type (
	Driver       = core.Driver
	Store        = core.Store
	Object       = core.Object
	WriteOptions = core.WriteOptions
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

var (
	ErrNotFound = core.ErrNotFound
	ErrExists   = core.ErrExists
)

// S3Config mirrors the S3 backend settings.
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	Prefix    string `yaml:"prefix"`
	PathStyle bool   `yaml:"path_style"`
}

// Config selects and configures a backend.
type Config struct {
	Driver Driver   `yaml:"driver"`
	Root   string   `yaml:"root"`
	S3     S3Config `yaml:"s3"`
}

// ConfigFromEnv reads the NESTCORE_BLOB_* variables. The driver defaults to fs.
//
//	NESTCORE_BLOB_DRIVER=fs|memory|s3
//	NESTCORE_BLOB_FS_ROOT=<dir>
//	NESTCORE_BLOB_S3_BUCKET, _REGION, _ENDPOINT, _PREFIX, _PATH_STYLE
func ConfigFromEnv() Config {
	return Config{
		Driver: Driver(strings.ToLower(strings.TrimSpace(os.Getenv("NESTCORE_BLOB_DRIVER")))),
		Root:   os.Getenv("NESTCORE_BLOB_FS_ROOT"),
		S3: S3Config{
			Bucket:    os.Getenv("NESTCORE_BLOB_S3_BUCKET"),
			Region:    os.Getenv("NESTCORE_BLOB_S3_REGION"),
			Endpoint:  os.Getenv("NESTCORE_BLOB_S3_ENDPOINT"),
			Prefix:    os.Getenv("NESTCORE_BLOB_S3_PREFIX"),
			PathStyle: strings.EqualFold(os.Getenv("NESTCORE_BLOB_S3_PATH_STYLE"), "true"),
		},
	}
}

// Open constructs the backend named by cfg.Driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", DriverFilesystem:
		store, err := fsstore.New(cfg.Root)
		if err != nil {
			return nil, err
		}
		return store, nil
	case DriverMemory:
		return memstore.New(), nil
	case DriverS3:
		if cfg.S3.Bucket == "" {
			return nil, fmt.Errorf("blob driver s3 requires a bucket")
		}
		store, err := s3store.New(ctx, s3store.Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			Prefix:          cfg.S3.Prefix,
			PathStyle:       cfg.S3.PathStyle,
			AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
}
