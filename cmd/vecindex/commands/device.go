package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/vecindex/blobstore"
	miniostore "github.com/hupe1980/vecindex/blobstore/minio"
	s3store "github.com/hupe1980/vecindex/blobstore/s3"
	"github.com/hupe1980/vecindex/storage"
	"github.com/hupe1980/vecindex/storage/badgerdev"
	"github.com/hupe1980/vecindex/storage/blobdev"
)

// deviceSpec is a parsed --device value.
type deviceSpec struct {
	scheme   string // file, badger, s3, minio
	path     string // file path or badger directory
	endpoint string // minio only
	bucket   string
	prefix   string
}

func parseDeviceSpec(s string) (deviceSpec, error) {
	if s == "" {
		return deviceSpec{}, fmt.Errorf("--device is required")
	}
	switch {
	case strings.HasPrefix(s, "s3://"):
		bucket, prefix, _ := strings.Cut(strings.TrimPrefix(s, "s3://"), "/")
		if bucket == "" {
			return deviceSpec{}, fmt.Errorf("device %q: missing bucket", s)
		}
		return deviceSpec{scheme: "s3", bucket: bucket, prefix: prefix}, nil
	case strings.HasPrefix(s, "minio://"):
		parts := strings.SplitN(strings.TrimPrefix(s, "minio://"), "/", 3)
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return deviceSpec{}, fmt.Errorf("device %q: want minio://host:port/bucket[/prefix]", s)
		}
		spec := deviceSpec{scheme: "minio", endpoint: parts[0], bucket: parts[1]}
		if len(parts) == 3 {
			spec.prefix = parts[2]
		}
		return spec, nil
	case strings.HasPrefix(s, "badger:"):
		return deviceSpec{scheme: "badger", path: strings.TrimPrefix(s, "badger:")}, nil
	case strings.HasPrefix(s, "file:"):
		return deviceSpec{scheme: "file", path: strings.TrimPrefix(s, "file:")}, nil
	default:
		return deviceSpec{scheme: "file", path: s}, nil
	}
}

func openDevice(ctx context.Context, spec string, e *env) (storage.Device, error) {
	ds, err := parseDeviceSpec(spec)
	if err != nil {
		return nil, err
	}

	switch ds.scheme {
	case "file":
		return storage.OpenFile(ds.path, func(o *storage.FileOptions) {
			if globalFlags.pageSize != 0 {
				o.PageSize = globalFlags.pageSize
			}
		})
	case "badger":
		return badgerdev.Open(badgerdev.Options{
			Dir:      ds.path,
			PageSize: globalFlags.pageSize,
			Logger:   e.logger.Logger,
		})
	case "s3":
		cfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		client := awss3.NewFromConfig(cfg, func(o *awss3.Options) {
			o.UsePathStyle = os.Getenv("AWS_S3_USE_PATH_STYLE") == "true"
		})
		return openBlobDevice(ctx, s3store.NewStore(client, ds.bucket, ds.prefix), e)
	case "minio":
		client, err := minio.New(ds.endpoint, &minio.Options{
			Creds:  credentials.NewEnvMinio(),
			Secure: os.Getenv("MINIO_INSECURE") != "true",
		})
		if err != nil {
			return nil, fmt.Errorf("minio client: %w", err)
		}
		return openBlobDevice(ctx, miniostore.NewStore(client, ds.bucket, ds.prefix), e)
	default:
		return nil, fmt.Errorf("unknown device scheme %q", ds.scheme)
	}
}

func openBlobDevice(ctx context.Context, store blobstore.BlobStore, e *env) (storage.Device, error) {
	c, err := blobdev.ParseCompression(globalFlags.compression)
	if err != nil {
		return nil, err
	}
	return blobdev.New(ctx, store, func(o *blobdev.Options) {
		o.PageSize = globalFlags.pageSize
		o.Compression = c
		o.Resource = e.rc
	})
}
