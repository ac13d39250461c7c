package cmd

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/vecshard/blobstore"
	"github.com/hupe1980/vecshard/blobstore/minio"
	"github.com/hupe1980/vecshard/blobstore/s3"
)

// storeLocation is a parsed store URL.
type storeLocation struct {
	scheme   string
	endpoint string
	bucket   string
	prefix   string
	path     string
}

func parseStoreURL(raw string) (storeLocation, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return storeLocation{}, fmt.Errorf("store url: %w", err)
	}
	trimmed := strings.Trim(u.Path, "/")

	switch u.Scheme {
	case "file":
		p := u.Path
		if u.Host != "" {
			// file://relative/dir
			p = u.Host + u.Path
		}
		if p == "" {
			return storeLocation{}, fmt.Errorf("store url %q: missing path", raw)
		}
		return storeLocation{scheme: "file", path: p}, nil
	case "s3":
		if u.Host == "" {
			return storeLocation{}, fmt.Errorf("store url %q: missing bucket", raw)
		}
		return storeLocation{scheme: "s3", bucket: u.Host, prefix: trimmed}, nil
	case "minio":
		bucket, prefix, _ := strings.Cut(trimmed, "/")
		if u.Host == "" || bucket == "" {
			return storeLocation{}, fmt.Errorf("store url %q: want minio://endpoint/bucket[/prefix]", raw)
		}
		return storeLocation{scheme: "minio", endpoint: u.Host, bucket: bucket, prefix: prefix}, nil
	default:
		return storeLocation{}, fmt.Errorf("store url %q: unsupported scheme %q", raw, u.Scheme)
	}
}

func openStore(ctx context.Context, raw string) (blobstore.Store, error) {
	loc, err := parseStoreURL(raw)
	if err != nil {
		return nil, err
	}

	switch loc.scheme {
	case "s3":
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return s3.NewStore(awss3.NewFromConfig(cfg), loc.bucket, loc.prefix), nil
	case "minio":
		client, err := miniogo.New(loc.endpoint, &miniogo.Options{
			Creds:  credentials.NewStaticV4(os.Getenv("MINIO_ACCESS_KEY"), os.Getenv("MINIO_SECRET_KEY"), ""),
			Secure: os.Getenv("MINIO_SECURE") == "true",
		})
		if err != nil {
			return nil, fmt.Errorf("minio client: %w", err)
		}
		return minio.NewStore(client, loc.bucket, loc.prefix), nil
	default:
		return blobstore.NewLocalStore(loc.path), nil
	}
}
