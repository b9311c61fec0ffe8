package bundlestore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/jvs-project/mops/pkg/config"
	"github.com/jvs-project/mops/pkg/errclass"
)

// MinIO writes bundles as objects in an S3-compatible bucket.
type MinIO struct {
	client *minio.Client
	bucket string
}

// NewMinIO connects to cfg.Endpoint and makes sure the bucket exists.
func NewMinIO(ctx context.Context, cfg config.MinIOConfig) (*MinIO, error) {
	if !cfg.Enabled() {
		return nil, errclass.ErrValidation.WithMessage("minio sink needs an endpoint and a bucket")
	}
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}
	return &MinIO{client: cli, bucket: cfg.Bucket}, nil
}

func (m *MinIO) Name() string { return "minio:" + m.bucket }

func (m *MinIO) Put(ctx context.Context, name string, data []byte) (string, error) {
	_, err := m.client.PutObject(ctx, m.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", errclass.ErrStorageWrite.Wrap(err, "upload bundle "+name)
	}
	return fmt.Sprintf("%s/%s/%s", m.client.EndpointURL(), m.bucket, name), nil
}

func (m *MinIO) Get(ctx context.Context, name string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get bundle %s: %w", name, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, errclass.ErrNotFound.WithMessagef("bundle %s not found in bucket %s", name, m.bucket)
		}
		return nil, fmt.Errorf("read bundle %s: %w", name, err)
	}
	return data, nil
}

func (m *MinIO) List(ctx context.Context) ([]string, error) {
	names := []string{}
	for obj := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list bundles: %w", obj.Err)
		}
		names = append(names, obj.Key)
	}
	sort.Strings(names)
	return names, nil
}
