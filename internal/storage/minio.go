package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"postflow/internal/config"
)

const noSuchKey = "NoSuchKey"

// bucketStorage keeps post media in an S3-compatible bucket. It is safe for
// concurrent use.
type bucketStorage struct {
	client *minio.Client
	bucket string
}

func validateMinIO(cfg config.MinIOConfig) error {
	switch {
	case cfg.Endpoint == "":
		return errors.New("minio endpoint is required")
	case cfg.AccessKey == "" || cfg.SecretKey == "":
		return errors.New("minio credentials are required")
	case cfg.Bucket == "":
		return errors.New("minio bucket is required")
	}
	return nil
}

// NewMinIO connects to the media bucket, creating it when missing.
func NewMinIO(cfg config.MinIOConfig) (Storage, error) {
	if err := validateMinIO(cfg); err != nil {
		return nil, err
	}

	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	b := &bucketStorage{client: cli, bucket: cfg.Bucket}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := b.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *bucketStorage) ensureBucket(ctx context.Context) error {
	exists, err := b.client.BucketExists(ctx, b.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", b.bucket, err)
	}
	if exists {
		return nil
	}
	if err := b.client.MakeBucket(ctx, b.bucket, minio.MakeBucketOptions{}); err != nil {
		// Another replica may have created it in the meantime.
		if minio.ToErrorResponse(err).Code == "BucketAlreadyOwnedByYou" {
			return nil
		}
		return fmt.Errorf("create bucket %q: %w", b.bucket, err)
	}
	return nil
}

// objectKey rejects keys that are empty or try to climb out of the bucket prefix.
func objectKey(key string) (string, error) {
	clean := strings.TrimPrefix(path.Clean("/"+key), "/")
	if clean == "" || strings.Contains(key, "..") {
		return "", ErrInvalidKey
	}
	return clean, nil
}

func (b *bucketStorage) Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	k, err := objectKey(key)
	if err != nil {
		return ObjectInfo{}, err
	}
	info, err := b.client.PutObject(ctx, b.bucket, k, r, opt.Size, minio.PutObjectOptions{
		ContentType:  opt.ContentType,
		UserMetadata: opt.Metadata,
	})
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("put %s: %w", k, err)
	}
	modified := info.LastModified
	if modified.IsZero() {
		modified = time.Now()
	}
	return ObjectInfo{
		Key:          k,
		Size:         info.Size,
		ETag:         info.ETag,
		ContentType:  opt.ContentType,
		LastModified: modified,
		Metadata:     opt.Metadata,
	}, nil
}

func (b *bucketStorage) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	k, err := objectKey(key)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	obj, err := b.client.GetObject(ctx, b.bucket, k, minio.GetObjectOptions{})
	if err != nil {
		return nil, ObjectInfo{}, fmt.Errorf("get %s: %w", k, err)
	}
	st, err := obj.Stat()
	if err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == noSuchKey {
			return nil, ObjectInfo{}, ErrObjectNotFound
		}
		return nil, ObjectInfo{}, fmt.Errorf("stat %s: %w", k, err)
	}
	return obj, ObjectInfo{
		Key:          k,
		Size:         st.Size,
		ETag:         st.ETag,
		ContentType:  st.ContentType,
		LastModified: st.LastModified,
		Metadata:     st.UserMetadata,
	}, nil
}

// Delete treats a missing object as already deleted.
func (b *bucketStorage) Delete(ctx context.Context, key string) error {
	k, err := objectKey(key)
	if err != nil {
		return err
	}
	err = b.client.RemoveObject(ctx, b.bucket, k, minio.RemoveObjectOptions{})
	if err != nil && minio.ToErrorResponse(err).Code != noSuchKey {
		return fmt.Errorf("remove %s: %w", k, err)
	}
	return nil
}

// URL presigns a GET for the object. The response is served inline with the
// stored content type.
func (b *bucketStorage) URL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	k, err := objectKey(key)
	if err != nil {
		return "", err
	}
	params := url.Values{}
	params.Set("response-content-disposition", "inline")
	u, err := b.client.PresignedGetObject(ctx, b.bucket, k, expiry, params)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", k, err)
	}
	return u.String(), nil
}
