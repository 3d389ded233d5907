package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config holds connection settings for an S3-compatible object store.
type S3Config struct {
	Endpoint  string `json:"endpoint" yaml:"endpoint"`
	Bucket    string `json:"bucket" yaml:"bucket"`
	AccessKey string `json:"access_key,omitempty" yaml:"access_key,omitempty"`
	SecretKey string `json:"secret_key,omitempty" yaml:"secret_key,omitempty"`
	Secure    bool   `json:"secure" yaml:"secure"`
}

// String implements fmt.Stringer without exposing the secret key.
func (c S3Config) String() string {
	secret := ""
	if c.SecretKey != "" {
		secret = "(set)"
	}
	return fmt.Sprintf("S3Config{Endpoint:%s, Bucket:%s, AccessKey:%s, SecretKey:%s, Secure:%t}",
		c.Endpoint, c.Bucket, c.AccessKey, secret, c.Secure)
}

// S3Store keeps blobs as objects in one bucket. Keys are object names.
type S3Store struct {
	client *minio.Client
	bucket string
}

// NewS3Store creates a client for cfg. It does not contact the server.
func NewS3Store(cfg S3Config) (*S3Store, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 endpoint and bucket are required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	return &S3Store{client: client, bucket: cfg.Bucket}, nil
}

// ObjectName maps a key to an object name; leading slashes and "./" are dropped.
func ObjectName(key string) string {
	return strings.TrimLeft(strings.TrimPrefix(key, "./"), "/")
}

// Put uploads data as a single object.
func (s *S3Store) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(
		ctx,
		s.bucket,
		ObjectName(key),
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{
			ContentType: "application/octet-stream",
		},
	)
	if err != nil {
		return &StorageError{Op: "put", Key: key, Err: fmt.Errorf("s3 put object: %w", err)}
	}
	return nil
}

// Get downloads the object for key.
func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, ObjectName(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, &StorageError{Op: "get", Key: key, Err: fmt.Errorf("s3 get object: %w", err)}
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, &StorageError{Op: "get", Key: key, Err: ErrNotFound}
		}
		return nil, &StorageError{Op: "get", Key: key, Err: fmt.Errorf("s3 read object: %w", err)}
	}
	return data, nil
}
