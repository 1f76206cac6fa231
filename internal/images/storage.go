package images

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gabriel-vasile/mimetype"
)

// ErrNotStored is returned when no image exists under the requested name
var ErrNotStored = errors.New("image not stored")

// Storage holds uploaded image bytes by file name
type Storage interface {
	Put(ctx context.Context, name string, data []byte, contentType string) error
	Open(ctx context.Context, name string) (io.ReadCloser, string, error)
}

// LocalStorage keeps images in a directory served under the uploads prefix
type LocalStorage struct {
	dir string
}

// NewLocalStorage creates dir if needed
func NewLocalStorage(dir string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create uploads directory: %w", err)
	}
	return &LocalStorage{dir: dir}, nil
}

// Put writes a new file and refuses to overwrite an existing one
func (s *LocalStorage) Put(ctx context.Context, name string, data []byte, contentType string) error {
	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to save file: %w", err)
	}
	return f.Close()
}

// Open returns the file and its sniffed content type
func (s *LocalStorage) Open(ctx context.Context, name string) (io.ReadCloser, string, error) {
	f, err := os.Open(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", ErrNotStored
	}
	if err != nil {
		return nil, "", err
	}

	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		f.Close()
		return nil, "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, "", err
	}
	return f, mtype.String(), nil
}

// S3Storage keeps images in an S3 bucket under keyPrefix
type S3Storage struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
}

// NewS3Storage builds a client from the default AWS credential chain
func NewS3Storage(ctx context.Context, bucket, region string) (*S3Storage, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS default config: %w", err)
	}
	return &S3Storage{
		client:    s3.NewFromConfig(cfg),
		bucket:    bucket,
		keyPrefix: "uploads/",
	}, nil
}

// Put uploads the object
func (s *S3Storage) Put(ctx context.Context, name string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.keyPrefix + name),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload file to S3: %w", err)
	}
	return nil
}

// Open streams the object back
func (s *S3Storage) Open(ctx context.Context, name string) (io.ReadCloser, string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.keyPrefix + name),
	})
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return nil, "", ErrNotStored
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch file from S3: %w", err)
	}
	return out.Body, aws.ToString(out.ContentType), nil
}
