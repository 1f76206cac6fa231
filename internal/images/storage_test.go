package images

import (
	"context"
	"io"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, rc io.ReadCloser) []byte {
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return data
}

func TestLocalStorage(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, storage.Put(ctx, "1_a.png", pngBytes, "image/png"))
	assert.Error(t, storage.Put(ctx, "1_a.png", []byte("other"), "text/plain"))

	rc, contentType, err := storage.Open(ctx, "1_a.png")
	require.NoError(t, err)
	assert.Equal(t, pngBytes, readAll(t, rc))
	assert.Equal(t, "image/png", contentType)

	_, _, err = storage.Open(ctx, "missing.png")
	assert.ErrorIs(t, err, ErrNotStored)
}

func TestS3Storage(t *testing.T) {
	bucket := os.Getenv("TEST_S3_BUCKET")
	if bucket == "" {
		t.Skip("Integration test - requires TEST_S3_BUCKET")
	}
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "eu-central-1"
	}

	ctx := context.Background()
	storage, err := NewS3Storage(ctx, bucket, region)
	require.NoError(t, err)

	name := uuid.NewString() + "_test.png"
	require.NoError(t, storage.Put(ctx, name, pngBytes, "image/png"))
	t.Cleanup(func() {
		_, _ = storage.client.DeleteObject(context.Background(), &s3.DeleteObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(storage.keyPrefix + name),
		})
	})

	rc, contentType, err := storage.Open(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, readAll(t, rc))
	assert.Equal(t, "image/png", contentType)

	_, _, err = storage.Open(ctx, uuid.NewString()+"_missing.png")
	assert.ErrorIs(t, err, ErrNotStored)

	r := NewResolver(storage, "/uploads", "/img/scooter2.png")
	ref, err := r.Store(ctx, Upload{Filename: "what?.png", Data: pngBytes})
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = storage.client.DeleteObject(context.Background(), &s3.DeleteObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(storage.keyPrefix + ref[len("/uploads/"):]),
		})
	})

	rc, _, err = r.Open(ctx, ref[len("/uploads/"):])
	require.NoError(t, err)
	assert.Equal(t, pngBytes, readAll(t, rc))
}
