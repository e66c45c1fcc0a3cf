package storage

import (
	"context"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/load28/foodie/internal/config"
)

type fakeS3 struct {
	objects map[string][]byte
	deleted []string
	putErr  error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*params.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, *params.Key)
	f.deleted = append(f.deleted, *params.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestObjectStore_Upload(t *testing.T) {
	fake := newFakeS3()
	store := NewObjectStoreWithClient(fake, config.AWSConfig{
		Region:   "ap-northeast-2",
		S3Bucket: "foodie-images",
	})

	url, err := store.Upload(context.Background(), "images/u1/img1.jpg", "image/jpeg", []byte("jpeg-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "https://foodie-images.s3.ap-northeast-2.amazonaws.com/images/u1/img1.jpg", url)
	assert.Equal(t, []byte("jpeg-bytes"), fake.objects["images/u1/img1.jpg"])
}

func TestObjectStore_URLPrefersCDN(t *testing.T) {
	store := NewObjectStoreWithClient(newFakeS3(), config.AWSConfig{
		Region:           "ap-northeast-2",
		S3Bucket:         "foodie-images",
		CloudFrontDomain: "cdn.foodie.example.com",
	})

	assert.Equal(t, "https://cdn.foodie.example.com/images/u1/img1.jpg", store.URLFor("images/u1/img1.jpg"))
}

func TestObjectStore_Delete(t *testing.T) {
	fake := newFakeS3()
	store := NewObjectStoreWithClient(fake, config.AWSConfig{Region: "ap-northeast-2", S3Bucket: "b"})

	_, err := store.Upload(context.Background(), "k", "image/jpeg", []byte("x"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(context.Background(), "k"))
	assert.NotContains(t, fake.objects, "k")

	// Deleting an absent key is not an error
	require.NoError(t, store.Delete(context.Background(), "missing"))
}
