package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// MockS3Client is an in-memory S3API for tests.
type MockS3Client struct {
	mu      sync.RWMutex
	objects map[string]mockS3Object
}

type mockS3Object struct {
	body        []byte
	contentType string
	metadata    map[string]string
}

// NewMockS3Client creates an empty mock client.
func NewMockS3Client() *MockS3Client {
	return &MockS3Client{objects: make(map[string]mockS3Object)}
}

func mockKey(bucket, key string) string {
	return bucket + "/" + key
}

// PutObject stores an object in memory.
func (c *MockS3Client) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.objects[mockKey(aws.ToString(params.Bucket), aws.ToString(params.Key))] = mockS3Object{
		body:        body,
		contentType: aws.ToString(params.ContentType),
		metadata:    params.Metadata,
	}
	return &s3.PutObjectOutput{}, nil
}

// GetObject retrieves an object from memory.
func (c *MockS3Client) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	obj, ok := c.objects[mockKey(aws.ToString(params.Bucket), aws.ToString(params.Key))]
	if !ok {
		return nil, fmt.Errorf("NoSuchKey: %s", aws.ToString(params.Key))
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(obj.body)),
		ContentType:   aws.String(obj.contentType),
		ContentLength: aws.Int64(int64(len(obj.body))),
		Metadata:      obj.metadata,
	}, nil
}

// ListObjectsV2 lists stored objects under a prefix in key order.
func (c *MockS3Client) ListObjectsV2(_ context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	bucketPrefix := aws.ToString(params.Bucket) + "/"
	keyPrefix := aws.ToString(params.Prefix)

	c.mu.RLock()
	defer c.mu.RUnlock()
	var keys []string
	for stored := range c.objects {
		if !strings.HasPrefix(stored, bucketPrefix) {
			continue
		}
		key := strings.TrimPrefix(stored, bucketPrefix)
		if strings.HasPrefix(key, keyPrefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	contents := make([]types.Object, 0, len(keys))
	for _, key := range keys {
		contents = append(contents, types.Object{Key: aws.String(key)})
	}
	return &s3.ListObjectsV2Output{
		Contents:    contents,
		IsTruncated: aws.Bool(false),
		KeyCount:    aws.Int32(int32(len(contents))),
	}, nil
}

var _ S3API = (*MockS3Client)(nil)
