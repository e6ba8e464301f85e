package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/opspilot/opspilot/internal/application/port/output"
)

// S3StorageGateway implements StorageGateway on AWS S3.
// Key structure: <prefix>/artifacts/<taskID>/<artifactID>/content plus a
// sibling metadata.json object for querying.
type S3StorageGateway struct {
	client     S3API
	bucketName string
	prefix     string
	now        func() time.Time
}

// S3Config holds S3 storage gateway configuration.
type S3Config struct {
	BucketName string // S3 bucket name
	Prefix     string // Optional key prefix
	Region     string // AWS region; empty uses the default chain
}

// NewS3StorageGateway creates an S3-backed storage gateway using the
// default AWS credential chain.
func NewS3StorageGateway(cfg S3Config) (*S3StorageGateway, error) {
	awsCfg, err := config.LoadDefaultConfig(context.Background())
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	if cfg.Region != "" {
		awsCfg.Region = cfg.Region
	}
	return NewS3StorageGatewayWithClient(s3.NewFromConfig(awsCfg), cfg.BucketName, cfg.Prefix), nil
}

// NewS3StorageGatewayWithClient creates a gateway over a custom client,
// primarily for tests.
func NewS3StorageGatewayWithClient(client S3API, bucketName, prefix string) *S3StorageGateway {
	return &S3StorageGateway{
		client:     client,
		bucketName: bucketName,
		prefix:     prefix,
		now:        time.Now,
	}
}

// SaveArtifact uploads an artifact and its metadata document.
func (g *S3StorageGateway) SaveArtifact(ctx context.Context, req output.SaveArtifactRequest) (*output.ArtifactMetadata, error) {
	artifactID := generateArtifactID(req.Content)
	contentKey := g.buildKey("artifacts", req.TaskID, artifactID, "content")

	s3Metadata := map[string]string{
		"artifact-id":   artifactID,
		"task-id":       req.TaskID,
		"artifact-type": string(req.Type),
	}
	for k, v := range req.Metadata {
		s3Metadata[k] = v
	}

	_, err := g.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(g.bucketName),
		Key:         aws.String(contentKey),
		Body:        bytes.NewReader(req.Content),
		ContentType: aws.String(req.ContentType),
		Metadata:    s3Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("upload to S3: %w", err)
	}

	metadata := output.ArtifactMetadata{
		ID:          artifactID,
		TaskID:      req.TaskID,
		Type:        req.Type,
		Label:       Slugify(req.Label),
		StoragePath: fmt.Sprintf("s3://%s/%s", g.bucketName, contentKey),
		ContentType: req.ContentType,
		Size:        int64(len(req.Content)),
		UploadedAt:  g.now(),
		Metadata:    req.Metadata,
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	_, err = g.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(g.bucketName),
		Key:         aws.String(g.buildKey("artifacts", req.TaskID, artifactID, "metadata.json")),
		Body:        bytes.NewReader(metadataJSON),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("upload metadata to S3: %w", err)
	}
	return &metadata, nil
}

// LoadArtifact retrieves an artifact by task and artifact ID.
func (g *S3StorageGateway) LoadArtifact(ctx context.Context, taskID, artifactID string) (*output.Artifact, error) {
	metadata, err := g.loadMetadata(ctx, g.buildKey("artifacts", taskID, artifactID, "metadata.json"))
	if err != nil {
		return nil, fmt.Errorf("artifact not found: %s/%s: %w", taskID, artifactID, err)
	}

	obj, err := g.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(g.bucketName),
		Key:    aws.String(g.buildKey("artifacts", taskID, artifactID, "content")),
	})
	if err != nil {
		return nil, fmt.Errorf("download from S3: %w", err)
	}
	defer obj.Body.Close()

	content, err := io.ReadAll(obj.Body)
	if err != nil {
		return nil, fmt.Errorf("read S3 object: %w", err)
	}
	return &output.Artifact{ID: artifactID, Content: content, Metadata: *metadata}, nil
}

// ListArtifacts lists artifact metadata for a task, oldest first.
func (g *S3StorageGateway) ListArtifacts(ctx context.Context, taskID string) ([]*output.ArtifactMetadata, error) {
	taskPrefix := g.buildKey("artifacts", taskID) + "/"
	artifacts := []*output.ArtifactMetadata{}

	var continuationToken *string
	for {
		page, err := g.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(g.bucketName),
			Prefix:            aws.String(taskPrefix),
			ContinuationToken: continuationToken,
		})
		if err != nil {
			return nil, fmt.Errorf("list S3 objects: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasSuffix(key, "/metadata.json") {
				continue
			}
			metadata, err := g.loadMetadata(ctx, key)
			if err != nil {
				continue
			}
			artifacts = append(artifacts, metadata)
		}
		if page.IsTruncated == nil || !*page.IsTruncated {
			break
		}
		continuationToken = page.NextContinuationToken
	}

	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].UploadedAt.Before(artifacts[j].UploadedAt)
	})
	return artifacts, nil
}

func (g *S3StorageGateway) loadMetadata(ctx context.Context, key string) (*output.ArtifactMetadata, error) {
	obj, err := g.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(g.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	defer obj.Body.Close()

	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return nil, err
	}
	var metadata output.ArtifactMetadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return &metadata, nil
}

func (g *S3StorageGateway) buildKey(parts ...string) string {
	if g.prefix != "" {
		parts = append([]string{g.prefix}, parts...)
	}
	return path.Join(parts...)
}

var _ output.StorageGateway = (*S3StorageGateway)(nil)
