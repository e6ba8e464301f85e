package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/opspilot/opspilot/internal/application/port/output"
)

// MockStorageGateway is an in-memory StorageGateway for tests and for
// runs where artifact persistence is disabled.
type MockStorageGateway struct {
	mu        sync.RWMutex
	artifacts map[string]*output.Artifact // taskID/artifactID -> artifact
	now       func() time.Time
}

// NewMockStorageGateway creates an empty in-memory gateway.
func NewMockStorageGateway() *MockStorageGateway {
	return &MockStorageGateway{
		artifacts: make(map[string]*output.Artifact),
		now:       time.Now,
	}
}

// SaveArtifact stores an artifact in memory.
func (g *MockStorageGateway) SaveArtifact(_ context.Context, req output.SaveArtifactRequest) (*output.ArtifactMetadata, error) {
	artifactID := generateArtifactID(req.Content)
	metadata := output.ArtifactMetadata{
		ID:          artifactID,
		TaskID:      req.TaskID,
		Type:        req.Type,
		Label:       Slugify(req.Label),
		StoragePath: fmt.Sprintf("mem://%s/%s", req.TaskID, artifactID),
		ContentType: req.ContentType,
		Size:        int64(len(req.Content)),
		UploadedAt:  g.now(),
		Metadata:    req.Metadata,
	}
	content := append([]byte(nil), req.Content...)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.artifacts[req.TaskID+"/"+artifactID] = &output.Artifact{
		ID:       artifactID,
		Content:  content,
		Metadata: metadata,
	}
	return &metadata, nil
}

// LoadArtifact retrieves an artifact by task and artifact ID.
func (g *MockStorageGateway) LoadArtifact(_ context.Context, taskID, artifactID string) (*output.Artifact, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	artifact, ok := g.artifacts[taskID+"/"+artifactID]
	if !ok {
		return nil, fmt.Errorf("artifact not found: %s/%s", taskID, artifactID)
	}
	return artifact, nil
}

// ListArtifacts lists artifact metadata for a task, oldest first.
func (g *MockStorageGateway) ListArtifacts(_ context.Context, taskID string) ([]*output.ArtifactMetadata, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	artifacts := []*output.ArtifactMetadata{}
	for _, artifact := range g.artifacts {
		if artifact.Metadata.TaskID == taskID {
			metadata := artifact.Metadata
			artifacts = append(artifacts, &metadata)
		}
	}
	sort.Slice(artifacts, func(i, j int) bool {
		if artifacts[i].UploadedAt.Equal(artifacts[j].UploadedAt) {
			return artifacts[i].ID < artifacts[j].ID
		}
		return artifacts[i].UploadedAt.Before(artifacts[j].UploadedAt)
	})
	return artifacts, nil
}

var _ output.StorageGateway = (*MockStorageGateway)(nil)
