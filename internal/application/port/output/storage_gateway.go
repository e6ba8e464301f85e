package output

import (
	"context"
	"time"
)

// StorageGateway persists workflow artifacts (generated scripts, email
// drafts, diagnosis reports) outside the task store. Supports local
// filesystem and cloud storage (S3).
type StorageGateway interface {
	// SaveArtifact persists an artifact and returns its metadata
	SaveArtifact(ctx context.Context, req SaveArtifactRequest) (*ArtifactMetadata, error)

	// LoadArtifact retrieves an artifact by task and artifact ID
	LoadArtifact(ctx context.Context, taskID, artifactID string) (*Artifact, error)

	// ListArtifacts lists artifact metadata for a task
	ListArtifacts(ctx context.Context, taskID string) ([]*ArtifactMetadata, error)
}

// ArtifactType classifies a stored artifact
type ArtifactType string

const (
	ArtifactTypeScript    ArtifactType = "script"    // Generated automation script
	ArtifactTypeRollback  ArtifactType = "rollback"  // Rollback script
	ArtifactTypeDraft     ArtifactType = "draft"     // Email draft
	ArtifactTypeDiagnosis ArtifactType = "diagnosis" // Diagnosis report
)

// SaveArtifactRequest describes an artifact to persist
type SaveArtifactRequest struct {
	TaskID      string            // Owning task
	Type        ArtifactType      // Artifact classification
	Label       string            // Human-readable label derived from the request text
	Content     []byte            // Artifact body
	ContentType string            // MIME type (optional)
	Metadata    map[string]string // Additional metadata
}

// Artifact is stored content plus its metadata
type Artifact struct {
	ID       string
	Content  []byte
	Metadata ArtifactMetadata
}

// ArtifactMetadata describes a stored artifact
type ArtifactMetadata struct {
	ID          string            `json:"id"`
	TaskID      string            `json:"task_id"`
	Type        ArtifactType      `json:"type"`
	Label       string            `json:"label,omitempty"`
	StoragePath string            `json:"storage_path"`
	ContentType string            `json:"content_type,omitempty"`
	Size        int64             `json:"size"`
	UploadedAt  time.Time         `json:"uploaded_at"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}
