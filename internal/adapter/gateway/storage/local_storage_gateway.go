// Package storage provides artifact storage gateways over the local
// filesystem and S3, plus in-memory mocks for tests.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/afero"
	"golang.org/x/text/unicode/norm"

	"github.com/opspilot/opspilot/internal/application/port/output"
)

// LocalStorageGateway implements StorageGateway on a filesystem.
// Directory structure: <baseDir>/artifacts/<taskID>/<artifactID>/
//   - content: the artifact body
//   - metadata.json: artifact metadata
type LocalStorageGateway struct {
	fs      afero.Fs
	baseDir string
	now     func() time.Time
}

// NewLocalStorageGateway creates a filesystem-backed storage gateway.
// Pass afero.NewOsFs() for real storage or an in-memory filesystem for
// tests.
func NewLocalStorageGateway(fs afero.Fs, baseDir string) (*LocalStorageGateway, error) {
	if err := fs.MkdirAll(filepath.Join(baseDir, "artifacts"), 0755); err != nil {
		return nil, fmt.Errorf("create artifacts directory: %w", err)
	}
	return &LocalStorageGateway{fs: fs, baseDir: baseDir, now: time.Now}, nil
}

// SaveArtifact persists an artifact. Content is written to a temporary
// file and renamed into place so readers never observe a partial write.
func (g *LocalStorageGateway) SaveArtifact(ctx context.Context, req output.SaveArtifactRequest) (*output.ArtifactMetadata, error) {
	artifactID := generateArtifactID(req.Content)
	artifactDir := filepath.Join(g.baseDir, "artifacts", req.TaskID, artifactID)
	if err := g.fs.MkdirAll(artifactDir, 0755); err != nil {
		return nil, fmt.Errorf("create artifact directory: %w", err)
	}

	contentPath := filepath.Join(artifactDir, "content")
	if err := g.writeAtomic(contentPath, req.Content); err != nil {
		return nil, fmt.Errorf("write artifact content: %w", err)
	}

	metadata := output.ArtifactMetadata{
		ID:          artifactID,
		TaskID:      req.TaskID,
		Type:        req.Type,
		Label:       Slugify(req.Label),
		StoragePath: contentPath,
		ContentType: req.ContentType,
		Size:        int64(len(req.Content)),
		UploadedAt:  g.now(),
		Metadata:    req.Metadata,
	}
	metadataJSON, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	if err := g.writeAtomic(filepath.Join(artifactDir, "metadata.json"), metadataJSON); err != nil {
		return nil, fmt.Errorf("write metadata: %w", err)
	}
	return &metadata, nil
}

// LoadArtifact retrieves an artifact by task and artifact ID.
func (g *LocalStorageGateway) LoadArtifact(ctx context.Context, taskID, artifactID string) (*output.Artifact, error) {
	artifactDir := filepath.Join(g.baseDir, "artifacts", taskID, artifactID)
	metadata, err := g.readMetadata(filepath.Join(artifactDir, "metadata.json"))
	if err != nil {
		return nil, fmt.Errorf("artifact not found: %s/%s: %w", taskID, artifactID, err)
	}
	content, err := afero.ReadFile(g.fs, filepath.Join(artifactDir, "content"))
	if err != nil {
		return nil, fmt.Errorf("read artifact content: %w", err)
	}
	return &output.Artifact{ID: artifactID, Content: content, Metadata: *metadata}, nil
}

// ListArtifacts lists artifact metadata for a task, oldest first.
func (g *LocalStorageGateway) ListArtifacts(ctx context.Context, taskID string) ([]*output.ArtifactMetadata, error) {
	taskDir := filepath.Join(g.baseDir, "artifacts", taskID)
	exists, err := afero.DirExists(g.fs, taskDir)
	if err != nil {
		return nil, fmt.Errorf("check task directory: %w", err)
	}
	if !exists {
		return []*output.ArtifactMetadata{}, nil
	}

	entries, err := afero.ReadDir(g.fs, taskDir)
	if err != nil {
		return nil, fmt.Errorf("read task directory: %w", err)
	}
	artifacts := make([]*output.ArtifactMetadata, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		metadata, err := g.readMetadata(filepath.Join(taskDir, entry.Name(), "metadata.json"))
		if err != nil {
			continue
		}
		artifacts = append(artifacts, metadata)
	}
	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].UploadedAt.Before(artifacts[j].UploadedAt)
	})
	return artifacts, nil
}

func (g *LocalStorageGateway) readMetadata(path string) (*output.ArtifactMetadata, error) {
	data, err := afero.ReadFile(g.fs, path)
	if err != nil {
		return nil, err
	}
	var metadata output.ArtifactMetadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return &metadata, nil
}

func (g *LocalStorageGateway) writeAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"
	if err := afero.WriteFile(g.fs, tmpPath, data, 0644); err != nil {
		return err
	}
	return g.fs.Rename(tmpPath, path)
}

// generateArtifactID combines a ULID with a short content hash, so IDs
// sort by creation time while still reflecting the stored bytes.
func generateArtifactID(content []byte) string {
	hash := sha256.Sum256(content)
	return fmt.Sprintf("%s-%s", ulid.Make().String(), hex.EncodeToString(hash[:])[:8])
}

// Slugify reduces a label to a filesystem- and URL-safe form. Unicode is
// decomposed first so accented characters keep their base letter.
func Slugify(label string) string {
	label = norm.NFKD.String(label)
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(label) {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if isAlnum {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	slug := b.String()
	if len(slug) > 48 {
		slug = strings.TrimRight(slug[:48], "-")
	}
	return slug
}

var _ output.StorageGateway = (*LocalStorageGateway)(nil)
