package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// BlobStore resolves and stores opaque source-document locations. File
// storage mechanics belong to a collaborator; ingestion only needs to
// read a buffer back for asynchronous re-processing.
type BlobStore interface {
	Save(ctx context.Context, data []byte, extension string) (location string, err error)
	Load(ctx context.Context, location string) ([]byte, error)
}

// FSStore is a directory-backed BlobStore.
type FSStore struct {
	Dir string
}

// Save writes the buffer under a generated name and returns its location.
func (s FSStore) Save(ctx context.Context, data []byte, extension string) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("ingest: blob dir: %w", err)
	}
	ext := strings.TrimPrefix(extension, ".")
	name := uuid.NewString()
	if ext != "" {
		name += "." + ext
	}
	path := filepath.Join(s.Dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("ingest: blob write: %w", err)
	}
	return name, nil
}

// Load reads the buffer back.
func (s FSStore) Load(ctx context.Context, location string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir, filepath.Base(location)))
	if err != nil {
		return nil, fmt.Errorf("ingest: blob read: %w", err)
	}
	return data, nil
}
