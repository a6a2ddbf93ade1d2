package services

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

type FileInput struct {
	FileName string
	MimeType string
	Reader   io.Reader
}

type StoredFile struct {
	StorageKey string
	FileName   string
	MimeType   string
	SizeBytes  int64
}

// Uploader persists attachment bytes and hands back a stable descriptor.
// Implementations must never reuse a storage key.
type Uploader interface {
	Upload(ctx context.Context, in FileInput) (StoredFile, error)
}

// LocalUploader writes files under Dir with uuid-derived names, so two
// uploads of the same filename never collide on a storage path.
type LocalUploader struct {
	Dir string
}

func (u *LocalUploader) Upload(ctx context.Context, in FileInput) (StoredFile, error) {
	if err := ctx.Err(); err != nil {
		return StoredFile{}, err
	}

	if err := os.MkdirAll(u.Dir, 0o755); err != nil {
		return StoredFile{}, err
	}

	key := uuid.NewString() + filepath.Ext(in.FileName)
	f, err := os.Create(filepath.Join(u.Dir, key))
	if err != nil {
		return StoredFile{}, err
	}
	defer f.Close()

	n, err := io.Copy(f, in.Reader)
	if err != nil {
		return StoredFile{}, err
	}

	return StoredFile{
		StorageKey: key,
		FileName:   in.FileName,
		MimeType:   in.MimeType,
		SizeBytes:  n,
	}, nil
}
