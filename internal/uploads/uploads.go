package uploads

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/campuskeep/lostfound/internal/domain"
	"github.com/google/uuid"
)

var allowedExtensions = map[string]bool{
	"png":  true,
	"jpg":  true,
	"jpeg": true,
	"gif":  true,
}

// Store saves item photos under a local directory with generated filenames,
// so user-supplied names never reach the filesystem.
type Store struct {
	dir      string
	maxBytes int64
}

func NewStore(dir string, maxBytes int64) *Store {
	return &Store{dir: dir, maxBytes: maxBytes}
}

// SavePhoto validates and persists an uploaded photo, returning the stored
// filename. Type and size failures are ValidationErrors.
func (s *Store) SavePhoto(fh *multipart.FileHeader) (string, error) {
	ext := extension(fh.Filename)
	if !allowedExtensions[ext] {
		return "", domain.NewValidationError("photo", "Invalid file type. Please upload PNG, JPG, JPEG, or GIF files only.")
	}

	if fh.Size > s.maxBytes {
		return "", domain.NewValidationError("photo", "Photo exceeds the maximum allowed size.")
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create uploads dir: %w", err)
	}

	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	filename := fmt.Sprintf("%s.%s", strings.ReplaceAll(uuid.NewString(), "-", ""), ext)

	dst, err := os.Create(filepath.Join(s.dir, filename))
	if err != nil {
		return "", fmt.Errorf("failed to create photo file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, io.LimitReader(src, s.maxBytes)); err != nil {
		return "", fmt.Errorf("failed to write photo: %w", err)
	}

	return filename, nil
}

func extension(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 || idx == len(filename)-1 {
		return ""
	}
	return strings.ToLower(filename[idx+1:])
}
