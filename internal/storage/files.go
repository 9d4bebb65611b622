package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/models"
)

// MaxFileSize caps a single attachment, whether uploaded in one shot or
// reassembled from chunks.
const MaxFileSize = 50 * 1024 * 1024

// FileStore writes attachment payloads to the local upload directory.
type FileStore struct {
	dir string
}

// NewFileStore ensures the upload directory exists.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Save writes the payload under a collision-free server filename and returns
// the relative URL recorded on the attachment row.
func (s *FileStore) Save(originalName string, data []byte) (string, error) {
	if len(data) > MaxFileSize {
		return "", fmt.Errorf("file %q exceeds %d bytes", originalName, MaxFileSize)
	}

	name := fmt.Sprintf("%d-%s%s", time.Now().UnixMilli(), uuid.NewString()[:8], safeExt(originalName))
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return "/uploads/" + name, nil
}

// Delete removes a stored file by its recorded URL. Missing files are not an
// error; the row may outlive a manually pruned upload dir.
func (s *FileStore) Delete(fileURL string) error {
	name := filepath.Base(fileURL)
	if name == "." || name == "/" {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}

func safeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) > 10 {
		return ""
	}
	return ext
}

// MessageTypeFor maps an attachment MIME type onto the message content type.
func MessageTypeFor(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return models.MessageTypeImage
	case strings.HasPrefix(mimeType, "video/"):
		return models.MessageTypeVideo
	case strings.HasPrefix(mimeType, "audio/"):
		return models.MessageTypeAudio
	case mimeType == "application/pdf",
		strings.HasPrefix(mimeType, "application/msword"),
		strings.HasPrefix(mimeType, "application/vnd.openxmlformats-officedocument"),
		mimeType == "text/plain":
		return models.MessageTypeDocument
	default:
		return models.MessageTypeFile
	}
}
