package models

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/HamdiBarkous/t3-chat-clone-sub000/internal/domain"
)

// MaxDocumentSize is the largest attachment the backend accepts (10 MB).
const MaxDocumentSize = 10 * 1024 * 1024

// supportedDocumentTypes mirrors the backend's allowed extension set so an
// obviously rejectable file fails fast without a network round trip.
var supportedDocumentTypes = map[string]bool{
	// Text files
	"txt": true, "md": true, "csv": true, "json": true, "xml": true, "yaml": true, "yml": true,
	// Code files
	"py": true, "js": true, "ts": true, "jsx": true, "tsx": true, "java": true,
	"cpp": true, "c": true, "h": true, "hpp": true, "go": true, "rs": true,
	"php": true, "rb": true, "swift": true, "kt": true, "scala": true, "sh": true, "sql": true,
	// Documents
	"pdf": true,
	// Images
	"jpg": true, "jpeg": true, "png": true, "gif": true, "webp": true,
}

// Document holds attachment metadata as returned by the upload endpoint.
type Document struct {
	ID        string    `json:"id"`
	MessageID string    `json:"message_id"`
	Filename  string    `json:"filename"`
	FileType  string    `json:"file_type"`
	FileSize  int64     `json:"file_size"`
	IsImage   bool      `json:"is_image"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidateDocumentUpload pre-flights a file against the backend's upload
// constraints. The server remains authoritative; this only catches uploads
// that cannot possibly succeed.
func ValidateDocumentUpload(filename string, size int64) error {
	if size > MaxDocumentSize {
		return fmt.Errorf("%s is %d bytes, above the %d byte limit: %w",
			filename, size, MaxDocumentSize, domain.ErrDocumentTooLarge)
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if ext == "" || !supportedDocumentTypes[ext] {
		return fmt.Errorf("file type %q: %w", ext, domain.ErrDocumentUnsupported)
	}
	return nil
}
