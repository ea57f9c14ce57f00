// Package attach extracts attachments from raw inbound messages and
// persists them on disk, returning metadata for the ticket message row.
package attach

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/emersion/go-message/mail"
	"github.com/sirupsen/logrus"

	"ticketdesk-go/internal/model"
)

var unsafeFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]`)

// Store is the attachment persistence surface used by the pipeline.
type Store interface {
	ExtractAndSave(raw []byte, correlationID string) ([]model.AttachmentMeta, error)
}

// DiskStore saves attachments under a base directory, one subdirectory
// per message.
type DiskStore struct {
	baseDir string
}

// NewDiskStore creates a DiskStore rooted at baseDir.
func NewDiskStore(baseDir string) (*DiskStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create attachment directory: %w", err)
	}
	return &DiskStore{baseDir: baseDir}, nil
}

// ExtractAndSave walks the attachment parts of a raw message and writes
// each to <base>/msg_<correlationID>/. A single broken attachment is
// logged and skipped rather than failing the message.
func (s *DiskStore) ExtractAndSave(raw []byte, correlationID string) ([]model.AttachmentMeta, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}

	var saved []model.AttachmentMeta
	msgDir := fmt.Sprintf("msg_%s", correlationID)

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		header, ok := part.Header.(*mail.AttachmentHeader)
		if !ok {
			continue
		}

		meta, err := s.savePart(part, header, msgDir, len(saved))
		if err != nil {
			logrus.Errorf("Failed to save attachment for message %s: %v", correlationID, err)
			continue
		}
		saved = append(saved, *meta)
	}

	if len(saved) > 0 {
		logrus.Infof("Extracted %d attachments from message %s", len(saved), correlationID)
	}
	return saved, nil
}

func (s *DiskStore) savePart(part *mail.Part, header *mail.AttachmentHeader, msgDir string, index int) (*model.AttachmentMeta, error) {
	contentType, _, err := header.ContentType()
	if err != nil {
		contentType = "application/octet-stream"
	}

	filename, err := header.Filename()
	if err != nil || filename == "" {
		filename = fmt.Sprintf("attachment_%d%s", index, extensionFor(contentType))
	}
	safeName := sanitizeFilename(filename)

	dir := filepath.Join(s.baseDir, msgDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create message directory: %w", err)
	}

	path := filepath.Join(dir, safeName)
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create attachment file: %w", err)
	}
	size, err := io.Copy(f, part.Body)
	closeErr := f.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to write attachment: %w", err)
	}
	if closeErr != nil {
		return nil, fmt.Errorf("failed to close attachment file: %w", closeErr)
	}

	return &model.AttachmentMeta{
		Filename: filename,
		MIMEType: contentType,
		FilePath: filepath.Join(msgDir, safeName),
		Size:     size,
	}, nil
}

func sanitizeFilename(filename string) string {
	safe := unsafeFilenameChars.ReplaceAllString(filename, "_")
	if len(safe) > 200 {
		ext := filepath.Ext(safe)
		safe = safe[:200-len(ext)] + ext
	}
	return safe
}

func extensionFor(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "image/jpeg"):
		return ".jpg"
	case strings.HasPrefix(mimeType, "image/png"):
		return ".png"
	case strings.HasPrefix(mimeType, "image/gif"):
		return ".gif"
	case strings.HasPrefix(mimeType, "application/pdf"):
		return ".pdf"
	case strings.HasPrefix(mimeType, "text/plain"):
		return ".txt"
	case strings.HasPrefix(mimeType, "text/html"):
		return ".html"
	default:
		return ".bin"
	}
}
