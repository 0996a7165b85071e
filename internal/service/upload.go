package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

var (
	// ErrUploadTooLarge indicates the payload exceeded the configured limit.
	ErrUploadTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrUploadTypeNotAllowed indicates the MIME type is not permitted.
	ErrUploadTypeNotAllowed = errors.New("file type not allowed")
)

// maxDocumentBytes caps evidence, prerequisite and deliverable uploads.
const maxDocumentBytes = 20 * 1024 * 1024

// FileStorage abstracts upload destinations.
type FileStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// storeDocument validates and uploads a document, returning its public URL.
func storeDocument(ctx context.Context, storage FileStorage, file *multipart.FileHeader) (string, error) {
	if file == nil {
		return "", errors.New("file is required")
	}
	if file.Size > maxDocumentBytes {
		return "", ErrUploadTooLarge
	}

	handle, err := file.Open()
	if err != nil {
		return "", err
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, maxDocumentBytes+1)); err != nil {
		return "", err
	}
	if int64(buf.Len()) > maxDocumentBytes {
		return "", ErrUploadTooLarge
	}

	mime := mimetype.Detect(buf.Bytes())
	if !isAllowedDocumentType(mime.String()) {
		return "", ErrUploadTypeNotAllowed
	}

	return storage.Upload(ctx, sanitizeFileName(file.Filename), bytes.NewReader(buf.Bytes()))
}

func isAllowedDocumentType(m string) bool {
	lower := strings.ToLower(strings.TrimSpace(m))
	if strings.HasPrefix(lower, "image/") {
		return true
	}
	switch lower {
	case "application/pdf", "application/zip", "application/x-zip-compressed":
		return true
	case "application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return true
	default:
		return false
	}
}

func sanitizeFileName(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.ToLower(base)
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		if r == '-' || r == '_' {
			return r
		}
		return '-'
	}, base)
	base = strings.Trim(base, "-")
	if base == "" {
		base = fmt.Sprintf("upload-%d", time.Now().Unix())
	}
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = ".bin"
	}
	return base + ext
}
