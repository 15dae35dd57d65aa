// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package attach

import (
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/jeranaias/cleo/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrFileNotFound is returned when the path does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrFileTooLarge is returned when a file exceeds the size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrUnsupported is returned for files that are neither text nor image.
	ErrUnsupported = errors.New("unsupported file type")
)

// =============================================================================
// LOADER
// =============================================================================

// textExtensions are accepted as text regardless of detected MIME type.
var textExtensions = map[string]string{
	".js":   "text/javascript",
	".py":   "text/x-python",
	".css":  "text/css",
	".json": "application/json",
	".md":   "text/markdown",
	".txt":  "text/plain",
}

// Loader turns files into attachments.
type Loader struct {
	// MaxTextSize is the maximum size of a text file (default: 256KB)
	MaxTextSize int64

	// MaxImageSize is the maximum size of an image (default: 5MB)
	MaxImageSize int64
}

// DefaultLoader returns a loader with default limits.
func DefaultLoader() *Loader {
	return &Loader{
		MaxTextSize:  256 * 1024,
		MaxImageSize: 5 * 1024 * 1024,
	}
}

// Load reads path into an attachment.
func (l *Loader) Load(path string) (*model.Attachment, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrUnsupported, path)
	}
	limit := l.MaxImageSize
	if limit < l.MaxTextSize {
		limit = l.MaxTextSize
	}
	if info.Size() > limit {
		return nil, fmt.Errorf("%w: %s (%d bytes)", ErrFileTooLarge, path, info.Size())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return l.FromBytes(filepath.Base(path), data)
}

// FromBytes classifies data by name and content and builds the attachment.
func (l *Loader) FromBytes(name string, data []byte) (*model.Attachment, error) {
	mimeType := DetectMIME(name, data)

	switch {
	case strings.HasPrefix(mimeType, "image/"):
		if int64(len(data)) > l.MaxImageSize {
			return nil, fmt.Errorf("%w: %s", ErrFileTooLarge, name)
		}
		return &model.Attachment{
			Name:     name,
			MIMEType: mimeType,
			Kind:     model.AttachmentImage,
			DataURL:  DataURL(mimeType, data),
		}, nil

	case IsText(name, mimeType):
		if int64(len(data)) > l.MaxTextSize {
			return nil, fmt.Errorf("%w: %s", ErrFileTooLarge, name)
		}
		text, err := decodeText(data)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		return &model.Attachment{
			Name:     name,
			MIMEType: mimeType,
			Kind:     model.AttachmentText,
			Text:     text,
		}, nil
	}

	return nil, fmt.Errorf("%w: %s (%s)", ErrUnsupported, name, mimeType)
}

// DetectMIME returns the MIME type of a file, preferring the extension and
// falling back to content sniffing.
func DetectMIME(name string, data []byte) string {
	ext := strings.ToLower(filepath.Ext(name))
	if t, ok := textExtensions[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		if base, _, err := mime.ParseMediaType(t); err == nil {
			return base
		}
		return t
	}
	sniffed := http.DetectContentType(data)
	if base, _, err := mime.ParseMediaType(sniffed); err == nil {
		return base
	}
	return sniffed
}

// IsText reports whether a file is accepted as a text attachment.
func IsText(name, mimeType string) bool {
	if _, ok := textExtensions[strings.ToLower(filepath.Ext(name))]; ok {
		return true
	}
	return strings.HasPrefix(mimeType, "text/")
}

// DataURL encodes data as a base64 data: URL.
func DataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// decodeText converts data to UTF-8, honoring a UTF-8 or UTF-16 BOM.
func decodeText(data []byte) (string, error) {
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	out, _, err := transform.Bytes(dec, data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
