package snapshot

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

const (
	// MaxFileSize is the largest upload accepted (20MB)
	MaxFileSize = 20 * 1024 * 1024

	// MIMEWebP is decoded through libwebp rather than the image registry
	MIMEWebP = "image/webp"
)

// SupportedImageTypes lists the upload extensions the client accepts
var SupportedImageTypes = []string{
	".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".tiff", ".tif",
}

// IsImageFile checks if a file has a supported image extension
func IsImageFile(path string) bool {
	return MIMETypeForExt(filepath.Ext(path)) != ""
}

// MIMETypeForExt returns the MIME type for an image extension, or "" if unsupported
func MIMETypeForExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return MIMEJPEG
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return MIMEWebP
	case ".bmp":
		return "image/bmp"
	case ".tiff", ".tif":
		return "image/tiff"
	default:
		return ""
	}
}

// ValidateFile checks that path is a readable, supported image within MaxFileSize
func ValidateFile(path string) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to access file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory, not an image", path)
	}
	if info.Size() > MaxFileSize {
		return nil, fmt.Errorf("file size %s exceeds maximum of %s", FormatSize(info.Size()), FormatSize(MaxFileSize))
	}
	if !IsImageFile(path) {
		return nil, fmt.Errorf("unsupported image format: %s", filepath.Ext(path))
	}
	return info, nil
}

// FromFile reads an uploaded image as-is into a data URL
func FromFile(path string) (DataURL, error) {
	if _, err := ValidateFile(path); err != nil {
		return "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}

	return Encode(MIMETypeForExt(filepath.Ext(path)), data), nil
}

func decodeBytes(mimeType string, data []byte) (image.Image, error) {
	if mimeType == MIMEWebP {
		img, err := webp.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode webp: %w", err)
		}
		return img, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// FormatSize formats a byte size as a human-readable string
func FormatSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}
