// Package blob uploads profile images and returns a URL clients can fetch.
package blob

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"strings"

	"github.com/google/uuid"
)

// ErrDisabled is returned by Disabled uploaders.
var ErrDisabled = errors.New("blob storage is not configured")

// Uploader stores bytes under path and returns a download URL.
type Uploader interface {
	Put(ctx context.Context, path string, data []byte, contentType string) (string, error)
}

// Disabled is the Uploader used when no bucket is configured.
type Disabled struct{}

func (Disabled) Put(context.Context, string, []byte, string) (string, error) {
	return "", ErrDisabled
}

// ProfileImagePath returns a fresh object path for uid's profile image.
func ProfileImagePath(uid, contentType string) string {
	return fmt.Sprintf("profile_images/%s/%s%s", uid, uuid.NewString(), extensionFor(contentType))
}

func extensionFor(contentType string) string {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}
