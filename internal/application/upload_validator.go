package application

import (
	"fmt"
	"strings"

	"facebot/internal/domain"
)

// ValidateUpload checks a candidate file against the upload policy: image/* up to
// 5 MiB, video/* up to 50 MiB. It performs no I/O.
func ValidateUpload(mimeType string, size int64) error {
	mediaType := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = strings.TrimSpace(mediaType[:i])
	}

	var limit int64
	var kind string
	switch {
	case strings.HasPrefix(mediaType, "image/"):
		limit, kind = domain.MaxImageBytes, "Images"
	case strings.HasPrefix(mediaType, "video/"):
		limit, kind = domain.MaxVideoBytes, "Videos"
	default:
		shown := mediaType
		if shown == "" {
			shown = "unknown"
		}
		return &domain.ValidationError{
			Reason:  domain.ValidationUnsupportedType,
			Message: fmt.Sprintf("❌ Unsupported file type (%s). Please upload an image or a video.", shown),
		}
	}

	if size > limit {
		return &domain.ValidationError{
			Reason:  domain.ValidationTooLarge,
			Message: fmt.Sprintf("❌ File is too large (%s). %s must be %s or smaller.", formatSize(size), kind, formatSize(limit)),
		}
	}
	return nil
}

func formatSize(size int64) string {
	if size >= domain.MiB {
		return fmt.Sprintf("%.1f MB", float64(size)/float64(domain.MiB))
	}
	return fmt.Sprintf("%d KB", (size+1023)/1024)
}
