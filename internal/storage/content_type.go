package storage

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

// =============================================================================
// Content Type Detection
// =============================================================================

// DetectContentType determines the MIME type of a file.
//
// Detection priority:
// 1. If providedType is non-empty and not the generic binary type, use it
// 2. Try to detect from file extension using mime.TypeByExtension
// 3. Sniff content from the first 512 bytes of data (if available)
// 4. Fall back to "application/octet-stream"
func DetectContentType(providedType, filename string, data io.Reader) string {
	if providedType != "" && providedType != "application/octet-stream" {
		return providedType
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if contentType := mime.TypeByExtension(ext); contentType != "" {
		return contentType
	}

	if data != nil {
		// http.DetectContentType needs at most 512 bytes
		buffer := make([]byte, 512)
		n, err := io.ReadFull(data, buffer)
		if err == nil || err == io.EOF || err == io.ErrUnexpectedEOF {
			return http.DetectContentType(buffer[:n])
		}
	}

	return "application/octet-stream"
}

// =============================================================================
// Attachment Validation
// =============================================================================

// allowedAttachmentTypes defines the MIME types accepted for report
// attachments: images, PDFs, and Word documents.
var allowedAttachmentTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true, // Some systems use this instead of image/jpeg
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/heic": true, // iPhone photos
	"image/heif": true,
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
}

// allowedAttachmentExts backs the extension fallback for browsers that send
// no content type (or the generic binary type) for an attachment.
var allowedAttachmentExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".heic": true,
	".heif": true,
	".pdf":  true,
	".doc":  true,
	".docx": true,
}

// IsAllowedAttachment checks whether a file may be attached to a report.
//
// The browser-supplied content type is authoritative when present. When it is
// empty or the generic binary type, the decision falls back to the filename
// extension.
func IsAllowedAttachment(contentType, filename string) bool {
	baseType := normalizeContentType(contentType)
	if baseType != "" && baseType != "application/octet-stream" {
		return allowedAttachmentTypes[baseType]
	}
	return allowedAttachmentExts[strings.ToLower(filepath.Ext(filename))]
}

// IsImage returns true if the content type is any image format.
func IsImage(contentType string) bool {
	return strings.HasPrefix(normalizeContentType(contentType), "image/")
}

// normalizeContentType strips parameters (like charset) and lowercases the
// base MIME type.
func normalizeContentType(contentType string) string {
	baseType := strings.Split(contentType, ";")[0]
	return strings.TrimSpace(strings.ToLower(baseType))
}
