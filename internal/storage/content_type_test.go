package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAllowedAttachment(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		filename    string
		want        bool
	}{
		{"jpeg by mime", "image/jpeg", "scene.jpg", true},
		{"png by mime", "image/png", "scene.png", true},
		{"pdf by mime", "application/pdf", "statement.pdf", true},
		{"docx by mime", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", "statement.docx", true},
		{"legacy word by mime", "application/msword", "statement.doc", true},
		{"mime with charset parameter", "application/pdf; charset=binary", "statement.pdf", true},
		{"video rejected", "video/mp4", "clip.mp4", false},
		{"executable rejected", "application/x-msdownload", "setup.exe", false},
		{"empty mime falls back to extension", "", "scene.jpeg", true},
		{"generic mime falls back to extension", "application/octet-stream", "statement.docx", true},
		{"empty mime with bad extension", "", "script.sh", false},
		{"generic mime with bad extension", "application/octet-stream", "archive.zip", false},
		{"extension is case insensitive", "", "PHOTO.JPG", true},
		{"explicit mime wins over extension", "video/mp4", "clip.jpg", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAllowedAttachment(tt.contentType, tt.filename))
		})
	}
}

func TestDetectContentType(t *testing.T) {
	tests := []struct {
		name         string
		providedType string
		filename     string
		want         string
	}{
		{"provided type wins", "image/png", "file.jpg", "image/png"},
		{"extension lookup", "", "file.pdf", "application/pdf"},
		{"generic provided type defers to extension", "application/octet-stream", "file.pdf", "application/pdf"},
		{"unknown falls back to binary", "", "file.unknownext", "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectContentType(tt.providedType, tt.filename, nil))
		})
	}
}

func TestDetectContentTypeSniffsData(t *testing.T) {
	// PDF magic bytes with no extension and no provided type.
	data := strings.NewReader("%PDF-1.7 some content")
	got := DetectContentType("", "upload", data)
	assert.Equal(t, "application/pdf", got)
}

func TestIsImage(t *testing.T) {
	assert.True(t, IsImage("image/jpeg"))
	assert.True(t, IsImage("IMAGE/PNG; charset=binary"))
	assert.False(t, IsImage("application/pdf"))
}
