package entity

import "io"

// MediaFile is a file picked for attachment, not yet uploaded.
type MediaFile struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`

	// Open returns the file content. It may be called more than once.
	Open func() (io.ReadCloser, error) `json:"-"`
}

// MediaAttachment is the staged file of the message composer.
type MediaAttachment struct {
	File           *MediaFile `json:"file"`
	MediaType      string     `json:"mediaType"`
	PreviewVisible bool       `json:"previewVisible"`
}
