package usecase

import (
	"context"
	"fmt"
	"strings"

	"bibomarket/internal/domain/entity"
	"bibomarket/internal/domain/service"
	"bibomarket/pkg/errors"
	"bibomarket/pkg/logger"
)

// DefaultMaxMediaSize is 10 MiB.
const DefaultMaxMediaSize int64 = 10 * 1024 * 1024

const MsgUnsupportedMediaType = "unsupported file type: only images and videos are allowed"

// MediaStager validates files picked for the message composer.
type MediaStager struct {
	source  service.MediaSource
	maxSize int64
}

func NewMediaStager(source service.MediaSource, maxSize int64) *MediaStager {
	if maxSize <= 0 {
		maxSize = DefaultMaxMediaSize
	}
	return &MediaStager{
		source:  source,
		maxSize: maxSize,
	}
}

func (s *MediaStager) MaxSize() int64 {
	return s.maxSize
}

// Validate checks size and type and returns the attachment to stage.
func (s *MediaStager) Validate(file *entity.MediaFile) (*entity.MediaAttachment, error) {
	if file == nil {
		return nil, errors.Validation("no file selected")
	}
	if file.Size > s.maxSize {
		logger.Warn("StageMedia: file %s too large: %d bytes (max: %d)", file.Name, file.Size, s.maxSize)
		return nil, errors.Validation(fmt.Sprintf("file is too large: maximum size is %dMB", s.maxSize/(1024*1024)))
	}

	mediaType := MessageMediaType(file.ContentType)
	if mediaType == "" {
		logger.Warn("StageMedia: invalid file type %q for %s", file.ContentType, file.Name)
		return nil, errors.Validation(MsgUnsupportedMediaType)
	}

	return &entity.MediaAttachment{
		File:           file,
		MediaType:      mediaType,
		PreviewVisible: true,
	}, nil
}

// Resolve opens ref through the configured source and validates it.
func (s *MediaStager) Resolve(ctx context.Context, ref string) (*entity.MediaAttachment, error) {
	if s.source == nil {
		return nil, errors.BadRequest("Attaching files by reference is not available", nil)
	}
	file, err := s.source.Open(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.Validate(file)
}

// MessageMediaType maps a MIME type to the message media type, or "" when
// the type cannot be attached.
func MessageMediaType(contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	switch {
	case strings.HasPrefix(ct, "image/"):
		return entity.MediaTypeImage
	case strings.HasPrefix(ct, "video/"):
		return entity.MediaTypeVideo
	}
	return ""
}
