package storage

import (
	"context"
	"strings"

	"bibomarket/internal/domain/entity"
	"bibomarket/internal/domain/service"
	"bibomarket/pkg/errors"
)

// Source is a MediaSource that knows which references it can open.
type Source interface {
	service.MediaSource
	Handles(ref string) bool
}

// MultiSource hands a reference to the first source that handles it.
type MultiSource struct {
	sources []Source
}

func NewMultiSource(sources ...Source) *MultiSource {
	kept := make([]Source, 0, len(sources))
	for _, s := range sources {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &MultiSource{sources: kept}
}

func (m *MultiSource) Open(ctx context.Context, ref string) (*entity.MediaFile, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, errors.Validation("no file selected")
	}
	for _, s := range m.sources {
		if s.Handles(ref) {
			return s.Open(ctx, ref)
		}
	}
	return nil, errors.BadRequest("No storage is configured for "+ref, nil)
}
