package service

import (
	"context"

	"bibomarket/internal/domain/entity"
)

// MediaSource resolves a reference picked by the user (a local path, a
// gs:// URI) into a MediaFile. It does not validate size or type.
type MediaSource interface {
	Open(ctx context.Context, ref string) (*entity.MediaFile, error)
}
