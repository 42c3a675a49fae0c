package repository

import (
	"context"

	"bibomarket/internal/domain/entity"
)

// SessionRepository persists the session of a local profile between runs.
type SessionRepository interface {
	// Get returns a NOT_FOUND AppError when the profile has no session.
	Get(ctx context.Context, profile string) (*entity.Session, error)
	Save(ctx context.Context, session *entity.Session) error
	Delete(ctx context.Context, profile string) error
}
