package repository

import (
	"context"
	"sync"

	"bibomarket/internal/domain/entity"
	"bibomarket/internal/domain/repository"
	"bibomarket/pkg/errors"
)

// memorySessionRepository keeps sessions for the lifetime of the process.
type memorySessionRepository struct {
	mutex    sync.RWMutex
	sessions map[string]entity.Session
}

func NewMemorySessionRepository() repository.SessionRepository {
	return &memorySessionRepository{
		sessions: make(map[string]entity.Session),
	}
}

func (r *memorySessionRepository) Get(ctx context.Context, profile string) (*entity.Session, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	session, ok := r.sessions[profile]
	if !ok {
		return nil, errors.NotFound("Session", nil)
	}
	return &session, nil
}

func (r *memorySessionRepository) Save(ctx context.Context, session *entity.Session) error {
	if session == nil || session.Profile == "" {
		return errors.BadRequest("Session profile is required", nil)
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.sessions[session.Profile] = *session
	return nil
}

func (r *memorySessionRepository) Delete(ctx context.Context, profile string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	delete(r.sessions, profile)
	return nil
}
