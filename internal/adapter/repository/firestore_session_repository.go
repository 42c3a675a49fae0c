package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"bibomarket/internal/domain/entity"
	"bibomarket/internal/domain/repository"
	"bibomarket/pkg/errors"
	"bibomarket/pkg/logger"
)

type firestoreSessionRepository struct {
	client     *firestore.Client
	collection string
}

func NewFirestoreSessionRepository(client *firestore.Client, collection string) repository.SessionRepository {
	if collection == "" {
		collection = "sessions"
	}
	return &firestoreSessionRepository{
		client:     client,
		collection: collection,
	}
}

func (r *firestoreSessionRepository) Get(ctx context.Context, profile string) (*entity.Session, error) {
	doc, err := r.client.Collection(r.collection).Doc(profile).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Session", err)
		}
		return nil, errors.Internal("Failed to get session", err)
	}

	var session entity.Session
	if err := doc.DataTo(&session); err != nil {
		return nil, errors.Internal("Failed to parse session data", err)
	}
	session.Profile = profile
	return &session, nil
}

func (r *firestoreSessionRepository) Save(ctx context.Context, session *entity.Session) error {
	_, err := r.client.Collection(r.collection).Doc(session.Profile).Set(ctx, session)
	if err != nil {
		return errors.Internal("Failed to save session", err)
	}

	logger.Info("Saved session for profile %s (user %s)", session.Profile, session.User.ID)
	return nil
}

func (r *firestoreSessionRepository) Delete(ctx context.Context, profile string) error {
	_, err := r.client.Collection(r.collection).Doc(profile).Delete(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil
		}
		return errors.Internal("Failed to delete session", err)
	}
	return nil
}
