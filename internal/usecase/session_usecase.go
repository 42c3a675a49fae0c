package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"bibomarket/internal/domain/entity"
	"bibomarket/internal/domain/repository"
	"bibomarket/internal/infrastructure/events"
	"bibomarket/pkg/errors"
	"bibomarket/pkg/logger"
)

// SessionUseCase owns the lifecycle of the signed-in session: created at
// login, restored at startup, destroyed at logout or when the backend
// rejects the token. Transport and controllers receive it at construction
// time and ask it for the token on every call.
type SessionUseCase struct {
	sessionRepo repository.SessionRepository
	events      EventPublisher
	profile     string
	now         func() time.Time

	mutex   sync.RWMutex
	current *entity.Session
}

func NewSessionUseCase(sessionRepo repository.SessionRepository, publisher EventPublisher, profile string) *SessionUseCase {
	if profile == "" {
		profile = "default"
	}
	return &SessionUseCase{
		sessionRepo: sessionRepo,
		events:      publisherOrNop(publisher),
		profile:     profile,
		now:         time.Now,
	}
}

type BeginSessionInput struct {
	Token string
	User  entity.User
}

func (uc *SessionUseCase) Begin(ctx context.Context, input BeginSessionInput) (*entity.Session, error) {
	token := strings.TrimSpace(input.Token)
	if token == "" {
		return nil, errors.Validation("token is required")
	}
	if input.User.ID == "" {
		return nil, errors.Validation("user id is required")
	}

	session := &entity.Session{
		Profile:   uc.profile,
		Token:     token,
		User:      input.User,
		CreatedAt: uc.now().UTC(),
		ExpiresAt: tokenExpiry(token),
	}
	if session.Expired(uc.now()) {
		return nil, errors.Unauthorized("The provided token has already expired", nil)
	}

	if err := uc.sessionRepo.Save(ctx, session); err != nil {
		logger.Error("Begin Error: Failed to persist session for profile %s: %v", uc.profile, err)
		return nil, err
	}

	uc.mutex.Lock()
	previous := uc.current
	uc.current = session
	uc.mutex.Unlock()

	// A different user signing in ends the previous user's session first,
	// so controllers drop that user's state.
	if previous != nil && previous.User.ID != session.User.ID {
		logger.Info("Begin: user %s replaces the session of user %s", session.User.ID, previous.User.ID)
		uc.events.Publish(events.TopicSessionEnded, previous.User)
	}
	uc.events.Publish(events.TopicSessionStarted, session.User)
	return session, nil
}

// Restore loads the persisted session of the profile, if any. An expired
// session is discarded.
func (uc *SessionUseCase) Restore(ctx context.Context) (*entity.Session, error) {
	session, err := uc.sessionRepo.Get(ctx, uc.profile)
	if err != nil {
		if errors.Is(err, errors.CodeNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if session.ExpiresAt == nil {
		session.ExpiresAt = tokenExpiry(session.Token)
	}
	if session.Token == "" || session.Expired(uc.now()) {
		logger.Info("Restore: stored session for profile %s is expired, discarding", uc.profile)
		if err := uc.sessionRepo.Delete(ctx, uc.profile); err != nil {
			logger.Error("Restore Error: Failed to delete expired session: %v", err)
		}
		return nil, nil
	}

	uc.mutex.Lock()
	uc.current = session
	uc.mutex.Unlock()
	return session, nil
}

func (uc *SessionUseCase) End(ctx context.Context) error {
	uc.mutex.Lock()
	had := uc.current != nil
	uc.current = nil
	uc.mutex.Unlock()

	if err := uc.sessionRepo.Delete(ctx, uc.profile); err != nil && !errors.Is(err, errors.CodeNotFound) {
		logger.Error("End Error: Failed to delete session for profile %s: %v", uc.profile, err)
		return err
	}
	if had {
		uc.events.Publish(events.TopicSessionEnded, nil)
	}
	return nil
}

// Expire is the unauthorized hook of the transport. It ends the session
// and tells the shell to go back to the login view.
func (uc *SessionUseCase) Expire() {
	uc.mutex.RLock()
	had := uc.current != nil
	uc.mutex.RUnlock()
	if !had {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := uc.End(ctx); err != nil {
		logger.Error("Expire Error: %v", err)
	}
	uc.events.Publish(events.TopicSessionExpired, nil)
}

func (uc *SessionUseCase) Current() (*entity.Session, bool) {
	uc.mutex.RLock()
	defer uc.mutex.RUnlock()
	if uc.current == nil {
		return nil, false
	}
	s := *uc.current
	return &s, true
}

func (uc *SessionUseCase) UserID() string {
	uc.mutex.RLock()
	defer uc.mutex.RUnlock()
	if uc.current == nil {
		return ""
	}
	return uc.current.User.ID
}

// Token implements marketapi.TokenSource.
func (uc *SessionUseCase) Token() (string, error) {
	uc.mutex.RLock()
	session := uc.current
	uc.mutex.RUnlock()

	if session == nil || session.Token == "" {
		return "", errors.AuthRequired()
	}
	if session.Expired(uc.now()) {
		return "", errors.Unauthorized("Your session has expired. Please sign in again.", nil)
	}
	return session.Token, nil
}

// tokenExpiry reads the exp claim of a JWT without verifying it; the
// gateway cannot verify backend signatures and only uses exp to avoid
// sending a token that is certainly dead. Opaque tokens never expire
// locally.
func tokenExpiry(token string) *time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	t := exp.Time.UTC()
	return &t
}
