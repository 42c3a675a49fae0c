package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	adapterrepo "bibomarket/internal/adapter/repository"
	"bibomarket/internal/domain/entity"
	"bibomarket/internal/infrastructure/events"
	"bibomarket/pkg/errors"
)

var sessionUser = entity.User{ID: "u-1", Name: "Sari", Role: entity.RoleMerchant}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sessionUser.ID,
		"exp": exp.Unix(),
	}).SignedString([]byte("backend-secret"))
	require.NoError(t, err)
	return token
}

func TestSession_BeginWithOpaqueToken(t *testing.T) {
	repo := adapterrepo.NewMemorySessionRepository()
	pub := &recordingPublisher{}
	uc := NewSessionUseCase(repo, pub, "")

	session, err := uc.Begin(context.Background(), BeginSessionInput{Token: " opaque-token ", User: sessionUser})

	require.NoError(t, err)
	assert.Equal(t, "default", session.Profile)
	assert.Nil(t, session.ExpiresAt)
	assert.Equal(t, sessionUser.ID, uc.UserID())

	token, err := uc.Token()
	require.NoError(t, err)
	assert.Equal(t, "opaque-token", token)

	stored, err := repo.Get(context.Background(), "default")
	require.NoError(t, err)
	assert.Equal(t, "opaque-token", stored.Token)
	assert.Equal(t, []string{events.TopicSessionStarted}, pub.topics())
}

func TestSession_BeginValidation(t *testing.T) {
	uc := NewSessionUseCase(adapterrepo.NewMemorySessionRepository(), nil, "shop")

	_, err := uc.Begin(context.Background(), BeginSessionInput{Token: "  ", User: sessionUser})
	assert.True(t, errors.Is(err, errors.CodeValidation))

	_, err = uc.Begin(context.Background(), BeginSessionInput{Token: "t"})
	assert.True(t, errors.Is(err, errors.CodeValidation))

	_, err = uc.Begin(context.Background(), BeginSessionInput{
		Token: signedToken(t, time.Now().Add(-time.Minute)),
		User:  sessionUser,
	})
	assert.True(t, errors.Is(err, errors.CodeUnauthorized))

	_, ok := uc.Current()
	assert.False(t, ok)
}

func TestSession_TokenExpiresLocally(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	uc := NewSessionUseCase(adapterrepo.NewMemorySessionRepository(), nil, "shop")
	uc.now = func() time.Time { return now }

	session, err := uc.Begin(context.Background(), BeginSessionInput{
		Token: signedToken(t, now.Add(time.Hour)),
		User:  sessionUser,
	})
	require.NoError(t, err)
	require.NotNil(t, session.ExpiresAt)
	assert.Equal(t, now.Add(time.Hour).Unix(), session.ExpiresAt.Unix())

	_, err = uc.Token()
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = uc.Token()
	assert.True(t, errors.Is(err, errors.CodeUnauthorized))
}

func TestSession_TokenWithoutSession(t *testing.T) {
	uc := NewSessionUseCase(adapterrepo.NewMemorySessionRepository(), nil, "shop")

	_, err := uc.Token()

	assert.True(t, errors.Is(err, errors.CodeAuthRequired))
	assert.Empty(t, uc.UserID())
}

func TestSession_Restore(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing stored", func(t *testing.T) {
		uc := NewSessionUseCase(adapterrepo.NewMemorySessionRepository(), nil, "shop")
		session, err := uc.Restore(ctx)
		assert.NoError(t, err)
		assert.Nil(t, session)
	})

	t.Run("valid session", func(t *testing.T) {
		repo := adapterrepo.NewMemorySessionRepository()
		require.NoError(t, repo.Save(ctx, &entity.Session{Profile: "shop", Token: "opaque", User: sessionUser}))

		uc := NewSessionUseCase(repo, nil, "shop")
		session, err := uc.Restore(ctx)

		require.NoError(t, err)
		require.NotNil(t, session)
		assert.Equal(t, sessionUser.ID, uc.UserID())
	})

	t.Run("expired session is discarded", func(t *testing.T) {
		repo := adapterrepo.NewMemorySessionRepository()
		require.NoError(t, repo.Save(ctx, &entity.Session{
			Profile: "shop",
			Token:   signedToken(t, time.Now().Add(-time.Hour)),
			User:    sessionUser,
		}))

		uc := NewSessionUseCase(repo, nil, "shop")
		session, err := uc.Restore(ctx)

		assert.NoError(t, err)
		assert.Nil(t, session)
		_, err = repo.Get(ctx, "shop")
		assert.True(t, errors.Is(err, errors.CodeNotFound))
	})
}

func TestSession_ExpireEndsSession(t *testing.T) {
	repo := adapterrepo.NewMemorySessionRepository()
	pub := &recordingPublisher{}
	uc := NewSessionUseCase(repo, pub, "shop")

	// No session: nothing to expire.
	uc.Expire()
	assert.Empty(t, pub.topics())

	_, err := uc.Begin(context.Background(), BeginSessionInput{Token: "opaque", User: sessionUser})
	require.NoError(t, err)

	uc.Expire()

	assert.Equal(t, []string{
		events.TopicSessionStarted,
		events.TopicSessionEnded,
		events.TopicSessionExpired,
	}, pub.topics())
	_, err = uc.Token()
	assert.True(t, errors.Is(err, errors.CodeAuthRequired))
	_, err = repo.Get(context.Background(), "shop")
	assert.True(t, errors.Is(err, errors.CodeNotFound))
}

func TestSession_EndWithoutSessionPublishesNothing(t *testing.T) {
	pub := &recordingPublisher{}
	uc := NewSessionUseCase(adapterrepo.NewMemorySessionRepository(), pub, "shop")

	require.NoError(t, uc.End(context.Background()))
	assert.Empty(t, pub.topics())
}

type countingResetter struct {
	resets chan struct{}
}

func (r *countingResetter) Reset() { r.resets <- struct{}{} }

func TestSession_SwitchingUserResetsControllers(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	uc := NewSessionUseCase(adapterrepo.NewMemorySessionRepository(), bus, "shop")

	endings, cancel := bus.Subscribe(4, events.TopicSessionEnded)
	defer cancel()
	controller := &countingResetter{resets: make(chan struct{}, 4)}
	go ResetOnSessionEnd(endings, controller)

	_, err := uc.Begin(context.Background(), BeginSessionInput{Token: "token-a", User: sessionUser})
	require.NoError(t, err)
	// Same user signing in again keeps the state.
	_, err = uc.Begin(context.Background(), BeginSessionInput{Token: "token-a2", User: sessionUser})
	require.NoError(t, err)
	assert.Empty(t, controller.resets)

	other := entity.User{ID: "u-2", Name: "Budi", Role: entity.RoleClient}
	_, err = uc.Begin(context.Background(), BeginSessionInput{Token: "token-b", User: other})
	require.NoError(t, err)

	select {
	case <-controller.resets:
	case <-time.After(time.Second):
		t.Fatal("controllers were not reset when another user signed in")
	}
	assert.Equal(t, "u-2", uc.UserID())
}

func TestSession_SwitchingUserPublishesEndBeforeStart(t *testing.T) {
	pub := &recordingPublisher{}
	uc := NewSessionUseCase(adapterrepo.NewMemorySessionRepository(), pub, "shop")

	_, err := uc.Begin(context.Background(), BeginSessionInput{Token: "token-a", User: sessionUser})
	require.NoError(t, err)
	_, err = uc.Begin(context.Background(), BeginSessionInput{Token: "token-b", User: entity.User{ID: "u-2"}})
	require.NoError(t, err)

	assert.Equal(t, []string{
		events.TopicSessionStarted,
		events.TopicSessionEnded,
		events.TopicSessionStarted,
	}, pub.topics())
}
