package middleware

import (
	"github.com/labstack/echo/v4"

	"bibomarket/internal/domain/entity"
	"bibomarket/pkg/errors"
	"bibomarket/pkg/response"
)

// SessionProvider exposes the signed-in session.
type SessionProvider interface {
	Current() (*entity.Session, bool)
}

type AuthMiddleware struct {
	sessions SessionProvider
}

func NewAuthMiddleware(sessions SessionProvider) *AuthMiddleware {
	return &AuthMiddleware{
		sessions: sessions,
	}
}

// Authenticate rejects requests while nobody is signed in and puts the
// user ID in the context as "uid".
func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		session, ok := m.sessions.Current()
		if !ok {
			return response.Error(c, errors.AuthRequired())
		}

		c.Set("uid", session.User.ID)
		c.Set("role", session.User.Role)
		return next(c)
	}
}
