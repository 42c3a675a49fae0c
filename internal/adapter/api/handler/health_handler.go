package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"bibomarket/internal/domain/entity"
)

// SessionStatus reports whether someone is signed in.
type SessionStatus interface {
	Current() (*entity.Session, bool)
}

// ConnectionCounter reports the number of connected shells.
type ConnectionCounter interface {
	ClientCount() int
}

type HealthHandler struct {
	sessions SessionStatus
	shells   ConnectionCounter
	jobs     func() []string
}

func NewHealthHandler(sessions SessionStatus, shells ConnectionCounter, jobs func() []string) *HealthHandler {
	return &HealthHandler{
		sessions: sessions,
		shells:   shells,
		jobs:     jobs,
	}
}

func (h *HealthHandler) CheckHealth(c echo.Context) error {
	_, signedIn := h.sessions.Current()

	body := map[string]interface{}{
		"status":   "Server is running",
		"time":     time.Now().Format(time.RFC3339),
		"signedIn": signedIn,
	}
	if h.shells != nil {
		body["shells"] = h.shells.ClientCount()
	}
	if h.jobs != nil {
		body["pollJobs"] = h.jobs()
	}
	return c.JSON(http.StatusOK, body)
}
