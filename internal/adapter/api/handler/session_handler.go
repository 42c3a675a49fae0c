package handler

import (
	"github.com/labstack/echo/v4"

	"bibomarket/internal/domain/entity"
	"bibomarket/internal/usecase"
	"bibomarket/pkg/errors"
	"bibomarket/pkg/response"
)

type SessionHandler struct {
	sessionUseCase *usecase.SessionUseCase
}

func NewSessionHandler(sessionUseCase *usecase.SessionUseCase) *SessionHandler {
	return &SessionHandler{
		sessionUseCase: sessionUseCase,
	}
}

type sessionUserRequest struct {
	ID       string `json:"id" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone"`
	Role     string `json:"role" validate:"required,oneof=client merchant supplier"`
	PhotoURL string `json:"photo"`
}

type beginSessionRequest struct {
	Token string             `json:"token" validate:"required"`
	User  sessionUserRequest `json:"user" validate:"required"`
}

// BeginSession installs a token obtained from the marketplace login.
func (h *SessionHandler) BeginSession(c echo.Context) error {
	var req beginSessionRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	session, err := h.sessionUseCase.Begin(c.Request().Context(), usecase.BeginSessionInput{
		Token: req.Token,
		User: entity.User{
			ID:       req.User.ID,
			Name:     req.User.Name,
			Email:    req.User.Email,
			Phone:    req.User.Phone,
			Role:     req.User.Role,
			PhotoURL: req.User.PhotoURL,
		},
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, session)
}

func (h *SessionHandler) GetSession(c echo.Context) error {
	session, ok := h.sessionUseCase.Current()
	if !ok {
		return response.Error(c, errors.AuthRequired())
	}
	return response.Success(c, session)
}

func (h *SessionHandler) EndSession(c echo.Context) error {
	if err := h.sessionUseCase.End(c.Request().Context()); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]string{
		"message": "Signed out successfully",
	})
}
