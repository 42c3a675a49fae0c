package handler

import (
	"github.com/labstack/echo/v4"

	"bibomarket/internal/usecase"
	"bibomarket/pkg/response"
)

type BadgeHandler struct {
	badgeUseCase *usecase.BadgeUseCase
}

func NewBadgeHandler(badgeUseCase *usecase.BadgeUseCase) *BadgeHandler {
	return &BadgeHandler{
		badgeUseCase: badgeUseCase,
	}
}

func (h *BadgeHandler) GetBadges(c echo.Context) error {
	return response.Success(c, h.badgeUseCase.Get())
}
