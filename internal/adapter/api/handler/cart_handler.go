package handler

import (
	"github.com/labstack/echo/v4"

	"bibomarket/internal/usecase"
	"bibomarket/pkg/errors"
	"bibomarket/pkg/response"
)

type CartHandler struct {
	cartUseCase *usecase.CartUseCase
}

func NewCartHandler(cartUseCase *usecase.CartUseCase) *CartHandler {
	return &CartHandler{
		cartUseCase: cartUseCase,
	}
}

type addItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

type changeQuantityRequest struct {
	Delta int `json:"delta" validate:"required,ne=0"`
}

type promoRequest struct {
	Code string `json:"code" validate:"required"`
}

func (h *CartHandler) GetCart(c echo.Context) error {
	return response.Success(c, h.cartUseCase.View())
}

func (h *CartHandler) Refresh(c echo.Context) error {
	if err := h.cartUseCase.Refresh(c.Request().Context()); err != nil {
		return response.Failure(c, err, h.cartUseCase.View())
	}
	return response.Success(c, h.cartUseCase.View())
}

func (h *CartHandler) AddItem(c echo.Context) error {
	var req addItemRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	if err := h.cartUseCase.AddItem(c.Request().Context(), req.ProductID, req.Quantity); err != nil {
		return response.Failure(c, err, h.cartUseCase.View())
	}
	return response.Created(c, h.cartUseCase.View())
}

// ChangeQuantity moves the quantity of an item by delta (+1 / -1 from the
// stepper buttons).
func (h *CartHandler) ChangeQuantity(c echo.Context) error {
	itemID := c.Param("id")
	if itemID == "" {
		return response.Error(c, errors.BadRequest("Item ID is required", nil))
	}

	var req changeQuantityRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	if err := h.cartUseCase.ChangeQuantity(c.Request().Context(), itemID, req.Delta); err != nil {
		return response.Failure(c, err, h.cartUseCase.View())
	}
	return response.Success(c, h.cartUseCase.View())
}

func (h *CartHandler) RemoveItem(c echo.Context) error {
	itemID := c.Param("id")
	if itemID == "" {
		return response.Error(c, errors.BadRequest("Item ID is required", nil))
	}

	if err := h.cartUseCase.RemoveItem(c.Request().Context(), itemID); err != nil {
		return response.Failure(c, err, h.cartUseCase.View())
	}
	return response.Success(c, h.cartUseCase.View())
}

func (h *CartHandler) Clear(c echo.Context) error {
	if err := h.cartUseCase.Clear(c.Request().Context()); err != nil {
		return response.Failure(c, err, h.cartUseCase.View())
	}
	return response.Success(c, h.cartUseCase.View())
}

func (h *CartHandler) ApplyPromo(c echo.Context) error {
	var req promoRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	if _, err := h.cartUseCase.ApplyPromoCode(req.Code); err != nil {
		return response.Failure(c, err, h.cartUseCase.View())
	}
	return response.Success(c, h.cartUseCase.View())
}

func (h *CartHandler) ShareViaWhatsApp(c echo.Context) error {
	links, err := h.cartUseCase.ShareViaWhatsApp(c.Request().Context())
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]interface{}{
		"links": links,
	})
}

func (h *CartHandler) PlaceOrder(c echo.Context) error {
	order, err := h.cartUseCase.PlaceOrder(c.Request().Context())
	if err != nil {
		return response.Failure(c, err, h.cartUseCase.View())
	}
	return response.Created(c, map[string]interface{}{
		"order": order,
		"cart":  h.cartUseCase.View(),
	})
}

func (h *CartHandler) DismissToast(c echo.Context) error {
	h.cartUseCase.DismissToast()
	return response.Success(c, h.cartUseCase.View())
}
