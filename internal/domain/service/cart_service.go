package service

import (
	"context"

	"bibomarket/internal/domain/entity"
)

// CartService is the cart and order half of the marketplace API.
type CartService interface {
	GetCart(ctx context.Context) (*entity.Cart, error)
	AddItem(ctx context.Context, productID string, quantity int) error
	UpdateQuantity(ctx context.Context, itemID string, quantity int) error
	RemoveItem(ctx context.Context, itemID string) error
	Clear(ctx context.Context) error
	ShareViaWhatsApp(ctx context.Context) ([]*entity.WhatsAppLink, error)
	PlaceOrder(ctx context.Context) (*entity.Order, error)
}
