package marketapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"bibomarket/internal/domain/entity"
	"bibomarket/internal/domain/service"
	"bibomarket/pkg/errors"
	"bibomarket/pkg/logger"
)

type CartClient struct {
	*Client
}

func NewCartClient(client *Client) service.CartService {
	return &CartClient{Client: client}
}

type cartResponse struct {
	Cart *entity.Cart `json:"cart"`
}

type addItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type whatsAppResponse struct {
	Links []*entity.WhatsAppLink `json:"links"`
}

type orderResponse struct {
	Order *entity.Order `json:"order"`
}

func (c *CartClient) GetCart(ctx context.Context) (*entity.Cart, error) {
	var raw json.RawMessage
	req := request{endpoint: "cart.get", method: http.MethodGet, path: "/cart"}
	if err := c.do(ctx, req, &raw); err != nil {
		return nil, err
	}

	var wrapped cartResponse
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Cart != nil {
		return normalizeCart(wrapped.Cart), nil
	}

	var cart entity.Cart
	if err := json.Unmarshal(raw, &cart); err != nil {
		return nil, errors.MalformedResponse(err)
	}
	return normalizeCart(&cart), nil
}

// normalizeCart drops null entries the backend sometimes returns.
func normalizeCart(cart *entity.Cart) *entity.Cart {
	items := make([]*entity.CartItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		if item == nil {
			logger.Warn("GetCart: dropping null item from cart %s", cart.ID)
			continue
		}
		items = append(items, item)
	}
	cart.Items = items
	return cart
}

func (c *CartClient) AddItem(ctx context.Context, productID string, quantity int) error {
	if quantity < 1 {
		return errors.Validation("Quantity must be at least 1")
	}
	req, err := jsonRequest("cart.add", http.MethodPost, "/cart", addItemRequest{
		ProductID: productID,
		Quantity:  quantity,
	})
	if err != nil {
		return err
	}
	return c.do(ctx, req, nil)
}

// UpdateQuantity ignores the response body: the caller always refetches.
func (c *CartClient) UpdateQuantity(ctx context.Context, itemID string, quantity int) error {
	req, err := jsonRequest("cart.update_item", http.MethodPut,
		"/cart/items/"+url.PathEscape(itemID), updateQuantityRequest{Quantity: quantity})
	if err != nil {
		return err
	}
	return c.do(ctx, req, nil)
}

func (c *CartClient) RemoveItem(ctx context.Context, itemID string) error {
	req := request{
		endpoint: "cart.remove_item",
		method:   http.MethodDelete,
		path:     "/cart/items/" + url.PathEscape(itemID),
	}
	return c.do(ctx, req, nil)
}

func (c *CartClient) Clear(ctx context.Context) error {
	req := request{endpoint: "cart.clear", method: http.MethodDelete, path: "/cart"}
	return c.do(ctx, req, nil)
}

func (c *CartClient) ShareViaWhatsApp(ctx context.Context) ([]*entity.WhatsAppLink, error) {
	var raw json.RawMessage
	req := request{endpoint: "cart.share_whatsapp", method: http.MethodPost, path: "/cart/share/whatsapp"}
	if err := c.do(ctx, req, &raw); err != nil {
		return nil, err
	}

	if isArray(raw) {
		var links []*entity.WhatsAppLink
		if err := json.Unmarshal(raw, &links); err != nil {
			return nil, errors.MalformedResponse(err)
		}
		return links, nil
	}
	var resp whatsAppResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, errors.MalformedResponse(err)
	}
	return resp.Links, nil
}

// PlaceOrder returns whatever order summary the backend sent back. A 2xx
// without a usable body still counts as a placed order.
func (c *CartClient) PlaceOrder(ctx context.Context) (*entity.Order, error) {
	var raw json.RawMessage
	req := request{endpoint: "cart.order", method: http.MethodPost, path: "/cart/order"}
	if err := c.do(ctx, req, &raw); err != nil {
		if errors.Is(err, errors.CodeMalformedResponse) {
			logger.Warn("PlaceOrder: order accepted without a readable body")
			return &entity.Order{}, nil
		}
		return nil, err
	}

	var wrapped orderResponse
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Order != nil {
		return wrapped.Order, nil
	}
	var order entity.Order
	if err := json.Unmarshal(raw, &order); err != nil {
		logger.Warn("PlaceOrder: order accepted without a readable body: %v", err)
		return &entity.Order{}, nil
	}
	return &order, nil
}
