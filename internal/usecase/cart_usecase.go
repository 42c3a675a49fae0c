package usecase

import (
	"context"
	"strings"
	"sync"

	"bibomarket/internal/domain/entity"
	"bibomarket/internal/domain/service"
	"bibomarket/internal/infrastructure/events"
	"bibomarket/pkg/errors"
	"bibomarket/pkg/logger"
)

const (
	ToastSuccess = "success"
	ToastError   = "error"
)

type Toast struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

// CartView is a deep copy of the cart controller state.
type CartView struct {
	Cart         *entity.Cart `json:"cart"`
	Subtotal     float64      `json:"subtotal"`
	ShippingFee  float64      `json:"shippingFee"`
	Discount     float64      `json:"discount"`
	Total        float64      `json:"total"`
	AppliedPromo string       `json:"appliedPromo,omitempty"`
	Updating     []string     `json:"updating,omitempty"`
	Removing     []string     `json:"removing,omitempty"`
	Loading      bool         `json:"loading"`
	Error        string       `json:"error,omitempty"`
	Toast        *Toast       `json:"toast,omitempty"`
}

// CartUseCase holds the cart screen state. Every quantity change is
// followed by a full refetch; the server cart is the only source of truth
// for quantities.
type CartUseCase struct {
	cartService service.CartService
	promos      *PromoRegistry
	events      EventPublisher

	mutex        sync.Mutex
	cart         *entity.Cart
	subtotal     float64
	shippingFee  float64
	discount     float64
	total        float64
	appliedPromo string
	updating     map[string]bool
	removing     map[string]bool
	loading      bool
	errMsg       string
	toast        *Toast
	issued       uint64
	applied      uint64
	closed       bool
}

func NewCartUseCase(cartService service.CartService, promos *PromoRegistry, publisher EventPublisher) *CartUseCase {
	if promos == nil {
		promos = DefaultPromoRegistry()
	}
	return &CartUseCase{
		cartService: cartService,
		promos:      promos,
		events:      publisherOrNop(publisher),
		cart:        &entity.Cart{Items: []*entity.CartItem{}},
		updating:    make(map[string]bool),
		removing:    make(map[string]bool),
	}
}

func (uc *CartUseCase) View() *CartView {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()

	v := &CartView{
		Cart:         copyCart(uc.cart),
		Subtotal:     uc.subtotal,
		ShippingFee:  uc.shippingFee,
		Discount:     uc.discount,
		Total:        uc.total,
		AppliedPromo: uc.appliedPromo,
		Loading:      uc.loading,
		Error:        uc.errMsg,
	}
	for id := range uc.updating {
		v.Updating = append(v.Updating, id)
	}
	for id := range uc.removing {
		v.Removing = append(v.Removing, id)
	}
	if uc.toast != nil {
		t := *uc.toast
		v.Toast = &t
	}
	return v
}

// ItemCount is the cart badge value.
func (uc *CartUseCase) ItemCount() int {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()
	return uc.cart.ItemCount()
}

// Refresh fetches the cart and recomputes the totals. An applied promo is
// dropped and not re-applied. A response is applied only if no newer
// fetch has been applied already.
func (uc *CartUseCase) Refresh(ctx context.Context) error {
	uc.mutex.Lock()
	if uc.closed {
		uc.mutex.Unlock()
		return nil
	}
	uc.issued++
	seq := uc.issued
	uc.loading = true
	uc.mutex.Unlock()

	cart, err := uc.cartService.GetCart(ctx)

	uc.mutex.Lock()
	defer uc.mutex.Unlock()
	if uc.closed {
		return nil
	}
	if seq == uc.issued {
		uc.loading = false
	}
	if err != nil {
		logger.Error("Refresh Error: failed to fetch cart: %v", err)
		if seq > uc.applied {
			uc.errMsg = errors.Message(err)
		}
		return err
	}
	if seq <= uc.applied {
		logger.Debug("Refresh: dropping stale cart fetch %d (applied %d)", seq, uc.applied)
		return nil
	}

	uc.applied = seq
	uc.applyCartLocked(cart)
	return nil
}

func (uc *CartUseCase) applyCartLocked(cart *entity.Cart) {
	if cart == nil {
		cart = &entity.Cart{}
	}
	if cart.Items == nil {
		cart.Items = []*entity.CartItem{}
	}
	uc.cart = cart
	uc.subtotal = Subtotal(cart)
	uc.shippingFee = 0
	uc.discount = 0
	uc.appliedPromo = ""
	uc.total = uc.subtotal + uc.shippingFee
	for id := range uc.updating {
		if cart.Item(id) == nil {
			delete(uc.updating, id)
		}
	}
	for id := range uc.removing {
		if cart.Item(id) == nil {
			delete(uc.removing, id)
		}
	}
}

// Subtotal sums price times quantity. The server total is used only when
// the local sum is zero.
func Subtotal(cart *entity.Cart) float64 {
	if cart == nil {
		return 0
	}
	var sum float64
	for _, item := range cart.Items {
		sum += item.LineTotal()
	}
	if sum == 0 && cart.TotalPrice != nil {
		return *cart.TotalPrice
	}
	return sum
}

// ChangeQuantity moves an item's quantity by delta. Out-of-bounds changes
// are refused without a call. Unknown or zero stock is unbounded.
func (uc *CartUseCase) ChangeQuantity(ctx context.Context, itemID string, delta int) error {
	if delta == 0 {
		return nil
	}

	uc.mutex.Lock()
	item := uc.cart.Item(itemID)
	if item == nil {
		uc.mutex.Unlock()
		return errors.NotFound("Cart item", nil)
	}
	quantity := item.Quantity + delta
	if quantity < 1 {
		uc.mutex.Unlock()
		return errors.Validation("Quantity must be at least 1")
	}
	if stock, ok := item.Product.StockLimit(); ok && delta > 0 && quantity > stock {
		uc.mutex.Unlock()
		return errors.Validation("Not enough stock available")
	}
	if uc.updating[itemID] || uc.removing[itemID] {
		uc.mutex.Unlock()
		return errors.Conflict("This item is already being updated")
	}
	uc.updating[itemID] = true
	uc.errMsg = ""
	uc.mutex.Unlock()

	err := uc.cartService.UpdateQuantity(ctx, itemID, quantity)
	uc.finishItem(itemID, err, "ChangeQuantity")

	if refreshErr := uc.Refresh(ctx); refreshErr != nil && err == nil {
		return refreshErr
	}
	if err != nil {
		return err
	}
	uc.events.Publish(events.TopicCartUpdated, nil)
	return nil
}

func (uc *CartUseCase) RemoveItem(ctx context.Context, itemID string) error {
	uc.mutex.Lock()
	if uc.cart.Item(itemID) == nil {
		uc.mutex.Unlock()
		return errors.NotFound("Cart item", nil)
	}
	if uc.removing[itemID] {
		uc.mutex.Unlock()
		return nil
	}
	uc.removing[itemID] = true
	uc.errMsg = ""
	uc.mutex.Unlock()

	err := uc.cartService.RemoveItem(ctx, itemID)
	uc.finishItem(itemID, err, "RemoveItem")

	if refreshErr := uc.Refresh(ctx); refreshErr != nil && err == nil {
		return refreshErr
	}
	if err != nil {
		return err
	}
	uc.events.Publish(events.TopicCartUpdated, nil)
	return nil
}

func (uc *CartUseCase) finishItem(itemID string, err error, op string) {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()
	delete(uc.updating, itemID)
	delete(uc.removing, itemID)
	if err != nil && !uc.closed {
		logger.Error("%s Error: item %s: %v", op, itemID, err)
		uc.errMsg = errors.Message(err)
	}
}

func (uc *CartUseCase) AddItem(ctx context.Context, productID string, quantity int) error {
	if strings.TrimSpace(productID) == "" {
		return errors.Validation("Product is required")
	}
	if quantity < 1 {
		return errors.Validation("Quantity must be at least 1")
	}

	if err := uc.cartService.AddItem(ctx, productID, quantity); err != nil {
		logger.Error("AddItem Error: product %s: %v", productID, err)
		uc.setError(err)
		return err
	}
	if err := uc.Refresh(ctx); err != nil {
		return err
	}
	uc.events.Publish(events.TopicCartUpdated, nil)
	return nil
}

func (uc *CartUseCase) Clear(ctx context.Context) error {
	if err := uc.cartService.Clear(ctx); err != nil {
		logger.Error("Clear Error: %v", err)
		uc.setError(err)
		return err
	}
	if err := uc.Refresh(ctx); err != nil {
		return err
	}
	uc.events.Publish(events.TopicCartUpdated, nil)
	return nil
}

// ApplyPromoCode applies a registered code to the current subtotal. An
// unknown code leaves discount and total unchanged.
func (uc *CartUseCase) ApplyPromoCode(code string) (float64, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return 0, errors.Validation("Please enter a promo code")
	}

	uc.mutex.Lock()
	defer uc.mutex.Unlock()

	policy, ok := uc.promos.Lookup(code)
	if !ok {
		uc.errMsg = "Invalid promo code"
		return uc.discount, errors.Validation("Invalid promo code")
	}

	uc.discount = policy(uc.subtotal)
	uc.appliedPromo = normalizeCode(code)
	uc.total = uc.subtotal + uc.shippingFee - uc.discount
	uc.errMsg = ""
	return uc.discount, nil
}

// ShareViaWhatsApp fetches one deep link per shop in the cart. The links
// are handed to the shell with a navigate event and never stored.
func (uc *CartUseCase) ShareViaWhatsApp(ctx context.Context) ([]*entity.WhatsAppLink, error) {
	if uc.isEmpty() {
		return nil, errors.Validation("Your cart is empty")
	}

	links, err := uc.cartService.ShareViaWhatsApp(ctx)
	if err != nil {
		logger.Error("ShareViaWhatsApp Error: %v", err)
		uc.setError(err)
		return nil, err
	}
	if links == nil {
		links = []*entity.WhatsAppLink{}
	}

	uc.events.Publish(events.TopicNavigate, map[string]interface{}{
		"view":  "whatsapp-links",
		"links": links,
	})
	return links, nil
}

// PlaceOrder submits the cart as an order. On failure the cart is left
// as is and an error toast is shown.
func (uc *CartUseCase) PlaceOrder(ctx context.Context) (*entity.Order, error) {
	if uc.isEmpty() {
		return nil, errors.Validation("Your cart is empty")
	}

	order, err := uc.cartService.PlaceOrder(ctx)
	if err != nil {
		logger.Error("PlaceOrder Error: %v", err)
		uc.showToast(ToastError, errors.Message(err))
		return nil, err
	}

	uc.showToast(ToastSuccess, "Your order has been placed")
	uc.events.Publish(events.TopicToast, Toast{Kind: ToastSuccess, Text: "Your order has been placed"})
	if err := uc.Refresh(ctx); err != nil {
		logger.Warn("PlaceOrder: refresh after order failed: %v", err)
	}
	uc.events.Publish(events.TopicCartUpdated, nil)
	return order, nil
}

func (uc *CartUseCase) DismissToast() {
	uc.mutex.Lock()
	uc.toast = nil
	uc.mutex.Unlock()
}

// Reset forgets the cart, e.g. after logout. In-flight fetches are
// dropped.
func (uc *CartUseCase) Reset() {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()
	uc.issued++
	uc.applied = uc.issued
	uc.cart = &entity.Cart{Items: []*entity.CartItem{}}
	uc.subtotal, uc.shippingFee, uc.discount, uc.total = 0, 0, 0, 0
	uc.appliedPromo = ""
	uc.updating = make(map[string]bool)
	uc.removing = make(map[string]bool)
	uc.loading = false
	uc.errMsg = ""
	uc.toast = nil
}

func (uc *CartUseCase) Close() {
	uc.mutex.Lock()
	uc.closed = true
	uc.mutex.Unlock()
}

func (uc *CartUseCase) isEmpty() bool {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()
	return uc.cart.IsEmpty()
}

func (uc *CartUseCase) setError(err error) {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()
	if !uc.closed {
		uc.errMsg = errors.Message(err)
	}
}

func (uc *CartUseCase) showToast(kind, text string) {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()
	if !uc.closed {
		uc.toast = &Toast{Kind: kind, Text: text}
	}
}

func copyCart(cart *entity.Cart) *entity.Cart {
	if cart == nil {
		return nil
	}
	cp := &entity.Cart{
		ID:    cart.ID,
		Items: make([]*entity.CartItem, 0, len(cart.Items)),
	}
	if cart.TotalPrice != nil {
		total := *cart.TotalPrice
		cp.TotalPrice = &total
	}
	for _, item := range cart.Items {
		if item == nil {
			continue
		}
		it := *item
		if item.Product != nil {
			p := *item.Product
			if item.Product.Stock != nil {
				s := *item.Product.Stock
				p.Stock = &s
			}
			p.Images = append([]string(nil), item.Product.Images...)
			it.Product = &p
		}
		cp.Items = append(cp.Items, &it)
	}
	return cp
}
