package entity

type CartItem struct {
	ID        string   `json:"id"`
	ProductID string   `json:"productId"`
	Quantity  int      `json:"quantity"`
	Product   *Product `json:"product,omitempty"`
}

// LineTotal is price times quantity, zero when the product is unknown.
func (i *CartItem) LineTotal() float64 {
	if i == nil || i.Product == nil {
		return 0
	}
	return i.Product.Price * float64(i.Quantity)
}

type Cart struct {
	ID         string      `json:"id"`
	Items      []*CartItem `json:"items"`
	TotalPrice *float64    `json:"totalPrice,omitempty"`
}

func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

func (c *Cart) Item(id string) *CartItem {
	if c == nil {
		return nil
	}
	for _, item := range c.Items {
		if item != nil && item.ID == id {
			return item
		}
	}
	return nil
}

// ItemCount is the sum of quantities, shown on the cart badge.
func (c *Cart) ItemCount() int {
	if c == nil {
		return 0
	}
	n := 0
	for _, item := range c.Items {
		if item == nil {
			continue
		}
		n += item.Quantity
	}
	return n
}
