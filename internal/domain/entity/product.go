package entity

type Product struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Price    float64  `json:"price"`
	Stock    *int     `json:"stock,omitempty"`
	Images   []string `json:"images"`
	ShopID   string   `json:"shopId,omitempty"`
	ShopName string   `json:"shopName,omitempty"`
}

// StockLimit returns the known stock, or false when stock is missing or
// zero. Both mean "unbounded" for quantity checks.
func (p *Product) StockLimit() (int, bool) {
	if p == nil || p.Stock == nil || *p.Stock <= 0 {
		return 0, false
	}
	return *p.Stock, true
}
