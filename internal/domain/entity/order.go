package entity

import "time"

// WhatsAppLink is a deep link that opens a pre-filled order message to one
// shop.
type WhatsAppLink struct {
	ShopID   string `json:"shopId"`
	ShopName string `json:"shopName"`
	Phone    string `json:"phone,omitempty"`
	URL      string `json:"url"`
}

type Order struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Total     float64   `json:"total"`
	CreatedAt time.Time `json:"createdAt"`
}
