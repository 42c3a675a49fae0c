package entity

import "time"

// Partner is the counterpart user of a one-to-one conversation.
type Partner struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	PhotoURL string `json:"photo,omitempty"`
	Role     string `json:"role,omitempty"`

	// Synthesized marks a record built locally because the backend profile
	// could not be loaded.
	Synthesized bool `json:"synthesized,omitempty"`
}

// Conversation is the summary row of the conversation list. There is one
// per partner.
type Conversation struct {
	PartnerID       string     `json:"partnerId"`
	PartnerName     string     `json:"partnerName"`
	PartnerPhoto    string     `json:"partnerPhoto,omitempty"`
	PartnerRole     string     `json:"partnerRole,omitempty"`
	LastMessage     string     `json:"lastMessage"`
	LastMediaURL    string     `json:"lastMediaUrl,omitempty"`
	LastMediaType   string     `json:"lastMediaType,omitempty"`
	LastMessageTime *time.Time `json:"lastMessageTime,omitempty"`
	UnreadCount     int        `json:"unreadCount"`
}

func (c *Conversation) Partner() *Partner {
	return &Partner{
		ID:       c.PartnerID,
		Name:     c.PartnerName,
		PhotoURL: c.PartnerPhoto,
		Role:     c.PartnerRole,
	}
}
