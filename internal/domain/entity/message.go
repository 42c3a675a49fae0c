package entity

import "time"

const (
	MediaTypeImage = "image"
	MediaTypeVideo = "video"
)

type Message struct {
	ID         string     `json:"id"`
	SenderID   string     `json:"senderId"`
	ReceiverID string     `json:"receiverId"`
	Content    string     `json:"content"`
	MediaURL   string     `json:"mediaUrl,omitempty"`
	MediaType  string     `json:"mediaType,omitempty"` // "image", "video" or empty
	IsRead     bool       `json:"isRead"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  *time.Time `json:"updatedAt,omitempty"`

	// Temporary is set on messages synthesized locally when the backend
	// accepted a send but returned nothing usable.
	Temporary bool `json:"temporary,omitempty"`
}

// Involves reports whether userID is the sender or the receiver.
func (m *Message) Involves(userID string) bool {
	return m.SenderID == userID || m.ReceiverID == userID
}

// Thread is one conversation's messages together with the counterpart.
type Thread struct {
	Partner  *Partner   `json:"partner"`
	Messages []*Message `json:"messages"`
}
