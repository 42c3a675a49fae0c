package entity

const (
	RoleClient   = "client"
	RoleMerchant = "merchant"
	RoleSupplier = "supplier"
)

type User struct {
	ID       string `json:"id" firestore:"id"`
	Name     string `json:"name" firestore:"name"`
	Email    string `json:"email,omitempty" firestore:"email,omitempty"`
	Phone    string `json:"phone,omitempty" firestore:"phone,omitempty"`
	Role     string `json:"role" firestore:"role"`
	PhotoURL string `json:"photo,omitempty" firestore:"photo,omitempty"`
}
