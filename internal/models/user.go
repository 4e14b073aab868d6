package models

import "time"

// User is a local mirror of an identity-provider account, maintained by
// lifecycle webhooks. The backend never issues or stores credentials.
type User struct {
	ID        string    `json:"id"` // provider-assigned, opaque
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	ImageURL  *string   `json:"imageUrl"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
