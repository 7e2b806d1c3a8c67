package models

// UserProfile is the directory record for a registered user. The identity
// provider owns authentication; this is display data only.
type UserProfile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
	Role  Role   `json:"role"`
}
