package model

// Operator is an authenticated account as exposed to clients. It never carries the
// password hash.
type Operator struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role"`
}

// DefaultRole is assigned when a registration omits one.
const DefaultRole = "operator"
