package contextkeys

// contextKey is an unexported type to prevent collisions with context keys defined in
// other packages.
type contextKey string

// String makes contextKey satisfy the Stringer interface to assist with debugging.
func (c contextKey) String() string {
	return "mission-control context key " + string(c)
}

const (
	// RequestIDKey carries the per-request correlation id set by the HTTP layer.
	RequestIDKey = contextKey("requestID")
	// UserIDKey carries the id of the authenticated operator.
	UserIDKey = contextKey("userID")
	// UserEmailKey carries the email of the authenticated operator.
	UserEmailKey = contextKey("userEmail")
	// UserRoleKey carries the role claim of the authenticated operator.
	UserRoleKey = contextKey("userRole")
	// CollectionKey carries the logical collection a request operates on.
	CollectionKey = contextKey("collection")
	// OperationKey names the adapter entrypoint being executed.
	OperationKey = contextKey("operation")
)
