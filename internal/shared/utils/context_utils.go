package utils

import (
	"context"
	"errors"

	"mission-control/internal/shared/contextkeys"
)

var (
	ErrUserIDNotFound     = errors.New("userID not found in context")
	ErrRequestIDNotFound  = errors.New("requestID not found in context")
	ErrCollectionNotFound = errors.New("collection not found in context")
)

func stringValue(ctx context.Context, key interface{}) (string, bool) {
	v, ok := ctx.Value(key).(string)
	return v, ok && v != ""
}

// GetUserIDFromContext retrieves the authenticated operator id from context
func GetUserIDFromContext(ctx context.Context) (string, error) {
	if v, ok := stringValue(ctx, contextkeys.UserIDKey); ok {
		return v, nil
	}
	return "", ErrUserIDNotFound
}

// GetRequestIDFromContext retrieves the request ID from context
func GetRequestIDFromContext(ctx context.Context) (string, error) {
	if v, ok := stringValue(ctx, contextkeys.RequestIDKey); ok {
		return v, nil
	}
	return "", ErrRequestIDNotFound
}

// GetCollectionFromContext retrieves the collection being served from context
func GetCollectionFromContext(ctx context.Context) (string, error) {
	if v, ok := stringValue(ctx, contextkeys.CollectionKey); ok {
		return v, nil
	}
	return "", ErrCollectionNotFound
}

// GetOperationOrDefault returns the operation name or def.
func GetOperationOrDefault(ctx context.Context, def string) string {
	if v, ok := stringValue(ctx, contextkeys.OperationKey); ok {
		return v
	}
	return def
}

// WithUserID adds user ID to context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextkeys.UserIDKey, userID)
}

// WithUserEmail adds user email to context
func WithUserEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, contextkeys.UserEmailKey, email)
}

// WithUserRole adds the role claim to context
func WithUserRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, contextkeys.UserRoleKey, role)
}

// WithRequestID adds request ID to context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextkeys.RequestIDKey, requestID)
}

// WithCollection adds the collection name to context
func WithCollection(ctx context.Context, collection string) context.Context {
	return context.WithValue(ctx, contextkeys.CollectionKey, collection)
}

// WithOperation adds operation name to context
func WithOperation(ctx context.Context, operation string) context.Context {
	return context.WithValue(ctx, contextkeys.OperationKey, operation)
}
