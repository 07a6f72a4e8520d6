package httputil

import (
	"context"
	"net/http"
)

type ctxKey int

const (
	userIDKey ctxKey = iota
	projectIDKey
)

// WithUserID stores the authenticated user on the request.
func WithUserID(r *http.Request, userID string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), userIDKey, userID))
}

// GetUserID returns the authenticated user, or "".
func GetUserID(r *http.Request) string {
	v, _ := r.Context().Value(userIDKey).(string)
	return v
}

// WithProjectID stores the project the user was authorized for.
func WithProjectID(r *http.Request, projectID string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), projectIDKey, projectID))
}

// GetProjectID returns the authorized project, or "" outside ProjectAccess.
func GetProjectID(r *http.Request) string {
	v, _ := r.Context().Value(projectIDKey).(string)
	return v
}
