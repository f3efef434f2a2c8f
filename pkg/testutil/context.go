package testutil

import (
	"context"
	"net/http"
	"time"

	id "ruminster/pkg/domain"
	"ruminster/pkg/requestcontext"
)

// WithUserID adds a user ID to the request context.
// This simulates what the auth middleware would do for authenticated requests.
// If the userID is not a valid UUID, it will not be added to the context.
func WithUserID(req *http.Request, userID string) *http.Request {
	if parsedUserID, err := id.ParseUserID(userID); err == nil {
		return req.WithContext(requestcontext.WithUserID(req.Context(), parsedUserID))
	}
	return req
}

// WithRoles adds roles to the request context.
func WithRoles(req *http.Request, roles ...string) *http.Request {
	return req.WithContext(requestcontext.WithRoles(req.Context(), roles))
}

// WithAuth adds a user ID and roles to the request context.
// This is the typical state for an authenticated request.
// An invalid user ID is silently ignored.
func WithAuth(req *http.Request, userID string, roles ...string) *http.Request {
	req = WithUserID(req, userID)
	if len(roles) > 0 {
		req = WithRoles(req, roles...)
	}
	return req
}

// WithRequestTime pins the request-scoped clock, so handler tests can assert
// exact timestamps on entities and their log rows.
func WithRequestTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	return req.WithContext(context.WithValue(req.Context(), key, value))
}
