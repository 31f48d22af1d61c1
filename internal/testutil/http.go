// internal/testutil/http.go
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/gatecheck/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// AdminActor returns a signed-in admin actor for handler tests.
func AdminActor() *auth.Actor {
	return &auth.Actor{
		ID:   uuid.New().String(),
		Name: "Test Admin",
		Role: auth.RoleAdmin,
	}
}

// StaffActor returns a signed-in staff actor for handler tests.
func StaffActor() *auth.Actor {
	return &auth.Actor{
		ID:   uuid.New().String(),
		Name: "Test Staff",
		Role: auth.RoleStaff,
	}
}

// WithActor injects an actor into the request context for testing
// authenticated handlers, bypassing the session middleware.
func WithActor(r *http.Request, a *auth.Actor) *http.Request {
	return auth.WithTestActor(r, a)
}

// NewJSONRequest builds a request with a JSON body. Strings and byte
// slices are sent verbatim; anything else is JSON-encoded.
func NewJSONRequest(t *testing.T, method, target string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	case []byte:
		buf.Write(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	r := httptest.NewRequest(method, target, &buf)
	r.Header.Set("Content-Type", "application/json")
	return r
}

// NewObjectIDHex returns a fresh ObjectID hex string for tests.
func NewObjectIDHex() string {
	return primitive.NewObjectID().Hex()
}
