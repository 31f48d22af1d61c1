// internal/app/system/auth/auth.go

// Package auth manages staff device sessions.
//
// A scan device signs in once with the event access key; from then on
// its requests carry a signed session cookie with the verified actor
// identity (id, display name, role). The scan engine trusts this
// identity and only records it; it never re-verifies credentials.
package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
)

const (
	SessionName = "gatecheck-session"

	isAuthKey    = "is_authenticated"
	actorIDKey   = "actor_id"
	actorNameKey = "actor_name"
	actorRoleKey = "actor_role"
)

// Roles.
const (
	RoleAdmin = "admin" // event and roster management
	RoleStaff = "staff" // gate and canteen scanning
)

// Store is initialised once via InitSessionStore.
var Store *sessions.CookieStore

// InitSessionStore configures the cookie store. An empty key gets a
// random per-process key, which invalidates sessions on restart and is
// only acceptable in dev.
func InitSessionStore(key string, secure bool) {
	k := []byte(key)
	if len(k) == 0 {
		k = securecookie.GenerateRandomKey(32)
	}
	Store = sessions.NewCookieStore(k)
	Store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Actor is the signed-in staff identity injected into request context.
type Actor struct {
	ID   string
	Name string
	Role string
}

type ctxKey string

const currentActorKey ctxKey = "currentActor"

// CurrentActor returns the actor & "found?" flag.
func CurrentActor(r *http.Request) (*Actor, bool) {
	a, ok := r.Context().Value(currentActorKey).(*Actor)
	return a, ok
}

func withActor(r *http.Request, a *Actor) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentActorKey, a))
}

// WithTestActor injects an actor directly for handler tests, bypassing
// the session cookie.
func WithTestActor(r *http.Request, a *Actor) *http.Request {
	return withActor(r, a)
}

// LoadActor injects the actor into context if the device is signed in.
// If the session store has not been initialized yet, it is a no-op.
func LoadActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if Store == nil {
			next.ServeHTTP(w, r)
			return
		}

		sess, _ := Store.Get(r, SessionName)
		if isAuth, _ := sess.Values[isAuthKey].(bool); isAuth {
			a := &Actor{
				ID:   getString(sess, actorIDKey),
				Name: getString(sess, actorNameKey),
				Role: getString(sess, actorRoleKey),
			}
			r = withActor(r, a)
		}
		next.ServeHTTP(w, r)
	})
}

// RequireActor ensures there is a signed-in actor in context.
// This is a JSON API; unauthenticated requests get 401, no redirects.
func RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentActor(r); ok {
			next.ServeHTTP(w, r)
			return
		}
		writeJSONError(w, http.StatusUnauthorized, "sign-in required")
	})
}

// RequireRole ensures the actor holds one of the given roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a, ok := CurrentActor(r)
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "sign-in required")
				return
			}
			for _, role := range roles {
				if a.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeJSONError(w, http.StatusForbidden, "insufficient role")
		})
	}
}

// SignIn writes the actor into a fresh session cookie.
func SignIn(w http.ResponseWriter, r *http.Request, a Actor) error {
	sess, _ := Store.Get(r, SessionName)
	sess.Values[isAuthKey] = true
	sess.Values[actorIDKey] = a.ID
	sess.Values[actorNameKey] = a.Name
	sess.Values[actorRoleKey] = a.Role
	return sess.Save(r, w)
}

// SignOut clears the session.
func SignOut(w http.ResponseWriter, r *http.Request) error {
	sess, _ := Store.Get(r, SessionName)
	sess.Values = map[interface{}]interface{}{}
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

func getString(sess *sessions.Session, key string) string {
	s, _ := sess.Values[key].(string)
	return s
}

func writeJSONError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
