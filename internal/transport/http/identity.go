package http

import (
	"context"
	"net/http"
	"time"

	"trivia-quiz-service/internal/app"
)

type contextKey string

const identityContextKey contextKey = "identity"

// IdentityFromContext returns the identity placed by IdentityMiddleware.
func IdentityFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(identityContextKey).(string)
	return id, ok && id != ""
}

// cookieStore exposes request cookies as an app.KeyValueStore. Values set during the
// request are visible to later reads in the same request.
type cookieStore struct {
	w   http.ResponseWriter
	r   *http.Request
	set map[string]string
}

func newCookieStore(w http.ResponseWriter, r *http.Request) *cookieStore {
	return &cookieStore{w: w, r: r, set: make(map[string]string)}
}

func (c *cookieStore) Get(key string) (string, bool) {
	if v, ok := c.set[key]; ok {
		return v, true
	}
	cookie, err := c.r.Cookie(key)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

func (c *cookieStore) Set(key, value string, maxAge time.Duration) {
	c.set[key] = value
	http.SetCookie(c.w, &http.Cookie{
		Name:     key,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge / time.Second),
		Expires:  time.Now().Add(maxAge),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// IdentityMiddleware reads or mints the user_id cookie and stores the identity in the request context.
func IdentityMiddleware(maxAge time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provider := app.NewIdentityProvider(newCookieStore(w, r), maxAge)
			identity := provider.GetOrCreateIdentity()
			ctx := context.WithValue(r.Context(), identityContextKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
