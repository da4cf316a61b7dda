package middleware

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
)

type contextKey string

const csrfTokenKey contextKey = "csrf_token"

const (
	CSRFCookieName = "csrf_token"
	CSRFFormField  = "csrf_token"
	CSRFHeader     = "X-CSRF-Token"
)

func GenerateToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("csrf: " + err.Error())
	}
	return hex.EncodeToString(b)
}

// TokenFromContext returns the token CSRF stored for templates.
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(csrfTokenKey).(string)
	return token
}

// CSRF issues a double-submit cookie and rejects unsafe requests whose form
// field or header does not match it.
func CSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ""
		if cookie, err := r.Cookie(CSRFCookieName); err == nil && cookie.Value != "" {
			token = cookie.Value
		} else {
			token = GenerateToken()
			http.SetCookie(w, &http.Cookie{
				Name:     CSRFCookieName,
				Value:    token,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteStrictMode,
			})
		}

		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
		default:
			reqToken := r.Header.Get(CSRFHeader)
			if reqToken == "" {
				reqToken = r.FormValue(CSRFFormField)
			}
			if subtle.ConstantTimeCompare([]byte(reqToken), []byte(token)) != 1 {
				http.Error(w, "Invalid CSRF Token", http.StatusForbidden)
				return
			}
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), csrfTokenKey, token)))
	})
}
