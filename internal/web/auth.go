package web

import (
	"crypto/subtle"
	"fmt"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

const authRealm = "amperage-follower"

// HashPassword returns a bcrypt hash of password for the http.password_hash setting.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// RequireAuth protects every page with HTTP basic auth.
// An empty user leaves the server open.
func (s *Server) RequireAuth(user, passwordHash string) {
	if user == "" {
		return
	}
	s.httpServer.Handler = basicAuth(s.httpServer.Handler, user, passwordHash)
}

func basicAuth(next http.Handler, user, passwordHash string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 ||
			bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(p)) != nil {
			w.Header().Set("WWW-Authenticate", `Basic realm="`+authRealm+`"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
