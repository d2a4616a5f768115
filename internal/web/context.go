package web

import (
	"net/http"

	"github.com/JonMunkholm/detailing/internal/domain"
	"github.com/JonMunkholm/detailing/internal/web/middleware"
)

// actingUser returns the staff member the request is made for.
func actingUser(r *http.Request) (string, error) {
	name := middleware.Username(r.Context())
	if err := domain.ValidateUsername(name); err != nil {
		return "", err
	}
	return name, nil
}
