package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

// CORS applies the allowed-origin policy: a single configured origin, or
// a permissive wildcard when none is set. Preflights answer 204.
func CORS(allowedOrigin string) func(http.Handler) http.Handler {
	origin := strings.TrimSpace(allowedOrigin)
	if origin == "" {
		origin = "*"
	}
	// Preflights pass through to the router's catch-all OPTIONS handler
	// so they answer 204 instead of the library's default 200.
	return cors.New(cors.Options{
		AllowedOrigins:     []string{origin},
		AllowedMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:     []string{"Content-Type", "Stripe-Signature"},
		MaxAge:             86400,
		OptionsPassthrough: true,
	}).Handler
}
