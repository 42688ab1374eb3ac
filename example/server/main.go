// Example resource server. It generates a throwaway signing key, mints a
// short-lived token for itself, and protects a couple of routes with the
// verification middleware so the full flow can be exercised with curl.
package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tokengate/tokengate/middleware"
	"github.com/tokengate/tokengate/pkg/envsignal"
	"github.com/tokengate/tokengate/pkg/keys"
	"github.com/tokengate/tokengate/pkg/logging"
	"github.com/tokengate/tokengate/pkg/verifier"
)

func main() {
	logging.Configure(&logging.Config{Level: "debug", Format: logging.LogFormatConsole, ServiceName: "example"})
	logger := logging.GetLogger("main")

	pair, err := keys.GenerateRSA(envsignal.NewEnvDetector())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to generate key pair")
	}

	publicPEM, err := pair.PublicKeyPEM()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to encode public key")
	}

	v, err := verifier.NewJWTVerifier(verifier.JWTConfig{
		StaticKeyPEM:   publicPEM,
		Issuer:         "https://example.local",
		Audience:       "example-api",
		Algorithm:      pair.Algorithm(),
		RequiredScopes: []string{"read"},
	}, verifier.WithJWTLogger(logging.GetLogger("verifier")))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build verifier")
	}

	demo, err := pair.MintToken(keys.MintClaims{
		Subject:  "example-user",
		Issuer:   "https://example.local",
		Audience: []string{"example-api"},
		Scopes:   []string{"read", "write"},
		TTL:      time.Hour,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to mint demo token")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Authenticate(middleware.Options{
		Verifier: v,
		Realm:    "example",
		Logger:   logging.GetLogger("auth"),
	}))

	r.Get("/profile", func(w http.ResponseWriter, req *http.Request) {
		claims, _ := middleware.GetClaimsFromContext(req.Context())
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"identity": claims.Identity(),
			"scopes":   claims.Scopes,
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireScope("write"))
		r.Post("/notes", func(w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusCreated)
		})
	})

	fmt.Println("Try it:")
	fmt.Printf("  curl -H 'Authorization: Bearer %s' http://localhost:8080/profile\n", demo)

	logger.Info().Msg("listening on :8080")
	if err := http.ListenAndServe(":8080", r); err != nil {
		logger.Fatal().Err(err).Msg("server failed")
	}
}
