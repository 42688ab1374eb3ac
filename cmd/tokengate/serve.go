package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joeshaw/envdecode"
	"github.com/spf13/cobra"

	"github.com/tokengate/tokengate/middleware"
	"github.com/tokengate/tokengate/pkg/logging"
	"github.com/tokengate/tokengate/pkg/ratelimit"
	"github.com/tokengate/tokengate/pkg/secrets"
	"github.com/tokengate/tokengate/pkg/token"
	"github.com/tokengate/tokengate/pkg/verifier"
)

var staticTokensPath string

// serveConfig is populated from the environment. Secrets are not read here;
// they go through the secret resolver so that rotation and redaction apply.
type serveConfig struct {
	Mode string `env:"TOKENGATE_MODE,default=jwt"`
	Addr string `env:"TOKENGATE_ADDR,default=:8080"`

	Issuer        string        `env:"TOKENGATE_ISSUER"`
	Audience      string        `env:"TOKENGATE_AUDIENCE"`
	JWKSURL       string        `env:"TOKENGATE_JWKS_URL"`
	Algorithm     string        `env:"TOKENGATE_ALGORITHM,default=RS256"`
	Scopes        string        `env:"TOKENGATE_REQUIRED_SCOPES"`
	ClockSkew     time.Duration `env:"TOKENGATE_CLOCK_SKEW,default=60s"`
	JWKSCacheTTL  time.Duration `env:"TOKENGATE_JWKS_CACHE_TTL,default=1h"`
	UseDiscovery  bool          `env:"TOKENGATE_USE_DISCOVERY,default=false"`

	IntrospectionEndpoint string        `env:"TOKENGATE_INTROSPECTION_ENDPOINT"`
	IntrospectionClientID string        `env:"TOKENGATE_INTROSPECTION_CLIENT_ID"`
	IntrospectionTimeout  time.Duration `env:"TOKENGATE_INTROSPECTION_TIMEOUT,default=10s"`

	RateLimitMax    int           `env:"TOKENGATE_RATE_LIMIT_MAX,default=10"`
	RateLimitWindow time.Duration `env:"TOKENGATE_RATE_LIMIT_WINDOW,default=60s"`
}

func (c serveConfig) requiredScopes() []string {
	if c.Scopes == "" {
		return nil
	}
	return strings.Fields(strings.ReplaceAll(c.Scopes, ",", " "))
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the token verification server",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := logging.GetLogger("serve")

		var cfg serveConfig
		if err := envdecode.Decode(&cfg); err != nil {
			return fmt.Errorf("failed to decode environment configuration: %w", err)
		}

		resolver := secrets.NewResolver(
			&secrets.EnvStore{Prefix: "TOKENGATE_"},
			secrets.WithLogger(logging.GetLogger("secrets")),
		)

		v, err := buildVerifier(cmd.Context(), cfg, resolver)
		if err != nil {
			// Configuration errors are fatal at startup, never deferred to
			// the first request.
			return fmt.Errorf("failed to build verifier: %w", err)
		}

		limiter := ratelimit.New(cfg.RateLimitMax, cfg.RateLimitWindow)
		limited := verifier.NewLimited(v, limiter, logging.GetLogger("ratelimit"))

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(chimiddleware.RealIP)
		r.Use(chimiddleware.Recoverer)

		r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(middleware.Options{
				Verifier: limited,
				Realm:    "tokengate",
				Logger:   logging.GetLogger("auth"),
			}))
			r.Get("/whoami", whoamiHandler)
		})

		srv := &http.Server{
			Addr:              cfg.Addr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info().Str("addr", cfg.Addr).Str("mode", cfg.Mode).
				Msg("starting token verification server")
			errCh <- srv.ListenAndServe()
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return fmt.Errorf("server failed: %w", err)
		case sig := <-sigCh:
			logger.Info().Str("signal", sig.String()).Msg("shutting down")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		}
	},
}

// buildVerifier constructs the verification strategy for the configured mode.
func buildVerifier(ctx context.Context, cfg serveConfig, resolver *secrets.Resolver) (verifier.TokenVerifier, error) {
	switch cfg.Mode {
	case "jwt":
		jwtCfg := verifier.JWTConfig{
			Issuer:         cfg.Issuer,
			Audience:       cfg.Audience,
			Algorithm:      cfg.Algorithm,
			RequiredScopes: cfg.requiredScopes(),
			ClockSkew:      cfg.ClockSkew,
			JWKSCacheTTL:   cfg.JWKSCacheTTL,
		}
		logOpt := verifier.WithJWTLogger(logging.GetLogger("verifier"))

		if verifier.IsHMACAlgorithm(cfg.Algorithm) {
			secret, err := resolver.GetSecret(ctx, "hmac-secret")
			if err != nil {
				return nil, err
			}
			jwtCfg.HMACSecret = secret
			return verifier.NewJWTVerifier(jwtCfg, logOpt)
		}
		if cfg.UseDiscovery {
			return verifier.NewJWTVerifierFromDiscovery(ctx, cfg.Issuer, jwtCfg, logOpt)
		}
		jwtCfg.JWKSURL = cfg.JWKSURL
		return verifier.NewJWTVerifier(jwtCfg, logOpt)

	case "introspection":
		secret, err := resolver.GetSecret(ctx, "introspection-client-secret")
		if err != nil {
			return nil, err
		}
		return verifier.NewIntrospectionVerifier(verifier.IntrospectionConfig{
			Endpoint:       cfg.IntrospectionEndpoint,
			ClientID:       cfg.IntrospectionClientID,
			ClientSecret:   secret,
			RequiredScopes: cfg.requiredScopes(),
			Timeout:        cfg.IntrospectionTimeout,
		}, verifier.WithIntrospectionLogger(logging.GetLogger("verifier")))

	case "static":
		tokens, err := loadStaticTokens(staticTokensPath)
		if err != nil {
			return nil, err
		}
		return verifier.NewStaticVerifier(verifier.StaticConfig{
			Tokens: tokens,
		}, verifier.WithStaticLogger(logging.GetLogger("verifier")))

	default:
		return nil, fmt.Errorf("unsupported verification mode: %s", cfg.Mode)
	}
}

// loadStaticTokens reads the static token table, a JSON object mapping raw
// token strings to claims.
func loadStaticTokens(path string) (map[string]*token.Claims, error) {
	if path == "" {
		return nil, fmt.Errorf("static mode requires --static-tokens")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read static token table: %w", err)
	}
	tokens := make(map[string]*token.Claims)
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, fmt.Errorf("failed to parse static token table: %w", err)
	}
	return tokens, nil
}

func whoamiHandler(w http.ResponseWriter, r *http.Request) {
	claims, err := middleware.GetClaimsFromContext(r.Context())
	if err != nil {
		http.Error(w, "no claims in context", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"identity": claims.Identity(),
		"issuer":   claims.Issuer,
		"scopes":   claims.Scopes,
	})
}

func init() {
	serveCmd.Flags().StringVar(&staticTokensPath, "static-tokens", "", "Path to a JSON file of static tokens (static mode only)")
	rootCmd.AddCommand(serveCmd)
}
