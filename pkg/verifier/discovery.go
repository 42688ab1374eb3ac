package verifier

import (
	"context"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/tokengate/tokengate/pkg/errors"
)

// ProviderEndpoints holds the subset of OIDC discovery metadata this package
// consumes.
type ProviderEndpoints struct {
	Issuer                string `json:"issuer"`
	JWKSURI               string `json:"jwks_uri"`
	IntrospectionEndpoint string `json:"introspection_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
}

// DiscoverEndpoints fetches the provider's discovery document. Discovery runs
// once at startup, so a failure here is a configuration failure.
func DiscoverEndpoints(ctx context.Context, issuer string) (*ProviderEndpoints, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeInvalidConfig,
			"OIDC discovery failed for issuer %s", issuer)
	}

	var meta ProviderEndpoints
	if err := provider.Claims(&meta); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidConfig,
			"failed to decode OIDC discovery metadata")
	}
	if meta.JWKSURI == "" {
		return nil, errors.Newf(errors.ErrCodeInvalidConfig,
			"discovery document for %s has no jwks_uri", issuer)
	}
	return &meta, nil
}

// NewJWTVerifierFromDiscovery builds a JWKS-backed verifier from the issuer's
// discovery document. Fields already set on cfg other than JWKSURL are kept.
func NewJWTVerifierFromDiscovery(ctx context.Context, issuer string, cfg JWTConfig, opts ...JWTOption) (*JWTVerifier, error) {
	meta, err := DiscoverEndpoints(ctx, issuer)
	if err != nil {
		return nil, err
	}
	if cfg.Issuer == "" {
		cfg.Issuer = meta.Issuer
	}
	cfg.JWKSURL = meta.JWKSURI
	return NewJWTVerifier(cfg, opts...)
}
