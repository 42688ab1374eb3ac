// Package providertest runs a fake authorization server for exercising
// verifiers against real HTTP: it serves a discovery document, a JWKS
// endpoint, and an RFC 7662 introspection endpoint, all backed by httptest.
package providertest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"

	"github.com/tokengate/tokengate/pkg/keys"
)

// Provider is a fake OAuth/OIDC authorization server.
type Provider struct {
	srv *httptest.Server

	mu       sync.Mutex
	pair     *keys.TestKeyPair
	failJWKS bool

	// IntrospectFunc produces the introspection response body for a token.
	// Nil means every token is reported inactive.
	IntrospectFunc func(token string) map[string]interface{}
	// IntrospectStatus overrides the introspection response status when
	// non-zero.
	IntrospectStatus int
	// ClientID and ClientSecret are the Basic credentials the introspection
	// endpoint requires when ClientID is non-empty.
	ClientID     string
	ClientSecret string

	jwksFetches       atomic.Int64
	introspectionHits atomic.Int64
}

// New starts the fake provider. Callers own shutdown via Close.
func New(pair *keys.TestKeyPair) *Provider {
	p := &Provider{pair: pair}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", p.handleDiscovery)
	mux.HandleFunc("/jwks.json", p.handleJWKS)
	mux.HandleFunc("/introspect", p.handleIntrospect)
	p.srv = httptest.NewServer(mux)
	return p
}

// Close shuts the server down.
func (p *Provider) Close() { p.srv.Close() }

// Issuer returns the provider's base URL, which doubles as its issuer.
func (p *Provider) Issuer() string { return p.srv.URL }

// JWKSURL returns the JWKS endpoint URL.
func (p *Provider) JWKSURL() string { return p.srv.URL + "/jwks.json" }

// IntrospectionURL returns the introspection endpoint URL.
func (p *Provider) IntrospectionURL() string { return p.srv.URL + "/introspect" }

// JWKSFetches returns how many times the JWKS endpoint was fetched.
func (p *Provider) JWKSFetches() int64 { return p.jwksFetches.Load() }

// IntrospectionHits returns how many introspection calls were made.
func (p *Provider) IntrospectionHits() int64 { return p.introspectionHits.Load() }

// RotateKey swaps the signing key pair, simulating provider key rotation.
func (p *Provider) RotateKey(pair *keys.TestKeyPair) {
	p.mu.Lock()
	p.pair = pair
	p.mu.Unlock()
}

// FailJWKS makes subsequent JWKS fetches return HTTP 500 when on is true.
func (p *Provider) FailJWKS(on bool) {
	p.mu.Lock()
	p.failJWKS = on
	p.mu.Unlock()
}

func (p *Provider) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"issuer":                 p.srv.URL,
		"jwks_uri":               p.JWKSURL(),
		"introspection_endpoint": p.IntrospectionURL(),
		"token_endpoint":         p.srv.URL + "/token",
	})
}

func (p *Provider) handleJWKS(w http.ResponseWriter, r *http.Request) {
	p.jwksFetches.Add(1)

	p.mu.Lock()
	pair, fail := p.pair, p.failJWKS
	p.mu.Unlock()

	if fail {
		http.Error(w, "jwks unavailable", http.StatusInternalServerError)
		return
	}
	doc, err := pair.JWKS()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(doc)
}

func (p *Provider) handleIntrospect(w http.ResponseWriter, r *http.Request) {
	p.introspectionHits.Add(1)

	if p.ClientID != "" {
		id, secret, ok := r.BasicAuth()
		if !ok || id != p.ClientID || secret != p.ClientSecret {
			http.Error(w, "invalid client", http.StatusUnauthorized)
			return
		}
	}
	if p.IntrospectStatus != 0 {
		http.Error(w, "introspection error", p.IntrospectStatus)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	body := map[string]interface{}{"active": false}
	if p.IntrospectFunc != nil {
		if resp := p.IntrospectFunc(r.PostFormValue("token")); resp != nil {
			body = resp
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}
