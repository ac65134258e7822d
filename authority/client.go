// Package authority is the relay's client for the identity provider's
// OAuth2/OIDC endpoints: authorize URL construction, code-for-token
// exchange, and the on-behalf-of exchange. It carries no business logic.
package authority

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/mkerhoas/outlook-relay/internal/apperrors"
	"golang.org/x/oauth2"
)

// defaultHTTPTimeout bounds every outbound call to the provider so a hung
// upstream cannot leak a request indefinitely. A timeout is treated the same
// as an exchange failure; OAuth codes are single-use, so nothing retries.
const defaultHTTPTimeout = 15 * time.Second

// Endpoints locates the identity provider. Overridable so tests can point
// the client at a local server.
type Endpoints struct {
	AuthorizeURL string
	TokenURL     string
	JWKSURL      string
	Issuer       string
}

// AzureEndpoints builds the Azure AD v2.0 endpoint set for a tenant.
func AzureEndpoints(tenantID string) Endpoints {
	base := fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0", tenantID)
	return Endpoints{
		AuthorizeURL: base + "/authorize",
		TokenURL:     base + "/token",
		JWKSURL:      fmt.Sprintf("https://login.microsoftonline.com/%s/discovery/v2.0/keys", tenantID),
		Issuer:       fmt.Sprintf("https://login.microsoftonline.com/%s/v2.0", tenantID),
	}
}

// TokenSet is the result of a code exchange or on-behalf-of exchange.
// Access tokens are opaque to the relay beyond expiry bookkeeping.
type TokenSet struct {
	AccessToken  string
	IDToken      string
	RefreshToken string
	ExpiresAt    time.Time
}

// Options configures a Client.
type Options struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	Endpoints    Endpoints

	// HTTPClient overrides the default 15s-timeout client.
	HTTPClient *http.Client
}

// Client talks to one identity provider on behalf of one confidential
// client registration.
type Client struct {
	oauth2Config *oauth2.Config
	clientID     string
	clientSecret string
	endpoints    Endpoints
	httpClient   *http.Client

	oidcLock     sync.RWMutex
	oidcVerifier *oidc.IDTokenVerifier
}

func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}

	return &Client{
		oauth2Config: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.RedirectURI,
			Scopes:       opts.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   opts.Endpoints.AuthorizeURL,
				TokenURL:  opts.Endpoints.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		clientID:     opts.ClientID,
		clientSecret: opts.ClientSecret,
		endpoints:    opts.Endpoints,
		httpClient:   httpClient,
	}
}

// Endpoints returns the provider endpoint set the client was built with.
func (c *Client) Endpoints() Endpoints {
	return c.endpoints
}

// AuthorizeURL builds the provider authorize URL for a login redirect.
// State and nonce are opaque values the caller supplies; the client never
// generates them.
func (c *Client) AuthorizeURL(state, nonce string) string {
	opts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("response_mode", "query"),
	}
	if nonce != "" {
		opts = append(opts, oidc.Nonce(nonce))
	}
	return c.oauth2Config.AuthCodeURL(state, opts...)
}

// ExchangeCode swaps a single-use authorization code for a token set using
// this service's client credentials. A provider response without an access
// token fails loudly; there is no partial result.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*TokenSet, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	token, err := c.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrTokenExchangeFailed, err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("%w: provider response missing access_token", apperrors.ErrTokenExchangeFailed)
	}

	ts := &TokenSet{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
	}
	if idToken, ok := token.Extra("id_token").(string); ok {
		ts.IDToken = idToken
	}

	return ts, nil
}

// idTokenVerifier lazily builds the OIDC ID token verifier from the
// provider's discovery document and caches it for the client's lifetime.
func (c *Client) idTokenVerifier(ctx context.Context) (*oidc.IDTokenVerifier, error) {
	c.oidcLock.RLock()
	verifier := c.oidcVerifier
	c.oidcLock.RUnlock()
	if verifier != nil {
		return verifier, nil
	}

	ctx = oidc.ClientContext(ctx, c.httpClient)
	provider, err := oidc.NewProvider(ctx, c.endpoints.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	verifier = provider.Verifier(&oidc.Config{ClientID: c.clientID})

	c.oidcLock.Lock()
	c.oidcVerifier = verifier
	c.oidcLock.Unlock()

	return verifier, nil
}
