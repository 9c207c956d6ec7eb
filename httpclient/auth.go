package httpclient

import (
	"context"
	"net/http"
)

// AuthType identifies the authentication scheme.
type AuthType int

const (
	AuthNone AuthType = iota
	// AuthBearer sends "Authorization: Bearer <token>".
	AuthBearer
	AuthBasic
	// AuthAPIKey sends the token in a named header.
	AuthAPIKey
	AuthCustom
)

// DefaultAPIKeyHeader is used by APIKeyAuth when no header is given.
const DefaultAPIKeyHeader = "X-API-Key"

// TokenSource returns the current credential. It is called for every
// request, so a reconnecting stream picks up refreshed tokens.
type TokenSource func(ctx context.Context) (string, error)

// AuthConfig configures request authentication.
type AuthConfig struct {
	Type AuthType
	// Token is a static bearer token or API key.
	Token string
	// Source, when set, replaces Token.
	Source   TokenSource
	Username string
	Password string
	// Header names the API key header.
	Header string
	Apply  func(*http.Request) error
}

// BearerAuth sends a static bearer token.
func BearerAuth(token string) *AuthConfig {
	return &AuthConfig{Type: AuthBearer, Token: token}
}

// TokenAuth sends a bearer token fetched from src on each request.
func TokenAuth(src TokenSource) *AuthConfig {
	return &AuthConfig{Type: AuthBearer, Source: src}
}

// BasicAuth uses HTTP Basic authentication.
func BasicAuth(username, password string) *AuthConfig {
	return &AuthConfig{Type: AuthBasic, Username: username, Password: password}
}

// APIKeyAuth sends key in header, or DefaultAPIKeyHeader when header is empty.
func APIKeyAuth(key, header string) *AuthConfig {
	if header == "" {
		header = DefaultAPIKeyHeader
	}
	return &AuthConfig{Type: AuthAPIKey, Token: key, Header: header}
}

// CustomAuth lets fn sign the request.
func CustomAuth(fn func(*http.Request) error) *AuthConfig {
	return &AuthConfig{Type: AuthCustom, Apply: fn}
}

func (a *AuthConfig) token(ctx context.Context) (string, error) {
	if a.Source != nil {
		return a.Source(ctx)
	}
	return a.Token, nil
}

func (a *AuthConfig) apply(req *http.Request) error {
	if a == nil {
		return nil
	}
	switch a.Type {
	case AuthBearer, AuthAPIKey:
		tok, err := a.token(req.Context())
		if err != nil {
			return err
		}
		if tok == "" {
			return nil
		}
		if a.Type == AuthBearer {
			req.Header.Set("Authorization", "Bearer "+tok)
		} else {
			req.Header.Set(a.Header, tok)
		}
	case AuthBasic:
		req.SetBasicAuth(a.Username, a.Password)
	case AuthCustom:
		if a.Apply != nil {
			return a.Apply(req)
		}
	}
	return nil
}

// String describes the scheme without revealing credentials.
func (a *AuthConfig) String() string {
	if a == nil {
		return "none"
	}
	switch a.Type {
	case AuthBearer:
		return "bearer"
	case AuthBasic:
		return "basic " + a.Username
	case AuthAPIKey:
		return "api-key " + a.Header
	case AuthCustom:
		return "custom"
	}
	return "none"
}
