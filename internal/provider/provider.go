// Package provider holds the static description of the OAuth2 identity
// provider the gateway authenticates against.
package provider

// Provider describes one identity provider. Immutable after load.
type Provider struct {
	Name         string
	ClientID     string
	ClientSecret string
	AuthorizeURL string
	TokenURL     string
	RedirectURI  string

	// TokenGrantType is the grant_type literal the token endpoint
	// expects. Defaults to "code" for Augur.
	TokenGrantType string
}
