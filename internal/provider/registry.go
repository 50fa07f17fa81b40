package provider

import (
	"fmt"

	"github.com/openkcm/common-sdk/pkg/commoncfg"

	"github.com/eightknot/auth-gateway/internal/config"
	"github.com/eightknot/auth-gateway/internal/serviceerr"
)

// Registry resolves a provider by name. Exactly one provider is
// configured per process; lookups by any other name fail with
// serviceerr.ErrNotFound.
type Registry struct {
	provider Provider
}

func NewRegistry(cfg *config.Provider) (*Registry, error) {
	clientID, err := commoncfg.LoadValueFromSourceRef(cfg.ClientID)
	if err != nil {
		return nil, fmt.Errorf("loading client id: %w", err)
	}

	clientSecret, err := commoncfg.LoadValueFromSourceRef(cfg.ClientSecret)
	if err != nil {
		return nil, fmt.Errorf("loading client secret: %w", err)
	}

	return &Registry{
		provider: Provider{
			Name:           cfg.Name,
			ClientID:       string(clientID),
			ClientSecret:   string(clientSecret),
			AuthorizeURL:   cfg.AuthorizeURL,
			TokenURL:       cfg.TokenURL,
			RedirectURI:    cfg.RedirectURI,
			TokenGrantType: cfg.TokenGrantType,
		},
	}, nil
}

// NewStaticRegistry wraps an already assembled provider. Used by tests
// and by callers that resolve credentials themselves.
func NewStaticRegistry(p Provider) *Registry {
	return &Registry{provider: p}
}

func (r *Registry) Lookup(name string) (Provider, error) {
	if r == nil || name == "" || name != r.provider.Name {
		return Provider{}, serviceerr.ErrNotFound
	}

	return r.provider, nil
}
