// Package config defines the necessary types to configure the application.
// The config file is looked up in /etc/auth-gateway, $HOME/.auth-gateway
// and the working directory.
package config

import (
	"time"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
)

type Config struct {
	commoncfg.BaseConfig `mapstructure:",squash" yaml:",inline"`

	HTTP HTTPServer `yaml:"http"`

	ValKey   ValKey   `yaml:"valkey"`
	Provider Provider `yaml:"provider"`
	Gateway  Gateway  `yaml:"gateway"`
}

type HTTPServer struct {
	Address         string        `yaml:"address" default:":8080"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" default:"5s"`
}

type ValKey struct {
	Host      commoncfg.SourceRef `yaml:"host"`
	User      commoncfg.SourceRef `yaml:"user"`
	Password  commoncfg.SourceRef `yaml:"password"`
	Prefix    string              `yaml:"prefix" default:"authgw"`
	SecretRef commoncfg.SecretRef `yaml:"secretRef"`
}

// Provider describes the single OAuth2 identity provider the gateway
// exchanges authorization codes with. Assembled once at startup and
// never mutated.
type Provider struct {
	Name         string              `yaml:"name" default:"augur"`
	ClientID     commoncfg.SourceRef `yaml:"clientID"`
	ClientSecret commoncfg.SourceRef `yaml:"clientSecret"`
	AuthorizeURL string              `yaml:"authorizeURL"`
	TokenURL     string              `yaml:"tokenURL"`
	RedirectURI  string              `yaml:"redirectURI"`

	// TokenGrantType is the grant_type literal sent to the token
	// endpoint. The Augur endpoint expects "code" rather than the
	// RFC 6749 "authorization_code".
	TokenGrantType string `yaml:"tokenGrantType" default:"code"`
}

type Gateway struct {
	SessionDuration time.Duration `yaml:"sessionDuration" default:"12h"`
	StateDuration   time.Duration `yaml:"stateDuration" default:"10m"`
	ExchangeTimeout time.Duration `yaml:"exchangeTimeout" default:"10s"`
	HomeURI         string        `yaml:"homeURI" default:"/"`

	SessionCookieTemplate CookieTemplate `yaml:"sessionCookie"`
}
