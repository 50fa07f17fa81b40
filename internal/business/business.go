package business

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/valkey-io/valkey-go"

	slogctx "github.com/veqryn/slog-context"

	"github.com/eightknot/auth-gateway/internal/business/server"
	"github.com/eightknot/auth-gateway/internal/config"
	"github.com/eightknot/auth-gateway/internal/probe"
	"github.com/eightknot/auth-gateway/internal/provider"
	"github.com/eightknot/auth-gateway/internal/session"
	sessionvalkey "github.com/eightknot/auth-gateway/internal/session/valkey"
)

// Main wires the storage, the provider registry and the session core
// together and runs the public HTTP server until the context is done.
func Main(ctx context.Context, cfg *config.Config) error {
	valkeyClient, err := initValkeyClient(cfg)
	if err != nil {
		return fmt.Errorf("initialising the valkey client: %w", err)
	}

	defer valkeyClient.Close()

	registry, err := provider.NewRegistry(&cfg.Provider)
	if err != nil {
		return fmt.Errorf("initialising the provider registry: %w", err)
	}

	sessionRepo := sessionvalkey.NewRepository(valkeyClient, cfg.ValKey.Prefix)
	probeStore := probe.NewValkeyStore(valkeyClient)

	httpClient := &http.Client{Timeout: cfg.Gateway.ExchangeTimeout}
	sessionManager := session.NewManager(cfg, registry, sessionRepo, httpClient)

	// The same instance id surfaces in every log line and on the index
	// route, so a response can be traced back to the worker that served it.
	instanceID := uuid.NewString()
	ctx = slogctx.With(ctx, "instance_id", instanceID)

	return server.StartHTTPServer(ctx, cfg, sessionManager, probeStore, instanceID)
}

func initValkeyClient(cfg *config.Config) (valkey.Client, error) {
	valkeyHost, err := commoncfg.LoadValueFromSourceRef(cfg.ValKey.Host)
	if err != nil {
		return nil, fmt.Errorf("loading valkey host: %w", err)
	}

	valkeyUsername, err := commoncfg.LoadValueFromSourceRef(cfg.ValKey.User)
	if err != nil {
		return nil, fmt.Errorf("loading valkey username: %w", err)
	}

	valkeyPassword, err := commoncfg.LoadValueFromSourceRef(cfg.ValKey.Password)
	if err != nil {
		return nil, fmt.Errorf("loading valkey password: %w", err)
	}

	valkeyOpts := valkey.ClientOption{
		InitAddress: []string{string(valkeyHost)},
		Username:    string(valkeyUsername),
		Password:    string(valkeyPassword),
	}

	if cfg.ValKey.SecretRef.Type == commoncfg.MTLSSecretType {
		tlsConfig, err := commoncfg.LoadMTLSConfig(&cfg.ValKey.SecretRef.MTLS)
		if err != nil {
			return nil, fmt.Errorf("loading valkey mTLS config from secret ref: %w", err)
		}

		valkeyOpts.TLSConfig = tlsConfig
	}

	valkeyClient, err := valkey.NewClient(valkeyOpts)
	if err != nil {
		return nil, fmt.Errorf("creating a new valkey client: %w", err)
	}

	return valkeyClient, nil
}
