// Package probe implements the debug key/value endpoints' storage. It
// shares the physical valkey instance with the session store but owns a
// separate interface and key, so the two namespaces cannot collide.
package probe

import (
	"context"
	"fmt"

	"github.com/valkey-io/valkey-go"
)

// probeKey is the single fixed key the /get and /set endpoints operate
// on, kept verbatim from the original deployment.
const probeKey = "key"

// Store is the debug key/value contract, deliberately separate from the
// session repository.
type Store interface {
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, value string) error
}

type ValkeyStore struct {
	valkey valkey.Client
}

var _ = Store(&ValkeyStore{})

func NewValkeyStore(valkeyClient valkey.Client) *ValkeyStore {
	return &ValkeyStore{valkey: valkeyClient}
}

// Get returns the probe value, or an empty string when the key has
// never been set.
func (s *ValkeyStore) Get(ctx context.Context) (string, error) {
	value, err := s.valkey.Do(ctx, s.valkey.B().Get().Key(probeKey).Build()).ToString()
	if err != nil {
		valkeyErr, ok := valkey.IsValkeyErr(err)
		if ok && valkeyErr.IsNil() {
			return "", nil
		}

		return "", fmt.Errorf("executing get command: %w", err)
	}

	return value, nil
}

func (s *ValkeyStore) Set(ctx context.Context, value string) error {
	if err := s.valkey.Do(ctx, s.valkey.B().Set().Key(probeKey).Value(value).Build()).Error(); err != nil {
		return fmt.Errorf("executing set command: %w", err)
	}

	return nil
}
