// Package sessionvalkey persists session and state records in a valkey
// key-value store. Keys are `{prefix}:{objectType}:{id}`, values are
// JSON, and the record expiry becomes the key TTL.
package sessionvalkey

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/eightknot/auth-gateway/internal/session"
)

type ObjectType string

const (
	objectTypeSession ObjectType = "session"
	objectTypeState   ObjectType = "state"
)

var (
	ErrGetState     = errors.New("getting state from store")
	ErrStoreState   = errors.New("setting state into storage")
	ErrGetSession   = errors.New("getting session from store")
	ErrStoreSession = errors.New("setting session into storage")
)

type Repository struct {
	store *store
}

var _ = session.Repository(&Repository{})

func NewRepository(valkeyClient valkey.Client, prefix string) *Repository {
	return &Repository{
		store: newStore(valkeyClient, prefix),
	}
}

func (r *Repository) LoadState(ctx context.Context, stateID string) (session.State, error) {
	var state session.State
	if err := r.store.Get(ctx, string(objectTypeState), stateID, &state); err != nil {
		return session.State{}, errors.Join(ErrGetState, err)
	}

	state.ID = stateID

	return state, nil
}

func (r *Repository) StoreState(ctx context.Context, state session.State) error {
	duration := time.Until(state.Expiry)
	if err := r.store.Set(ctx, string(objectTypeState), state.ID, state, duration); err != nil {
		return errors.Join(ErrStoreState, err)
	}

	return nil
}

func (r *Repository) DeleteState(ctx context.Context, stateID string) error {
	if err := r.store.Destroy(ctx, string(objectTypeState), stateID); err != nil {
		return fmt.Errorf("deleting state from store: %w", err)
	}

	return nil
}

func (r *Repository) LoadSession(ctx context.Context, sessionID string) (session.Session, error) {
	var s session.Session
	if err := r.store.Get(ctx, string(objectTypeSession), sessionID, &s); err != nil {
		return session.Session{}, errors.Join(ErrGetSession, err)
	}

	s.ID = sessionID

	return s, nil
}

func (r *Repository) StoreSession(ctx context.Context, s session.Session) error {
	duration := time.Until(s.Expiry)
	if err := r.store.Set(ctx, string(objectTypeSession), s.ID, s, duration); err != nil {
		return errors.Join(ErrStoreSession, err)
	}

	return nil
}

func (r *Repository) DeleteSession(ctx context.Context, sessionID string) error {
	if err := r.store.Destroy(ctx, string(objectTypeSession), sessionID); err != nil {
		return fmt.Errorf("deleting session from store: %w", err)
	}

	return nil
}
