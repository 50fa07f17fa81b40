package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	slogctx "github.com/veqryn/slog-context"

	"github.com/eightknot/auth-gateway/internal/config"
	"github.com/eightknot/auth-gateway/internal/provider"
	"github.com/eightknot/auth-gateway/internal/serviceerr"
)

type Manager struct {
	providers    *provider.Registry
	sessions     Repository
	ids          IDSource
	secureClient *http.Client

	providerName    string
	sessionDuration time.Duration
	stateDuration   time.Duration

	sessionCookieTemplate config.CookieTemplate
}

func NewManager(
	cfg *config.Config,
	providers *provider.Registry,
	sessions Repository,
	httpClient *http.Client,
) *Manager {
	return &Manager{
		providers:             providers,
		sessions:              sessions,
		secureClient:          httpClient,
		providerName:          cfg.Provider.Name,
		sessionDuration:       cfg.Gateway.SessionDuration,
		stateDuration:         cfg.Gateway.StateDuration,
		sessionCookieTemplate: cfg.Gateway.SessionCookieTemplate,
	}
}

// BeginAuthorization returns the provider's authorization URI for a new
// login. A state record bound to the caller's fingerprint is stored for
// verification on callback. No network call is made.
func (m *Manager) BeginAuthorization(ctx context.Context, fingerprint string) (string, error) {
	p, err := m.providers.Lookup(m.providerName)
	if err != nil {
		return "", fmt.Errorf("looking up oauth2 provider: %w", err)
	}

	state := State{
		ID:          m.ids.State(),
		Fingerprint: fingerprint,
		Expiry:      time.Now().Add(m.stateDuration),
	}

	if err := m.sessions.StoreState(ctx, state); err != nil {
		return "", fmt.Errorf("storing state: %w", err)
	}

	u, err := m.authURI(p, state)
	if err != nil {
		return "", fmt.Errorf("generating auth uri: %w", err)
	}

	return u, nil
}

func (m *Manager) authURI(p provider.Provider, state State) (string, error) {
	u, err := url.Parse(p.AuthorizeURL)
	if err != nil {
		return "", fmt.Errorf("parsing authorisation endpoint url: %w", err)
	}

	q := u.Query()
	q.Set("client_id", p.ClientID)
	q.Set("response_type", "code")
	q.Set("state", state.ID)

	u.RawQuery = q.Encode()

	return u.String(), nil
}

// FinaliseLogin drives the provider's redirect-back through the ordered
// gates of the authorization-code flow and commits exactly one session
// on success. Failure at any gate aborts without touching the store.
func (m *Manager) FinaliseLogin(ctx context.Context, query url.Values, fingerprint string) (Session, error) {
	p, err := m.providers.Lookup(m.providerName)
	if err != nil {
		return Session{}, fmt.Errorf("looking up oauth2 provider: %w", err)
	}

	if denied := providerErrors(query); len(denied) > 0 {
		for _, k := range denied {
			slogctx.Warn(ctx, "Provider reported an authorization error", "key", k, "value", query.Get(k))
		}

		return Session{}, serviceerr.ErrProviderDenied
	}

	code := query.Get("code")
	if code == "" {
		return Session{}, serviceerr.ErrMissingCode
	}

	if err := m.verifyState(ctx, query.Get("state"), fingerprint); err != nil {
		return Session{}, err
	}

	tokens, err := m.exchangeCode(ctx, p, code)
	if err != nil {
		return Session{}, errors.Join(serviceerr.ErrTokenExchange, err)
	}

	if tokens.AccessToken == "" {
		return Session{}, serviceerr.ErrTokenExchange
	}

	slogctx.Info(ctx, "Exchanged the auth code for an access token", "username", tokens.Username)

	session := Session{
		ID:           m.ids.SessionID(),
		Username:     tokens.Username,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		Expiration:   tokens.expiration(),
		Expiry:       time.Now().Add(m.sessionDuration),
	}

	// The session write is the single commit point; nothing after it
	// may fail the login.
	if err := m.sessions.StoreSession(ctx, session); err != nil {
		return Session{}, fmt.Errorf("storing session: %w", err)
	}

	if err := m.sessions.DeleteState(ctx, query.Get("state")); err != nil {
		slogctx.Warn(ctx, "Failed to delete consumed state", "error", err)
	}

	return session, nil
}

func (m *Manager) verifyState(ctx context.Context, stateID, fingerprint string) error {
	if stateID == "" {
		return serviceerr.ErrStateMismatch
	}

	state, err := m.sessions.LoadState(ctx, stateID)
	if err != nil {
		var serviceErr *serviceerr.Error
		if errors.As(err, &serviceErr) && serviceErr.Err == serviceerr.CodeNotFound {
			return serviceerr.ErrStateMismatch
		}

		return fmt.Errorf("loading state from the storage: %w", err)
	}

	if time.Now().After(state.Expiry) {
		return serviceerr.ErrStateExpired
	}

	if state.Fingerprint != fingerprint {
		return serviceerr.ErrStateMismatch
	}

	return nil
}

// Identify resolves a session credential to an identity. An empty
// credential or a missing store key is Anonymous, never an error.
func (m *Manager) Identify(ctx context.Context, sessionID string) (Identity, error) {
	if sessionID == "" {
		return Anonymous, nil
	}

	s, err := m.sessions.LoadSession(ctx, sessionID)
	if err != nil {
		var serviceErr *serviceerr.Error
		if errors.As(err, &serviceErr) && serviceErr.Err == serviceerr.CodeNotFound {
			return Anonymous, nil
		}

		return Anonymous, fmt.Errorf("loading session from the storage: %w", err)
	}

	return Identity{SessionID: sessionID, Session: s}, nil
}

// Logout deletes the session record. Deleting an absent or empty
// credential is a no-op.
func (m *Manager) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	if err := m.sessions.DeleteSession(ctx, sessionID); err != nil {
		var serviceErr *serviceerr.Error
		if errors.As(err, &serviceErr) && serviceErr.Err == serviceerr.CodeNotFound {
			return nil
		}

		return fmt.Errorf("deleting session: %w", err)
	}

	return nil
}

func (m *Manager) MakeSessionCookie(ctx context.Context, value string) (*http.Cookie, error) {
	sessionCookie := m.sessionCookieTemplate.ToCookie(value)

	if err := sessionCookie.Valid(); err != nil {
		return nil, fmt.Errorf("invalid session cookie: %w", err)
	}

	if !sessionCookie.Secure {
		slogctx.Warn(ctx, "Session cookie is not marked as Secure; this is not recommended in production environments")
	}
	if !sessionCookie.HttpOnly {
		slogctx.Warn(ctx, "Session cookie is not marked as HttpOnly; this is not recommended in production environments")
	}

	return sessionCookie, nil
}

// ExpireSessionCookie returns a cookie that clears the session
// credential on the caller.
func (m *Manager) ExpireSessionCookie() *http.Cookie {
	c := m.sessionCookieTemplate.ToCookie("")
	c.MaxAge = -1

	return c
}

func (m *Manager) exchangeCode(ctx context.Context, p provider.Provider, code string) (tokenResponse, error) {
	data := url.Values{}
	data.Set("client_id", p.ClientID)
	data.Set("client_secret", p.ClientSecret)
	data.Set("code", code)
	data.Set("grant_type", p.TokenGrantType)
	data.Set("redirect_uri", p.RedirectURI)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return tokenResponse{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Client "+p.ClientSecret)

	resp, err := m.secureClient.Do(req)
	if err != nil {
		return tokenResponse{}, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return tokenResponse{}, fmt.Errorf("token exchange failed with status: %d", resp.StatusCode)
	}

	var tokens tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return tokenResponse{}, fmt.Errorf("decoding response: %w", err)
	}

	return tokens, nil
}

type tokenResponse struct {
	AccessToken  string          `json:"access_token"`
	Username     string          `json:"username"`
	RefreshToken string          `json:"refresh_token"`
	Expires      json.RawMessage `json:"expires"`
}

// expiration passes the provider's expiry marker through opaquely,
// whether the provider sent it as a JSON string or a number.
func (t tokenResponse) expiration() string {
	if len(t.Expires) == 0 {
		return ""
	}

	if s, err := strconv.Unquote(string(t.Expires)); err == nil {
		return s
	}

	return string(t.Expires)
}

// providerErrors returns the query keys that report a provider-side
// authorization failure.
func providerErrors(query url.Values) []string {
	var keys []string
	for k := range query {
		if strings.HasPrefix(k, "error") {
			keys = append(keys, k)
		}
	}

	return keys
}
