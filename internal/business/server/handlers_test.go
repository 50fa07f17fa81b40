package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eightknot/auth-gateway/internal/config"
	"github.com/eightknot/auth-gateway/internal/provider"
	"github.com/eightknot/auth-gateway/internal/session"
	sessionmock "github.com/eightknot/auth-gateway/internal/session/mock"
)

const (
	testAppName    = "auth-gateway-test"
	testInstanceID = "instance-1"
	testUserAgent  = "test-agent"
	testAccept     = "text/html"
)

// memProbeStore is an in-memory probe.Store for handler tests.
type memProbeStore struct {
	value  string
	getErr error
	setErr error
}

func (s *memProbeStore) Get(_ context.Context) (string, error) {
	if s.getErr != nil {
		return "", s.getErr
	}
	return s.value, nil
}

func (s *memProbeStore) Set(_ context.Context, value string) error {
	if s.setErr != nil {
		return s.setErr
	}
	s.value = value
	return nil
}

func serverTestConfig() *config.Config {
	cfg := &config.Config{
		BaseConfig: commoncfg.BaseConfig{
			Application: commoncfg.Application{
				Name: testAppName,
			},
		},
	}
	cfg.Provider = config.Provider{
		Name:           "augur",
		TokenGrantType: "code",
	}
	cfg.Gateway = config.Gateway{
		SessionDuration: time.Hour,
		StateDuration:   10 * time.Minute,
		HomeURI:         "/",
		SessionCookieTemplate: config.CookieTemplate{
			Name:     "session_id",
			Path:     "/",
			HTTPOnly: true,
			SameSite: config.CookieSameSiteLax,
		},
	}
	return cfg
}

// startGateway wires a full HTTP server around the mock repository and
// the given token endpoint.
func startGateway(t *testing.T, tokenURL string, sessions *sessionmock.Repository, probes *memProbeStore) *httptest.Server {
	t.Helper()

	cfg := serverTestConfig()
	require.NoError(t, initMeters(t.Context(), cfg))

	registry := provider.NewStaticRegistry(provider.Provider{
		Name:           "augur",
		ClientID:       "my-client-id",
		ClientSecret:   "my-client-secret",
		AuthorizeURL:   "https://augur.example/oauth/authorize",
		TokenURL:       tokenURL,
		RedirectURI:    "http://localhost:8080/callback/",
		TokenGrantType: "code",
	})

	manager := session.NewManager(cfg, registry, sessions, &http.Client{})

	server := httptest.NewServer(createHTTPServer(t.Context(), cfg, manager, probes, testInstanceID).Handler)
	t.Cleanup(server.Close)

	return server
}

func startTokenEndpoint(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	return server
}

// doGet issues a request with a stable fingerprint and without
// following redirects.
func doGet(t *testing.T, rawURL string, cookies ...*http.Cookie) *http.Response {
	t.Helper()

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, rawURL, nil)
	require.NoError(t, err)
	req.Header.Set("User-Agent", testUserAgent)
	req.Header.Set("Accept", testAccept)
	for _, c := range cookies {
		req.AddCookie(c)
	}

	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	resp, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return string(body)
}

func sessionCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()

	for _, c := range resp.Cookies() {
		if c.Name == "session_id" {
			return c
		}
	}

	t.Fatal("no session_id cookie in response")

	return nil
}

func TestIndex(t *testing.T) {
	gateway := startGateway(t, "http://unused.invalid", sessionmock.NewInMemRepository(), &memProbeStore{})

	resp := doGet(t, gateway.URL+"/")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, testAppName+" "+testInstanceID, readBody(t, resp))
}

func TestLoginFlow(t *testing.T) {
	tokenSrv := startTokenEndpoint(t, http.StatusOK, `{"access_token": "tok-123", "username": "alice"}`)
	sessions := sessionmock.NewInMemRepository()
	gateway := startGateway(t, tokenSrv.URL, sessions, &memProbeStore{})

	// the caller is sent to the provider with a fresh state
	resp := doGet(t, gateway.URL+"/authorize/")
	require.Equal(t, http.StatusFound, resp.StatusCode)

	authURI, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "augur.example", authURI.Host)
	assert.Equal(t, "my-client-id", authURI.Query().Get("client_id"))
	assert.Equal(t, "code", authURI.Query().Get("response_type"))

	state := authURI.Query().Get("state")
	require.NotEmpty(t, state)
	require.Len(t, sessions.States(), 1)

	// the provider redirects back with a code; the exchange succeeds
	resp = doGet(t, gateway.URL+"/callback/?code=abc123&state="+url.QueryEscape(state))
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	cookie := sessionCookie(t, resp)
	assert.NotEmpty(t, cookie.Value)
	require.Len(t, sessions.Sessions(), 1)
	assert.Empty(t, sessions.States(), "state must be consumed")

	// the session cookie now resolves to the provider's username
	resp = doGet(t, gateway.URL+"/secret/", cookie)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Your username is: alice", readBody(t, resp))
}

func TestAuthorize_AlreadyAuthenticated(t *testing.T) {
	sessions := sessionmock.NewInMemRepository(
		sessionmock.WithSession(session.Session{ID: "sid-1", Username: "alice"}),
	)
	gateway := startGateway(t, "http://unused.invalid", sessions, &memProbeStore{})

	resp := doGet(t, gateway.URL+"/authorize/", &http.Cookie{Name: "session_id", Value: "sid-1"})

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
	assert.Empty(t, sessions.States(), "no new authorization should start")
}

func TestCallback_ProviderDenied(t *testing.T) {
	sessions := sessionmock.NewInMemRepository()
	gateway := startGateway(t, "http://unused.invalid", sessions, &memProbeStore{})

	resp := doGet(t, gateway.URL+"/callback/?error=access_denied&error_description=denied")

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
	assert.Empty(t, sessions.Sessions())
	assert.Empty(t, resp.Cookies())
}

func TestCallback_TokenEndpointFailure(t *testing.T) {
	tokenSrv := startTokenEndpoint(t, http.StatusInternalServerError, `{"error": "server_error"}`)
	sessions := sessionmock.NewInMemRepository()
	gateway := startGateway(t, tokenSrv.URL, sessions, &memProbeStore{})

	resp := doGet(t, gateway.URL+"/authorize/")
	require.Equal(t, http.StatusFound, resp.StatusCode)

	authURI, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)

	resp = doGet(t, gateway.URL+"/callback/?code=abc123&state="+url.QueryEscape(authURI.Query().Get("state")))

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.JSONEq(t, `{"error": "unauthorized_client", "error_description": "token exchange failed"}`, readBody(t, resp))
	assert.Empty(t, sessions.Sessions())
}

func TestCallback_UnknownState(t *testing.T) {
	sessions := sessionmock.NewInMemRepository()
	gateway := startGateway(t, "http://unused.invalid", sessions, &memProbeStore{})

	resp := doGet(t, gateway.URL+"/callback/?code=abc123&state=bogus")

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Empty(t, sessions.Sessions())
}

func TestSecret_Anonymous(t *testing.T) {
	gateway := startGateway(t, "http://unused.invalid", sessionmock.NewInMemRepository(), &memProbeStore{})

	resp := doGet(t, gateway.URL+"/secret/")

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "unauthorized_client")
}

func TestSecret_UnknownSession(t *testing.T) {
	gateway := startGateway(t, "http://unused.invalid", sessionmock.NewInMemRepository(), &memProbeStore{})

	resp := doGet(t, gateway.URL+"/secret/", &http.Cookie{Name: "session_id", Value: "gone"})

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogout(t *testing.T) {
	sessions := sessionmock.NewInMemRepository(
		sessionmock.WithSession(session.Session{ID: "sid-1", Username: "alice"}),
	)
	gateway := startGateway(t, "http://unused.invalid", sessions, &memProbeStore{})

	resp := doGet(t, gateway.URL+"/logout", &http.Cookie{Name: "session_id", Value: "sid-1"})

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
	assert.Empty(t, sessions.Sessions())

	cookie := sessionCookie(t, resp)
	assert.Empty(t, cookie.Value)
	assert.Negative(t, cookie.MaxAge)
}

func TestLogout_NoSession(t *testing.T) {
	gateway := startGateway(t, "http://unused.invalid", sessionmock.NewInMemRepository(), &memProbeStore{})

	resp := doGet(t, gateway.URL+"/logout")

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
}

func TestProbeEndpoints(t *testing.T) {
	probes := &memProbeStore{}
	gateway := startGateway(t, "http://unused.invalid", sessionmock.NewInMemRepository(), probes)

	resp := doGet(t, gateway.URL+"/get")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "got ", readBody(t, resp))

	resp = doGet(t, gateway.URL+"/set/hello")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "set hello", readBody(t, resp))
	assert.Equal(t, "hello", probes.value)

	resp = doGet(t, gateway.URL+"/get")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "got hello", readBody(t, resp))
}

func TestProbeEndpoints_StoreFailure(t *testing.T) {
	probes := &memProbeStore{
		getErr: errors.New("kaboom"),
		setErr: errors.New("kaboom"),
	}
	gateway := startGateway(t, "http://unused.invalid", sessionmock.NewInMemRepository(), probes)

	resp := doGet(t, gateway.URL+"/get")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	resp = doGet(t, gateway.URL+"/set/hello")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}
