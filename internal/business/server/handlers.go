package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	slogctx "github.com/veqryn/slog-context"

	"github.com/eightknot/auth-gateway/internal/fingerprint"
	"github.com/eightknot/auth-gateway/internal/probe"
	"github.com/eightknot/auth-gateway/internal/serviceerr"
	"github.com/eightknot/auth-gateway/internal/session"
)

// gatewayServer implements the public HTTP surface.
type gatewayServer struct {
	manager *session.Manager
	probes  probe.Store

	appName    string
	instanceID string
	homeURI    string
	cookieName string
}

func newGatewayServer(manager *session.Manager, probes probe.Store, appName, instanceID, homeURI, cookieName string) *gatewayServer {
	return &gatewayServer{
		manager:    manager,
		probes:     probes,
		appName:    appName,
		instanceID: instanceID,
		homeURI:    homeURI,
		cookieName: cookieName,
	}
}

// identify resolves the caller's session cookie to an identity. A
// missing cookie is the anonymous identity.
func (s *gatewayServer) identify(r *http.Request) (session.Identity, error) {
	cookie, err := r.Cookie(s.cookieName)
	if err != nil {
		return session.Anonymous, nil
	}

	return s.manager.Identify(r.Context(), cookie.Value)
}

func (s *gatewayServer) index(w http.ResponseWriter, r *http.Request) {
	slogctx.Debug(r.Context(), "Index route hit")

	_, _ = fmt.Fprintf(w, "%s %s", s.appName, s.instanceID)
}

func (s *gatewayServer) authorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := s.identify(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	// no new authorization for an already-authenticated caller
	if !id.IsAnonymous() {
		http.Redirect(w, r, s.homeURI, http.StatusFound)
		return
	}

	fp, err := fingerprint.ExtractFingerprint(ctx)
	if err != nil {
		slogctx.Error(ctx, "Failed to extract fingerprint", "error", err)
		s.writeError(w, r, serviceerr.ErrUnknown)
		return
	}

	authURI, err := s.manager.BeginAuthorization(ctx, fp)
	if err != nil {
		slogctx.Error(ctx, "Failed to begin authorization", "error", err)
		s.writeError(w, r, err)
		return
	}

	http.Redirect(w, r, authURI, http.StatusFound)
}

func (s *gatewayServer) callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := s.identify(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if !id.IsAnonymous() {
		http.Redirect(w, r, s.homeURI, http.StatusFound)
		return
	}

	fp, err := fingerprint.ExtractFingerprint(ctx)
	if err != nil {
		slogctx.Error(ctx, "Failed to extract fingerprint", "error", err)
		s.writeError(w, r, serviceerr.ErrUnknown)
		return
	}

	sess, err := s.manager.FinaliseLogin(ctx, r.URL.Query(), fp)
	if errors.Is(err, serviceerr.ErrProviderDenied) {
		// the provider refused the authorization; back to the home view
		http.Redirect(w, r, s.homeURI, http.StatusFound)
		return
	}
	if err != nil {
		slogctx.Error(ctx, "Failed to finalise login", "error", err)
		s.writeError(w, r, err)
		return
	}

	cookie, err := s.manager.MakeSessionCookie(ctx, sess.ID)
	if err != nil {
		slogctx.Error(ctx, "Failed to create session cookie", "error", err)
		s.writeError(w, r, serviceerr.ErrUnknown)
		return
	}

	http.SetCookie(w, cookie)
	http.Redirect(w, r, s.homeURI, http.StatusFound)
}

func (s *gatewayServer) logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if cookie, err := r.Cookie(s.cookieName); err == nil {
		// logout has no failure mode for the caller; a store error is
		// logged and the credential is cleared regardless
		if err := s.manager.Logout(ctx, cookie.Value); err != nil {
			slogctx.Warn(ctx, "Failed to delete session on logout", "error", err)
		}
	}

	http.SetCookie(w, s.manager.ExpireSessionCookie())
	http.Redirect(w, r, s.homeURI, http.StatusFound)
}

func (s *gatewayServer) secret(w http.ResponseWriter, r *http.Request) {
	id, err := s.identify(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if id.IsAnonymous() {
		s.writeError(w, r, serviceerr.ErrUnauthorized)
		return
	}

	_, _ = fmt.Fprintf(w, "Your username is: %s", id.Session.Username)
}

func (s *gatewayServer) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slogctx.Debug(ctx, "Get route hit")

	value, err := s.probes.Get(ctx)
	if err != nil {
		slogctx.Error(ctx, "Failed to read probe value", "error", err)
		s.writeError(w, r, serviceerr.ErrUnknown)
		return
	}

	_, _ = fmt.Fprintf(w, "got %s", value)
}

func (s *gatewayServer) set(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slogctx.Debug(ctx, "Set route hit")

	value := r.PathValue("value")
	if err := s.probes.Set(ctx, value); err != nil {
		slogctx.Error(ctx, "Failed to write probe value", "error", err)
		s.writeError(w, r, serviceerr.ErrUnknown)
		return
	}

	_, _ = fmt.Fprintf(w, "set %s", value)
}

// errorModel is the JSON error body, shaped after the RFC 6749 error
// response.
type errorModel struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

func (s *gatewayServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var serviceErr *serviceerr.Error
	if !errors.As(err, &serviceErr) {
		serviceErr = serviceerr.ErrUnknown
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(serviceErr.HTTPStatus())

	if encodeErr := json.NewEncoder(w).Encode(errorModel{
		Error:            string(serviceErr.Err),
		ErrorDescription: serviceErr.Description,
	}); encodeErr != nil {
		slogctx.Error(r.Context(), "Failed to encode error response", "error", encodeErr)
	}
}
