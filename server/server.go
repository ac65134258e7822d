package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/mkerhoas/outlook-relay/authority"
	"github.com/mkerhoas/outlook-relay/internal/config"
	"github.com/mkerhoas/outlook-relay/relaytoken"
	"github.com/mkerhoas/outlook-relay/server/relaystate"
	"github.com/mkerhoas/outlook-relay/timesheet"
)

// AuthorityClient is the identity provider surface the server depends on.
type AuthorityClient interface {
	AuthorizeURL(state, nonce string) string
	ExchangeCode(ctx context.Context, code string) (*authority.TokenSet, error)
	ExchangeAndVerify(ctx context.Context, code, nonce string) (*authority.TokenSet, relaytoken.Identity, error)
	AcquireOnBehalfOf(ctx context.Context, assertion string, scopes []string) (*authority.TokenSet, error)
}

// TokenVerifier validates inbound bearer tokens.
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (jwtlib.MapClaims, error)
}

// TimesheetClient is the downstream API surface the server depends on.
type TimesheetClient interface {
	CreateEntry(ctx context.Context, accessToken string, entry timesheet.Entry) (*timesheet.CreatedEntry, error)
}

type Server struct {
	env        string // Environment (e.g., "DEV", "production")
	mux        *http.ServeMux
	routes     []string
	config     config.Config
	flow       AuthFlow
	authority  AuthorityClient
	verifier   TokenVerifier
	timesheet  TimesheetClient
	fileServer http.Handler
}

func New(cfg config.Config, authorityClient AuthorityClient, verifier TokenVerifier, timesheetClient TimesheetClient, stateRepo relaystate.Repo) (*Server, error) {
	minter := relaytoken.NewMinter(
		[]byte(cfg.GetSessionTokenSecret()),
		cfg.GetAppName(),
		cfg.GetClientID(),
		relaytoken.DefaultSessionTokenExpiry,
	)

	flow, err := newAuthFlow(cfg, authorityClient, minter, stateRepo)
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to create auth flow: %w", err)
	}

	s := &Server{
		mux:       http.NewServeMux(),
		config:    cfg,
		flow:      flow,
		authority: authorityClient,
		verifier:  verifier,
		timesheet: timesheetClient,
	}
	s.env = cfg.GetEnv()
	s.fileServer = FileServerHandler()

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

// newAuthFlow selects the active flow variant from configuration.
func newAuthFlow(cfg config.Config, authorityClient AuthorityClient, minter *relaytoken.Minter, stateRepo relaystate.Repo) (AuthFlow, error) {
	switch cfg.GetFlowMode() {
	case config.FlowModePopup:
		return NewPopupRelayFlow(authorityClient, minter), nil
	case config.FlowModeCookie:
		return NewCookieBoundFlow(authorityClient, minter, stateRepo, firstOrigin(cfg.GetAllowedOrigins())), nil
	default:
		return nil, fmt.Errorf("unknown flow mode %q", cfg.GetFlowMode())
	}
}

// firstOrigin picks the postMessage target origin for the cookie-bound
// flow's relay page. With no configured origins the page falls back to "*".
func firstOrigin(origins config.AllowedOrigins) string {
	for origin := range origins {
		return origin
	}
	return "*"
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Printf("[%-19s] %s\n", displayMethod, path)
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
