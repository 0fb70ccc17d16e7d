package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// PendingLoginTTL bounds how long a started login can be completed.
const PendingLoginTTL = 10 * time.Minute

// DefaultTokenTTL is the cache lifetime of a token whose redirect or
// exchange response states no expiry. It matches Discord's token lifetime.
const DefaultTokenTTL = 7 * 24 * time.Hour

const (
	keyToken    = "token"
	keyVerifier = "pkce_verifier"
	keyState    = "oauth_state"
)

// State is the position of a Gate in the login lifecycle.
type State int

const (
	LoggedOut State = iota
	PendingAuthorization
	Verifying
	Authorized
	Denied
)

func (s State) String() string {
	switch s {
	case LoggedOut:
		return "logged out"
	case PendingAuthorization:
		return "pending authorization"
	case Verifying:
		return "verifying"
	case Authorized:
		return "authorized"
	case Denied:
		return "denied"
	default:
		return "unknown"
	}
}

// Provider is the identity service behind a Gate.
type Provider interface {
	AuthCodeURL(state, verifier string) string
	Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error)
	FetchProfile(ctx context.Context, token string) (*Profile, error)
}

// Gate admits a single allowed account.
//
// A login starts with BeginLogin and finishes with CompleteLogin, which
// verifies the resulting token. Only an Authorized gate hands out its token.
type Gate struct {
	provider  Provider
	store     *SessionStore
	allowedID string

	mu      sync.Mutex
	state   State
	profile *Profile
}

// NewGate creates a Gate that admits allowedID only.
func NewGate(provider Provider, store *SessionStore, allowedID string) *Gate {
	return &Gate{provider: provider, store: store, allowedID: allowedID}
}

// State returns the current state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Profile returns the last verified account, or nil.
func (g *Gate) Profile() *Profile {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.profile
}

// Token returns the session token of an Authorized gate.
func (g *Gate) Token() (string, error) {
	if g.State() != Authorized {
		return "", ErrUnauthorized
	}
	token, ok := g.store.Get(keyToken)
	if !ok {
		g.set(LoggedOut, nil)
		return "", fmt.Errorf("%w: session expired", ErrUnauthorized)
	}
	return token, nil
}

// BeginLogin creates a fresh PKCE verifier and state, stores both for
// PendingLoginTTL and returns the authorization URL to open.
func (g *Gate) BeginLogin() (string, error) {
	verifier := oauth2.GenerateVerifier()
	state := oauth2.GenerateVerifier()

	if err := g.store.Set(keyVerifier, verifier, PendingLoginTTL); err != nil {
		return "", err
	}
	if err := g.store.Set(keyState, state, PendingLoginTTL); err != nil {
		return "", err
	}
	g.set(PendingAuthorization, nil)
	return g.provider.AuthCodeURL(state, verifier), nil
}

// CompleteLogin finishes a login from the parameters of the redirect. Both
// the authorization code form (code, state) and the implicit form
// (access_token, expires_in) are accepted. The token is cached and then
// verified.
func (g *Gate) CompleteLogin(ctx context.Context, params url.Values) (*Profile, error) {
	token, ttl, err := g.redeem(ctx, params)
	_ = g.store.Delete(keyVerifier, keyState)
	if err != nil {
		g.set(LoggedOut, nil)
		return nil, err
	}

	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	if err := g.store.Set(keyToken, token, ttl); err != nil {
		g.set(LoggedOut, nil)
		return nil, err
	}
	return g.Verify(ctx, token)
}

func (g *Gate) redeem(ctx context.Context, params url.Values) (string, time.Duration, error) {
	if e := params.Get("error"); e != "" {
		if desc := params.Get("error_description"); desc != "" {
			e += ": " + desc
		}
		return "", 0, fmt.Errorf("%w: %s", ErrAuth, e)
	}

	wantState, hasState := g.store.Get(keyState)

	if token := params.Get("access_token"); token != "" {
		got := params.Get("state")
		if (hasState || got != "") && got != wantState {
			return "", 0, fmt.Errorf("%w: state mismatch", ErrAuth)
		}
		var ttl time.Duration
		if secs, err := strconv.Atoi(params.Get("expires_in")); err == nil && secs > 0 {
			ttl = time.Duration(secs) * time.Second
		}
		return token, ttl, nil
	}

	code := params.Get("code")
	if code == "" {
		return "", 0, fmt.Errorf("%w: redirect carries neither code nor token", ErrAuth)
	}
	if !hasState || params.Get("state") != wantState {
		return "", 0, fmt.Errorf("%w: state mismatch", ErrAuth)
	}
	verifier, ok := g.store.Get(keyVerifier)
	if !ok {
		return "", 0, fmt.Errorf("%w: login expired, start again", ErrAuth)
	}

	g.set(Verifying, nil)
	tok, err := g.provider.Exchange(ctx, code, verifier)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %w", ErrAuth, err)
	}
	var ttl time.Duration
	if !tok.Expiry.IsZero() {
		ttl = time.Until(tok.Expiry)
		if ttl <= 0 {
			return "", 0, fmt.Errorf("%w: token already expired", ErrAuth)
		}
	}
	return tok.AccessToken, ttl, nil
}

// Verify checks which account owns token. An account other than the allowed
// one moves the gate to Denied and returns the profile with ErrUnauthorized.
// A token the provider rejects is purged from the session.
func (g *Gate) Verify(ctx context.Context, token string) (*Profile, error) {
	g.set(Verifying, nil)

	p, err := g.provider.FetchProfile(ctx, token)
	if err != nil {
		if errors.Is(err, ErrAuth) {
			_ = g.store.Delete(keyToken)
		}
		g.set(LoggedOut, nil)
		return nil, err
	}

	if g.allowedID == "" || p.ID != g.allowedID {
		g.set(Denied, p)
		return p, fmt.Errorf("%w: account %s is not allowed to publish", ErrUnauthorized, p.DisplayName())
	}
	g.set(Authorized, p)
	return p, nil
}

// Restore re-verifies a cached, unexpired token.
func (g *Gate) Restore(ctx context.Context) (*Profile, error) {
	token, ok := g.store.Get(keyToken)
	if !ok || strings.TrimSpace(token) == "" {
		g.set(LoggedOut, nil)
		return nil, fmt.Errorf("%w: no active session", ErrUnauthorized)
	}
	return g.Verify(ctx, token)
}

// Logout purges the session.
func (g *Gate) Logout() error {
	g.set(LoggedOut, nil)
	return g.store.Delete(keyToken, keyVerifier, keyState)
}

func (g *Gate) set(s State, p *Profile) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = s
	g.profile = p
}
