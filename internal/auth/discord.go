package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	httpc "github.com/thegaspygames/canciones/internal/http"
)

const (
	DiscordAuthURL  = "https://discord.com/oauth2/authorize"
	DiscordTokenURL = "https://discord.com/api/oauth2/token"
	DiscordAPIURL   = "https://discord.com/api"
)

// Profile is the Discord account behind a token.
type Profile struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
	GlobalName    string `json:"global_name"`
}

// DisplayName returns the global name when set, else the username.
func (p Profile) DisplayName() string {
	if p.GlobalName != "" {
		return p.GlobalName
	}
	if p.Discriminator != "" && p.Discriminator != "0" {
		return p.Username + "#" + p.Discriminator
	}
	return p.Username
}

// Discord performs the PKCE authorization code flow against Discord and
// looks up the account behind a token. It is a public client: no secret
// is ever sent.
type Discord struct {
	config *oauth2.Config
	apiURL string
	http   *httpc.Client
}

// DiscordOption configures a Discord client.
type DiscordOption func(*Discord)

// WithDiscordEndpoints overrides the authorize, token and API URLs.
func WithDiscordEndpoints(authURL, tokenURL, apiURL string) DiscordOption {
	return func(d *Discord) {
		d.config.Endpoint.AuthURL = authURL
		d.config.Endpoint.TokenURL = tokenURL
		d.apiURL = strings.TrimRight(apiURL, "/")
	}
}

// WithDiscordHTTPClient sets the HTTP client used for token exchange and
// profile lookups.
func WithDiscordHTTPClient(c *httpc.Client) DiscordOption {
	return func(d *Discord) {
		d.http = c
	}
}

// NewDiscord creates a client for the given application.
func NewDiscord(clientID, redirectURI string, opts ...DiscordOption) *Discord {
	d := &Discord{
		config: &oauth2.Config{
			ClientID:    clientID,
			RedirectURL: redirectURI,
			Scopes:      []string{"identify"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   DiscordAuthURL,
				TokenURL:  DiscordTokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		apiURL: DiscordAPIURL,
		http:   httpc.NewClient(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// AuthCodeURL returns the URL the user visits to approve the login.
func (d *Discord) AuthCodeURL(state, verifier string) string {
	return d.config.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

// Exchange trades an authorization code for a token.
func (d *Discord) Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, d.http.HTTPClient())
	return d.config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
}

// FetchProfile returns the account that owns token. A token Discord
// refuses yields ErrAuth.
func (d *Discord) FetchProfile(ctx context.Context, token string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.apiURL+"/users/@me", http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := d.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: token rejected by Discord", ErrAuth)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &httpc.StatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			URL:        req.URL.String(),
			Body:       body,
		}
	}

	var p Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	if p.ID == "" {
		return nil, fmt.Errorf("%w: profile has no id", ErrAuth)
	}
	return &p, nil
}
