package gauth

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// authorizedUser is the token.json layout written by the Google OAuth
// installed-app flow (and by gcloud for authorized_user credentials).
type authorizedUser struct {
	Type         string   `json:"type,omitempty"`
	Token        string   `json:"token,omitempty"`
	RefreshToken string   `json:"refresh_token"`
	TokenURI     string   `json:"token_uri,omitempty"`
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	Scopes       []string `json:"scopes,omitempty"`
	Expiry       string   `json:"expiry,omitempty"`
}

var expiryLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

func parseExpiry(s string) time.Time {
	for _, layout := range expiryLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// UserTokenSource loads an authorized-user token file and returns a token
// source that refreshes it as needed. Refreshed access tokens are written
// back to the file so the next run starts warm.
func UserTokenSource(ctx context.Context, path string) (oauth2.TokenSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read oauth token %s: %w", path, err)
	}
	var au authorizedUser
	if err := json.Unmarshal(data, &au); err != nil {
		return nil, fmt.Errorf("parse oauth token %s: %w", path, err)
	}
	if au.RefreshToken == "" && au.Token == "" {
		return nil, fmt.Errorf("oauth token %s has neither access nor refresh token", path)
	}

	endpoint := google.Endpoint
	if au.TokenURI != "" {
		endpoint.TokenURL = au.TokenURI
	}
	cfg := &oauth2.Config{
		ClientID:     au.ClientID,
		ClientSecret: au.ClientSecret,
		Endpoint:     endpoint,
		Scopes:       au.Scopes,
	}
	tok := &oauth2.Token{
		AccessToken:  au.Token,
		RefreshToken: au.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       parseExpiry(au.Expiry),
	}
	if au.Token == "" {
		// Force a refresh on first use.
		tok.Expiry = time.Unix(1, 0)
	}

	return &persistingSource{
		base: oauth2.ReuseTokenSource(tok, cfg.TokenSource(ctx, tok)),
		path: path,
		file: au,
		last: au.Token,
	}, nil
}

// persistingSource writes refreshed tokens back to the token file.
type persistingSource struct {
	base oauth2.TokenSource
	path string

	mu   sync.Mutex
	file authorizedUser
	last string
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if tok.AccessToken == p.last {
		return tok, nil
	}
	p.last = tok.AccessToken
	p.file.Token = tok.AccessToken
	if tok.RefreshToken != "" {
		p.file.RefreshToken = tok.RefreshToken
	}
	if !tok.Expiry.IsZero() {
		p.file.Expiry = tok.Expiry.UTC().Format(time.RFC3339Nano)
	}
	if data, err := json.MarshalIndent(p.file, "", "  "); err == nil {
		if err := os.WriteFile(p.path, data, 0o600); err != nil {
			log.Warn().Err(err).Str("file", p.path).Msg("Could not persist refreshed OAuth token")
		} else {
			log.Info().Str("file", p.path).Msg("OAuth token refreshed")
		}
	}
	return tok, nil
}
