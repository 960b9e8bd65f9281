package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Provider runs the authorization-code flow against an identity provider.
type Provider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// GoogleProvider signs users in with their Google account.
type GoogleProvider struct {
	cfg *oauth2.Config
}

// NewGoogleProvider parses an OAuth client JSON (web or installed) and binds it to redirectURL.
func NewGoogleProvider(clientJSON []byte, redirectURL string, scopes []string) (*GoogleProvider, error) {
	cfg, err := google.ConfigFromJSON(clientJSON, scopes...)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	cfg.RedirectURL = redirectURL
	return &GoogleProvider{cfg: cfg}, nil
}

// AuthCodeURL always shows the consent screen.
func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.cfg.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.SetAuthURLParam("prompt", "consent"))
}

func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := p.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("token exchange: %w", err)
	}
	return tok, nil
}

// DevCode is the only authorization code DevProvider accepts.
const DevCode = "dev-consent"

var ErrInvalidCode = errors.New("invalid authorization code")

// DevProvider skips the identity provider and sends the browser straight back
// to the callback. It pairs with the in-memory backend.
type DevProvider struct {
	redirectURL string
}

func NewDevProvider(redirectURL string) *DevProvider {
	return &DevProvider{redirectURL: redirectURL}
}

func (p *DevProvider) AuthCodeURL(state string) string {
	q := url.Values{"code": {DevCode}, "state": {state}}
	return p.redirectURL + "?" + q.Encode()
}

func (p *DevProvider) Exchange(_ context.Context, code string) (*oauth2.Token, error) {
	if code != DevCode {
		return nil, ErrInvalidCode
	}
	return &oauth2.Token{AccessToken: "dev-" + uuid.NewString(), TokenType: "Bearer"}, nil
}
