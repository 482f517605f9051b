package authflow

import (
	"golang.org/x/oauth2"
)

// Defaults for the Cursor authorization endpoint.
const (
	DefaultAuthURL     = "https://authenticator.cursor.sh/"
	DefaultClientID    = "client_01GS6W3C96KW4WRS6Z93JCE2RJ"
	DefaultRedirectURL = "https://cursor.com/api/auth/callback"

	defaultState = `{"returnTo":"/settings"}`
)

// BuildAuthURL constructs the authorization URL for one login attempt.
// Empty arguments fall back to the Cursor defaults.
func BuildAuthURL(authURL, clientID, redirectURL string) string {
	if authURL == "" {
		authURL = DefaultAuthURL
	}
	if clientID == "" {
		clientID = DefaultClientID
	}
	if redirectURL == "" {
		redirectURL = DefaultRedirectURL
	}
	cfg := oauth2.Config{
		ClientID:    clientID,
		RedirectURL: redirectURL,
		Endpoint:    oauth2.Endpoint{AuthURL: authURL},
	}
	return cfg.AuthCodeURL(defaultState)
}
