package accounts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pysugar/cursor-auth-keeper/internal/db/models"
)

// Keys of the editor's auth payload, as stored in its secret store.
const (
	AuthKeyEmail      = "cursorAuth/cachedEmail"
	AuthKeySignUpType = "cursorAuth/cachedSignUpType"
	AuthKeyRefresh    = "cursorAuth/refreshToken"
	AuthKeyAccess     = "cursorAuth/accessToken"
	AuthKeyMembership = "cursorAuth/stripeMembershipType"
)

// AuthPayload is the raw key/value auth state exchanged with the editor.
type AuthPayload map[string]string

// PayloadFor renders an account back into the editor's auth payload shape.
func PayloadFor(account *models.Account) AuthPayload {
	return AuthPayload{
		AuthKeyEmail:      account.Email,
		AuthKeySignUpType: account.AuthSource,
		AuthKeyRefresh:    account.RefreshToken,
		AuthKeyAccess:     account.AccessToken,
		AuthKeyMembership: account.Membership,
	}
}

// AccountFromPayload builds an account record from a raw auth payload.
// The email key is required; everything else is optional.
func AccountFromPayload(payload AuthPayload) (*models.Account, error) {
	email := payload[AuthKeyEmail]
	if email == "" {
		return nil, fmt.Errorf("auth payload has no %s", AuthKeyEmail)
	}
	return &models.Account{
		Email:        email,
		AuthSource:   payload[AuthKeySignUpType],
		RefreshToken: payload[AuthKeyRefresh],
		AccessToken:  payload[AuthKeyAccess],
		Membership:   payload[AuthKeyMembership],
	}, nil
}

// SaveAuthPayload writes a payload to disk as indented JSON.
func SaveAuthPayload(path string, payload AuthPayload) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create auth payload dir: %w", err)
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode auth payload: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write auth payload: %w", err)
	}
	return nil
}

// LoadAuthPayload reads a payload written by SaveAuthPayload.
func LoadAuthPayload(path string) (AuthPayload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read auth payload: %w", err)
	}
	var payload AuthPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse auth payload: %w", err)
	}
	return payload, nil
}
