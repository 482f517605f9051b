package accounts

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/pysugar/cursor-auth-keeper/internal/db/models"
)

func TestPayloadRoundTrip(t *testing.T) {
	account := &models.Account{
		Email:        "a@example.com",
		AuthSource:   "github",
		RefreshToken: "refresh-value",
		AccessToken:  "access-value",
		Membership:   "free_trial",
	}

	rebuilt, err := AccountFromPayload(PayloadFor(account))
	if err != nil {
		t.Fatalf("AccountFromPayload() error = %v", err)
	}
	if rebuilt.Email != account.Email || rebuilt.AuthSource != account.AuthSource {
		t.Errorf("rebuilt = %+v", rebuilt)
	}
	if rebuilt.RefreshToken != "refresh-value" || rebuilt.Membership != "free_trial" {
		t.Errorf("rebuilt = %+v", rebuilt)
	}
}

func TestSaveThenLoadAuthPayload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "authdata.json")
	payload := AuthPayload{
		AuthKeyEmail:   "a@example.com",
		AuthKeyRefresh: "refresh-value",
	}
	if err := SaveAuthPayload(path, payload); err != nil {
		t.Fatalf("SaveAuthPayload() error = %v", err)
	}

	loaded, err := LoadAuthPayload(path)
	if err != nil {
		t.Fatalf("LoadAuthPayload() error = %v", err)
	}
	if !reflect.DeepEqual(loaded, payload) {
		t.Errorf("loaded = %+v, want %+v", loaded, payload)
	}
}

func TestLoadAuthPayload_MissingFile(t *testing.T) {
	if _, err := LoadAuthPayload(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("missing file should fail")
	}
}
