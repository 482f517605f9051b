package accounts

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/pysugar/cursor-auth-keeper/internal/authflow"
	"github.com/pysugar/cursor-auth-keeper/internal/browser"
	"github.com/pysugar/cursor-auth-keeper/internal/db/models"
	"github.com/pysugar/cursor-auth-keeper/internal/fingerprint"
	"github.com/pysugar/cursor-auth-keeper/internal/store"
	"gorm.io/gorm"
)

// stubDriver serves a fixed callback URL so acquisition succeeds on the
// first poll tick.
type stubDriver struct {
	url    string
	closed bool
}

func (d *stubDriver) Goto(url string) error                { return nil }
func (d *stubDriver) Query(selector string) (string, bool) { return "", false }
func (d *stubDriver) Click(selector string) error          { return errors.New("no such element") }
func (d *stubDriver) Fill(selector, text string) error     { return errors.New("no such element") }

func (d *stubDriver) Evaluate(script string, out any) error {
	var result any
	switch {
	case strings.Contains(script, "navigator.userAgent"):
		result = "stub-agent/1.0"
	case strings.Contains(script, "auth_token"):
		result = map[string]string{"email": "", "authToken": ""}
	case strings.Contains(script, "Storage"):
		result = map[string]string{}
	default:
		result = nil
	}
	b, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func (d *stubDriver) Cookies() ([]browser.Cookie, error) { return nil, nil }
func (d *stubDriver) SetCookies([]browser.Cookie) error  { return nil }
func (d *stubDriver) URL() (string, error)               { return d.url, nil }
func (d *stubDriver) Title() (string, error)             { return "", nil }
func (d *stubDriver) Content() (string, error)           { return "", nil }
func (d *stubDriver) Close() error                       { d.closed = true; return nil }

type stubLauncher struct {
	driver *stubDriver
}

func (l *stubLauncher) Launch(opts browser.LaunchOptions) (browser.Driver, error) {
	return l.driver, nil
}

func newTestManager(t *testing.T, launcher browser.Launcher) (*Manager, *store.Store) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Account{}, &models.Setting{}, &models.Threshold{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	archive, err := fingerprint.NewArchive(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create archive: %v", err)
	}
	s := store.New(db)
	return NewManager(s, archive, launcher, browser.LaunchOptions{Headless: true}), s
}

func TestAcquireAndAdd_PersistsAccountAndPromotes(t *testing.T) {
	exp := time.Now().Add(48 * time.Hour).Unix()
	token := makeToken(t, TokenClaims{Email: "token@example.com", Exp: exp})

	driver := &stubDriver{url: "https://cursor.com/api/auth/callback?code=" + token}
	m, s := newTestManager(t, &stubLauncher{driver: driver})

	events, err := m.AcquireAndAdd(AcquireOptions{Provider: authflow.ProviderEmail})
	if err != nil {
		t.Fatalf("AcquireAndAdd() error = %v", err)
	}

	var finished *authflow.Event
	for ev := range events {
		if ev.Kind == authflow.EventFinished {
			e := ev
			finished = &e
		}
	}
	if finished == nil || !finished.Success {
		t.Fatalf("finished = %+v, want success", finished)
	}

	account, err := s.GetByEmail("token@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if account == nil {
		t.Fatal("acquired account was not persisted")
	}
	if account.RefreshToken != token {
		t.Errorf("refresh token = %q", account.RefreshToken)
	}
	if !strings.HasPrefix(account.Status, "expiring-soon") {
		t.Errorf("status = %q, want expiring-soon for a 2-day token", account.Status)
	}

	current, err := s.GetCurrent()
	if err != nil {
		t.Fatalf("get current: %v", err)
	}
	if current == nil || current.Email != "token@example.com" {
		t.Errorf("current = %+v, want the acquired account", current)
	}
	if !driver.closed {
		t.Error("driver should be closed after the session ends")
	}
}

func TestFinalize_AnonymousPartialRunIsNotPersisted(t *testing.T) {
	m, s := newTestManager(t, &stubLauncher{driver: &stubDriver{}})

	// Repeated partial runs with no code and no identity must not
	// accumulate anonymous rows.
	for i := 0; i < 2; i++ {
		if err := m.finalize(AcquireOptions{Provider: authflow.ProviderGoogle}, "", nil); err != nil {
			t.Fatalf("finalize: %v", err)
		}
	}

	all, err := s.GetAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 0 {
		t.Fatalf("rows after two anonymous finalizations = %d, want 0", len(all))
	}
}

func TestFinalize_IdentityWithoutCodeIsPersisted(t *testing.T) {
	m, s := newTestManager(t, &stubLauncher{driver: &stubDriver{}})

	fp := &fingerprint.Snapshot{Provider: "google", Identity: "a@example.com", Email: "a@example.com"}
	if err := m.finalize(AcquireOptions{Provider: authflow.ProviderGoogle}, "", fp); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	account, err := s.GetByEmail("a@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if account == nil {
		t.Fatal("identified partial run should still be persisted")
	}
	if account.Status != store.StatusUnknownDuration {
		t.Errorf("status = %q", account.Status)
	}
}

func TestApplyExpiry_MembershipFallbacks(t *testing.T) {
	m, _ := newTestManager(t, &stubLauncher{driver: &stubDriver{}})

	pro := &models.Account{Membership: "pro"}
	m.applyExpiry(pro)
	if pro.ExpireTime != store.ExpirePermanent || pro.Status != store.StatusPermanent {
		t.Errorf("pro fallback = %q/%q", pro.ExpireTime, pro.Status)
	}

	trial := &models.Account{Membership: "free_trial"}
	m.applyExpiry(trial)
	if trial.Status != store.StatusTrial {
		t.Errorf("trial status = %q", trial.Status)
	}
	want := time.Now().AddDate(0, 0, trialDays).Format("2006-01-02")
	if trial.ExpireTime != want {
		t.Errorf("trial expire = %q, want %q", trial.ExpireTime, want)
	}

	other := &models.Account{Membership: "enterprise"}
	m.applyExpiry(other)
	if other.ExpireTime != store.ExpireUnknown || other.Status != store.StatusUnknownDuration {
		t.Errorf("unknown fallback = %q/%q", other.ExpireTime, other.Status)
	}
}

func TestApplyExpiry_PrefersTokenClaims(t *testing.T) {
	m, _ := newTestManager(t, &stubLauncher{driver: &stubDriver{}})

	exp := time.Now().Add(30 * 24 * time.Hour).Unix()
	account := &models.Account{
		Membership:   "pro",
		RefreshToken: makeToken(t, TokenClaims{Email: "claims@example.com", Exp: exp}),
	}
	m.applyExpiry(account)

	if account.ExpireTime == store.ExpirePermanent {
		t.Error("token claims should win over the membership fallback")
	}
	if account.Status != store.StatusNormal {
		t.Errorf("status = %q, want %q", account.Status, store.StatusNormal)
	}
	if account.Email != "claims@example.com" {
		t.Errorf("email = %q, want address from claims", account.Email)
	}
}

func TestLogout_CurrentAccount(t *testing.T) {
	m, s := newTestManager(t, &stubLauncher{driver: &stubDriver{}})

	account := models.Account{ID: "acc-1", Email: "a@example.com", RefreshToken: "r", AccessToken: "a"}
	if err := s.Upsert(&account); err != nil {
		t.Fatal(err)
	}
	if err := s.SetCurrent("acc-1"); err != nil {
		t.Fatal(err)
	}

	out, err := m.Logout("")
	if err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if out.Status != store.StatusLoggedOut {
		t.Errorf("status = %q", out.Status)
	}
	if out.RefreshToken != "" || out.AccessToken != "" {
		t.Error("tokens should be stripped on logout")
	}

	current, err := s.GetCurrent()
	if err != nil {
		t.Fatal(err)
	}
	// The store promotes the first remaining account, which is the one we
	// just logged out, so it stays current but without tokens.
	if current == nil || current.ID != "acc-1" || current.AccessToken != "" {
		t.Errorf("current after logout = %+v", current)
	}
}

func TestLogout_NoCurrent(t *testing.T) {
	m, _ := newTestManager(t, &stubLauncher{driver: &stubDriver{}})
	if _, err := m.Logout(""); err == nil {
		t.Error("Logout() with no accounts should fail")
	}
}

func TestImportFromJSON_PerRecordIsolation(t *testing.T) {
	m, s := newTestManager(t, &stubLauncher{driver: &stubDriver{}})

	payload := `[
		{"email": "ok@example.com", "membership": "pro"},
		{"password": "no-identity"},
		{"id": "fixed-id", "email": "second@example.com", "expire_time": "2099-01-01"}
	]`
	success, failed, err := m.ImportFromJSON([]byte(payload))
	if err != nil {
		t.Fatalf("ImportFromJSON() error = %v", err)
	}
	if success != 2 || failed != 1 {
		t.Errorf("success=%d failed=%d, want 2/1", success, failed)
	}

	second, err := s.GetByID("fixed-id")
	if err != nil {
		t.Fatal(err)
	}
	if second == nil {
		t.Fatal("record with explicit id not imported")
	}
	if second.Status != store.StatusNormal {
		t.Errorf("derived status = %q, want %q", second.Status, store.StatusNormal)
	}
}

func TestImportFromJSON_InvalidPayload(t *testing.T) {
	m, _ := newTestManager(t, &stubLauncher{driver: &stubDriver{}})
	if _, _, err := m.ImportFromJSON([]byte("{not json")); err == nil {
		t.Error("invalid JSON should fail")
	}
}

func TestExportToJSON_MergesExtraData(t *testing.T) {
	m, s := newTestManager(t, &stubLauncher{driver: &stubDriver{}})

	account := models.Account{
		ID:        "acc-1",
		Email:     "a@example.com",
		ExtraData: `{"workspace": "personal", "email": "shadowed@example.com"}`,
	}
	if err := s.Upsert(&account); err != nil {
		t.Fatal(err)
	}

	data, err := m.ExportToJSON()
	if err != nil {
		t.Fatalf("ExportToJSON() error = %v", err)
	}
	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	if records[0]["workspace"] != "personal" {
		t.Errorf("extra data not merged: %+v", records[0])
	}
	if records[0]["email"] != "a@example.com" {
		t.Errorf("extra data must not override base fields: %+v", records[0])
	}
}

func TestLoadFromAuthData(t *testing.T) {
	m, s := newTestManager(t, &stubLauncher{driver: &stubDriver{}})

	payload := AuthPayload{
		AuthKeyEmail:      "payload@example.com",
		AuthKeySignUpType: "google",
		AuthKeyRefresh:    "refresh-value",
		AuthKeyAccess:     "access-value",
		AuthKeyMembership: "pro",
	}
	account, err := m.LoadFromAuthData(payload)
	if err != nil {
		t.Fatalf("LoadFromAuthData() error = %v", err)
	}
	if account.Status != store.StatusPermanent {
		t.Errorf("status = %q, want permanent for pro membership", account.Status)
	}

	current, err := s.GetCurrent()
	if err != nil {
		t.Fatal(err)
	}
	if current == nil || current.Email != "payload@example.com" {
		t.Errorf("current = %+v", current)
	}
}

func TestLoadFromAuthData_MissingEmail(t *testing.T) {
	m, _ := newTestManager(t, &stubLauncher{driver: &stubDriver{}})
	if _, err := m.LoadFromAuthData(AuthPayload{AuthKeyRefresh: "r"}); err == nil {
		t.Error("payload without email should fail")
	}
}
