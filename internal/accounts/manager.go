package accounts

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/pysugar/cursor-auth-keeper/internal/authflow"
	"github.com/pysugar/cursor-auth-keeper/internal/browser"
	"github.com/pysugar/cursor-auth-keeper/internal/db/models"
	"github.com/pysugar/cursor-auth-keeper/internal/fingerprint"
	"github.com/pysugar/cursor-auth-keeper/internal/store"
	"github.com/pysugar/cursor-auth-keeper/internal/util"
)

const (
	expireTimeFormat = "2006-01-02 15:04:05"
	trialDays        = 14
)

// Manager owns the account lifecycle: it runs authorization sessions,
// persists what they capture, and keeps account status and the current
// pointer coherent. At most one session is active at a time.
type Manager struct {
	store      *store.Store
	archive    *fingerprint.Archive
	launcher   browser.Launcher
	launchOpts browser.LaunchOptions

	mu     sync.Mutex
	active *authflow.Session
}

// NewManager wires the manager to its store, archive, and browser launcher.
func NewManager(s *store.Store, archive *fingerprint.Archive, launcher browser.Launcher, opts browser.LaunchOptions) *Manager {
	return &Manager{store: s, archive: archive, launcher: launcher, launchOpts: opts}
}

// AcquireOptions parameterize one acquisition attempt.
type AcquireOptions struct {
	Provider    authflow.Provider
	Credentials authflow.Credentials
	AuthURL     string // empty means the default authorization endpoint
	Membership  string // optional hint used for expiry fallbacks

	// Replay asks for an archived fingerprint to be replayed. When Snapshot
	// is nil the newest archived snapshot for the provider is used.
	Replay   bool
	Snapshot *fingerprint.Snapshot
}

// AcquireAndAdd launches an authorization session for the given provider and
// returns its event stream. Any previously active session is cancelled. The
// manager consumes the stream, persisting the captured fingerprint and the
// resulting account record, and forwards every event to the returned channel
// so callers can narrate progress.
func (m *Manager) AcquireAndAdd(opts AcquireOptions) (<-chan authflow.Event, error) {
	replay, err := m.resolveReplay(opts)
	if err != nil {
		return nil, err
	}

	authURL := opts.AuthURL
	if authURL == "" {
		authURL = authflow.BuildAuthURL("", "", "")
	}

	session := authflow.NewSession(m.launcher, m.launchOpts, authflow.Params{
		AuthURL:     authURL,
		Provider:    opts.Provider,
		Credentials: opts.Credentials,
		Replay:      replay,
	})

	m.mu.Lock()
	if m.active != nil {
		m.active.Cancel()
	}
	m.active = session
	m.mu.Unlock()

	events := session.Start()
	out := make(chan authflow.Event, 64)
	go m.consume(session, opts, events, out)
	return out, nil
}

// CancelActive stops the in-flight session, if any.
func (m *Manager) CancelActive() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil {
		m.active.Cancel()
	}
}

func (m *Manager) resolveReplay(opts AcquireOptions) (*fingerprint.Snapshot, error) {
	if opts.Snapshot != nil {
		return opts.Snapshot, nil
	}
	if !opts.Replay {
		return nil, nil
	}
	identity := opts.Credentials.Email
	if identity == "" {
		identity = fingerprint.IdentityUnknown
	}
	snap, err := m.archive.LoadLatest(string(opts.Provider), identity)
	if err != nil {
		return nil, fmt.Errorf("failed to load archived fingerprint: %w", err)
	}
	if snap == nil {
		log.Printf("⚠️ no archived fingerprint for %s/%s, running a fresh session", opts.Provider, identity)
	}
	return snap, nil
}

// consume drains the session stream, applies side effects, and forwards
// events. The channel close mirrors the session's: no finished event is
// synthesized on cancellation.
func (m *Manager) consume(session *authflow.Session, opts AcquireOptions, events <-chan authflow.Event, out chan<- authflow.Event) {
	defer close(out)
	defer func() {
		m.mu.Lock()
		if m.active == session {
			m.active = nil
		}
		m.mu.Unlock()
	}()

	var (
		code string
		fp   *fingerprint.Snapshot
	)
	for ev := range events {
		switch ev.Kind {
		case authflow.EventAuthCode:
			code = ev.Code
		case authflow.EventFingerprint:
			fp = ev.Fingerprint
		case authflow.EventFinished:
			if ev.Success {
				if err := m.finalize(opts, code, fp); err != nil {
					log.Printf("❌ failed to persist acquired account: %v", err)
					ev = authflow.Event{Kind: authflow.EventFinished, Success: false, Message: err.Error()}
				}
			}
		}
		out <- ev
	}
}

// finalize archives the fingerprint and upserts the captured account.
func (m *Manager) finalize(opts AcquireOptions, code string, fp *fingerprint.Snapshot) error {
	if fp != nil {
		if err := m.archive.Save(fp); err != nil {
			log.Printf("⚠️ failed to archive fingerprint: %v", err)
		}
	}

	email := opts.Credentials.Email
	if fp != nil && fp.Email != "" {
		email = fp.Email
	}

	// A partial run can end with neither a code nor an identity. Persisting
	// that would insert an anonymous row on every attempt.
	if code == "" && email == "" {
		log.Printf("⚠️ session finished without a code or identity, nothing to persist")
		return nil
	}

	account := &models.Account{
		Email:      email,
		Password:   opts.Credentials.Password,
		AuthSource: string(opts.Provider),
		Membership: opts.Membership,
	}
	if code != "" {
		account.RefreshToken = code
		account.AccessToken = code
	}
	m.applyExpiry(account)

	if err := m.store.Upsert(account); err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	log.Printf("✅ account saved: %s (%s, token %s)", account.Email, account.Status, util.MaskToken(account.AccessToken))

	current, err := m.store.GetCurrent()
	if err != nil {
		return err
	}
	if current == nil {
		if err := m.store.SetCurrent(account.ID); err != nil {
			return err
		}
		log.Printf("🔑 promoted %s to current account", account.Email)
	}
	return nil
}

// applyExpiry derives ExpireTime and Status, preferring JWT claims and
// falling back to membership heuristics.
func (m *Manager) applyExpiry(account *models.Account) {
	for _, token := range []string{account.RefreshToken, account.AccessToken} {
		if token == "" {
			continue
		}
		claims, err := ParseTokenClaims(token)
		if err != nil || claims.Exp == 0 {
			continue
		}
		account.ExpireTime = time.Unix(claims.Exp, 0).Format(expireTimeFormat)
		account.Status = store.DeriveStatus(account.ExpireTime, time.Now())
		if account.Email == "" {
			account.Email = claims.Email
		}
		return
	}

	switch account.Membership {
	case "pro":
		account.ExpireTime = store.ExpirePermanent
		account.Status = store.StatusPermanent
	case "free_trial":
		account.ExpireTime = time.Now().AddDate(0, 0, trialDays).Format("2006-01-02")
		account.Status = store.StatusTrial
	default:
		account.ExpireTime = store.ExpireUnknown
		account.Status = store.StatusUnknownDuration
	}
}

// LoadFromAuthData imports an account from the editor's raw auth payload and
// makes it current.
func (m *Manager) LoadFromAuthData(payload AuthPayload) (*models.Account, error) {
	account, err := AccountFromPayload(payload)
	if err != nil {
		return nil, err
	}
	m.applyExpiry(account)
	if err := m.store.Upsert(account); err != nil {
		return nil, fmt.Errorf("failed to save imported account: %w", err)
	}
	if err := m.store.SetCurrent(account.ID); err != nil {
		return nil, err
	}
	log.Printf("📦 imported auth payload for %s", account.Email)
	return account, nil
}

// Logout marks an account as logged out, strips its tokens, and clears the
// current pointer when it was the current account. An empty id targets the
// current account.
func (m *Manager) Logout(id string) (*models.Account, error) {
	var account *models.Account
	var err error
	if id == "" {
		account, err = m.store.GetCurrent()
		if err != nil {
			return nil, err
		}
		if account == nil {
			return nil, fmt.Errorf("no current account to log out")
		}
	} else {
		account, err = m.store.GetByID(id)
		if err != nil {
			return nil, err
		}
		if account == nil {
			return nil, fmt.Errorf("account not found: %s", id)
		}
	}

	current, err := m.store.GetCurrent()
	if err != nil {
		return nil, err
	}

	account.Status = store.StatusLoggedOut
	account.RefreshToken = ""
	account.AccessToken = ""
	if err := m.store.Upsert(account); err != nil {
		return nil, fmt.Errorf("failed to save logged-out account: %w", err)
	}

	if current != nil && current.ID == account.ID {
		if err := m.store.ClearCurrent(); err != nil {
			return nil, err
		}
	}
	log.Printf("🔄 logged out %s", account.Email)
	return account, nil
}

// ImportFromJSON loads an array of account records, upserting each one
// independently. Records lacking both id and email are rejected. Returns how
// many records succeeded and how many failed.
func (m *Manager) ImportFromJSON(data []byte) (int, int, error) {
	var records []models.Account
	if err := json.Unmarshal(data, &records); err != nil {
		return 0, 0, fmt.Errorf("failed to parse import payload: %w", err)
	}

	success, failed := 0, 0
	for i := range records {
		record := records[i]
		if record.ID == "" && record.Email == "" {
			log.Printf("⚠️ import record %d has neither id nor email, skipping", i)
			failed++
			continue
		}
		if record.Status == "" && record.ExpireTime != "" {
			record.Status = store.DeriveStatus(record.ExpireTime, time.Now())
		}
		if err := m.store.Upsert(&record); err != nil {
			log.Printf("⚠️ import record %d (%s) failed: %v", i, record.Email, err)
			failed++
			continue
		}
		success++
	}
	log.Printf("📦 import finished: %d ok, %d failed", success, failed)
	return success, failed, nil
}

// ExportToJSON renders every account as indented JSON. Provider-specific
// extras stored in ExtraData are merged into each object without overriding
// the base fields.
func (m *Manager) ExportToJSON() ([]byte, error) {
	accounts, err := m.store.GetAll()
	if err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(accounts))
	for i := range accounts {
		base, err := json.Marshal(&accounts[i])
		if err != nil {
			return nil, err
		}
		record := map[string]any{}
		if err := json.Unmarshal(base, &record); err != nil {
			return nil, err
		}
		if accounts[i].ExtraData != "" {
			extra := map[string]any{}
			if err := json.Unmarshal([]byte(accounts[i].ExtraData), &extra); err == nil {
				for k, v := range extra {
					if _, exists := record[k]; !exists {
						record[k] = v
					}
				}
			}
		}
		out = append(out, record)
	}
	return json.MarshalIndent(out, "", "  ")
}

// RefreshStatus rederives every account's status from its expire time and
// returns the reloaded current account (nil when the store is empty).
func (m *Manager) RefreshStatus() (*models.Account, error) {
	if err := m.store.RefreshAllStatus(); err != nil {
		return nil, err
	}
	return m.store.GetCurrent()
}
