// Package fingerprint persists captured browser-session snapshots so a prior
// authenticated session can be replayed later.
package fingerprint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pysugar/cursor-auth-keeper/internal/browser"
)

// IdentityUnknown is the identity placeholder used when no email was captured.
const IdentityUnknown = "unknown"

// Snapshot is one captured browser-session state.
type Snapshot struct {
	Provider       string            `json:"provider"`
	Identity       string            `json:"identity"` // email or "unknown"
	Timestamp      string            `json:"timestamp"`
	UserAgent      string            `json:"user_agent,omitempty"`
	Cookies        []browser.Cookie  `json:"cookies,omitempty"`
	LocalStorage   map[string]string `json:"local_storage,omitempty"`
	SessionStorage map[string]string `json:"session_storage,omitempty"`
	AuthCode       string            `json:"auth_code,omitempty"`
	Email          string            `json:"email,omitempty"`
	LastURL        string            `json:"last_url,omitempty"`
	PageTitle      string            `json:"page_title,omitempty"`
}

// Archive stores snapshots as JSON documents in a dedicated directory,
// one timestamped file per capture plus an overwritten "latest" pointer
// per (provider, identity).
type Archive struct {
	dir string
}

// NewArchive creates the archive directory if needed.
func NewArchive(dir string) (*Archive, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Archive{dir: dir}, nil
}

// Save writes a timestamped snapshot file and overwrites the latest pointer
// for the snapshot's (provider, identity).
func (a *Archive) Save(snap *Snapshot) error {
	if snap.Identity == "" {
		snap.Identity = IdentityUnknown
	}
	if snap.Timestamp == "" {
		snap.Timestamp = time.Now().Format(time.RFC3339)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}

	// Nanosecond stamp: second resolution would silently overwrite a
	// snapshot saved within the same second.
	stamp := time.Now().Format("20060102150405.000000000")
	name := fmt.Sprintf("%s_%s_%s.json", snap.Provider, snap.Identity, stamp)
	if err := os.WriteFile(filepath.Join(a.dir, name), data, 0o644); err != nil {
		return err
	}

	latest := fmt.Sprintf("%s_%s_latest.json", snap.Provider, snap.Identity)
	return os.WriteFile(filepath.Join(a.dir, latest), data, 0o644)
}

// LoadLatest returns the most recent snapshot for (provider, identity): the
// latest pointer file when present, otherwise the newest timestamped snapshot
// by modification time. Returns nil when none exist.
func (a *Archive) LoadLatest(provider, identity string) (*Snapshot, error) {
	if identity == "" {
		identity = IdentityUnknown
	}

	latest := filepath.Join(a.dir, fmt.Sprintf("%s_%s_latest.json", provider, identity))
	if snap, err := a.readSnapshot(latest); err == nil {
		return snap, nil
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	pattern := filepath.Join(a.dir, fmt.Sprintf("%s_%s_*.json", provider, identity))
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}

	modTimes := make(map[string]time.Time, len(matches))
	for _, match := range matches {
		if info, err := os.Stat(match); err == nil {
			modTimes[match] = info.ModTime()
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return modTimes[matches[i]].After(modTimes[matches[j]])
	})

	// The glob also matches any identity that extends the requested one
	// (google_a_* matches google_a_b_...), so each candidate's decoded key
	// must be checked before it can win.
	for _, match := range matches {
		snap, err := a.readSnapshot(match)
		if err != nil {
			continue
		}
		if snap.Provider == provider && snap.Identity == identity {
			return snap, nil
		}
	}
	return nil, nil
}

func (a *Archive) readSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
