package authflow

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/pysugar/cursor-auth-keeper/internal/browser"
	"github.com/pysugar/cursor-auth-keeper/internal/fingerprint"
	"github.com/pysugar/cursor-auth-keeper/internal/util"
)

// Poll loop timing: one check per second, hard ceiling of a minute.
// Vars so tests can shrink them.
var (
	pollInterval = time.Second
	pollCeiling  = 60 * time.Second
)

const eventBuffer = 64

// localStorageDumpScript returns all localStorage entries as an object.
const localStorageDumpScript = `(() => {
	const result = {};
	for (let i = 0; i < localStorage.length; i++) {
		const key = localStorage.key(i);
		result[key] = localStorage.getItem(key);
	}
	return result;
})()`

// sessionStorageDumpScript returns all sessionStorage entries as an object.
const sessionStorageDumpScript = `(() => {
	const result = {};
	for (let i = 0; i < sessionStorage.length; i++) {
		const key = sessionStorage.key(i);
		result[key] = sessionStorage.getItem(key);
	}
	return result;
})()`

// settingsProbeScript pulls identity and a bearer-like token from the
// authenticated settings page.
const settingsProbeScript = `(() => {
	try {
		const userInfo = JSON.parse(localStorage.getItem('user') || '{}');
		const authToken = localStorage.getItem('auth_token') || '';
		const emailElement = document.querySelector('[data-testid="email"], .email, [class*="email"], [id*="email"]');
		const email = emailElement ? emailElement.textContent.trim() : '';
		return { email: userInfo.email || email || '', authToken: authToken };
	} catch (e) {
		return { email: '', authToken: '' };
	}
})()`

const userAgentScript = `navigator.userAgent`

// Params are the inputs of one authorization attempt.
type Params struct {
	AuthURL     string
	Provider    Provider
	Credentials Credentials
	Replay      *fingerprint.Snapshot // optional archived session to replay
}

// Session drives a browser through one authorization attempt on a dedicated
// goroutine. It never blocks the caller: all outward communication arrives on
// the channel returned by Start, with the finished event always last; the
// caller communicates inward only via Cancel.
type Session struct {
	launcher   browser.Launcher
	launchOpts browser.LaunchOptions
	params     Params

	ctx    context.Context
	cancel context.CancelFunc
	events chan Event
	done   chan struct{}
}

// NewSession prepares an authorization session. Nothing runs until Start.
func NewSession(launcher browser.Launcher, opts browser.LaunchOptions, params Params) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		launcher:   launcher,
		launchOpts: opts,
		params:     params,
		ctx:        ctx,
		cancel:     cancel,
		events:     make(chan Event, eventBuffer),
		done:       make(chan struct{}),
	}
}

// Start launches the worker and returns the ordered event stream. The
// channel closes after the terminal event, or without one on cancellation.
func (s *Session) Start() <-chan Event {
	go s.run()
	return s.events
}

// Cancel stops the session from any state. The poll loop observes it within
// one tick, the browser resource is released, and no further events are
// emitted. Safe to call repeatedly.
func (s *Session) Cancel() {
	s.cancel()
}

// Done closes once the worker has fully exited and released the browser.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) cancelled() bool {
	select {
	case <-s.ctx.Done():
		return true
	default:
		return false
	}
}

// emit delivers an event unless the session was cancelled.
func (s *Session) emit(ev Event) {
	if s.cancelled() {
		return
	}
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}

func (s *Session) status(message string) {
	s.emit(Event{Kind: EventStatus, Message: message})
}

func (s *Session) run() {
	defer close(s.done)
	defer close(s.events)
	defer s.cancel()

	s.status("initializing browser automation")

	opts := s.launchOpts
	if s.params.Replay != nil && s.params.Replay.UserAgent != "" {
		opts.UserAgent = s.params.Replay.UserAgent
		s.status("replaying saved user agent: " + util.TruncateLog(s.params.Replay.UserAgent, 30))
	}

	d, err := s.launcher.Launch(opts)
	if err != nil {
		// The one fatal error path: no browser, no polling.
		s.emit(Event{Kind: EventFinished, Success: false, Message: "browser launch failed: " + err.Error()})
		return
	}
	defer d.Close()

	if s.params.Replay != nil && len(s.params.Replay.Cookies) > 0 {
		s.status("restoring saved cookies")
		if err := d.SetCookies(s.params.Replay.Cookies); err != nil {
			s.status("cookie restore failed: " + err.Error())
		}
	}

	s.status("opening " + string(s.params.Provider) + " authorization page")
	if err := d.Goto(s.params.AuthURL); err != nil {
		s.status("navigation error: " + err.Error())
	}

	if s.params.Replay != nil && len(s.params.Replay.LocalStorage) > 0 {
		s.status("restoring saved localStorage")
		s.restoreLocalStorage(d, s.params.Replay.LocalStorage)
	}

	if s.cancelled() {
		return
	}

	scriptFor(s.params.Provider).Run(d, s.params.Credentials, s.status)

	s.status("waiting for authorization to complete")
	s.poll(d)
}

// poll runs the bounded extraction loop: one snapshot per second, up to the
// ceiling, stopping at the first extraction hit or on cancellation.
func (s *Session) poll(d browser.Driver) {
	deadline := time.Now().Add(pollCeiling)
	settingsReached := false

	for time.Now().Before(deadline) {
		if s.cancelled() {
			return
		}

		snap := s.capture(d)
		if snap.URL != "" {
			s.status("monitoring url: " + util.TruncateLog(snap.URL, 60))
		}
		if isSettingsURL(snap.URL) {
			settingsReached = true
		}

		if hit, ok := runExtractors(snap); ok {
			s.status("authorization code captured via " + hit.Source)
			fp := s.collectFingerprint(d, snap, hit)
			s.emit(Event{Kind: EventFingerprint, Fingerprint: fp})
			s.emit(Event{Kind: EventAuthCode, Code: hit.Code})
			s.emit(Event{Kind: EventFinished, Success: true, Message: "authorization succeeded via " + hit.Source})
			return
		}

		select {
		case <-s.ctx.Done():
			return
		case <-time.After(pollInterval):
		}
	}

	if settingsReached {
		// Authenticated destination reached without an extractable code:
		// still worth a fingerprint, and counts as partial success.
		snap := s.capture(d)
		fp := s.collectFingerprint(d, snap, Extraction{})
		s.emit(Event{Kind: EventFingerprint, Fingerprint: fp})
		s.emit(Event{Kind: EventFinished, Success: true, Message: "partial: authenticated, no code extracted"})
		return
	}
	s.emit(Event{Kind: EventFinished, Success: false, Message: "no code found"})
}

// capture takes the page-state snapshot the extraction chain runs against.
// Every probe failure is tolerated; missing pieces stay empty.
func (s *Session) capture(d browser.Driver) PageSnapshot {
	snap := PageSnapshot{
		LocalStorage: map[string]string{},
		ElementText:  map[string]string{},
	}

	if u, err := d.URL(); err == nil {
		snap.URL = u
	}
	if t, err := d.Title(); err == nil {
		snap.Title = t
	}
	if html, err := d.Content(); err == nil {
		snap.HTML = html
	}

	var localStorage map[string]string
	if err := d.Evaluate(localStorageDumpScript, &localStorage); err == nil && localStorage != nil {
		snap.LocalStorage = localStorage
	}

	for _, sel := range candidateSelectors {
		if text, ok := d.Query(sel); ok && text != "" {
			snap.ElementText[sel] = text
		}
	}

	if isSettingsURL(snap.URL) {
		var probe struct {
			Email     string `json:"email"`
			AuthToken string `json:"authToken"`
		}
		if err := d.Evaluate(settingsProbeScript, &probe); err == nil {
			snap.SettingsEmail = probe.Email
			snap.SettingsToken = probe.AuthToken
		}
	}

	return snap
}

// collectFingerprint builds the final session fingerprint from the snapshot
// plus live cookie and storage state.
func (s *Session) collectFingerprint(d browser.Driver, snap PageSnapshot, hit Extraction) *fingerprint.Snapshot {
	fp := &fingerprint.Snapshot{
		Provider:     string(s.params.Provider),
		Identity:     fingerprint.IdentityUnknown,
		Timestamp:    time.Now().Format(time.RFC3339),
		LocalStorage: snap.LocalStorage,
		AuthCode:     hit.Code,
		LastURL:      snap.URL,
		PageTitle:    snap.Title,
	}

	email := hit.Email
	if email == "" {
		email = snap.SettingsEmail
	}
	if email == "" {
		email = s.params.Credentials.Email
	}
	if email != "" {
		fp.Email = email
		fp.Identity = email
	}

	if cookies, err := d.Cookies(); err == nil {
		fp.Cookies = cookies
	} else {
		s.status("cookie capture failed: " + err.Error())
	}

	var sessionStorage map[string]string
	if err := d.Evaluate(sessionStorageDumpScript, &sessionStorage); err == nil {
		fp.SessionStorage = sessionStorage
	}

	var ua string
	if err := d.Evaluate(userAgentScript, &ua); err == nil {
		fp.UserAgent = ua
	}

	return fp
}

// restoreLocalStorage re-injects archived localStorage entries after the
// page has loaded. Failures are logged, never fatal.
func (s *Session) restoreLocalStorage(d browser.Driver, entries map[string]string) {
	restored := 0
	for key, value := range entries {
		// The trailing true gives the evaluation a defined completion value.
		script := "(localStorage.setItem(" + jsString(key) + ", " + jsString(value) + "), true)"
		var ok bool
		if err := d.Evaluate(script, &ok); err != nil {
			log.Printf("⚠️ localStorage restore failed for %s: %v", key, err)
			continue
		}
		restored++
	}
	if restored > 0 {
		s.status("restored localStorage entries")
	}
}

// jsString renders a Go string as a JS string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
