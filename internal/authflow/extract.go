package authflow

import (
	"regexp"
	"strings"
)

// minExtractLen is the shortest text accepted as an authorization code from
// DOM elements and storage values; codes are always longer in practice.
const minExtractLen = 10

// candidateSelectors are the DOM locations checked for a displayed code,
// broadest last.
var candidateSelectors = []string{
	".auth-code",
	".token",
	"code",
	"[data-test='auth-code']",
	"pre",
	".code-display",
	"[id*='code']",
	"[id*='auth']",
	"[class*='code']",
	"[class*='auth']",
	"[data-testid='token']",
	"[data-testid='auth-token']",
}

// storageKeyMarkers flag localStorage keys likely to hold auth material.
var storageKeyMarkers = []string{"auth", "token", "code", "session"}

var (
	urlCodePattern = regexp.MustCompile(`[?&]code=([^&]+)`)
	// tokenShapePattern matches token-shaped substrings in titles or raw HTML.
	tokenShapePattern = regexp.MustCompile(`code=([a-zA-Z0-9_\-]{20,})|token=([a-zA-Z0-9_\-.]{20,})|"auth(?:Token|Code)":\s*"([a-zA-Z0-9_\-.]{20,})"`)
)

// settingsPaths are the authenticated destinations whose reach alone counts
// as (partial) success.
var settingsPaths = []string{"cursor.com/settings", "cursor.com/cn/settings"}

func isSettingsURL(url string) bool {
	for _, p := range settingsPaths {
		if strings.Contains(url, p) {
			return true
		}
	}
	return false
}

// PageSnapshot is a point-in-time capture of the page state. The extraction
// chain runs against it as pure functions, so every strategy is testable
// without a live browser.
type PageSnapshot struct {
	URL          string
	Title        string
	HTML         string
	LocalStorage map[string]string
	ElementText  map[string]string // candidate selector -> trimmed text

	// Filled from the settings-page probe when URL is a settings destination.
	SettingsEmail string
	SettingsToken string
}

// Extraction is a successful hit from one strategy.
type Extraction struct {
	Code   string
	Email  string
	Source string // which strategy produced the hit
}

type extractFunc func(PageSnapshot) (Extraction, bool)

// extractors is the fixed fallback chain, tried in priority order until the
// first hit.
var extractors = []extractFunc{
	extractFromSettings,
	extractFromURL,
	extractFromElements,
	extractFromStorage,
	extractFromContent,
}

// runExtractors walks the chain and returns the first hit.
func runExtractors(snap PageSnapshot) (Extraction, bool) {
	for _, extract := range extractors {
		if hit, ok := extract(snap); ok {
			return hit, true
		}
	}
	return Extraction{}, false
}

// extractFromSettings treats a settings-page bearer token as success.
func extractFromSettings(snap PageSnapshot) (Extraction, bool) {
	if !isSettingsURL(snap.URL) || snap.SettingsToken == "" {
		return Extraction{}, false
	}
	return Extraction{Code: snap.SettingsToken, Email: snap.SettingsEmail, Source: "settings"}, true
}

// extractFromURL pulls a code= query parameter out of the current URL.
func extractFromURL(snap PageSnapshot) (Extraction, bool) {
	m := urlCodePattern.FindStringSubmatch(snap.URL)
	if m == nil {
		return Extraction{}, false
	}
	return Extraction{Code: m[1], Source: "url"}, true
}

// extractFromElements scans the candidate selectors for displayed code text.
func extractFromElements(snap PageSnapshot) (Extraction, bool) {
	for _, sel := range candidateSelectors {
		text := strings.TrimSpace(snap.ElementText[sel])
		if len(text) > minExtractLen {
			return Extraction{Code: text, Source: "element:" + sel}, true
		}
	}
	return Extraction{}, false
}

// extractFromStorage scans localStorage for auth-looking keys.
func extractFromStorage(snap PageSnapshot) (Extraction, bool) {
	for key, value := range snap.LocalStorage {
		if len(value) <= minExtractLen {
			continue
		}
		lower := strings.ToLower(key)
		for _, marker := range storageKeyMarkers {
			if strings.Contains(lower, marker) {
				return Extraction{Code: value, Source: "storage:" + key}, true
			}
		}
	}
	return Extraction{}, false
}

// extractFromContent looks for token-shaped substrings in the page title and
// raw HTML, the last resort.
func extractFromContent(snap PageSnapshot) (Extraction, bool) {
	for _, text := range []string{snap.Title, snap.HTML} {
		m := tokenShapePattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		for _, group := range m[1:] {
			if group != "" {
				return Extraction{Code: group, Source: "content"}, true
			}
		}
	}
	return Extraction{}, false
}
