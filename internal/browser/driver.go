// Package browser defines the driver capability consumed by the
// authorization session, plus a Chrome-backed implementation.
package browser

// Cookie is a browser cookie in the shape captured into fingerprints.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain,omitempty"`
	Path     string  `json:"path,omitempty"`
	Expires  float64 `json:"expires,omitempty"` // Unix seconds, 0 for session cookies
	HTTPOnly bool    `json:"httpOnly,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	SameSite string  `json:"sameSite,omitempty"`
}

// Driver is one exclusively-owned page/context. Implementations apply their
// own short bounded waits; callers treat every returned error as recoverable
// except the initial launch.
type Driver interface {
	// Goto navigates the page to the given URL.
	Goto(url string) error
	// Query returns the trimmed text of the first element matching the
	// selector, and whether such an element exists.
	Query(selector string) (string, bool)
	// Click clicks the first visible element matching the selector.
	Click(selector string) error
	// Fill replaces the value of the input matching the selector.
	Fill(selector, text string) error
	// Evaluate runs a script in the page and unmarshals its result into out.
	Evaluate(script string, out any) error
	// Cookies returns all cookies visible to the browser context.
	Cookies() ([]Cookie, error)
	// SetCookies installs cookies into the browser context.
	SetCookies(cookies []Cookie) error
	// URL returns the page's current location.
	URL() (string, error)
	// Title returns the page title.
	Title() (string, error)
	// Content returns the raw page HTML.
	Content() (string, error)
	// Close releases the browser resource. Safe to call more than once.
	Close() error
}

// LaunchOptions configures a browser launch.
type LaunchOptions struct {
	Headless       bool
	ExecutablePath string // empty means auto-detect
	UserAgent      string // empty means the browser default
}

// Launcher produces a Driver. The only fatal error path in an authorization
// session is a Launch failure.
type Launcher interface {
	Launch(opts LaunchOptions) (Driver, error)
}
