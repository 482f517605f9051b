package authflow

import (
	"strings"

	"github.com/pysugar/cursor-auth-keeper/internal/browser"
)

// Provider tags the login route walked during authorization.
type Provider string

const (
	ProviderEmail   Provider = "email"
	ProviderGoogle  Provider = "google"
	ProviderGitHub  Provider = "github"
	ProviderUnknown Provider = "unknown"
)

// ParseProvider normalizes a provider tag, defaulting to unknown.
func ParseProvider(s string) Provider {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "email":
		return ProviderEmail
	case "google":
		return ProviderGoogle
	case "github":
		return ProviderGitHub
	default:
		return ProviderUnknown
	}
}

// Credentials are the optional username/password handed to a flow script.
// When empty, the operator completes the corresponding step by hand.
type Credentials struct {
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
}

// flowScript is one provider-specific best-effort interaction strategy.
// Scripts never fail the session: a missing element or failed click is
// reported through the status callback and the flow proceeds.
type flowScript interface {
	Run(d browser.Driver, creds Credentials, report func(string))
}

// scriptFor dispatches to the interaction strategy for a provider. Unknown
// providers get the plain email flow, which degrades to doing nothing when
// no known elements are present.
func scriptFor(p Provider) flowScript {
	switch p {
	case ProviderGoogle:
		return googleFlow{}
	case ProviderGitHub:
		return githubFlow{}
	default:
		return emailFlow{}
	}
}

type emailFlow struct{}

func (emailFlow) Run(d browser.Driver, creds Credentials, report func(string)) {
	report("running email login flow")

	if _, ok := d.Query("input[type='email']"); ok {
		if creds.Email != "" {
			if err := d.Fill("input[type='email']", creds.Email); err != nil {
				report("could not fill email field: " + err.Error())
			} else {
				report("filled email: " + creds.Email)
			}
		} else {
			report("no email supplied, waiting for manual input")
		}
	} else {
		report("email field not found, continuing")
	}

	if _, ok := d.Query("input[type='password']"); ok {
		if creds.Password != "" {
			if err := d.Fill("input[type='password']", creds.Password); err != nil {
				report("could not fill password field: " + err.Error())
			} else {
				report("filled password")
			}
		} else {
			report("no password supplied, waiting for manual input")
		}
	} else {
		report("password field not found, a next step may be required")
	}

	if _, ok := d.Query("button[type='submit']"); ok {
		if err := d.Click("button[type='submit']"); err != nil {
			report("submit click failed: " + err.Error())
		} else {
			report("clicked submit")
		}
	}
}

type googleFlow struct{}

func (googleFlow) Run(d browser.Driver, creds Credentials, report func(string)) {
	report("running google login flow")

	// On the authenticator page the provider button comes first.
	if _, ok := d.Query("button[data-provider='google']"); ok {
		if err := d.Click("button[data-provider='google']"); err != nil {
			report("google button click failed: " + err.Error())
		} else {
			report("clicked google login button")
		}
	} else {
		report("google button not found on authenticator page")
	}

	// Account chooser: leave the pick to the operator.
	if _, ok := d.Query("div[data-identifier]"); ok {
		report("google account chooser detected, waiting for manual selection")
		return
	}

	if _, ok := d.Query("input[type='email']"); ok && creds.Email != "" {
		if err := d.Fill("input[type='email']", creds.Email); err != nil {
			report("could not fill google email: " + err.Error())
		} else {
			report("filled google email: " + creds.Email)
			if err := d.Click("button[jsname='LgbsSe']"); err != nil {
				report("google next click failed: " + err.Error())
			} else {
				report("clicked next")
			}
		}
	}

	if _, ok := d.Query("input[type='password']"); ok && creds.Password != "" {
		if err := d.Fill("input[type='password']", creds.Password); err != nil {
			report("could not fill google password: " + err.Error())
		} else {
			report("filled google password")
			if err := d.Click("button[jsname='LgbsSe']"); err != nil {
				report("google sign-in click failed: " + err.Error())
			} else {
				report("clicked google sign-in")
			}
		}
	}

	// Consent page, when it appears.
	if _, ok := d.Query("button[jsname='LgbsSe']"); ok {
		if err := d.Click("button[jsname='LgbsSe']"); err != nil {
			report("google consent click failed: " + err.Error())
		} else {
			report("clicked google consent")
		}
	}

	report("google flow done, waiting for redirect")
}

type githubFlow struct{}

func (githubFlow) Run(d browser.Driver, creds Credentials, report func(string)) {
	report("running github login flow")

	_, hasLogin := d.Query("input[name='login']")
	_, hasPassword := d.Query("input[name='password']")

	if hasLogin && hasPassword {
		report("github sign-in form detected")
		if creds.Email != "" {
			if err := d.Fill("input[name='login']", creds.Email); err != nil {
				report("could not fill github username: " + err.Error())
			} else {
				report("filled github username")
			}
		}
		if creds.Password != "" {
			if err := d.Fill("input[name='password']", creds.Password); err != nil {
				report("could not fill github password: " + err.Error())
			} else {
				report("filled github password")
			}
		}
		if _, ok := d.Query("input[name='commit']"); ok {
			if err := d.Click("input[name='commit']"); err != nil {
				report("github sign-in click failed: " + err.Error())
			} else {
				report("clicked github sign-in")
			}
		}
	} else if _, ok := d.Query("button[data-provider='github']"); ok {
		if err := d.Click("button[data-provider='github']"); err != nil {
			report("github button click failed: " + err.Error())
		} else {
			report("clicked github login button, complete authorization in the browser")
		}
	} else {
		report("could not recognize github flow, complete login manually")
	}

	// OAuth authorize confirmation, shown on first grant only.
	if _, ok := d.Query("button[type='submit'][id='js-oauth-authorize-btn']"); ok {
		if err := d.Click("button[type='submit'][id='js-oauth-authorize-btn']"); err != nil {
			report("github authorize click failed: " + err.Error())
		} else {
			report("clicked github authorize")
		}
	}
}
