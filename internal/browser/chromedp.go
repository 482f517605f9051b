package browser

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
)

const (
	navigateTimeout = 30 * time.Second
	actionTimeout   = 10 * time.Second
	queryTimeout    = 3 * time.Second
)

// ChromeLauncher starts a dedicated Chrome instance per Launch call.
type ChromeLauncher struct{}

// Launch starts Chrome and returns a driver bound to a fresh page context.
func (ChromeLauncher) Launch(opts LaunchOptions) (Driver, error) {
	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if !opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}
	if opts.ExecutablePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecutablePath))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	ctx, cancelCtx := chromedp.NewContext(allocCtx)

	// Forces the browser process to start so launch failures surface here.
	if err := chromedp.Run(ctx); err != nil {
		cancelCtx()
		cancelAlloc()
		return nil, err
	}

	return &chromeDriver{
		ctx:     ctx,
		cancels: []context.CancelFunc{cancelCtx, cancelAlloc},
	}, nil
}

type chromeDriver struct {
	ctx     context.Context
	cancels []context.CancelFunc

	closeOnce sync.Once
}

func (d *chromeDriver) run(timeout time.Duration, actions ...chromedp.Action) error {
	ctx, cancel := context.WithTimeout(d.ctx, timeout)
	defer cancel()
	return chromedp.Run(ctx, actions...)
}

func (d *chromeDriver) Goto(url string) error {
	return d.run(navigateTimeout, chromedp.Navigate(url))
}

func (d *chromeDriver) Query(selector string) (string, bool) {
	var nodes []*cdp.Node
	err := d.run(queryTimeout, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)))
	if err != nil || len(nodes) == 0 {
		return "", false
	}
	var text string
	if err := d.run(queryTimeout, chromedp.Text(selector, &text, chromedp.ByQuery)); err != nil {
		return "", true
	}
	return strings.TrimSpace(text), true
}

func (d *chromeDriver) Click(selector string) error {
	return d.run(actionTimeout, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
}

func (d *chromeDriver) Fill(selector, text string) error {
	return d.run(actionTimeout,
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	)
}

func (d *chromeDriver) Evaluate(script string, out any) error {
	return d.run(actionTimeout, chromedp.Evaluate(script, out))
}

func (d *chromeDriver) Cookies() ([]Cookie, error) {
	var cookies []Cookie
	err := d.run(actionTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		raw, err := storage.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		cookies = make([]Cookie, 0, len(raw))
		for _, c := range raw {
			cookies = append(cookies, Cookie{
				Name:     c.Name,
				Value:    c.Value,
				Domain:   c.Domain,
				Path:     c.Path,
				Expires:  c.Expires,
				HTTPOnly: c.HTTPOnly,
				Secure:   c.Secure,
				SameSite: string(c.SameSite),
			})
		}
		return nil
	}))
	if err != nil {
		return nil, err
	}
	return cookies, nil
}

func (d *chromeDriver) SetCookies(cookies []Cookie) error {
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		}
		if c.SameSite != "" {
			p.SameSite = network.CookieSameSite(c.SameSite)
		}
		if c.Expires > 0 {
			expires := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
			p.Expires = &expires
		}
		params = append(params, p)
	}
	return d.run(actionTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		return storage.SetCookies(params).Do(ctx)
	}))
}

func (d *chromeDriver) URL() (string, error) {
	var location string
	err := d.run(queryTimeout, chromedp.Location(&location))
	return location, err
}

func (d *chromeDriver) Title() (string, error) {
	var title string
	err := d.run(queryTimeout, chromedp.Title(&title))
	return title, err
}

func (d *chromeDriver) Content() (string, error) {
	var html string
	err := d.run(actionTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (d *chromeDriver) Close() error {
	d.closeOnce.Do(func() {
		// Graceful browser shutdown before tearing down the contexts.
		_ = chromedp.Cancel(d.ctx)
		for _, cancel := range d.cancels {
			cancel()
		}
	})
	return nil
}
