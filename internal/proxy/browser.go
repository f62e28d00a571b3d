package proxy

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const defaultRenderTimeout = 25 * time.Second

var errEmptyTarget = errors.New("render: empty target url")

// browserFlags are passed to every headless Chrome we start.
var browserFlags = map[string]any{
	"headless":                      true,
	"disable-gpu":                   true,
	"hide-scrollbars":               true,
	"mute-audio":                    true,
	"no-first-run":                  true,
	"no-default-browser-check":      true,
	"disable-background-networking": true,
	"disable-sync":                  true,
	"disable-extensions":            true,
}

// renderer loads pages in a shared headless Chrome for wikis whose
// content only exists after script runs. Each Render gets its own tab.
type renderer struct {
	alloc  context.Context
	stop   context.CancelFunc
	logger *zap.Logger
}

func newRenderer(logger *zap.Logger) *renderer {
	opts := chromedp.DefaultExecAllocatorOptions[:]
	for name, value := range browserFlags {
		opts = append(opts, chromedp.Flag(name, value))
	}
	alloc, stop := chromedp.NewExecAllocator(context.Background(), opts...)
	logger.Info("Started headless browser allocator", zap.Int("flags", len(browserFlags)))
	return &renderer{alloc: alloc, stop: stop, logger: logger}
}

func (b *renderer) Close() {
	if b.stop != nil {
		b.stop()
	}
}

// mainDocument records the status and headers of the tab's top-level
// navigation as network events arrive.
type mainDocument struct {
	mu     sync.Mutex
	id     network.RequestID
	status int
	header http.Header
}

func (d *mainDocument) listen(ev any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		if e.Type == network.ResourceTypeDocument {
			d.id = e.RequestID
		}
	case *network.EventResponseReceived:
		if e.RequestID != d.id || e.Response == nil {
			return
		}
		d.status = int(e.Response.Status)
		d.header = make(http.Header, len(e.Response.Headers))
		for k, v := range e.Response.Headers {
			d.header.Add(k, fmt.Sprint(v))
		}
	}
}

func (d *mainDocument) result(finalURL string, body string) *upstreamPage {
	d.mu.Lock()
	defer d.mu.Unlock()
	header := d.header.Clone()
	if header == nil {
		header = http.Header{}
	}
	header.Del("Content-Encoding")
	header.Del("Content-Length")
	header.Set("Content-Type", "text/html; charset=utf-8")
	status := d.status
	if status == 0 {
		status = http.StatusOK
	}
	return &upstreamPage{URL: finalURL, Status: status, Header: header, Body: []byte(body)}
}

// prepare turns request headers and jar cookies into tab setup actions.
// The user agent is applied through emulation because Chrome ignores it as
// an extra header.
func prepare(u *url.URL, hdr http.Header, jar http.CookieJar) []chromedp.Action {
	actions := []chromedp.Action{network.Enable()}
	extra := network.Headers{}
	for k, vs := range hdr {
		if len(vs) == 0 {
			continue
		}
		if http.CanonicalHeaderKey(k) == "User-Agent" {
			actions = append(actions, emulation.SetUserAgentOverride(vs[0]))
			continue
		}
		extra[http.CanonicalHeaderKey(k)] = strings.Join(vs, ", ")
	}
	if len(extra) > 0 {
		actions = append(actions, network.SetExtraHTTPHeaders(extra))
	}
	if jar != nil {
		if params := toCookieParams(jar.Cookies(u), u.Hostname()); len(params) > 0 {
			actions = append(actions, network.SetCookies(params))
		}
	}
	return actions
}

// Render navigates to target and returns the document as the browser
// sees it once site's wait conditions hold. Cookies set during the visit
// are written back to jar.
func (b *renderer) Render(ctx context.Context, target string, hdr http.Header, jar http.CookieJar, site *SiteConfig) (*upstreamPage, error) {
	if strings.TrimSpace(target) == "" {
		return nil, errEmptyTarget
	}
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	if site == nil {
		site = &SiteConfig{Mode: ModeJS}
	}
	timeout := defaultRenderTimeout
	if site.TimeoutMS > 0 {
		timeout = time.Duration(site.TimeoutMS) * time.Millisecond
	}

	tab, closeTab := chromedp.NewContext(b.alloc)
	defer closeTab()
	defer context.AfterFunc(ctx, closeTab)()
	tab, cancel := context.WithTimeout(tab, timeout)
	defer cancel()

	doc := &mainDocument{}
	chromedp.ListenTarget(tab, doc.listen)

	var (
		finalURL string
		body     string
		cookies  []*network.Cookie
	)
	actions := prepare(u, hdr, jar)
	actions = append(actions, chromedp.Navigate(target), chromedp.WaitReady("body", chromedp.ByQuery))
	if sel := strings.TrimSpace(site.WaitSelector); sel != "" {
		actions = append(actions, chromedp.WaitVisible(sel, chromedp.ByQuery))
	}
	if site.WaitAfterMS > 0 {
		actions = append(actions, chromedp.Sleep(time.Duration(site.WaitAfterMS)*time.Millisecond))
	}
	actions = append(actions,
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &body, chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = network.GetCookies().WithURLs([]string{firstNonEmpty(finalURL, target)}).Do(ctx)
			return err
		}),
	)

	start := time.Now()
	if err := chromedp.Run(tab, actions...); err != nil {
		return nil, fmt.Errorf("render %s: %w", target, err)
	}
	finalURL = firstNonEmpty(finalURL, target)
	b.logger.Debug("Rendered page in browser",
		zap.String("url", finalURL),
		zap.Int("cookies", len(cookies)),
		zap.Duration("took", time.Since(start)))

	if jar != nil && len(cookies) > 0 {
		if fu, err := url.Parse(finalURL); err == nil {
			jar.SetCookies(fu, fromNetworkCookies(cookies))
		}
	}
	return doc.result(finalURL, body), nil
}

func toCookieParams(cookies []*http.Cookie, host string) []*network.CookieParam {
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   firstNonEmpty(c.Domain, host),
			Path:     firstNonEmpty(c.Path, "/"),
			Secure:   c.Secure,
			HTTPOnly: c.HttpOnly,
		}
		if !c.Expires.IsZero() {
			exp := cdp.TimeSinceEpoch(c.Expires.UTC())
			p.Expires = &exp
		}
		params = append(params, p)
	}
	return params
}

var sameSiteModes = map[network.CookieSameSite]http.SameSite{
	network.CookieSameSiteLax:    http.SameSiteLaxMode,
	network.CookieSameSiteStrict: http.SameSiteStrictMode,
	network.CookieSameSiteNone:   http.SameSiteNoneMode,
}

func fromNetworkCookies(in []*network.Cookie) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(in))
	for _, c := range in {
		if c == nil {
			continue
		}
		hc := &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
			SameSite: sameSiteModes[c.SameSite],
		}
		if !c.Session && c.Expires > 0 {
			sec, frac := math.Modf(c.Expires)
			hc.Expires = time.Unix(int64(sec), int64(frac*1e9)).UTC()
		}
		out = append(out, hc)
	}
	return out
}
