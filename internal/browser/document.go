// Package browser connects to Chromium over the DevTools protocol and exposes the Grok
// conversation page as a live document: inserted images, full scans, the current URL
// and in-page blob fetches.
package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"

	"grokcapture/internal/logging"
	"grokcapture/internal/watcher"
)

// Document owns the browser connection and the watched page.
type Document struct {
	cfg Config

	mu         sync.RWMutex
	browser    *rod.Browser
	page       *rod.Page
	controlURL string
	launched   bool
	location   string
	removeHook func() error

	changes   chan watcher.Batch
	closeOnce sync.Once
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewDocument creates a Document. Call Start before use.
func NewDocument(cfg Config) *Document {
	cfg = cfg.withDefaults()
	return &Document{
		cfg:     cfg,
		changes: make(chan watcher.Batch, cfg.ChangeBuffer),
	}
}

// Start connects to an existing Chrome or launches a new one, selects the watched page
// and installs the mutation hook.
func (d *Document) Start(ctx context.Context) error {
	timer := logging.StartTimer(logging.CategoryBrowser, "Start")
	defer timer.Stop()

	d.mu.Lock()
	defer d.mu.Unlock()

	// If we already have a browser, verify it's still alive
	if d.browser != nil {
		if _, err := d.browser.Version(); err == nil {
			return nil
		}
		logging.BrowserWarn("Stale browser connection detected, reconnecting...")
		_ = d.browser.Close()
		d.browser = nil
		d.page = nil
		d.controlURL = ""
	}

	controlURL, launched, err := d.resolveControlURL()
	if err != nil {
		return err
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}
	d.browser = b
	d.controlURL = controlURL
	d.launched = launched
	logging.Browser("Connected to %s (launched=%v)", controlURL, launched)

	page, err := d.selectPage(ctx)
	if err != nil {
		return err
	}
	d.page = page

	if err := d.installHook(ctx, page); err != nil {
		return err
	}

	if info, err := page.Info(); err == nil {
		d.location = info.URL
	}

	streamCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.startEventStream(streamCtx, page)
	return nil
}

func (d *Document) resolveControlURL() (string, bool, error) {
	if d.cfg.DebuggerURL != "" {
		return d.cfg.DebuggerURL, false, nil
	}

	if len(d.cfg.Launch) > 0 {
		bin := d.cfg.Launch[0]
		launch := launcher.New().Bin(bin).Headless(d.cfg.Headless)
		for _, rawFlag := range d.cfg.Launch[1:] {
			flagStr := strings.TrimLeft(rawFlag, "-")
			name, val, hasVal := strings.Cut(flagStr, "=")
			if hasVal {
				launch = launch.Set(flags.Flag(name), val)
			} else {
				launch = launch.Set(flags.Flag(name))
			}
		}
		u, err := launch.Launch()
		if err == nil {
			return u, true, nil
		}
		// Fallback without the custom flags
		alt, altErr := launcher.New().Bin(bin).Headless(d.cfg.Headless).Launch()
		if altErr != nil {
			return "", false, fmt.Errorf("launch chrome: %w (fallback: %v)", err, altErr)
		}
		return alt, true, nil
	}

	u, err := launcher.New().Headless(d.cfg.Headless).Launch()
	if err != nil {
		return "", false, fmt.Errorf("no debugger_url and failed to launch: %w", err)
	}
	return u, true, nil
}

// selectPage returns the explicit target, else the first page on the start URL's host,
// else a new page navigated to the start URL.
func (d *Document) selectPage(ctx context.Context) (*rod.Page, error) {
	if d.cfg.TargetID != "" {
		page, err := d.browser.PageFromTarget(proto.TargetTargetID(d.cfg.TargetID))
		if err != nil {
			return nil, fmt.Errorf("attach to target %s: %w", d.cfg.TargetID, err)
		}
		logging.Browser("Attached to target %s", d.cfg.TargetID)
		return page.Context(ctx), nil
	}

	host := hostOf(d.cfg.StartURL)
	if pages, err := d.browser.Pages(); err == nil && host != "" {
		for _, p := range pages {
			info, err := p.Info()
			if err != nil {
				continue
			}
			if hostOf(info.URL) == host {
				logging.Browser("Reusing open page %s", info.URL)
				return p.Context(ctx), nil
			}
		}
	}

	page, err := d.browser.Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             d.cfg.GetViewportWidth(),
		Height:            d.cfg.GetViewportHeight(),
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		logging.BrowserWarn("Failed to set viewport: %v", err)
	}

	if err := d.addBootstrap(page); err != nil {
		return nil, err
	}
	if err := page.Timeout(d.cfg.GetNavigationTimeout()).Navigate(d.cfg.StartURL); err != nil {
		logging.BrowserWarn("Navigation to %s did not complete: %v", d.cfg.StartURL, err)
	}
	logging.Browser("Opened new page at %s", d.cfg.StartURL)
	return page.Context(ctx), nil
}

func (d *Document) addBootstrap(page *rod.Page) error {
	if d.removeHook != nil {
		return nil
	}
	script, err := bootstrapJS(d.cfg)
	if err != nil {
		return fmt.Errorf("build hook script: %w", err)
	}
	remove, err := page.EvalOnNewDocument(script)
	if err != nil {
		return fmt.Errorf("register hook script: %w", err)
	}
	d.removeHook = remove
	return nil
}

// installHook registers the hook for future documents and runs it in the current one.
func (d *Document) installHook(ctx context.Context, page *rod.Page) error {
	if err := d.addBootstrap(page); err != nil {
		return err
	}
	_, err := page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:           hookJS,
		JSArgs:       []interface{}{d.cfg.ImageSelector, d.cfg.TextSelector, d.cfg.MaxDepth},
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		return fmt.Errorf("install mutation hook: %w", err)
	}
	logging.BrowserDebug("Mutation hook installed for %s", d.cfg.ImageSelector)
	return nil
}

func (d *Document) setLocation(u string) {
	d.mu.Lock()
	changed := d.location != u
	d.location = u
	d.mu.Unlock()
	if changed {
		logging.BrowserDebug("Location: %s", u)
	}
}

func (d *Document) startEventStream(ctx context.Context, page *rod.Page) {
	// Navigation events keep the cached location current
	waitNav := page.Context(ctx).EachEvent(
		func(ev *proto.PageFrameNavigated) {
			if ev.Frame != nil && ev.Frame.ParentID == "" {
				d.setLocation(ev.Frame.URL)
			}
		},
		func(ev *proto.PageNavigatedWithinDocument) {
			d.setLocation(ev.URL)
		},
	)

	d.wg.Add(2)
	go func() {
		defer d.wg.Done()
		waitNav()
	}()
	go func() {
		defer d.wg.Done()
		d.drain(ctx, page)
	}()
}

func (d *Document) drain(ctx context.Context, page *rod.Page) {
	ticker := time.NewTicker(d.cfg.drainInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := page.Context(ctx).Evaluate(&rod.EvalOptions{
				JS:           drainJS,
				ByValue:      true,
				AwaitPromise: true,
			})
			if err != nil || res == nil {
				if ctx.Err() == nil {
					logging.BrowserDebug("Drain failed: %v", err)
				}
				continue
			}
			if res.Value.Nil() {
				continue
			}
			raw, err := res.Value.MarshalJSON()
			if err != nil {
				continue
			}
			batches, err := decodeBatches(raw)
			if err != nil {
				logging.BrowserWarn("Dropping undecodable drain payload: %v", err)
				continue
			}
			for _, b := range batches {
				select {
				case d.changes <- b:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// Changes implements watcher.Source. The channel is closed by Shutdown.
func (d *Document) Changes() <-chan watcher.Batch {
	return d.changes
}

// Scan implements watcher.Source.
func (d *Document) Scan(ctx context.Context) ([]watcher.Image, error) {
	page, err := d.currentPage()
	if err != nil {
		return nil, err
	}
	res, err := page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:           scanJS,
		JSArgs:       []interface{}{d.cfg.ImageSelector, d.cfg.TextSelector, d.cfg.MaxDepth},
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil || res == nil {
		return nil, fmt.Errorf("scan images: %w", err)
	}
	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshal scan result: %w", err)
	}
	return decodeImages(raw)
}

// Location implements session.Locator with the last URL reported by the page.
func (d *Document) Location() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.location
}

// Fetch implements pipeline.Fetcher for references only the page can resolve, such
// as blob: URLs.
func (d *Document) Fetch(ctx context.Context, ref string) ([]byte, error) {
	page, err := d.currentPage()
	if err != nil {
		return nil, err
	}
	res, err := page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:           fetchJS,
		JSArgs:       []interface{}{ref},
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil || res == nil {
		return nil, fmt.Errorf("in-page fetch: %w", err)
	}
	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshal fetch result: %w", err)
	}
	return decodeFetch(ref, raw)
}

func (d *Document) currentPage() (*rod.Page, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.page == nil {
		return nil, errors.New("browser not connected")
	}
	return d.page, nil
}

// ControlURL returns the WebSocket debugger URL.
func (d *Document) ControlURL() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.controlURL
}

// Shutdown stops the event goroutines and closes the Changes channel. A browser the
// Document launched is closed; an attached one is left running.
func (d *Document) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	cancel := d.cancel
	d.cancel = nil
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	d.wg.Wait()

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.removeHook != nil {
		if err := d.removeHook(); err != nil {
			logging.BrowserDebug("Failed to remove hook script: %v", err)
		}
		d.removeHook = nil
	}

	var err error
	if d.browser != nil && d.launched {
		err = d.browser.Close()
	}
	d.browser = nil
	d.page = nil
	d.controlURL = ""

	d.closeOnce.Do(func() { close(d.changes) })
	logging.Browser("Browser shutdown complete")
	return err
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}
