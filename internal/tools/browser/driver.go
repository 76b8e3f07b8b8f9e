// Package browser provides browser automation over the playwright driver,
// plus a frame streamer for live page viewing.
package browser

import (
	"log/slog"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/haasonsaas/agentcore/internal/agent"
)

// Driver owns one headless browser session. Availability is probed once per
// process; after a failed probe every action reports browser-cli-missing
// without re-probing.
type Driver struct {
	logger *slog.Logger

	probeOnce sync.Once
	probeErr  error

	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page
}

// defaultTimeout bounds individual page operations.
const defaultTimeout = 30 * time.Second

// NewDriver builds an unprobed driver. The browser launches lazily on first
// use.
func NewDriver(logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{logger: logger.With("component", "browser")}
}

// Available probes the driver and reports whether a browser can be used.
func (d *Driver) Available() bool {
	return d.probe() == nil
}

func (d *Driver) probe() error {
	d.probeOnce.Do(func() {
		if err := playwright.Install(&playwright.RunOptions{Verbose: false}); err != nil {
			d.probeErr = err
			return
		}
		pw, err := playwright.Run()
		if err != nil {
			d.probeErr = err
			return
		}
		browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(true),
			Timeout:  playwright.Float(float64(defaultTimeout.Milliseconds())),
		})
		if err != nil {
			_ = pw.Stop()
			d.probeErr = err
			return
		}
		d.mu.Lock()
		d.pw = pw
		d.browser = browser
		d.mu.Unlock()
	})
	if d.probeErr != nil {
		d.logger.Warn("browser unavailable", "error", d.probeErr)
	}
	return d.probeErr
}

// Page returns the driver's page, creating the browser context on first use.
// A failed probe surfaces as a browser-cli-missing tool error.
func (d *Driver) Page() (playwright.Page, error) {
	if err := d.probe(); err != nil {
		return nil, agent.NewToolError(agent.ErrCodeBrowserMissing, "browser",
			"no usable browser installation").WithCause(err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.page != nil {
		return d.page, nil
	}
	context, err := d.browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: 1280, Height: 720},
	})
	if err != nil {
		return nil, agent.NewToolError(agent.ErrCodeExecutionFailed, "browser", "failed to create context").WithCause(err)
	}
	page, err := context.NewPage()
	if err != nil {
		return nil, agent.NewToolError(agent.ErrCodeExecutionFailed, "browser", "failed to create page").WithCause(err)
	}
	page.SetDefaultTimeout(float64(defaultTimeout.Milliseconds()))
	d.page = page
	return page, nil
}

// ClosePage closes the current page; the next Page call opens a fresh one.
// Closing with no page open is a no-op.
func (d *Driver) ClosePage() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.page == nil {
		return nil
	}
	err := d.page.Close()
	d.page = nil
	return err
}

// Close shuts the browser down. Safe to call without a successful probe.
func (d *Driver) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.page != nil {
		_ = d.page.Close()
		d.page = nil
	}
	if d.browser != nil {
		_ = d.browser.Close()
		d.browser = nil
	}
	if d.pw != nil {
		_ = d.pw.Stop()
		d.pw = nil
	}
}
