package browser

import (
	"context"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"

	"github.com/stupside/thumbmark/internal/app"
)

// allocatorOpts returns the exec-allocator options for cfg. Window size and
// user agent are only set when configured so the browser reports its own.
func allocatorOpts(cfg app.BrowserConfig) []chromedp.ExecAllocatorOption {
	var headlessVal string
	if cfg.Headless {
		headlessVal = "new"
	}

	opts := []chromedp.ExecAllocatorOption{
		chromedp.ExecPath(cfg.ChromePath),

		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,

		chromedp.Flag("headless", headlessVal),
		chromedp.Flag("no-sandbox", cfg.NoSandbox),

		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-renderer-backgrounding", true),

		// WebGL and audio probes need these even when headless.
		chromedp.Flag("enable-unsafe-swiftshader", true),
		chromedp.Flag("autoplay-policy", "no-user-gesture-required"),
	}

	if cfg.Width > 0 && cfg.Height > 0 {
		opts = append(opts, chromedp.WindowSize(int(cfg.Width), int(cfg.Height)))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.Locale != "" {
		opts = append(opts, chromedp.Flag("lang", cfg.Locale))
	}
	return opts
}

// emulate applies the configured CDP overrides to the current tab. Overrides
// are per target, so every tab runs it before navigating.
func emulate(cfg app.BrowserConfig) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		if err := emulation.SetAutomationOverride(false).Do(ctx); err != nil {
			return err
		}

		if cfg.Timezone != "" {
			if err := emulation.SetTimezoneOverride(cfg.Timezone).Do(ctx); err != nil {
				return err
			}
		}

		if cfg.Locale != "" {
			if err := emulation.SetLocaleOverride().WithLocale(cfg.Locale).Do(ctx); err != nil {
				return err
			}
		}

		if cfg.UserAgent != "" {
			ua := emulation.SetUserAgentOverride(cfg.UserAgent)
			if cfg.Locale != "" {
				ua = ua.WithAcceptLanguage(cfg.Locale)
			}
			if err := ua.Do(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}
