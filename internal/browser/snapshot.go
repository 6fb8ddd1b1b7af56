package browser

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"
)

// DefaultSnapshotDir is where snapshots land when none is configured.
const DefaultSnapshotDir = ".debug"

// snapshot saves a screenshot of the tab after a probe ran. It only does
// anything when debug logging is enabled.
func snapshot(ctx context.Context, dir, label string) {
	if !slog.Default().Enabled(ctx, slog.LevelDebug) {
		return
	}
	if dir == "" {
		dir = DefaultSnapshotDir
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.DebugContext(ctx, "snapshot: mkdir failed", "error", err)
		return
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%d.png", label, time.Now().UnixMilli()))

	var buf []byte
	if err := chromedp.Run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		slog.DebugContext(ctx, "snapshot: screenshot failed", "label", label, "error", err)
		return
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		slog.DebugContext(ctx, "snapshot: write png failed", "error", err)
		return
	}

	slog.DebugContext(ctx, "snapshot: saved", "label", label, "path", path)
}
