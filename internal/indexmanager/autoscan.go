package indexmanager

import (
	"context"
	"time"
)

// defaultAutoScanInterval is how often Serve re-scans every enabled
// folder when the embedder doesn't ask for a different cadence.
const defaultAutoScanInterval = 5 * time.Minute

// AutoScanInterval sets the cadence Serve uses between full ScanAll
// passes. Zero restores the default. Safe to call before Serve starts;
// changing it while Serve is already running takes effect on the next
// tick.
func (m *Manager) AutoScanInterval(d time.Duration) {
	if d <= 0 {
		d = defaultAutoScanInterval
	}
	m.autoScanInterval = d
}

// Serve runs ScanAll on a timer until ctx is cancelled, satisfying
// suture.Service so the embedder can supervise folder scanning
// alongside the other background loops (§4.5, §5) instead of having to
// remember to call ScanAll itself.
func (m *Manager) Serve(ctx context.Context) error {
	interval := m.autoScanInterval
	if interval <= 0 {
		interval = defaultAutoScanInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := m.ScanAll(ctx, nil); err != nil {
				log.Warnf("auto-scan: %v", err)
			}
		}
	}
}
