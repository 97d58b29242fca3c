package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"lifehub/internal/core"
	"lifehub/internal/sheets"
)

// Snapshotter records a net worth snapshot for a user.
type Snapshotter interface {
	RecordSnapshot(ctx context.Context, userID, eventID string) (core.NetWorthSnapshot, bool, error)
}

// SnapshotSchedulerConfig holds configuration for the snapshot scheduler
type SnapshotSchedulerConfig struct {
	// Interval is how often snapshots are taken (default: 24h)
	Interval time.Duration

	// Users are the users to snapshot on every tick.
	Users []string
}

// DefaultSnapshotSchedulerConfig returns sensible defaults
func DefaultSnapshotSchedulerConfig() SnapshotSchedulerConfig {
	return SnapshotSchedulerConfig{
		Interval: 24 * time.Hour,
	}
}

// SnapshotScheduler takes periodic net worth snapshots. Each tick uses an
// event id derived from the interval slot, so a restart inside the same slot
// does not record a second snapshot.
type SnapshotScheduler struct {
	snapshots Snapshotter
	exporter  sheets.SnapshotExporter
	config    SnapshotSchedulerConfig
	now       func() time.Time

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSnapshotScheduler creates a scheduler. exporter may be nil.
func NewSnapshotScheduler(snapshots Snapshotter, exporter sheets.SnapshotExporter, config SnapshotSchedulerConfig) *SnapshotScheduler {
	if config.Interval <= 0 {
		config.Interval = DefaultSnapshotSchedulerConfig().Interval
	}
	return &SnapshotScheduler{
		snapshots: snapshots,
		exporter:  exporter,
		config:    config,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Start begins the scheduling loop. Returns an error if already running.
func (p *SnapshotScheduler) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("snapshot scheduler is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	stop, done := p.stopCh, p.doneCh
	p.mu.Unlock()

	go p.runLoop(ctx, stop, done)

	slog.InfoContext(ctx, "Snapshot scheduler started",
		"interval", p.config.Interval,
		"users", len(p.config.Users))

	return nil
}

// Stop signals the loop and waits for it to finish or for ctx to expire.
// The scheduler counts as stopped as soon as the signal is sent, so a
// repeated Stop after a timeout is a no-op.
func (p *SnapshotScheduler) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	close(p.stopCh)
	done := p.doneCh
	p.mu.Unlock()

	select {
	case <-done:
		slog.InfoContext(ctx, "Snapshot scheduler stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Snapshot scheduler stop timed out")
		return ctx.Err()
	}
	return nil
}

// IsRunning returns whether the scheduler is currently running
func (p *SnapshotScheduler) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SnapshotScheduler) runLoop(ctx context.Context, stop <-chan struct{}, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	// Snapshot immediately on startup
	p.RunOnce(ctx)

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.RunOnce(ctx)
		}
	}
}

// RunOnce snapshots every configured user and returns how many snapshots
// were recorded. Failures are logged per user.
func (p *SnapshotScheduler) RunOnce(ctx context.Context) int {
	slot := p.now().Truncate(p.config.Interval).Format(time.RFC3339)
	recordedCount := 0

	for _, userID := range p.config.Users {
		select {
		case <-ctx.Done():
			return recordedCount
		default:
		}

		eventID := fmt.Sprintf("schedule:%s:%s", userID, slot)
		snap, recorded, err := p.snapshots.RecordSnapshot(ctx, userID, eventID)
		if err != nil {
			slog.ErrorContext(ctx, "Scheduled snapshot failed", "user_id", userID, "error", err)
			continue
		}
		if !recorded {
			slog.DebugContext(ctx, "Snapshot already taken for slot", "user_id", userID, "slot", slot)
			continue
		}
		recordedCount++

		if p.exporter != nil {
			if ref, err := p.exporter.ExportSnapshot(ctx, snap); err != nil {
				slog.WarnContext(ctx, "Failed to export snapshot", "user_id", userID, "error", err)
			} else {
				slog.DebugContext(ctx, "Snapshot exported", "user_id", userID, "sheets_ref", ref)
			}
		}
	}

	return recordedCount
}
