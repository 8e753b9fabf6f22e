package coordinator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chess-arena/internal/obslog"
)

// SnapshotStore is the durable storage contract behind the bridge.
// Load returns (nil, nil) when no snapshot exists for the id.
type SnapshotStore interface {
	Save(ctx context.Context, snap *Snapshot) error
	Load(ctx context.Context, sessionID string) (*Snapshot, error)
}

// ResultArchive records terminal games. Optional; nil disables archiving.
type ResultArchive interface {
	SaveResult(ctx context.Context, snap *Snapshot) error
}

// Bridge mirrors session mutations to durable storage write-behind: Schedule
// never blocks the live path, and a failed write is logged and retried with
// backoff, never surfaced to gameplay. Writes are fire-and-forget, so the
// only ordering contract is last-write-wins per session.
type Bridge struct {
	snaps   SnapshotStore
	archive ResultArchive

	queue chan *Snapshot
	wg    sync.WaitGroup

	maxAttempts  int
	writeTimeout time.Duration
}

func NewBridge(snaps SnapshotStore, archive ResultArchive, queueSize, maxAttempts int) *Bridge {
	if queueSize <= 0 {
		queueSize = 256
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	b := &Bridge{
		snaps:        snaps,
		archive:      archive,
		queue:        make(chan *Snapshot, queueSize),
		maxAttempts:  maxAttempts,
		writeTimeout: 5 * time.Second,
	}
	b.wg.Add(1)
	go b.worker()
	return b
}

// Schedule enqueues a durable write. When the queue is full the snapshot is
// dropped; a later write for the same session supersedes it anyway.
func (b *Bridge) Schedule(snap *Snapshot) {
	if b == nil || snap == nil {
		return
	}
	select {
	case b.queue <- snap:
	default:
		obslog.L().Warn("bridge_queue_full",
			zap.String("session_id", snap.SessionID),
		)
	}
}

// Load reads a snapshot for rehydration. Synchronous from the caller's view.
func (b *Bridge) Load(ctx context.Context, sessionID string) (*Snapshot, error) {
	if b == nil || b.snaps == nil {
		return nil, nil
	}
	return b.snaps.Load(ctx, sessionID)
}

// Close drains pending writes and stops the worker.
func (b *Bridge) Close() {
	if b == nil {
		return
	}
	close(b.queue)
	b.wg.Wait()
}

func (b *Bridge) worker() {
	defer b.wg.Done()
	for snap := range b.queue {
		b.persist(snap)
	}
}

func (b *Bridge) persist(snap *Snapshot) {
	var lastErr error
	for attempt := 1; attempt <= b.maxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), b.writeTimeout)
		lastErr = b.snaps.Save(ctx, snap)
		cancel()
		if lastErr == nil || attempt == b.maxAttempts {
			break
		}
		time.Sleep(backoffDuration(attempt))
	}
	if lastErr != nil {
		// Write-behind contract: log and move on, gameplay is unaffected.
		obslog.L().Error("bridge_save_failed",
			zap.String("session_id", snap.SessionID),
			zap.Int("attempts", b.maxAttempts),
			zap.Error(lastErr),
		)
		return
	}

	if b.archive != nil && snap.Status.Terminal() {
		ctx, cancel := context.WithTimeout(context.Background(), b.writeTimeout)
		err := b.archive.SaveResult(ctx, snap)
		cancel()
		if err != nil {
			obslog.L().Error("bridge_archive_failed",
				zap.String("session_id", snap.SessionID),
				zap.String("result", string(snap.Result)),
				zap.Error(err),
			)
			return
		}
		obslog.L().Info("bridge_archive",
			zap.String("session_id", snap.SessionID),
			zap.String("result", string(snap.Result)),
			zap.String("method", snap.EndMethod),
		)
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	base := 100 * time.Millisecond
	return time.Duration(1<<uint(attempt-1)) * base // 100ms, 200ms ...
}
