package inbox

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"waxtrade/internal/infra/api"
)

// ErrWatcherAuth is reported once the badge watcher hits a credential
// rejection and stops polling.
var ErrWatcherAuth = errors.New("inbox: credential rejected, watcher stopped")

// Watcher polls the total unread count on its own interval, independent of
// any open conversation session. A Poke forces an immediate re-poll, which
// conversation sessions use after a trade confirmation changes badges.
type Watcher struct {
	client   *api.Client
	logger   *slog.Logger
	interval time.Duration

	mu    sync.RWMutex
	count int

	poke    chan struct{}
	updates chan int
}

// NewWatcher builds a badge watcher. The interval defaults to 15 seconds,
// the cadence of the navbar badge this replaces.
func NewWatcher(client *api.Client, interval time.Duration, logger *slog.Logger) *Watcher {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Watcher{
		client:   client,
		logger:   logger,
		interval: interval,
		poke:     make(chan struct{}, 1),
		updates:  make(chan int, 1),
	}
}

// Count returns the last observed unread total.
func (w *Watcher) Count() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.count
}

// Poke requests an immediate re-poll. Never blocks.
func (w *Watcher) Poke() {
	select {
	case w.poke <- struct{}{}:
	default:
	}
}

// Updates emits the unread total whenever it changes. The channel holds at
// most one pending value; a slow reader only misses intermediate counts.
func (w *Watcher) Updates() <-chan int {
	return w.updates
}

// Run polls until the context is cancelled or the credential is rejected.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.pollOnce(ctx); err != nil && api.IsAuth(err) {
		return ErrWatcherAuth
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.poke:
		case <-ticker.C:
		}
		if err := w.pollOnce(ctx); err != nil && api.IsAuth(err) {
			return ErrWatcherAuth
		}
	}
}

func (w *Watcher) pollOnce(ctx context.Context) error {
	count, err := w.client.UnreadCount(ctx)
	if err != nil {
		if w.logger != nil {
			w.logger.Warn("unread poll failed", "error", err)
		}
		return err
	}
	w.mu.Lock()
	changed := count != w.count
	w.count = count
	w.mu.Unlock()
	if changed {
		select {
		case w.updates <- count:
		default:
		}
	}
	return nil
}
