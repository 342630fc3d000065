package presence

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReconnectionWindow defers handing back a user's connection slot for a grace
// period after disconnect, so a transient network blip does not trip the
// connection cap on the reconnect that follows it.
type ReconnectionWindow struct {
	clock   Clock
	grace   time.Duration
	release func(uuid.UUID)
	logger  *zap.Logger

	mu      sync.Mutex
	pending map[uuid.UUID][]*pendingRelease
}

type pendingRelease struct {
	timer     Timer
	cancelled bool
	fired     bool
}

func NewReconnectionWindow(clock Clock, grace time.Duration, release func(uuid.UUID), logger *zap.Logger) *ReconnectionWindow {
	return &ReconnectionWindow{
		clock:   clock,
		grace:   grace,
		release: release,
		logger:  logger,
		pending: make(map[uuid.UUID][]*pendingRelease),
	}
}

// ScheduleRelease starts the grace timer for one disconnected connection.
// Each disconnect schedules its own release, so several tabs closed inside
// one window each decrement the counter exactly once.
func (w *ReconnectionWindow) ScheduleRelease(userID uuid.UUID) {
	w.mu.Lock()
	defer w.mu.Unlock()

	p := &pendingRelease{}
	p.timer = w.clock.AfterFunc(w.grace, func() { w.fire(userID, p) })
	w.pending[userID] = append(w.pending[userID], p)
}

// Cancel claims one pending release on reconnect, most recent first. It
// reports whether a release was actually cancelled; when it returns true the
// reconnecting connection reuses the slot instead of taking a new one. The
// timer is stopped, not merely ignored, so a stale decrement cannot fire
// after the slot is back in use.
func (w *ReconnectionWindow) Cancel(userID uuid.UUID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	releases := w.pending[userID]
	for i := len(releases) - 1; i >= 0; i-- {
		p := releases[i]
		if p.cancelled || p.fired {
			continue
		}
		p.cancelled = true
		p.timer.Stop()
		w.pending[userID] = append(releases[:i], releases[i+1:]...)
		if len(w.pending[userID]) == 0 {
			delete(w.pending, userID)
		}
		return true
	}
	return false
}

// PendingCount returns the number of releases awaiting their grace timer.
func (w *ReconnectionWindow) PendingCount(userID uuid.UUID) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending[userID])
}

// Stop cancels all outstanding timers. Used on shutdown.
func (w *ReconnectionWindow) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for userID, releases := range w.pending {
		for _, p := range releases {
			if !p.fired && !p.cancelled {
				p.cancelled = true
				p.timer.Stop()
			}
		}
		delete(w.pending, userID)
	}
}

func (w *ReconnectionWindow) fire(userID uuid.UUID, p *pendingRelease) {
	w.mu.Lock()
	if p.cancelled {
		w.mu.Unlock()
		return
	}
	p.fired = true
	releases := w.pending[userID]
	for i, candidate := range releases {
		if candidate == p {
			w.pending[userID] = append(releases[:i], releases[i+1:]...)
			break
		}
	}
	if len(w.pending[userID]) == 0 {
		delete(w.pending, userID)
	}
	w.mu.Unlock()

	w.logger.Debug("reconnection window expired, releasing slot",
		zap.String("user_id", userID.String()))
	w.release(userID)
}
