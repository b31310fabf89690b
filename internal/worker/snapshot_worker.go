// Package worker hosts the snapshot worker: it consumes ledger change
// events and refreshes the per-user wealth snapshot for the current
// month.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"haybase/internal/event"
	"haybase/internal/ledger"
	"haybase/internal/log"
)

// SnapshotWorker debounces change events per user before recomputing,
// so a burst of edits costs one snapshot write instead of one each.
type SnapshotWorker struct {
	service  *ledger.Service
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]*pendingSnapshot
	wg      sync.WaitGroup
}

// pendingSnapshot is one user's scheduled refresh. The deadline, not
// the timer, is authoritative: a timer that already fired when the
// deadline moves will run its callback again, so the callback only
// consumes the entry once the deadline has actually passed.
type pendingSnapshot struct {
	timer    *time.Timer
	deadline time.Time
}

func NewSnapshotWorker(service *ledger.Service, debounce time.Duration) *SnapshotWorker {
	return &SnapshotWorker{
		service:  service,
		debounce: debounce,
		pending:  make(map[string]*pendingSnapshot),
	}
}

// HandleChangeMessage schedules a snapshot refresh for the user. A
// second message inside the debounce window pushes the deadline out.
func (w *SnapshotWorker) HandleChangeMessage(ctx context.Context, msg *event.LedgerChangedMessage) error {
	if msg.UserID == "" {
		slog.WarnContext(ctx, "Dropping change message without user id",
			log.FieldComponent, log.ComponentWorker)
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if e, ok := w.pending[msg.UserID]; ok {
		e.deadline = time.Now().Add(w.debounce)
		e.timer.Reset(w.debounce)
		return nil
	}

	userID := msg.UserID
	e := &pendingSnapshot{deadline: time.Now().Add(w.debounce)}
	w.wg.Add(1)
	e.timer = time.AfterFunc(w.debounce, func() { w.fire(userID, e) })
	w.pending[userID] = e
	return nil
}

// fire runs when the entry's timer goes off. The callback can run more
// than once for one entry (a Reset racing a fire re-queues it), so it
// records and balances the wait group only on the run that finds the
// deadline passed and removes the entry from the map; an early run
// reschedules, a run for an already-consumed entry is a no-op.
func (w *SnapshotWorker) fire(userID string, e *pendingSnapshot) {
	w.mu.Lock()
	if w.pending[userID] != e {
		w.mu.Unlock()
		return
	}
	if remaining := time.Until(e.deadline); remaining > 0 {
		e.timer.Reset(remaining)
		w.mu.Unlock()
		return
	}
	delete(w.pending, userID)
	w.mu.Unlock()

	w.record(userID)
	w.wg.Done()
}

func (w *SnapshotWorker) record(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := w.service.RecordWealthSnapshot(ctx, userID); err != nil {
		slog.ErrorContext(ctx, "Failed to record wealth snapshot",
			log.FieldUserID, userID,
			log.FieldError, err,
			log.FieldComponent, log.ComponentWorker)
		return
	}
	slog.InfoContext(ctx, "Wealth snapshot recorded",
		log.FieldUserID, userID,
		log.FieldComponent, log.ComponentWorker)
}

// Flush pulls all pending deadlines to now and waits for the refreshes.
// Called on shutdown so debounced work is not lost.
func (w *SnapshotWorker) Flush() {
	w.mu.Lock()
	for _, e := range w.pending {
		e.deadline = time.Now()
		e.timer.Reset(0)
	}
	w.mu.Unlock()
	w.wg.Wait()
}
