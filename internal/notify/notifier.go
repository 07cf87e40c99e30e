// Package notify delivers driver-facing alerts. The engine treats speech and
// visual alerts as independent side-effect channels off the "violation
// triggered" event, so persistence logic stays testable without touching any
// delivery transport.
package notify

import (
	"context"
	"sync"
)

// Notifier is the notification surface the engine speaks through.
type Notifier interface {
	// Speak sends text for on-device speech synthesis. Fire-and-forget.
	Speak(text string)

	// Alert shows a visual notice that needs no acknowledgment.
	Alert(title, body string)

	// PresentBlockingModal shows an undismissable notice and blocks until
	// the driver explicitly acknowledges it. Returns the context error when
	// the session ends before an acknowledgment arrives.
	PresentBlockingModal(ctx context.Context, title, body string) error
}

// AckRegistry routes driver acknowledgments (arriving over HTTP) to whichever
// blocking modal is currently waiting for that driver. At most one modal is
// in flight per driver, enforced by the confirmation queue's single-flight
// flag.
type AckRegistry struct {
	mu      sync.Mutex
	pending map[string]chan struct{}
}

func NewAckRegistry() *AckRegistry {
	return &AckRegistry{pending: make(map[string]chan struct{})}
}

// wait registers interest in the next acknowledgment for a driver, replacing
// any stale registration.
func (r *AckRegistry) wait(driverID string) chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch := make(chan struct{}, 1)
	r.pending[driverID] = ch
	return ch
}

func (r *AckRegistry) drop(driverID string, ch chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending[driverID] == ch {
		delete(r.pending, driverID)
	}
}

// Resolve delivers an acknowledgment. Returns false when no modal was
// waiting, which the ack endpoint reports back to the app.
func (r *AckRegistry) Resolve(driverID string) bool {
	r.mu.Lock()
	ch, ok := r.pending[driverID]
	if ok {
		delete(r.pending, driverID)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	ch <- struct{}{}
	return true
}
