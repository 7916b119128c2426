package apiclient

import (
	"slices"
	"sync"
	"time"
)

// dismissCooldown suppresses re-triggered dialogs after a dismissal so
// rapid repeated denials do not reopen the dialog in the user's face.
const dismissCooldown = 2 * time.Second

// Notifier is a synchronous in-process pub/sub channel for gate denials.
// Subscribers are invoked on the publishing goroutine, in subscription
// order.
type Notifier struct {
	mu   sync.Mutex
	subs map[int]func(WriteBlocked)
	next int
}

func NewNotifier() *Notifier {
	return &Notifier{subs: map[int]func(WriteBlocked){}}
}

// Subscribe registers a handler and returns an unsubscribe func.
func (n *Notifier) Subscribe(fn func(WriteBlocked)) (unsubscribe func()) {
	n.mu.Lock()
	id := n.next
	n.next++
	n.subs[id] = fn
	n.mu.Unlock()

	return func() {
		n.mu.Lock()
		delete(n.subs, id)
		n.mu.Unlock()
	}
}

func (n *Notifier) Publish(event WriteBlocked) {
	n.mu.Lock()
	ids := make([]int, 0, len(n.subs))
	for id := range n.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(WriteBlocked), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, n.subs[id])
	}
	n.mu.Unlock()

	for _, fn := range fns {
		fn(event)
	}
}

// DialogController is the standard denial subscriber: it tracks whether the
// denial dialog is open and ignores triggers for dismissCooldown after a
// dismissal.
type DialogController struct {
	mu          sync.Mutex
	open        bool
	dismissedAt time.Time
	last        WriteBlocked
	now         func() time.Time
}

func NewDialogController() *DialogController {
	return &DialogController{now: time.Now}
}

// HandleDenial is the subscription entry point. It reports whether this
// event opened the dialog.
func (d *DialogController) HandleDenial(event WriteBlocked) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.open {
		d.last = event
		return false
	}
	if d.now().Sub(d.dismissedAt) < dismissCooldown {
		return false
	}
	d.open = true
	d.last = event
	return true
}

// Dismiss closes the dialog and starts the cooldown window.
func (d *DialogController) Dismiss() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return
	}
	d.open = false
	d.dismissedAt = d.now()
}

// IsOpen reports the dialog state.
func (d *DialogController) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

// Current returns the event the open dialog describes.
func (d *DialogController) Current() (WriteBlocked, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last, d.open
}
