package snapshot

import "sync"

// Subscribe registers a listener and returns its channel and an unsubscribe
// func. Unsubscribing closes the channel; calling it again is a no-op.
func (h *Holder) Subscribe() (<-chan string, func()) {
	ch := make(subCh, 1)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			close(ch)
			h.mu.Unlock()
		})
	}
	return ch, unsub
}

// Subscribers returns the number of live subscriptions.
func (h *Holder) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// publish notifies all listeners without blocking.
func (h *Holder) publish(etag string) {
	h.mu.Lock()
	for ch := range h.subs {
		select {
		case ch <- etag:
		default: // slow client, skip instead of blocking
		}
	}
	h.mu.Unlock()
}
