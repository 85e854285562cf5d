// Package notify fans namespace changes out to subscribers.
package notify

import (
	"context"
	"sync"
	"time"
)

type Kind string

const (
	Created  Kind = "created"
	Deleted  Kind = "deleted"
	Modified Kind = "modified"
)

/*
Change tells observers that the children of ParentID changed, or that
DocumentID itself was rewritten.
*/
type Change struct {
	Kind       Kind      `json:"kind"`
	RootID     string    `json:"rootId"`
	DocumentID string    `json:"documentId"`
	ParentID   string    `json:"parentId"`
	At         time.Time `json:"at"`
}

/*
Subscription receives changes on C until its context ends, at which point C
is closed.
*/
type Subscription struct {
	C      <-chan Change
	parent string
	ch     chan Change
	cancel context.CancelFunc
}

// Cancel ends the subscription early.
func (s *Subscription) Cancel() {
	s.cancel()
}

/*
Hub is a small pub/sub keyed by parent document ID. Delivery never blocks
the publisher: a subscriber whose buffer is full misses the change.
*/
type Hub struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	buffer int
}

func NewHub() *Hub {
	return &Hub{subs: map[*Subscription]struct{}{}, buffer: 16}
}

/*
Subscribe registers for changes under parentID, or for every change when
parentID is empty.
*/
func (h *Hub) Subscribe(ctx context.Context, parentID string) *Subscription {
	subCtx, cancel := context.WithCancel(ctx)
	ch := make(chan Change, h.buffer)
	s := &Subscription{C: ch, parent: parentID, ch: ch, cancel: cancel}

	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-subCtx.Done()
		h.remove(s)
	}()

	return s
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[s]; !ok {
		return
	}

	delete(h.subs, s)
	close(s.ch)
}

func (h *Hub) Publish(change Change) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for s := range h.subs {
		if s.parent != "" && s.parent != change.ParentID && s.parent != change.DocumentID {
			continue
		}

		select {
		case s.ch <- change:
		default:
		}
	}
}

// Len is the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
