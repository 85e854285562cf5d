package sse

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/docprovider/pkg/notify"
)

/*
Broker streams namespace changes to SSE clients. Each change is sent as

	event: <kind>
	data: {json}

and a comment heartbeat is written in between so proxies keep the
connection open and dead clients are noticed.
*/
type Broker struct {
	hub       *notify.Hub
	heartbeat time.Duration

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

/*
NewBroker creates a broker over hub. A zero heartbeat uses 25 seconds.
*/
func NewBroker(hub *notify.Hub, heartbeat time.Duration) *Broker {
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}

	return &Broker{
		hub:       hub,
		heartbeat: heartbeat,
		done:      make(chan struct{}),
	}
}

/*
Stream returns a body writer for one client watching parentID, or every
change when parentID is empty. Changes in roots for which visible reports
false are dropped; a nil visible passes everything. The writer returns when
the client goes away or the broker is closed.
*/
func (broker *Broker) Stream(parentID string, visible func(rootID string) bool) func(w *bufio.Writer) {
	return func(w *bufio.Writer) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sub := broker.hub.Subscribe(ctx, parentID)

		ticker := time.NewTicker(broker.heartbeat)
		defer ticker.Stop()

		// Tell the client the stream is live before the first change arrives.
		if err := writeComment(w, "connected"); err != nil {
			return
		}

		for {
			select {
			case <-broker.done:
				return
			case change, ok := <-sub.C:
				if !ok {
					return
				}

				if visible != nil && !visible(change.RootID) {
					continue
				}

				if err := writeEvent(w, change); err != nil {
					log.Debug("sse client gone", "error", err)
					return
				}
			case <-ticker.C:
				if err := writeComment(w, "heartbeat"); err != nil {
					log.Debug("sse client gone", "error", err)
					return
				}
			}
		}
	}
}

func writeEvent(w *bufio.Writer, change notify.Change) error {
	msg, err := json.Marshal(change)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", change.Kind, msg); err != nil {
		return err
	}

	return w.Flush()
}

func writeComment(w *bufio.Writer, comment string) error {
	if _, err := fmt.Fprintf(w, ": %s\n\n", comment); err != nil {
		return err
	}

	return w.Flush()
}

/*
Close ends every open stream and makes new ones return immediately.
*/
func (broker *Broker) Close() {
	broker.mu.Lock()
	defer broker.mu.Unlock()

	if broker.closed {
		return
	}

	broker.closed = true
	close(broker.done)
}
