package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/docprovider/pkg/errors"
)

// Event is one frame read off a text/event-stream body.
type Event struct {
	ID    string
	Event string
	Data  []byte
}

/*
EventStream follows a server-sent event endpoint, reconnecting with
exponential backoff when the server drops the connection. Retries reset
once a connection delivers an event.
*/
type EventStream struct {
	URL        string
	Headers    map[string]string
	MaxRetries int
	BaseDelay  time.Duration

	http *http.Client
}

func NewEventStream(url string) *EventStream {
	return &EventStream{
		URL:        url,
		Headers:    make(map[string]string),
		MaxRetries: 3,
		BaseDelay:  time.Second,
		// The stream outlives any request timeout.
		http: &http.Client{},
	}
}

/*
Subscribe calls handler for every event until ctx ends, the retries run
out, or the server refuses the stream. A refused stream is returned as
*StatusError so callers can map it to a document error.
*/
func (stream *EventStream) Subscribe(ctx context.Context, handler func(*Event)) error {
	var (
		retries int
		lastID  string
	)

	for {
		body, err := stream.connect(ctx, lastID)

		if err == nil {
			var received int
			lastID, received, err = stream.read(ctx, body, lastID, handler)
			body.Close()

			if received > 0 {
				retries = 0
			}
		}

		if ctx.Err() != nil {
			return nil
		}

		if _, refused := errors.As[*StatusError](err); refused {
			return err
		}

		if retries >= stream.MaxRetries {
			return fmt.Errorf("event stream: giving up after %d retries: %w", retries, err)
		}

		delay := stream.BaseDelay * time.Duration(1<<retries)
		retries++

		log.Debug("event stream reconnecting", "url", stream.URL, "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

// StatusError is a non-2xx answer to the stream request.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d, body: %s", e.Code, e.Body)
}

func (stream *EventStream) connect(ctx context.Context, lastID string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, stream.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if lastID != "" {
		req.Header.Set("Last-Event-ID", lastID)
	}
	for k, v := range stream.Headers {
		req.Header.Set(k, v)
	}

	resp, err := stream.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	return resp.Body, nil
}

/*
read dispatches frames until the body ends, returning the last seen id and
how many events were handled.
*/
func (stream *EventStream) read(
	ctx context.Context, body io.Reader, lastID string, handler func(*Event),
) (string, int, error) {
	reader := bufio.NewReader(body)
	received := 0

	for {
		event, err := readEvent(reader)
		if err != nil {
			if err == io.ErrUnexpectedEOF {
				err = io.EOF
			}
			return lastID, received, err
		}

		if ctx.Err() != nil {
			return lastID, received, ctx.Err()
		}

		if event.ID != "" {
			lastID = event.ID
		}

		received++
		handler(event)
	}
}

// readEvent reads one blank-line terminated frame, skipping comments.
func readEvent(reader *bufio.Reader) (*Event, error) {
	event := &Event{}

	var (
		data    strings.Builder
		inEvent bool
	)

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil, err
		}

		line = strings.TrimRight(line, "\n\r")

		if line == "" {
			if inEvent {
				event.Data = []byte(data.String())
				return event, nil
			}
			continue
		}

		switch {
		case strings.HasPrefix(line, ":"):
			continue
		case strings.HasPrefix(line, "id:"):
			event.ID = strings.TrimSpace(line[3:])
		case strings.HasPrefix(line, "event:"):
			event.Event = strings.TrimSpace(line[6:])
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteString("\n")
			}
			data.WriteString(strings.TrimPrefix(line[5:], " "))
		}

		inEvent = true
	}
}
