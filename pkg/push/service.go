package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/docprovider/pkg/notify"
)

// Config registers a webhook for changes under ParentID, or for every change
// when ParentID is empty.
type Config struct {
	ID       string `json:"id" mapstructure:"id"`
	URL      string `json:"url" mapstructure:"url"`
	ParentID string `json:"parentId,omitempty" mapstructure:"parent"`
	Token    string `json:"token,omitempty" mapstructure:"token"`
}

// Service forwards namespace changes to webhooks
type Service struct {
	mu            sync.RWMutex
	configs       map[string]Config
	client        *http.Client
	retryQueue    chan *notificationRequest
	maxRetries    int
	retryInterval time.Duration
}

// notificationRequest represents a notification to be sent
type notificationRequest struct {
	config    Config
	change    notify.Change
	retries   int
	timestamp time.Time
}

type Option func(*Service)

// WithRetry sets how often and how far apart failed deliveries are retried.
func WithRetry(maxRetries int, interval time.Duration) Option {
	return func(s *Service) {
		s.maxRetries = maxRetries
		s.retryInterval = interval
	}
}

// NewService creates a new push notification service
func NewService(opts ...Option) *Service {
	service := &Service{
		configs:       make(map[string]Config),
		client:        &http.Client{Timeout: time.Second * 10},
		retryQueue:    make(chan *notificationRequest, 1000),
		maxRetries:    3,
		retryInterval: time.Second * 5,
	}

	for _, opt := range opts {
		opt(service)
	}

	// Start the retry worker
	go service.retryWorker()

	return service
}

// SetConfig sets or updates a webhook
func (s *Service) SetConfig(config Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if config.ID == "" {
		config.ID = config.URL
	}

	s.configs[config.ID] = config
}

// GetConfig retrieves a webhook by ID
func (s *Service) GetConfig(id string) (Config, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	config, exists := s.configs[id]
	return config, exists
}

/*
Run forwards every change published on hub until ctx ends.
*/
func (s *Service) Run(ctx context.Context, hub *notify.Hub) {
	sub := hub.Subscribe(ctx, "")

	for change := range sub.C {
		s.Publish(change)
	}
}

// Publish sends change to every webhook whose filter matches it.
func (s *Service) Publish(change notify.Change) {
	s.mu.RLock()
	targets := make([]Config, 0, len(s.configs))
	for _, config := range s.configs {
		if config.ParentID == "" || config.ParentID == change.ParentID || config.ParentID == change.DocumentID {
			targets = append(targets, config)
		}
	}
	s.mu.RUnlock()

	for _, config := range targets {
		if err := s.SendNotification(config, change); err != nil {
			log.Warn("webhook delivery failed, queued for retry", "url", config.URL, "error", err)
			s.enqueue(&notificationRequest{config: config, change: change, timestamp: time.Now()})
		}
	}
}

// SendNotification delivers one change to one webhook
func (s *Service) SendNotification(config Config, change notify.Change) error {
	data, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to marshal change: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, config.URL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+config.Token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return nil
}

func (s *Service) enqueue(req *notificationRequest) {
	select {
	case s.retryQueue <- req:
	default:
		log.Error("retry queue full, dropping notification", "url", req.config.URL)
	}
}

// retryWorker processes the retry queue
func (s *Service) retryWorker() {
	for req := range s.retryQueue {
		// Check if we should retry
		if req.retries >= s.maxRetries {
			log.Error("Max retries reached for notification", "url", req.config.URL)
			continue
		}

		// Wait for the retry interval
		time.Sleep(s.retryInterval)

		if err := s.SendNotification(req.config, req.change); err != nil {
			req.retries++
			req.timestamp = time.Now()
			s.enqueue(req)
		}
	}
}
