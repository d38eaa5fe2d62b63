// Package notifications sends push notifications and lists the delivery history.
package notifications

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/brutalpush/pushclient/pkg/client"
	"github.com/brutalpush/pushclient/pkg/listing"
	"github.com/brutalpush/pushclient/pkg/pagination"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// Resource is the history list endpoint.
	Resource = "/notifications"
	// DefaultPerPage is the history page size.
	DefaultPerPage = 50

	LoadFailedMessage     = "Falha ao carregar notificações"
	LoadMoreFailedMessage = "Falha ao carregar mais notificações"
)

// ErrInvalidRequest wraps every SendRequest validation failure.
var ErrInvalidRequest = errors.New("invalid notification")

// Record is one entry of the notification history.
type Record struct {
	ID        string            `json:"id"`
	Domain    string            `json:"domain"`
	TopicName string            `json:"topicName"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
	ImageURL  string            `json:"imageUrl,omitempty"`
	Status    string            `json:"status"`
	CreatedAt time.Time         `json:"createdAt"`
}

// SendRequest is the payload of POST /notifications/send.
type SendRequest struct {
	Domain    string            `json:"domain"`
	TopicName string            `json:"topicName"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
	ImageURL  string            `json:"imageUrl,omitempty"`
}

// Validate checks the required fields and the image URL.
func (r SendRequest) Validate() error {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"domain", r.Domain},
		{"topicName", r.TopicName},
		{"title", r.Title},
		{"body", r.Body},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidRequest, strings.Join(missing, ", "))
	}

	if r.ImageURL != "" {
		u, err := url.Parse(r.ImageURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: imageUrl must be an absolute http(s) url", ErrInvalidRequest)
		}
	}
	return nil
}

// SendResult is the server's answer to a send.
type SendResult struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Service talks to the notification endpoints.
type Service struct {
	api    client.API
	logger zerolog.Logger
}

// NewService creates a notification service on top of an API client.
func NewService(api client.API) *Service {
	return &Service{
		api:    api,
		logger: log.With().Str("component", "notifications").Logger(),
	}
}

// Send validates req and submits it for fan-out to the topic's subscribers.
// A result with Success false is returned as an error.
func (s *Service) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var resp client.Envelope[SendResult]
	if err := s.api.PostJSON(ctx, Resource+"/send", req, &resp); err != nil {
		return nil, fmt.Errorf("send notification: %w", err)
	}

	result := resp.Data
	if !result.Success {
		msg := result.Error
		if msg == "" {
			msg = "server reported failure"
		}
		return &result, fmt.Errorf("send notification: %s", msg)
	}

	s.logger.Info().
		Str("topic", req.TopicName).
		Str("domain", req.Domain).
		Str("message_id", result.MessageID).
		Msg("Notification sent")
	return &result, nil
}

// Fetcher returns the page fetch client for the notification history.
func (s *Service) Fetcher() *pagination.ResourceFetcher[Record] {
	return pagination.NewResourceFetcher[Record](s.api, Resource)
}

// NewController returns a list controller for the notification history.
func (s *Service) NewController() *listing.Controller[Record] {
	return listing.New[Record](s.Fetcher(), listing.Options{
		Name:                  "notifications",
		LoadFailedMessage:     LoadFailedMessage,
		LoadMoreFailedMessage: LoadMoreFailedMessage,
	})
}
