// Package subscriptions manages the user's topic subscriptions and device
// registration on the push API.
package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/brutalpush/pushclient/pkg/client"
	"github.com/brutalpush/pushclient/pkg/credentials"
	"github.com/brutalpush/pushclient/pkg/listing"
	"github.com/brutalpush/pushclient/pkg/pagination"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Resource is the list endpoint.
const Resource = "/subscriptions"

// DefaultPerPage is the page size used by the subscriptions screen.
const DefaultPerPage = 20

// User-facing fallbacks when the server gives no message.
const (
	LoadFailedMessage     = "Falha ao carregar subscrições"
	LoadMoreFailedMessage = "Falha ao carregar mais subscrições"
)

var (
	// ErrEmptyTopic is returned when a topic name is blank.
	ErrEmptyTopic = errors.New("topic name is required")
	// ErrEmptyID is returned when a subscription id is blank.
	ErrEmptyID = errors.New("subscription id is required")
	// ErrEmptyDeviceToken is returned when a device token is blank.
	ErrEmptyDeviceToken = errors.New("device token is required")
)

// Subscription is a user's subscription to a topic.
type Subscription struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	TopicName string    `json:"topicName"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Device is a push token registered for the current user.
type Device struct {
	ID          string    `json:"id"`
	DeviceToken string    `json:"deviceToken"`
	UserID      string    `json:"userId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Service talks to the subscription endpoints.
type Service struct {
	api    client.API
	logger zerolog.Logger
}

// NewService creates a subscription service on top of an API client.
func NewService(api client.API) *Service {
	return &Service{
		api:    api,
		logger: log.With().Str("component", "subscriptions").Logger(),
	}
}

// Create subscribes the user to topicName.
func (s *Service) Create(ctx context.Context, topicName string) (*Subscription, error) {
	topicName = strings.TrimSpace(topicName)
	if topicName == "" {
		return nil, ErrEmptyTopic
	}

	var resp client.Envelope[Subscription]
	if err := s.api.PostJSON(ctx, Resource, map[string]string{"topicName": topicName}, &resp); err != nil {
		return nil, fmt.Errorf("create subscription %q: %w", topicName, err)
	}

	s.logger.Info().Str("topic", topicName).Str("id", resp.Data.ID).Msg("Subscription created")
	return &resp.Data, nil
}

// Delete removes a subscription by id.
func (s *Service) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrEmptyID
	}

	if err := s.api.Delete(ctx, Resource+"/"+url.PathEscape(id), nil); err != nil {
		return fmt.Errorf("delete subscription %s: %w", id, err)
	}

	s.logger.Info().Str("id", id).Msg("Subscription deleted")
	return nil
}

// ByTopic returns the first page of subscriptions filtered by topic name.
func (s *Service) ByTopic(ctx context.Context, topicName string) (pagination.Page[Subscription], error) {
	topicName = strings.TrimSpace(topicName)
	if topicName == "" {
		return pagination.Page[Subscription]{}, ErrEmptyTopic
	}
	return s.Fetcher().
		WithQuery(url.Values{"topicName": {topicName}}).
		FetchPage(ctx, 1, DefaultPerPage)
}

// Fetcher returns the page fetch client for the subscription list.
func (s *Service) Fetcher() *pagination.ResourceFetcher[Subscription] {
	return pagination.NewResourceFetcher[Subscription](s.api, Resource)
}

// NewController returns a list controller for the subscriptions screen.
func (s *Service) NewController() *listing.Controller[Subscription] {
	return listing.New[Subscription](s.Fetcher(), listing.Options{
		Name:                  "subscriptions",
		LoadFailedMessage:     LoadFailedMessage,
		LoadMoreFailedMessage: LoadMoreFailedMessage,
	})
}

// RegisterDevice registers a push token for the current user and stores the
// returned device id.
func (s *Service) RegisterDevice(ctx context.Context, deviceToken string) (*Device, error) {
	if deviceToken == "" {
		return nil, ErrEmptyDeviceToken
	}

	var resp client.Envelope[Device]
	if err := s.api.PostJSON(ctx, Resource+"/devices", map[string]string{"deviceToken": deviceToken}, &resp); err != nil {
		return nil, fmt.Errorf("register device: %w", err)
	}

	if err := s.api.Credentials().Set(ctx, credentials.KeyDeviceID, resp.Data.ID); err != nil {
		return nil, fmt.Errorf("store device id: %w", err)
	}

	s.logger.Info().Str("device_id", resp.Data.ID).Msg("Device registered")
	return &resp.Data, nil
}
