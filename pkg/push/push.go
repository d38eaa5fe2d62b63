// Package push connects a push delivery source to the API: it obtains the
// device's push token, registers it with the backend and exposes incoming
// messages and user responses as channels owned by a Registration.
package push

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/brutalpush/pushclient/pkg/credentials"
	"github.com/brutalpush/pushclient/pkg/subscriptions"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrNoToken is returned when the source cannot provide a push token.
var ErrNoToken = errors.New("push token unavailable")

var messagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "push_messages_received_total",
	Help: "Push deliveries received by kind (message, response)",
}, []string{"kind"})

// Message is a received push notification.
type Message struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	Body       string            `json:"body"`
	Data       map[string]string `json:"data,omitempty"`
	ImageURL   string            `json:"imageUrl,omitempty"`
	ReceivedAt time.Time         `json:"receivedAt"`
}

// Response is a user interaction with a delivered notification.
type Response struct {
	Action  string  `json:"action"`
	Message Message `json:"message"`
}

// Source delivers push traffic for one device.
type Source interface {
	// Token returns the device's push token.
	Token(ctx context.Context) (string, error)
	// Listen starts delivery. Both channels are closed when ctx is done or
	// the source is closed.
	Listen(ctx context.Context) (<-chan Message, <-chan Response, error)
	// Close releases the source.
	Close() error
}

// DeviceRegistrar registers a push token with the backend.
// *subscriptions.Service implements it.
type DeviceRegistrar interface {
	RegisterDevice(ctx context.Context, deviceToken string) (*subscriptions.Device, error)
}

// Registration owns the listeners started by Register. Close stops them.
type Registration struct {
	// Token is the device's push token.
	Token string

	messages  chan Message
	responses chan Response
	devices   DeviceRegistrar
	creds     credentials.Provider
	source    Source
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
	logger    zerolog.Logger

	mu       sync.Mutex
	deviceID string
}

// Register obtains the push token from source, registers the device with the
// backend when a user is signed in, and starts listening. Device registration
// failures are logged and do not fail Register.
func Register(ctx context.Context, source Source, devices DeviceRegistrar, creds credentials.Provider) (*Registration, error) {
	logger := log.With().Str("component", "push").Logger()

	token, err := source.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoToken, err)
	}
	if token == "" {
		return nil, ErrNoToken
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	in, inResponses, err := source.Listen(listenCtx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("start push listener: %w", err)
	}

	r := &Registration{
		Token:     token,
		messages:  make(chan Message, 16),
		responses: make(chan Response, 16),
		devices:   devices,
		creds:     creds,
		source:    source,
		cancel:    cancel,
		done:      make(chan struct{}),
		logger:    logger,
	}

	go r.forward(listenCtx, in, inResponses)

	r.RegisterDevice(ctx)
	return r, nil
}

// RegisterDevice (re)registers the token with the backend if an auth token is
// stored, e.g. after login. Errors are logged only.
func (r *Registration) RegisterDevice(ctx context.Context) {
	authToken, err := r.creds.Get(ctx, credentials.KeyToken)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to read auth token")
		return
	}
	if authToken == "" {
		r.logger.Debug().Msg("Not signed in - skipping device registration")
		return
	}

	device, err := r.devices.RegisterDevice(ctx, r.Token)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to register device with API")
		return
	}

	r.mu.Lock()
	r.deviceID = device.ID
	r.mu.Unlock()
	r.logger.Info().Str("device_id", device.ID).Msg("Device registered successfully")
}

// DeviceID returns the id assigned by the backend, "" if not registered.
func (r *Registration) DeviceID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deviceID
}

// Messages delivers received notifications. Closed after Close.
func (r *Registration) Messages() <-chan Message {
	return r.messages
}

// Responses delivers user interactions. Closed after Close.
func (r *Registration) Responses() <-chan Response {
	return r.responses
}

// Close stops the listeners and closes the source. It is idempotent.
func (r *Registration) Close() error {
	r.closeOnce.Do(func() {
		r.cancel()
		<-r.done
		r.closeErr = r.source.Close()
		r.logger.Debug().Msg("Push listeners removed")
	})
	return r.closeErr
}

func (r *Registration) forward(ctx context.Context, in <-chan Message, inResponses <-chan Response) {
	defer close(r.done)
	defer close(r.messages)
	defer close(r.responses)

	for in != nil || inResponses != nil {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-in:
			if !ok {
				in = nil
				continue
			}
			messagesReceived.WithLabelValues("message").Inc()
			r.logger.Debug().Str("message_id", m.ID).Msg("Notification received")
			select {
			case r.messages <- m:
			case <-ctx.Done():
				return
			}
		case resp, ok := <-inResponses:
			if !ok {
				inResponses = nil
				continue
			}
			messagesReceived.WithLabelValues("response").Inc()
			r.logger.Debug().Str("action", resp.Action).Str("message_id", resp.Message.ID).Msg("Notification response")
			select {
			case r.responses <- resp:
			case <-ctx.Done():
				return
			}
		}
	}
}
