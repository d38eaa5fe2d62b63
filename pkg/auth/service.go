// Package auth implements account registration, login and password reset
// against the push API, persisting the session in a credentials.Provider.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/brutalpush/pushclient/pkg/client"
	"github.com/brutalpush/pushclient/pkg/credentials"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrMissingField is returned when a required request field is blank.
var ErrMissingField = errors.New("required field is empty")

// User is the authenticated account.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Domain    string    `json:"domain"`
	APIKey    string    `json:"apiKey"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// LoginResponse is returned by register and login.
type LoginResponse struct {
	AccessToken string `json:"accessToken"`
	User        User   `json:"user"`
}

// RegisterRequest creates an account bound to a sending domain.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Domain   string `json:"domain"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// Service wraps the /users endpoints.
type Service struct {
	api    client.API
	creds  credentials.Provider
	logger zerolog.Logger
}

// NewService creates an auth service. The session is stored in the API
// client's credential provider.
func NewService(api client.API) *Service {
	return &Service{
		api:    api,
		creds:  api.Credentials(),
		logger: log.With().Str("component", "auth").Logger(),
	}
}

// Register creates an account and stores the returned session.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*LoginResponse, error) {
	if err := requireFields(map[string]string{"email": req.Email, "password": req.Password, "domain": req.Domain}); err != nil {
		return nil, err
	}

	var resp client.Envelope[LoginResponse]
	if err := s.api.PostJSON(ctx, "/users/register", req, &resp); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	if err := s.storeSession(ctx, &resp.Data); err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", resp.Data.User.ID).Str("domain", resp.Data.User.Domain).Msg("Account registered")
	return &resp.Data, nil
}

// Login authenticates and stores the returned session.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	if err := requireFields(map[string]string{"email": email, "password": password}); err != nil {
		return nil, err
	}

	var resp client.Envelope[LoginResponse]
	if err := s.api.PostJSON(ctx, "/users/login", loginRequest{Email: email, Password: password}, &resp); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if err := s.storeSession(ctx, &resp.Data); err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", resp.Data.User.ID).Msg("Logged in")
	return &resp.Data, nil
}

// ForgotPassword asks the server to email a one-time code.
func (s *Service) ForgotPassword(ctx context.Context, email string) (string, error) {
	if err := requireFields(map[string]string{"email": email}); err != nil {
		return "", err
	}

	var resp client.Envelope[messageResponse]
	if err := s.api.PostJSON(ctx, "/users/forgot-password", map[string]string{"email": email}, &resp); err != nil {
		return "", fmt.Errorf("forgot password: %w", err)
	}
	return resp.Data.Message, nil
}

// ResetPassword sets a new password using the emailed code.
func (s *Service) ResetPassword(ctx context.Context, otp, newPassword string) (string, error) {
	if err := requireFields(map[string]string{"otp": otp, "newPassword": newPassword}); err != nil {
		return "", err
	}

	var resp client.Envelope[messageResponse]
	body := map[string]string{"otp": otp, "newPassword": newPassword}
	if err := s.api.PostJSON(ctx, "/users/reset-password", body, &resp); err != nil {
		return "", fmt.Errorf("reset password: %w", err)
	}
	return resp.Data.Message, nil
}

// Logout forgets the stored session.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.creds.Clear(ctx, credentials.KeyToken, credentials.KeyAPIKey, credentials.KeyUser); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	s.logger.Info().Msg("Logged out")
	return nil
}

// Me fetches the current user and refreshes the stored API key.
func (s *Service) Me(ctx context.Context) (*User, error) {
	var resp client.Envelope[User]
	if err := s.api.GetJSON(ctx, "/users/me", nil, &resp); err != nil {
		return nil, fmt.Errorf("get current user: %w", err)
	}

	if err := s.creds.Set(ctx, credentials.KeyAPIKey, resp.Data.APIKey); err != nil {
		return nil, fmt.Errorf("store api key: %w", err)
	}
	if err := s.storeUser(ctx, &resp.Data); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// IsAuthenticated reports whether a token is stored. It does not validate it.
func (s *Service) IsAuthenticated(ctx context.Context) (bool, error) {
	token, err := s.creds.Get(ctx, credentials.KeyToken)
	if err != nil {
		return false, fmt.Errorf("read token: %w", err)
	}
	return token != "", nil
}

// CachedUser returns the user stored by the last login or Me call, or nil.
func (s *Service) CachedUser(ctx context.Context) (*User, error) {
	raw, err := s.creds.Get(ctx, credentials.KeyUser)
	if err != nil {
		return nil, fmt.Errorf("read user: %w", err)
	}
	if raw == "" {
		return nil, nil
	}
	var u User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, fmt.Errorf("decode stored user: %w", err)
	}
	return &u, nil
}

func (s *Service) storeSession(ctx context.Context, resp *LoginResponse) error {
	if resp.AccessToken == "" {
		return fmt.Errorf("server returned no access token")
	}
	if err := s.creds.Set(ctx, credentials.KeyToken, resp.AccessToken); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	if err := s.creds.Set(ctx, credentials.KeyAPIKey, resp.User.APIKey); err != nil {
		return fmt.Errorf("store api key: %w", err)
	}
	return s.storeUser(ctx, &resp.User)
}

func (s *Service) storeUser(ctx context.Context, u *User) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	if err := s.creds.Set(ctx, credentials.KeyUser, string(raw)); err != nil {
		return fmt.Errorf("store user: %w", err)
	}
	return nil
}

// requireFields reports the blank fields in a stable order.
func requireFields(fields map[string]string) error {
	var missing []string
	for _, name := range []string{"email", "password", "domain", "otp", "newPassword"} {
		if v, ok := fields[name]; ok && strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingField, strings.Join(missing, ", "))
	}
	return nil
}
