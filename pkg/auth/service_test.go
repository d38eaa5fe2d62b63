package auth

import (
	"context"
	"net/http"
	"testing"

	"github.com/brutalpush/pushclient/internal/testutil"
	"github.com/brutalpush/pushclient/pkg/client"
	"github.com/brutalpush/pushclient/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *testutil.MockAPI, credentials.Provider) {
	t.Helper()

	mock := testutil.NewMockAPI()
	t.Cleanup(mock.Close)

	creds := credentials.NewMemoryStore()
	api, err := client.New(client.DefaultConfig(mock.URL(), creds))
	require.NoError(t, err)
	t.Cleanup(func() { api.Close() })

	return NewService(api), mock, creds
}

func get(t *testing.T, creds credentials.Provider, key string) string {
	t.Helper()
	v, err := creds.Get(context.Background(), key)
	require.NoError(t, err)
	return v
}

func TestService_RegisterStoresSession(t *testing.T) {
	svc, _, creds := newTestService(t)
	ctx := context.Background()

	resp, err := svc.Register(ctx, RegisterRequest{Email: "a@example.com", Password: "secret1", Domain: "example.com"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "example.com", resp.User.Domain)

	assert.Equal(t, resp.AccessToken, get(t, creds, credentials.KeyToken))
	assert.Equal(t, resp.User.APIKey, get(t, creds, credentials.KeyAPIKey))

	cached, err := svc.CachedUser(ctx)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, resp.User.ID, cached.ID)

	ok, err := svc.IsAuthenticated(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestService_RegisterValidationMessages(t *testing.T) {
	svc, _, creds := newTestService(t)

	_, err := svc.Register(context.Background(), RegisterRequest{Email: "not-an-email", Password: "123", Domain: "x"})

	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "email must be an email; password must be longer than or equal to 6 characters", apiErr.Message)
	assert.Empty(t, get(t, creds, credentials.KeyToken))
}

func TestService_RequiredFields(t *testing.T) {
	svc, mock, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{Email: "a@example.com"})
	assert.ErrorIs(t, err, ErrMissingField)
	assert.EqualError(t, err, "required field is empty: password, domain")

	_, err = svc.Login(ctx, "", "")
	assert.ErrorIs(t, err, ErrMissingField)

	_, err = svc.ForgotPassword(ctx, " ")
	assert.ErrorIs(t, err, ErrMissingField)

	_, err = svc.ResetPassword(ctx, "", "newpass")
	assert.EqualError(t, err, "required field is empty: otp")

	assert.Zero(t, mock.RequestCount("", ""))
}

func TestService_LoginAndMe(t *testing.T) {
	svc, mock, creds := newTestService(t)
	ctx := context.Background()
	mock.AddUser("b@example.com", "secret1", "b.example.com")

	_, err := svc.Login(ctx, "b@example.com", "wrong")
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Invalid credentials", apiErr.Message)

	resp, err := svc.Login(ctx, "b@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "b@example.com", resp.User.Email)

	// Me sends the stored bearer token.
	require.NoError(t, creds.Set(ctx, credentials.KeyAPIKey, "stale"))
	me, err := svc.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, me.ID)
	assert.Equal(t, "Bearer "+resp.AccessToken, mock.LastRequestHeader().Get("Authorization"))
	assert.Equal(t, me.APIKey, get(t, creds, credentials.KeyAPIKey))
}

func TestService_Logout(t *testing.T) {
	svc, mock, creds := newTestService(t)
	ctx := context.Background()
	mock.AddUser("c@example.com", "secret1", "c.example.com")

	_, err := svc.Login(ctx, "c@example.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, creds.Set(ctx, credentials.KeyDeviceID, "dev-1"))

	require.NoError(t, svc.Logout(ctx))
	for _, key := range []string{credentials.KeyToken, credentials.KeyAPIKey, credentials.KeyUser} {
		assert.Empty(t, get(t, creds, key), key)
	}
	assert.Equal(t, "dev-1", get(t, creds, credentials.KeyDeviceID))

	ok, err := svc.IsAuthenticated(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	cached, err := svc.CachedUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestService_PasswordReset(t *testing.T) {
	svc, mock, _ := newTestService(t)
	ctx := context.Background()
	mock.AddUser("d@example.com", "oldpass", "d.example.com")

	msg, err := svc.ForgotPassword(ctx, "d@example.com")
	require.NoError(t, err)
	assert.Equal(t, "OTP sent to email", msg)

	_, err = svc.ResetPassword(ctx, "000000", "newpass")
	assert.Equal(t, "Invalid or expired OTP", client.UserMessage(err, ""))

	msg, err = svc.ResetPassword(ctx, testutil.ValidOTP, "newpass")
	require.NoError(t, err)
	assert.Equal(t, "Password reset successfully", msg)

	_, err = svc.Login(ctx, "d@example.com", "newpass")
	assert.NoError(t, err)
}
