package push

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/brutalpush/pushclient/internal/testutil"
	"github.com/brutalpush/pushclient/pkg/client"
	"github.com/brutalpush/pushclient/pkg/credentials"
	"github.com/brutalpush/pushclient/pkg/subscriptions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRegistrar struct {
	tokens []string
	err    error
}

func (f *fakeRegistrar) RegisterDevice(_ context.Context, token string) (*subscriptions.Device, error) {
	f.tokens = append(f.tokens, token)
	if f.err != nil {
		return nil, f.err
	}
	return &subscriptions.Device{ID: "dev-1", DeviceToken: token}, nil
}

type failingSource struct {
	*StaticSource
	tokenErr  error
	listenErr error
}

func (f *failingSource) Token(ctx context.Context) (string, error) {
	if f.tokenErr != nil {
		return "", f.tokenErr
	}
	return f.StaticSource.Token(ctx)
}

func (f *failingSource) Listen(ctx context.Context) (<-chan Message, <-chan Response, error) {
	if f.listenErr != nil {
		return nil, nil, f.listenErr
	}
	return f.StaticSource.Listen(ctx)
}

func signedIn(t *testing.T) credentials.Provider {
	t.Helper()
	creds := credentials.NewMemoryStore()
	require.NoError(t, creds.Set(context.Background(), credentials.KeyToken, "tok"))
	return creds
}

func TestRegister_RegistersDeviceWhenSignedIn(t *testing.T) {
	src := NewStaticSource("ExponentPushToken[1]")
	devices := &fakeRegistrar{}

	reg, err := Register(context.Background(), src, devices, signedIn(t))
	require.NoError(t, err)
	defer reg.Close()

	assert.Equal(t, "ExponentPushToken[1]", reg.Token)
	assert.Equal(t, []string{"ExponentPushToken[1]"}, devices.tokens)
	assert.Equal(t, "dev-1", reg.DeviceID())
}

func TestRegister_SkipsDeviceWhenSignedOut(t *testing.T) {
	devices := &fakeRegistrar{}

	reg, err := Register(context.Background(), NewStaticSource("t"), devices, credentials.NewMemoryStore())
	require.NoError(t, err)
	defer reg.Close()

	assert.Empty(t, devices.tokens)
	assert.Empty(t, reg.DeviceID())
}

func TestRegister_DeviceErrorIsNotFatal(t *testing.T) {
	devices := &fakeRegistrar{err: errors.New("backend down")}

	reg, err := Register(context.Background(), NewStaticSource("t"), devices, signedIn(t))
	require.NoError(t, err)
	defer reg.Close()

	assert.Len(t, devices.tokens, 1)
	assert.Empty(t, reg.DeviceID())
}

func TestRegister_SourceErrors(t *testing.T) {
	_, err := Register(context.Background(), NewStaticSource(""), &fakeRegistrar{}, signedIn(t))
	assert.ErrorIs(t, err, ErrNoToken)

	src := &failingSource{StaticSource: NewStaticSource("t"), tokenErr: errors.New("permission denied")}
	_, err = Register(context.Background(), src, &fakeRegistrar{}, signedIn(t))
	assert.ErrorIs(t, err, ErrNoToken)

	src = &failingSource{StaticSource: NewStaticSource("t"), listenErr: errors.New("broker gone")}
	devices := &fakeRegistrar{}
	_, err = Register(context.Background(), src, devices, signedIn(t))
	assert.ErrorContains(t, err, "broker gone")
	assert.Empty(t, devices.tokens)
}

func TestRegistration_DeliversAndCloses(t *testing.T) {
	src := NewStaticSource("t")
	reg, err := Register(context.Background(), src, &fakeRegistrar{}, credentials.NewMemoryStore())
	require.NoError(t, err)

	require.True(t, src.Deliver(Message{ID: "m1", Title: "Hi"}))
	select {
	case m := <-reg.Messages():
		assert.Equal(t, "m1", m.ID)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "message not delivered")
	}

	require.True(t, src.Respond(Response{Action: "open", Message: Message{ID: "m1"}}))
	select {
	case r := <-reg.Responses():
		assert.Equal(t, "open", r.Action)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "response not delivered")
	}

	require.NoError(t, reg.Close())
	require.NoError(t, reg.Close())

	_, ok := <-reg.Messages()
	assert.False(t, ok)
	_, ok = <-reg.Responses()
	assert.False(t, ok)
	assert.False(t, src.Deliver(Message{ID: "late"}))
}

func TestRegistration_ReregisterAfterLogin(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	creds := credentials.NewMemoryStore()
	api, err := client.New(client.DefaultConfig(mock.URL(), creds))
	require.NoError(t, err)
	defer api.Close()
	devices := subscriptions.NewService(api)
	ctx := context.Background()

	reg, err := Register(ctx, NewStaticSource("ExponentPushToken[2]"), devices, creds)
	require.NoError(t, err)
	defer reg.Close()
	assert.Empty(t, mock.Devices())

	require.NoError(t, creds.Set(ctx, credentials.KeyToken, mock.AddUser("p@example.com", "secret1", "p.example.com")))
	reg.RegisterDevice(ctx)

	assert.Equal(t, []string{"ExponentPushToken[2]"}, mock.Devices())
	stored, err := creds.Get(ctx, credentials.KeyDeviceID)
	require.NoError(t, err)
	assert.Equal(t, reg.DeviceID(), stored)
}

func TestDecodeDelivery(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	msg, resp, err := decodeDelivery([]byte(`{"id":"m1","title":"T","body":"B","data":{"k":"v"}}`), now)
	require.NoError(t, err)
	assert.Nil(t, resp)
	assert.Equal(t, Message{ID: "m1", Title: "T", Body: "B", Data: map[string]string{"k": "v"}, ReceivedAt: now}, msg)

	_, resp, err = decodeDelivery([]byte(`{"id":"m2","action":"dismiss"}`), now)
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, "dismiss", resp.Action)
	assert.Equal(t, "m2", resp.Message.ID)

	_, _, err = decodeDelivery([]byte(`not json`), now)
	assert.Error(t, err)

	_, _, err = decodeDelivery([]byte(`{"title":"no id"}`), now)
	assert.EqualError(t, err, "push delivery has no id")
}

func TestDialAMQP_RequiresURL(t *testing.T) {
	_, err := DialAMQP(AMQPConfig{})
	assert.EqualError(t, err, "amqp url is required")
}
