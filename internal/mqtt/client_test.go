package mqtt

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/birdo-app/birdo/internal/errors"
	"github.com/birdo-app/birdo/internal/events"
	"github.com/birdo-app/birdo/internal/logger"
)

type fakeToken struct {
	err  error
	done chan struct{}
}

func newToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type message struct {
	topic   string
	retain  bool
	payload []byte
}

type fakeConn struct {
	mu         sync.Mutex
	connected  bool
	connectErr error
	publishErr error
	published  []message
	opts       *paho.ClientOptions
}

func (f *fakeConn) Connect() paho.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = f.connectErr == nil
	return newToken(f.connectErr)
}

func (f *fakeConn) Publish(topic string, _ byte, retained bool, payload any) paho.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, message{topic: topic, retain: retained, payload: payload.([]byte)})
	return newToken(f.publishErr)
}

func (f *fakeConn) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeConn) Disconnect(uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
}

func newTestClient(t *testing.T, fake *fakeConn) *Client {
	t.Helper()
	c, err := NewClient(Config{Broker: "tcp://127.0.0.1:1883", ClientID: "birdo-test"},
		logger.NewSlogLogger(io.Discard, logger.LogLevelDebug, time.UTC))
	require.NoError(t, err)
	c.newConn = func(opts *paho.ClientOptions) conn {
		fake.opts = opts
		return fake
	}
	return c
}

func TestNewClientValidatesBroker(t *testing.T) {
	log := logger.NewSlogLogger(io.Discard, logger.LogLevelInfo, time.UTC)
	for _, broker := range []string{"", "localhost:1883", "http://broker:1883"} {
		_, err := NewClient(Config{Broker: broker}, log)
		require.Error(t, err, broker)
		assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
	}
}

func TestConnectAndPublish(t *testing.T) {
	fake := &fakeConn{}
	c := newTestClient(t, fake)

	require.NoError(t, c.Connect(t.Context()))
	assert.True(t, c.IsConnected())
	assert.Equal(t, "birdo-test", fake.opts.ClientID)

	require.NoError(t, c.Publish(t.Context(), "birdo/observations", []byte(`{}`), true))
	require.Len(t, fake.published, 1)
	assert.True(t, fake.published[0].retain)

	c.Disconnect()
	assert.False(t, c.IsConnected())
}

func TestPublishWhileDisconnected(t *testing.T) {
	c := newTestClient(t, &fakeConn{})
	err := c.Publish(t.Context(), "birdo/observations", []byte(`{}`), false)
	require.Error(t, err)
	assert.True(t, errors.IsNetwork(err))
}

func TestConnectError(t *testing.T) {
	c := newTestClient(t, &fakeConn{connectErr: stderrors.New("not authorized")})
	require.Error(t, c.Connect(t.Context()))
	assert.False(t, c.IsConnected())
}

func TestPublisherConsumer(t *testing.T) {
	fake := &fakeConn{}
	c := newTestClient(t, fake)
	require.NoError(t, c.Connect(t.Context()))

	p := NewPublisher(c, "birdo/observations", false)
	assert.Equal(t, "mqtt", p.Name())

	err := p.ProcessEvent(t.Context(), events.ObservationSaved{
		ID:        "obs-1",
		Animal:    "elephant",
		Species:   "African Bush elephant",
		Country:   "Kenya",
		Quantity:  1,
		Latitude:  10,
		Longitude: 20,
		SavedAt:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, fake.published, 1)
	assert.Equal(t, "birdo/observations", fake.published[0].topic)

	var got map[string]any
	require.NoError(t, json.Unmarshal(fake.published[0].payload, &got))
	assert.Equal(t, "Kenya", got["location"])
	assert.Equal(t, []any{10.0, 20.0}, got["coordinates"])
	assert.Equal(t, "2024-05-01T12:00:00Z", got["saved_at"])
}

func TestPublisherSurfacesBrokerError(t *testing.T) {
	fake := &fakeConn{publishErr: stderrors.New("queue full")}
	c := newTestClient(t, fake)
	require.NoError(t, c.Connect(t.Context()))

	err := NewPublisher(c, "t", false).ProcessEvent(t.Context(), events.ObservationSaved{ID: "x"})
	assert.Error(t, err)
}
