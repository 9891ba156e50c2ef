package realtime

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/techsoc/backend/internal/models"
)

func staticAuth(role models.Role) Authenticator {
	return func(token string) (uuid.UUID, models.Role, error) {
		if token != "good" {
			return uuid.Nil, "", errors.New("bad token")
		}
		return uuid.New(), role, nil
	}
}

func newFeedServer(t *testing.T, hub *Hub, role models.Role) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", ServeWs(hub, zap.NewNop(), staticAuth(role), nil))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, eventID uuid.UUID) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?event_id=" + eventID.String() + "&token=good"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestServeWs_Rejections(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)
	srv := newFeedServer(t, hub, models.RoleStudent)

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"missing params", "", http.StatusBadRequest},
		{"bad event id", "?event_id=nope&token=good", http.StatusBadRequest},
		{"bad token", "?event_id=" + uuid.NewString() + "&token=bad", http.StatusUnauthorized},
		{"student", "?event_id=" + uuid.NewString() + "&token=good", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(srv.URL + "/ws" + tt.query)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestHub_LocalBroadcast(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)
	srv := newFeedServer(t, hub, models.RoleAdmin)
	eventID, otherID := uuid.New(), uuid.New()

	conn := dial(t, srv, eventID)
	other := dial(t, srv, otherID)
	require.Eventually(t, func() bool {
		return hub.ClientCount(eventID) == 1 && hub.ClientCount(otherID) == 1
	}, 2*time.Second, 10*time.Millisecond)

	hub.BroadcastToEventAndPublish(eventID, "checkin", map[string]string{"user_name": "Grace"})

	msg := readMessage(t, conn)
	assert.Equal(t, "checkin", msg.Event)
	assert.JSONEq(t, `{"user_name":"Grace"}`, string(msg.Data))

	require.NoError(t, other.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	var none WSMessage
	assert.Error(t, other.ReadJSON(&none))
}

func TestHub_UnregisterOnClose(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)
	srv := newFeedServer(t, hub, models.RoleSuperAdmin)
	eventID := uuid.New()

	conn := dial(t, srv, eventID)
	require.Eventually(t, func() bool { return hub.ClientCount(eventID) == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.ClientCount(eventID) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_CrossInstanceViaRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	newPubSub := func() *RedisPubSub {
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		return NewRedisPubSub(client, zap.NewNop())
	}
	psA, psB := newPubSub(), newPubSub()
	hubA := NewHub(zap.NewNop(), psA, psA)
	hubB := NewHub(zap.NewNop(), psB, psB)
	t.Cleanup(hubA.Close)
	t.Cleanup(hubB.Close)

	srv := newFeedServer(t, hubA, models.RoleAdmin)
	eventID := uuid.New()
	conn := dial(t, srv, eventID)
	require.Eventually(t, func() bool {
		return hubA.ClientCount(eventID) == 1 && len(mr.PubSubChannels(Channel(eventID))) == 1
	}, 2*time.Second, 10*time.Millisecond)

	hubB.BroadcastToEventAndPublish(eventID, "checkin", map[string]int{"xp_awarded": 100})

	msg := readMessage(t, conn)
	assert.Equal(t, "checkin", msg.Event)
	assert.JSONEq(t, `{"xp_awarded":100}`, string(msg.Data))
}

func TestChannel(t *testing.T) {
	id := uuid.MustParse("7f3c2a9e-1b4d-4c8e-9a2f-5d6e7f8a9b0c")
	assert.Equal(t, "event:7f3c2a9e-1b4d-4c8e-9a2f-5d6e7f8a9b0c", Channel(id))
}

type okPublisher struct{ published int }

func (p *okPublisher) PublishEvent(uuid.UUID, string, []byte) error {
	p.published++
	return nil
}

type failingSubscriber struct{}

func (failingSubscriber) SubscribeEvent(uuid.UUID, func(string, []byte)) (func(), error) {
	return nil, errors.New("redis: connection refused")
}

func TestHub_BroadcastsLocallyWhenSubscribeFailed(t *testing.T) {
	pub := &okPublisher{}
	hub := NewHub(zap.NewNop(), pub, failingSubscriber{})
	eventID := uuid.New()
	client := &Client{ID: "op-1", EventID: eventID, send: make(chan WSMessage, 1)}
	hub.Register(client)

	hub.BroadcastToEventAndPublish(eventID, "checkin", map[string]int{"xp_awarded": 100})

	assert.Equal(t, 1, pub.published)
	require.Len(t, client.send, 1)
	msg := <-client.send
	assert.Equal(t, "checkin", msg.Event)
	assert.JSONEq(t, `{"xp_awarded":100}`, string(msg.Data))
}

func TestServeWs_RejectsDisallowedOrigin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub(zap.NewNop(), nil, nil)
	r := gin.New()
	r.GET("/ws", ServeWs(hub, zap.NewNop(), staticAuth(models.RoleAdmin), func(r *http.Request) bool {
		return r.Header.Get("Origin") == "https://scan.techsoc.example"
	}))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?event_id=" + uuid.NewString() + "&token=good"
	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "https://scan.techsoc.example")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	_ = conn.Close()
}
