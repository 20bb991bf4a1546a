package notifications

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, hub *Hub, userID string) *websocket.Conn {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(userID, w, r)
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func waitForSubscriber(t *testing.T, hub *Hub, userID string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ConnectionCount(userID) > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no subscriber registered for %s", userID)
}

func TestHubBroadcastReachesSubscriber(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub, "user-1")
	waitForSubscriber(t, hub, "user-1")

	hub.Broadcast("user-1", Event{
		Event:          "notification.created",
		NotificationID: "n-1",
		Sound:          SoundUrgent,
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var received Event
	require.NoError(t, conn.ReadJSON(&received))
	require.Equal(t, "notification.created", received.Event)
	require.Equal(t, "n-1", received.NotificationID)
	require.Equal(t, SoundUrgent, received.Sound)
}

func TestHubBroadcastToUnknownUserIsNoop(t *testing.T) {
	hub := NewHub()
	// Must not panic or block with no subscribers.
	hub.Broadcast("nobody", Event{Event: "notification.created"})
	require.Zero(t, hub.ConnectionCount("nobody"))
}
