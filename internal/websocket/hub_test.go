package websocket

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startHub(t *testing.T, cfg *HubConfig) (*Hub, *httptest.Server) {
	t.Helper()

	hub := NewHub(cfg, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(func() {
		server.Close()
		cancel()
	})
	return hub, server
}

func dial(t *testing.T, server *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, n int64) {
	t.Helper()
	require.Eventually(t, func() bool {
		return hub.GetStats().ActiveConnections == n
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHubBroadcastsEnabledEvents(t *testing.T) {
	hub, server := startHub(t, &HubConfig{BroadcastPublished: true})
	conn := dial(t, server, nil)
	waitForClients(t, hub, 1)

	hub.BroadcastEvent(Event{Type: EventTypeLeakDetection, Data: LeakDetectionEvent{Source: "validate"}})
	hub.BroadcastEvent(Event{Type: EventTypeStatusPublished, Data: StatusPublishedEvent{Timestamp: "ts", Draft: "All clear"}})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got struct {
		Type EventType            `json:"type"`
		Data StatusPublishedEvent `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&got))

	assert.Equal(t, EventTypeStatusPublished, got.Type)
	assert.Equal(t, "All clear", got.Data.Draft)
}

func TestHubSubscriptionFilters(t *testing.T) {
	hub, server := startHub(t, &HubConfig{BroadcastPublished: true, BroadcastLeaks: true})
	conn := dial(t, server, nil)
	waitForClients(t, hub, 1)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "subscribe", Events: []EventType{EventTypeLeakDetection}}))
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "ping"}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var pong Event
	require.NoError(t, conn.ReadJSON(&pong))
	require.Equal(t, EventTypePong, pong.Type)

	hub.BroadcastEvent(Event{Type: EventTypeStatusPublished, Data: StatusPublishedEvent{Draft: "skipped"}})
	hub.BroadcastEvent(Event{Type: EventTypeLeakDetection, Data: LeakDetectionEvent{Source: "draft", TotalFindings: 2}})

	var got struct {
		Type EventType          `json:"type"`
		Data LeakDetectionEvent `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, EventTypeLeakDetection, got.Type)
	assert.Equal(t, 2, got.Data.TotalFindings)
}

func TestHubRequiresCredentialsWhenConfigured(t *testing.T) {
	hub, server := startHub(t, &HubConfig{Username: "ops", Password: "s3cret"})

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	header := http.Header{}
	header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("ops:s3cret")))
	dial(t, server, header)
	waitForClients(t, hub, 1)
}

func TestHubDropsDisabledEventTypes(t *testing.T) {
	hub := NewHub(&HubConfig{}, zap.NewNop())

	hub.BroadcastEvent(Event{Type: EventTypeStatusPublished})

	assert.Len(t, hub.broadcast, 0)
}

func TestHubUnregistersClosedClients(t *testing.T) {
	hub, server := startHub(t, &HubConfig{})
	conn := dial(t, server, nil)
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)
	assert.Equal(t, int64(1), hub.GetStats().TotalConnections)
}
