package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tcriess/neowatch/credentials"
	"github.com/tcriess/neowatch/types"
)

// newChatServer is a minimal chat server: it accepts token "T1", answers join_room with an empty history and
// echoes send_message as new_message.
func newChatServer(t *testing.T) *httptest.Server {
	upgrader := websocket.Upgrader{}
	r := mux.NewRouter()
	r.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "T1" || r.Header.Get("Authorization") != "Bearer T1" {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		n := 0
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			msg := types.WebsocketMessage{}
			if json.Unmarshal(raw, &msg) != nil {
				continue
			}
			payload := types.SendMessagePayload{}
			_ = json.Unmarshal(msg.Data, &payload)
			var reply []byte
			switch msg.Event {
			case types.WireEventJoinRoom:
				reply, _ = types.NewWebsocketMessage(types.WireEventRoomHistory, map[string]interface{}{
					"roomId":   payload.RoomId,
					"messages": []interface{}{message("0", payload.RoomId, "welcome")},
				})
			case types.WireEventSendMessage:
				n++
				reply, _ = types.NewWebsocketMessage(types.WireEventNewMessage, map[string]interface{}{
					"id":        n,
					"roomId":    payload.RoomId,
					"userId":    "u1",
					"content":   payload.Content,
					"createdAt": time.Now().UnixNano() / int64(time.Millisecond),
				})
			case types.WireEventTypingStart:
				reply, _ = types.NewWebsocketMessage(types.WireEventUserTyping, map[string]interface{}{"userId": "u1"})
			default:
				continue
			}
			if conn.WriteMessage(websocket.TextMessage, reply) != nil {
				return
			}
		}
	}).Methods(http.MethodGet)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func TestWebsocketRoundTrip(t *testing.T) {
	srv := newChatServer(t)
	store := credentials.NewMemoryStore()
	store.Set(credentials.AccessTokenName, "T1", credentials.SetOptions{})
	c := NewClient(Options{URL: wsURL(srv)}, store, nil)
	defer c.Disconnect()

	c.Connect(context.Background())
	require.Eventually(t, func() bool { return c.State().Connected }, 2*time.Second, 10*time.Millisecond)

	c.JoinRoom("general")
	require.Eventually(t, func() bool { return len(c.State().Messages) == 1 }, 2*time.Second, 10*time.Millisecond)

	c.SendMessage("Bennu sample return")
	require.Eventually(t, func() bool { return len(c.State().Messages) == 2 }, 2*time.Second, 10*time.Millisecond)
	msgs := c.State().Messages
	assert.Equal(t, "welcome", msgs[0].Content)
	assert.Equal(t, "Bennu sample return", msgs[1].Content)
	assert.Equal(t, "1", msgs[1].Id)

	c.StartTyping()
	require.Eventually(t, func() bool { return len(c.State().TypingUsers) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, c.State().TypingUsers[0].Label, "(guest)")
}

func TestWebsocketRejectedToken(t *testing.T) {
	srv := newChatServer(t)
	store := credentials.NewMemoryStore()
	store.Set(credentials.AccessTokenName, "stale", credentials.SetOptions{})
	terminator := &countingTerminator{}
	c := NewClient(Options{URL: wsURL(srv), Terminator: terminator}, store, nil)
	terminator.client = c
	defer c.Disconnect()

	c.Connect(context.Background())
	require.Eventually(t, func() bool { return terminator.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return strings.Contains(c.State().Error, "status=401") }, 2*time.Second, 10*time.Millisecond)
	assert.False(t, c.State().Connected)
}
