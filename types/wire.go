package types

import "encoding/json"

// Outbound event names.
const (
	WireEventJoinRoom    = "join_room"
	WireEventLeaveRoom   = "leave_room"
	WireEventSendMessage = "send_message"
	WireEventTypingStart = "typing_start"
	WireEventTypingStop  = "typing_stop"
)

// Inbound event names.
const (
	WireEventRoomHistory       = "room_history"
	WireEventNewMessage        = "new_message"
	WireEventUserTyping        = "user_typing"
	WireEventUserStoppedTyping = "user_stopped_typing"
	WireEventError             = "error"
)

// JSON-serialized WebsocketMessage is what is actually sent via the Websocket connection
type WebsocketMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// RoomPayload is the payload of every outbound event that only names a room.
type RoomPayload struct {
	RoomId string `json:"roomId"`
}

type SendMessagePayload struct {
	RoomId  string `json:"roomId"`
	Content string `json:"content"`
}

type RoomHistoryPayload struct {
	RoomId   string        `mapstructure:"roomId"`
	Messages []ChatMessage `mapstructure:"messages"`
}

type UserTypingPayload struct {
	UserId string `mapstructure:"userId"`
	Email  string `mapstructure:"email"`
}

type ErrorPayload struct {
	Message string `mapstructure:"message"`
}

// NewWebsocketMessage wraps payload into a frame for the given event.
func NewWebsocketMessage(event string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(WebsocketMessage{Event: event, Data: data})
}
