package types

import (
	"strconv"
	"time"

	"github.com/mitchellh/hashstructure/v2"
)

// ChatMessage is a message as delivered by the chat server.
type ChatMessage struct {
	Id        string      `json:"id" mapstructure:"id" hash:"ignore"`
	RoomId    string      `json:"roomId" mapstructure:"roomId"`
	UserId    string      `json:"userId" mapstructure:"userId"`
	Content   string      `json:"content" mapstructure:"content"`
	CreatedAt time.Time   `json:"createdAt" mapstructure:"createdAt"`
	User      UserSummary `json:"user" mapstructure:"user"`
}

// CreateId sets Id to a hash over the message contents. It is only used for messages that arrive without an id.
func (m *ChatMessage) CreateId() error {
	hash, err := hashstructure.Hash(m, hashstructure.FormatV2, nil)
	if err != nil {
		return err
	}
	m.Id = "h" + strconv.FormatUint(hash, 36)
	return nil
}

// TypingUser is one entry of a room's typing presence.
type TypingUser struct {
	UserId string `json:"userId"`
	Label  string `json:"label"`
}
