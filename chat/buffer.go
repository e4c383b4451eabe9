package chat

import (
	lru "github.com/hashicorp/golang-lru"
	"github.com/tcriess/neowatch/filter"
	"github.com/tcriess/neowatch/globals"
	"github.com/tcriess/neowatch/types"
)

// buffer holds the messages of the current room in receipt order. Ids seen since the last history snapshot are
// remembered so a replayed message is not appended twice.
type buffer struct {
	messages []types.ChatMessage
	seen     *lru.Cache
	filter   *filter.Filter
}

func newBuffer(seenSize int, f *filter.Filter) *buffer {
	seen, err := lru.New(seenSize)
	if err != nil {
		panic(err)
	}
	return &buffer{seen: seen, filter: f}
}

func (b *buffer) normalize(msg *types.ChatMessage) bool {
	if msg.Id == "" {
		if err := msg.CreateId(); err != nil {
			globals.AppLogger.Error("could not hash chat message", "error", err)
			return false
		}
	}
	return b.filter.Accept(msg)
}

// replace installs a history snapshot.
func (b *buffer) replace(msgs []types.ChatMessage) {
	b.seen.Purge()
	b.messages = make([]types.ChatMessage, 0, len(msgs))
	for i := range msgs {
		b.append(msgs[i])
	}
}

// append returns false for duplicates and filtered messages.
func (b *buffer) append(msg types.ChatMessage) bool {
	if !b.normalize(&msg) {
		return false
	}
	if b.seen.Contains(msg.Id) {
		globals.AppLogger.Debug("dropping duplicate chat message", "id", msg.Id)
		return false
	}
	b.seen.Add(msg.Id, struct{}{})
	b.messages = append(b.messages, msg)
	return true
}

func (b *buffer) clear() {
	b.messages = nil
	b.seen.Purge()
}

func (b *buffer) snapshot() []types.ChatMessage {
	res := make([]types.ChatMessage, len(b.messages))
	copy(res, b.messages)
	return res
}
