package chat

import (
	"encoding/json"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/tcriess/neowatch/globals"
	"github.com/tcriess/neowatch/types"
)

// decode maps a generic JSON value onto out, the way the wire payloads are loosely typed (numeric ids, RFC 3339
// or unix timestamps).
func decode(in interface{}, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			timeHook,
			mapstructure.StringToTimeHookFunc(time.RFC3339),
		),
	})
	if err != nil {
		return err
	}
	return decoder.Decode(in)
}

// timeHook accepts unix milliseconds for time.Time fields.
func timeHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != reflect.TypeOf(time.Time{}) {
		return data, nil
	}
	switch v := data.(type) {
	case float64:
		return time.Unix(0, int64(v)*int64(time.Millisecond)), nil
	case json.Number:
		ms, err := v.Int64()
		if err != nil {
			return data, nil
		}
		return time.Unix(0, ms*int64(time.Millisecond)), nil
	}
	return data, nil
}

var knownEvents = map[string]struct{}{
	types.WireEventRoomHistory:       {},
	types.WireEventNewMessage:        {},
	types.WireEventUserTyping:        {},
	types.WireEventUserStoppedTyping: {},
	types.WireEventError:             {},
}

// eventLabel keeps the metric label set bounded to the events the client understands.
func eventLabel(event string) string {
	if _, ok := knownEvents[event]; ok {
		return event
	}
	return "unknown"
}

// dispatch handles one inbound frame of run loop gen.
func (c *Client) dispatch(gen uint64, raw []byte) {
	message := types.WebsocketMessage{}
	err := json.Unmarshal(raw, &message)
	if err != nil {
		globals.AppLogger.Warn("could not unmarshal chat frame", "error", err)
		return
	}
	var data interface{}
	if len(message.Data) > 0 {
		err = json.Unmarshal(message.Data, &data)
		if err != nil {
			globals.AppLogger.Warn("could not unmarshal chat payload", "event", message.Event, "error", err)
			return
		}
	}

	if !c.lockGen(gen) {
		return
	}
	defer c.mu.Unlock()
	c.opts.Metrics.ChatEvent(eventLabel(message.Event))

	switch message.Event {
	case types.WireEventRoomHistory:
		history := types.RoomHistoryPayload{}
		if err := decode(data, &history); err != nil {
			globals.AppLogger.Warn("could not decode room history", "error", err)
			return
		}
		if history.RoomId != "" && history.RoomId != c.room {
			globals.AppLogger.Debug("ignoring history of another room", "room", history.RoomId)
			return
		}
		c.buffer.replace(history.Messages)

	case types.WireEventNewMessage:
		msg := types.ChatMessage{}
		if err := decode(data, &msg); err != nil {
			globals.AppLogger.Warn("could not decode chat message", "error", err)
			return
		}
		if msg.RoomId != "" && msg.RoomId != c.room {
			return
		}
		c.buffer.append(msg)

	case types.WireEventUserTyping:
		typing := types.UserTypingPayload{}
		if err := decode(data, &typing); err != nil {
			globals.AppLogger.Warn("could not decode typing event", "error", err)
			return
		}
		c.presence.add(typing.UserId, typing.Email, c.opts.Now())

	case types.WireEventUserStoppedTyping:
		typing := types.UserTypingPayload{}
		if err := decode(data, &typing); err != nil {
			globals.AppLogger.Warn("could not decode typing event", "error", err)
			return
		}
		c.presence.remove(typing.UserId)

	case types.WireEventError:
		payload := types.ErrorPayload{}
		if err := decode(data, &payload); err != nil || payload.Message == "" {
			payload.Message = "chat server error"
		}
		c.err = payload.Message
		globals.AppLogger.Warn("chat server error", "message", payload.Message)

	default:
		globals.AppLogger.Debug("ignoring chat event", "event", message.Event)
	}
}
