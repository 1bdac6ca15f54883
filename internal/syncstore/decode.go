package syncstore

import (
	"encoding/json"
	"fmt"

	"github.com/shrimpcod/RealTimeChat/internal/models"
)

// DecodeServerEvent turns a realtime event as received on the wire into the
// Event that Reduce understands.
func DecodeServerEvent(name string, raw []byte) (Event, error) {
	switch name {
	case models.EventNewMessage:
		var m models.Message
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, decodeErr(name, err)
		}
		return MessageReceived{Message: m}, nil

	case models.EventMessageEdited:
		var m models.Message
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, decodeErr(name, err)
		}
		return MessageEdited{Message: m}, nil

	case models.EventDeleteMessage:
		var p models.DeleteMessagePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, decodeErr(name, err)
		}
		return MessageDeleted{ChatID: p.ChatID, MessageID: p.MessageID}, nil

	case models.EventChatUpdate:
		var c models.ChatSummary
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, decodeErr(name, err)
		}
		return ChatUpdated{Chat: c}, nil

	case models.EventCreateChat:
		var c models.ChatSummary
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, decodeErr(name, err)
		}
		return ChatCreated{Chat: c}, nil

	case models.EventDeleteChat:
		var p models.DeleteChatPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, decodeErr(name, err)
		}
		return ChatDeleted{ChatID: p.ChatID}, nil

	case models.EventUserStatusChanged:
		var p models.UserStatusPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, decodeErr(name, err)
		}
		return UserStatusChanged{UserID: p.UserID, IsOnline: p.IsOnline, LastSeen: p.LastSeen}, nil
	}
	return nil, fmt.Errorf("unknown event %q", name)
}

func decodeErr(name string, err error) error {
	return fmt.Errorf("decode %s: %w", name, err)
}
