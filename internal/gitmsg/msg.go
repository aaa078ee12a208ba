package gitmsg

import (
	"encoding/json"
	"fmt"

	"github.com/copywrite-ai/nano-web-git/internal/utils"
)

const IdSize = 4

// Message is the unit of exchange between the controller, the worker and the
// relay hops. Data holds the typed payload for Type; kinds without a payload
// carry nil.
type Message struct {
	Id   string      `json:"id"`
	Type MessageType `json:"typ"`
	Data any         `json:"dat,omitempty"`
}

// UnmarshalJSON decodes Data into the concrete payload struct for the
// message type, so receivers never see an untyped map.
func (m *Message) UnmarshalJSON(data []byte) error {
	type tempMessage struct {
		Id   string          `json:"id"`
		Type MessageType     `json:"typ"`
		Data json.RawMessage `json:"dat"`
	}

	var temp tempMessage
	if err := json.Unmarshal(data, &temp); err != nil {
		return err
	}

	m.Id = temp.Id
	m.Type = temp.Type

	payload, err := PayloadFor(temp.Type)
	if err != nil {
		return err
	}
	if payload == nil {
		m.Data = nil
		return nil
	}

	if len(temp.Data) == 0 || string(temp.Data) == "null" {
		return fmt.Errorf("message %s missing payload for type %s", temp.Id, temp.Type)
	}

	if err := json.Unmarshal(temp.Data, payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", temp.Type, err)
	}
	m.Data = payload
	return nil
}

// PayloadFor returns a zero payload pointer for the given type, or nil for
// payload-less kinds. Unknown types are an error so a stray message never
// sneaks through as an empty value.
func PayloadFor(t MessageType) (any, error) {
	switch t {
	case MsgInit, MsgFileTree, MsgWipe, MsgReady:
		return nil, nil
	case MsgClone:
		return &Clone{}, nil
	case MsgPull:
		return &Pull{}, nil
	case MsgReadFile:
		return &ReadFile{}, nil
	case MsgSetLocalRoot:
		return &SetLocalRoot{}, nil
	case MsgSyncLocal:
		return &SyncLocal{}, nil
	case MsgProgress:
		return &Progress{}, nil
	case MsgSuccess:
		return &Success{}, nil
	case MsgError:
		return &Error{}, nil
	case MsgFetchProxy:
		return &FetchProxy{}, nil
	case MsgFetchResult:
		return &FetchResult{}, nil
	default:
		return nil, fmt.Errorf("unknown message type: %d", t)
	}
}

func generateID() string {
	return utils.TokenHex(IdSize)
}

// NewID mints a request id. Ids are unique among in-flight requests; reuse
// after retirement is harmless.
func NewID() string {
	return generateID()
}
