// Package wire encodes messages for the websocket hop between the
// controller process and the fetch relay daemon. Binary frames carry a small
// magic envelope plus a msgpack body, so relay payload bytes cross the
// boundary without base64 inflation; JSON text frames remain readable for
// debugging clients.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/coder/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/copywrite-ai/nano-web-git/internal/gitmsg"
)

// Encoding indicates which wire encoding is used for websocket messages.
type Encoding uint8

const (
	EncodingJSON Encoding = iota
	EncodingMsgPack
)

func (e Encoding) String() string {
	switch e {
	case EncodingMsgPack:
		return "msgpack"
	default:
		return "json"
	}
}

const (
	magic0  = byte('N')
	magic1  = byte('G')
	version = byte(1)
)

// wireMessage is the msgpack envelope: the payload is pre-encoded so the
// decoder can pick the concrete struct from the type tag.
type wireMessage struct {
	Id   string             `msgpack:"id"`
	Type gitmsg.MessageType `msgpack:"typ"`
	Data msgpack.RawMessage `msgpack:"dat"`
}

// Marshal encodes a message for websocket transport. JSON uses text frames;
// msgpack uses binary frames prefixed [magic0][magic1][version][encoding].
func Marshal(msg *gitmsg.Message, enc Encoding) (websocket.MessageType, []byte, error) {
	if enc == EncodingJSON {
		data, err := json.Marshal(msg)
		return websocket.MessageText, data, err
	}

	var dat []byte
	if msg.Data != nil {
		var err error
		dat, err = msgpack.Marshal(msg.Data)
		if err != nil {
			return websocket.MessageBinary, nil, fmt.Errorf("wire: encode %s payload: %w", msg.Type, err)
		}
	}

	payload, err := msgpack.Marshal(&wireMessage{Id: msg.Id, Type: msg.Type, Data: dat})
	if err != nil {
		return websocket.MessageBinary, nil, err
	}

	buf := make([]byte, 4+len(payload))
	buf[0], buf[1], buf[2], buf[3] = magic0, magic1, version, byte(enc)
	copy(buf[4:], payload)
	return websocket.MessageBinary, buf, nil
}

// Unmarshal decodes a websocket frame into a typed message.
func Unmarshal(typ websocket.MessageType, data []byte) (*gitmsg.Message, Encoding, error) {
	switch typ {
	case websocket.MessageText:
		var msg gitmsg.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, EncodingJSON, err
		}
		return &msg, EncodingJSON, nil

	case websocket.MessageBinary:
		if len(data) < 4 || data[0] != magic0 || data[1] != magic1 {
			return nil, EncodingMsgPack, errors.New("wire: binary frame missing NG envelope")
		}
		if data[2] != version {
			return nil, EncodingMsgPack, fmt.Errorf("wire: unsupported envelope version: %d", data[2])
		}
		enc := Encoding(data[3])
		if enc != EncodingMsgPack {
			return nil, enc, fmt.Errorf("wire: unknown binary encoding: %d", enc)
		}

		var w wireMessage
		if err := msgpack.Unmarshal(data[4:], &w); err != nil {
			return nil, enc, err
		}

		msg := &gitmsg.Message{Id: w.Id, Type: w.Type}
		payload, err := gitmsg.PayloadFor(w.Type)
		if err != nil {
			return nil, enc, err
		}
		if payload != nil {
			if len(w.Data) == 0 {
				return nil, enc, fmt.Errorf("wire: message %s missing payload for type %s", w.Id, w.Type)
			}
			if err := msgpack.Unmarshal(w.Data, payload); err != nil {
				return nil, enc, fmt.Errorf("wire: decode %s payload: %w", w.Type, err)
			}
			msg.Data = payload
		}
		return msg, enc, nil

	default:
		return nil, EncodingJSON, fmt.Errorf("wire: unsupported websocket message type: %v", typ)
	}
}
