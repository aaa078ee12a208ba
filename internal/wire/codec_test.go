package wire

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copywrite-ai/nano-web-git/internal/gitmsg"
)

func TestCodec_MsgPackRoundTrip(t *testing.T) {
	body := make([]byte, 100_000)
	_, err := rand.Read(body)
	require.NoError(t, err)

	msg := gitmsg.NewFetchProxy("fid-1", "https://github.com/x/y", "POST",
		map[string]string{"Accept": "application/gzip"}, body)

	typ, frame, err := Marshal(msg, EncodingMsgPack)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageBinary, typ)

	// binary frames start with the NG envelope
	assert.Equal(t, byte('N'), frame[0])
	assert.Equal(t, byte('G'), frame[1])

	decoded, enc, err := Unmarshal(typ, frame)
	require.NoError(t, err)
	assert.Equal(t, EncodingMsgPack, enc)
	assert.Equal(t, msg.Id, decoded.Id)

	proxy, ok := decoded.Data.(*gitmsg.FetchProxy)
	require.True(t, ok)
	assert.Equal(t, "fid-1", proxy.FetchID)
	assert.Equal(t, "POST", proxy.Method)
	assert.True(t, bytes.Equal(body, proxy.Body), "body bytes must survive the hop untouched")
}

func TestCodec_JSONRoundTrip(t *testing.T) {
	msg := gitmsg.NewRequest(gitmsg.MsgReadFile, &gitmsg.ReadFile{Path: "docs/readme.md"})

	typ, frame, err := Marshal(msg, EncodingJSON)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageText, typ)

	decoded, enc, err := Unmarshal(typ, frame)
	require.NoError(t, err)
	assert.Equal(t, EncodingJSON, enc)

	rf, ok := decoded.Data.(*gitmsg.ReadFile)
	require.True(t, ok)
	assert.Equal(t, "docs/readme.md", rf.Path)
}

func TestCodec_PayloadlessMessage(t *testing.T) {
	msg := gitmsg.NewReady()

	typ, frame, err := Marshal(msg, EncodingMsgPack)
	require.NoError(t, err)

	decoded, _, err := Unmarshal(typ, frame)
	require.NoError(t, err)
	assert.Equal(t, gitmsg.MsgReady, decoded.Type)
	assert.Nil(t, decoded.Data)
}

func TestCodec_RejectsBadFrames(t *testing.T) {
	_, _, err := Unmarshal(websocket.MessageBinary, []byte("XY"))
	assert.ErrorContains(t, err, "NG envelope")

	_, _, err = Unmarshal(websocket.MessageBinary, []byte{'X', 'Y', 1, 1, 0})
	assert.ErrorContains(t, err, "NG envelope")

	_, _, err = Unmarshal(websocket.MessageBinary, []byte{'N', 'G', 99, 1, 0})
	assert.ErrorContains(t, err, "unsupported envelope version")

	_, _, err = Unmarshal(websocket.MessageBinary, []byte{'N', 'G', 1, 7, 0})
	assert.ErrorContains(t, err, "unknown binary encoding")
}
