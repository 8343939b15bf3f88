package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandshakeInit_EncodeDecodeLoginReply(t *testing.T) {
	h := &HandshakeInit{
		Sequence:        0,
		ProtocolVersion: 9,
		ServerVersion:   "sqlite-server-1.0",
		SessionID:       42,
	}
	copy(h.ChallengeSeed[:], "01234567890123456789")
	encoded := h.Encode()
	require.Equal(t, int(readUint24(encoded[:3])), len(encoded)-3)

	reply := &LoginReply{
		ProtocolVersion: 9,
		Database:        "testdb",
		OpenFlags:       1,
		User:            "bob",
	}
	copy(reply.Signature[:], "abcdefghij0123456789")

	body := append([]byte{reply.ProtocolVersion}, appendUTF8String(nil, reply.Database)...)
	var flags [4]byte
	flags[3] = 1
	body = append(body, flags[:]...)
	body = appendUTF8String(body, reply.User)
	body = append(body, reply.Signature[:]...)

	got, err := DecodeLoginReply(body)
	require.NoError(t, err)
	require.Equal(t, reply.Database, got.Database)
	require.Equal(t, reply.User, got.User)
	require.Equal(t, reply.Signature, got.Signature)
}

func TestDecoder_NextWaitsForFullFrame(t *testing.T) {
	var d Decoder
	_, _, ok, err := d.Next([]byte{0, 0})
	require.NoError(t, err)
	require.False(t, ok)

	frame := frameOf(1, []byte{0xAA, 'x', 'y'})
	f, n, ok, err := d.Next(frame)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, len(frame), n)
	require.EqualValues(t, 1, f.Sequence)
	require.EqualValues(t, 0xAA, f.Command)
	require.Equal(t, []byte("xy"), f.Payload)
}

func TestEncoder_EncodeOKAndError(t *testing.T) {
	var e Encoder
	ok := e.EncodeOK(3, 7)
	require.NotEmpty(t, ok)

	errFrame := e.EncodeError("HY000", 1205, "busy")
	require.NotEmpty(t, errFrame)
}
