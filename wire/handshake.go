// Package wire implements the server's custom handshake/login framing
// and command-phase packet length/sequence header of spec §6. It is
// not the real frontend wire protocol, the spec defines its own
// simplified layout, but follows the same length-prefixed,
// sequence-numbered packet shape and the same hand-rolled
// read-helper style as the teacher's MySQL handshake parser.
package wire

import (
	"encoding/binary"
	"fmt"
)

const ChallengeSeedLen = 20

// HandshakeInit is the server's first packet: 3-byte packet length,
// 1-byte sequence, 1-byte protocol version, UTF-8 length-prefixed
// server version, big-endian 4-byte session id, 20-byte challenge
// seed (spec §6).
type HandshakeInit struct {
	Sequence        byte
	ProtocolVersion byte
	ServerVersion   string
	SessionID       uint32
	ChallengeSeed   [ChallengeSeedLen]byte
}

// Encode renders h as the wire bytes a client expects, including the
// leading 3-byte length prefix.
func (h *HandshakeInit) Encode() []byte {
	body := make([]byte, 0, 1+1+2+len(h.ServerVersion)+4+ChallengeSeedLen)
	body = append(body, h.Sequence, h.ProtocolVersion)
	body = appendUTF8String(body, h.ServerVersion)
	var sid [4]byte
	binary.BigEndian.PutUint32(sid[:], h.SessionID)
	body = append(body, sid[:]...)
	body = append(body, h.ChallengeSeed[:]...)

	out := make([]byte, 3+len(body))
	putUint24(out[:3], uint32(len(body)))
	copy(out[3:], body)
	return out
}

// LoginReply is what the client sends back: protocol version (1
// byte), UTF-8 database name, 4-byte open flags, UTF-8 user, 20-byte
// login signature (spec §6).
type LoginReply struct {
	ProtocolVersion byte
	Database        string
	OpenFlags       uint32
	User            string
	Signature       [ChallengeSeedLen]byte
}

// DecodeLoginReply parses the body of a login-reply packet (length
// prefix already stripped by the caller's frame reader).
func DecodeLoginReply(body []byte) (*LoginReply, error) {
	if len(body) < 1 {
		return nil, fmt.Errorf("wire: login reply too short")
	}
	r := &LoginReply{ProtocolVersion: body[0]}
	pos := 1

	db, pos, err := readUTF8String(body, pos)
	if err != nil {
		return nil, fmt.Errorf("wire: read database name: %w", err)
	}
	r.Database = db

	if len(body) < pos+4 {
		return nil, fmt.Errorf("wire: login reply truncated before open flags")
	}
	r.OpenFlags = binary.BigEndian.Uint32(body[pos : pos+4])
	pos += 4

	user, pos, err := readUTF8String(body, pos)
	if err != nil {
		return nil, fmt.Errorf("wire: read user name: %w", err)
	}
	r.User = user

	if len(body) < pos+ChallengeSeedLen {
		return nil, fmt.Errorf("wire: login reply truncated before signature")
	}
	copy(r.Signature[:], body[pos:pos+ChallengeSeedLen])
	return r, nil
}

func putUint24(dst []byte, v uint32) {
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
	dst[2] = byte(v >> 16)
}

func readUint24(src []byte) uint32 {
	return uint32(src[0]) | uint32(src[1])<<8 | uint32(src[2])<<16
}

func appendUTF8String(dst []byte, s string) []byte {
	var l [2]byte
	binary.BigEndian.PutUint16(l[:], uint16(len(s)))
	dst = append(dst, l[:]...)
	return append(dst, s...)
}

func readUTF8String(src []byte, pos int) (string, int, error) {
	if len(src) < pos+2 {
		return "", pos, fmt.Errorf("truncated string length")
	}
	n := int(binary.BigEndian.Uint16(src[pos : pos+2]))
	pos += 2
	if len(src) < pos+n {
		return "", pos, fmt.Errorf("truncated string body")
	}
	return string(src[pos : pos+n]), pos + n, nil
}
