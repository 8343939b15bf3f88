package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Frame is one command-phase packet: 3-byte length, 1-byte sequence,
// then a command byte and its payload (spec §6, "command-phase
// framing ... delegated to the encoder/decoder collaborator").
type Frame struct {
	Sequence byte
	Command  byte
	Payload  []byte
}

// Command-phase frame tags a client sends.
const (
	CmdQuery         byte = 0x03 // payload is UTF-8 SQL text, a simple one-shot batch
	CmdPing          byte = 0x04
	CmdQuit          byte = 0x05
	CmdPreparedQuery byte = 0x06 // payload is UTF-8 SQL text, re-executable (bind-and-execute) statements
)

// Decoder peels frames off a growing read buffer, handing the
// Processor's ReadBuffer growth (spec §4.4 "Read-side growth") a
// single place to ask "is there a complete frame yet".
type Decoder struct{}

// Next extracts the first complete frame from buf, returning the frame,
// the number of bytes consumed, and whether a full frame was present.
func (Decoder) Next(buf []byte) (*Frame, int, bool, error) {
	if len(buf) < 4 {
		return nil, 0, false, nil
	}
	length := int(readUint24(buf[:3]))
	total := 4 + length
	if len(buf) < total {
		return nil, 0, false, nil
	}
	if length < 1 {
		return nil, 0, false, fmt.Errorf("wire: empty frame body")
	}
	seq := buf[3]
	cmd := buf[4]
	payload := append([]byte(nil), buf[5:total]...)
	return &Frame{Sequence: seq, Command: cmd, Payload: payload}, total, true, nil
}

// Encoder builds result frames for streaming rows/errors back to the
// client (spec §6 "result encoding").
type Encoder struct {
	seq byte
}

func (e *Encoder) next() byte {
	s := e.seq
	e.seq++
	return s
}

// EncodeError wraps a server error message into one error-command
// frame.
func (e *Encoder) EncodeError(sqlState string, code int, message string) []byte {
	var buf bytes.Buffer
	buf.WriteByte(0xFF) // error command tag
	var c [2]byte
	binary.BigEndian.PutUint16(c[:], uint16(code))
	buf.Write(c[:])
	buf.WriteString(sqlState)
	buf.WriteString(message)
	return frameOf(e.next(), buf.Bytes())
}

// EncodeOK encodes a successful non-query statement's result.
func (e *Encoder) EncodeOK(rowsAffected, lastInsertID int64) []byte {
	var buf bytes.Buffer
	buf.WriteByte(0x00) // ok command tag
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(rowsAffected))
	buf.Write(n[:])
	binary.BigEndian.PutUint64(n[:], uint64(lastInsertID))
	buf.Write(n[:])
	return frameOf(e.next(), buf.Bytes())
}

// EncodeColumns encodes the column-definition header of a result set.
func (e *Encoder) EncodeColumns(cols []string) []byte {
	var buf bytes.Buffer
	buf.WriteByte(0x01) // column-header command tag
	buf = *bytes.NewBuffer(appendUTF8StringList(buf.Bytes(), cols))
	return frameOf(e.next(), buf.Bytes())
}

// EncodeRow encodes one result row as length-prefixed UTF-8 textual
// values; NULL is represented by a zero-length marker distinct from an
// empty string via a leading presence byte.
func (e *Encoder) EncodeRow(values []any) []byte {
	var buf bytes.Buffer
	buf.WriteByte(0x02) // row command tag
	for _, v := range values {
		if v == nil {
			buf.WriteByte(0)
			continue
		}
		buf.WriteByte(1)
		s := fmt.Sprint(v)
		buf = *bytes.NewBuffer(appendUTF8String(buf.Bytes(), s))
	}
	return frameOf(e.next(), buf.Bytes())
}

func frameOf(seq byte, body []byte) []byte {
	out := make([]byte, 4+len(body))
	putUint24(out[:3], uint32(len(body)))
	out[3] = seq
	copy(out[4:], body)
	return out
}

func appendUTF8StringList(dst []byte, ss []string) []byte {
	var n [2]byte
	binary.BigEndian.PutUint16(n[:], uint16(len(ss)))
	dst = append(dst, n[:]...)
	for _, s := range ss {
		dst = appendUTF8String(dst, s)
	}
	return dst
}
