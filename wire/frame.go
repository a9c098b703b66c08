// Package wire implements the frame envelope and method/property codec
// that satisfies api.Codec. spec.md treats this as an external
// collaborator ("the byte-level codec... is out of scope"); it is
// implemented here, in the teacher's style, so the connection core in
// package conn is runnable and testable end to end rather than only
// type-checked against an interface.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/lattice-mq/amqpcore/api"
)

// Frame envelope sizing, per spec.md §6: [1B type][2B channel][4B
// length][payload][1B end-marker].
const (
	HeaderSize = 7
	FooterSize = 1
	frameEnd   = 0xCE
)

type codecState uint8

const (
	stAwaitHeader codecState = iota
	stAwaitPayload
	stAwaitFooter
)

// FrameCodec implements api.Codec. It is reentrant over arbitrary packet
// boundaries: a single HandleInput call may see only a fragment of a
// frame, in which case it consumes what it can and remembers where it
// left off for the next call (spec.md §4.1's "codec is permitted to
// consume any prefix without producing a frame"). One FrameCodec
// instance must not be shared across concurrent readers; the core never
// does so (spec.md §5).
type FrameCodec struct {
	state codecState

	header      [HeaderSize]byte
	headerFill  int
	frameType   api.FrameType
	channel     uint16
	length      uint32
	payload     []byte
	payloadFill int
}

// HandleInput implements api.Codec.
func (c *FrameCodec) HandleInput(buf []byte, out *api.Frame) (int, error) {
	pos := 0
	for {
		switch c.state {
		case stAwaitHeader:
			n := copy(c.header[c.headerFill:], buf[pos:])
			c.headerFill += n
			pos += n
			if c.headerFill < HeaderSize {
				return pos, nil
			}
			ft := api.FrameType(c.header[0])
			if ft != api.FrameMethod && ft != api.FrameHeader && ft != api.FrameBody && ft != api.FrameHeartbeat {
				return pos, fmt.Errorf("amqpcore/wire: unknown frame type %d", c.header[0])
			}
			c.frameType = ft
			c.channel = binary.BigEndian.Uint16(c.header[1:3])
			c.length = binary.BigEndian.Uint32(c.header[3:7])
			c.payload = make([]byte, c.length)
			c.payloadFill = 0
			c.headerFill = 0
			c.state = stAwaitPayload

		case stAwaitPayload:
			if c.length > 0 {
				n := copy(c.payload[c.payloadFill:], buf[pos:])
				c.payloadFill += n
				pos += n
				if c.payloadFill < int(c.length) {
					return pos, nil
				}
			}
			c.state = stAwaitFooter

		case stAwaitFooter:
			if pos >= len(buf) {
				return pos, nil
			}
			end := buf[pos]
			pos++
			if end != frameEnd {
				c.state = stAwaitHeader
				return pos, fmt.Errorf("amqpcore/wire: malformed frame end marker 0x%02x", end)
			}
			if err := c.decodeInto(out); err != nil {
				c.state = stAwaitHeader
				return pos, err
			}
			c.state = stAwaitHeader
			return pos, nil
		}
	}
}

func (c *FrameCodec) decodeInto(out *api.Frame) error {
	out.Channel = c.channel
	out.Type = c.frameType
	switch c.frameType {
	case api.FrameMethod:
		m, _, err := DecodeMethod(c.payload)
		if err != nil {
			return err
		}
		out.Method = m
	case api.FrameHeader:
		if len(c.payload) < 12 {
			return errShort("content header")
		}
		classID := binary.BigEndian.Uint16(c.payload[0:2])
		bodySize := binary.BigEndian.Uint64(c.payload[4:12])
		props, _, err := DecodeProperties(c.payload[12:])
		if err != nil {
			return err
		}
		out.Header = api.HeaderPayload{ClassID: classID, BodySize: bodySize, Properties: props}
	case api.FrameBody:
		out.Body = c.payload
	case api.FrameHeartbeat:
		// no payload
	}
	return nil
}

// SendFrame implements api.Codec.
func (c *FrameCodec) SendFrame(w io.Writer, f *api.Frame) error {
	var payload []byte
	switch f.Type {
	case api.FrameMethod:
		var err error
		payload, err = EncodeMethod(nil, f.Method)
		if err != nil {
			return err
		}
	case api.FrameHeader:
		payload = make([]byte, 12)
		binary.BigEndian.PutUint16(payload[0:2], f.Header.ClassID)
		// bytes [2:4] are the reserved "weight" field, always 0.
		binary.BigEndian.PutUint64(payload[4:12], f.Header.BodySize)
		props, _ := f.Header.Properties.(Properties)
		payload = EncodeProperties(payload, props)
	case api.FrameBody:
		payload = f.Body
	case api.FrameHeartbeat:
		payload = nil
	default:
		return fmt.Errorf("amqpcore/wire: refusing to send frame with type %v", f.Type)
	}

	dst := make([]byte, 0, HeaderSize+len(payload)+FooterSize)
	dst = append(dst, byte(f.Type))
	var chBuf [2]byte
	binary.BigEndian.PutUint16(chBuf[:], f.Channel)
	dst = append(dst, chBuf[:]...)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	dst = append(dst, lenBuf[:]...)
	dst = append(dst, payload...)
	dst = append(dst, frameEnd)

	_, err := w.Write(dst)
	return err
}

var _ api.Codec = (*FrameCodec)(nil)
