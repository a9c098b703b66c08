package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/lattice-mq/amqpcore/api"
)

// Class and method ids, per the AMQP 0-9-1 class/method numbering —
// the real wire identifiers, not placeholders (grounded on
// streadway/amqp's class/method constants and the protocol's own
// class/method tables).
const (
	ClassConnection uint16 = 10
	ClassChannel    uint16 = 20
	ClassBasic      uint16 = 60

	MethodConnectionStart   uint16 = 10
	MethodConnectionStartOk uint16 = 11
	MethodConnectionTune    uint16 = 30
	MethodConnectionTuneOk  uint16 = 31
	MethodConnectionOpen    uint16 = 40
	MethodConnectionOpenOk  uint16 = 41
	MethodConnectionClose   uint16 = 50
	MethodConnectionCloseOk uint16 = 51

	MethodChannelOpen    uint16 = 10
	MethodChannelOpenOk  uint16 = 11
	MethodChannelClose   uint16 = 40
	MethodChannelCloseOk uint16 = 41

	MethodBasicPublish uint16 = 40
)

func methodKey(class, method uint16) uint32 { return uint32(class)<<16 | uint32(method) }

// ConnectionStart is the server's handshake opener.
type ConnectionStart struct {
	VersionMajor, VersionMinor byte
	ServerProperties           Table
	Mechanisms                 string
	Locales                    string
}

func (ConnectionStart) ClassID() uint16  { return ClassConnection }
func (ConnectionStart) MethodID() uint16 { return MethodConnectionStart }

// encodeArgs exists so test fixtures can script a server's handshake
// opener; a real client never sends this method.
func (m ConnectionStart) encodeArgs(dst []byte) []byte {
	dst = append(dst, m.VersionMajor, m.VersionMinor)
	dst = EncodeTable(dst, m.ServerProperties)
	dst = appendLongString(dst, m.Mechanisms)
	dst = appendLongString(dst, m.Locales)
	return dst
}

func decodeConnectionStart(buf []byte) (api.Method, error) {
	if len(buf) < 2 {
		return nil, errShort("connection.start")
	}
	m := ConnectionStart{VersionMajor: buf[0], VersionMinor: buf[1]}
	off := 2
	props, n, err := DecodeTable(buf[off:])
	if err != nil {
		return nil, err
	}
	m.ServerProperties = props
	off += n
	s, n, err := readLongString(buf[off:])
	if err != nil {
		return nil, err
	}
	m.Mechanisms = s
	off += n
	s, _, err = readLongString(buf[off:])
	if err != nil {
		return nil, err
	}
	m.Locales = s
	return m, nil
}

// ConnectionStartOk is the client's SASL response to ConnectionStart.
type ConnectionStartOk struct {
	ClientProperties Table
	Mechanism        string
	Response         []byte
	Locale           string
}

func (ConnectionStartOk) ClassID() uint16  { return ClassConnection }
func (ConnectionStartOk) MethodID() uint16 { return MethodConnectionStartOk }

func (m ConnectionStartOk) encodeArgs(dst []byte) []byte {
	dst = EncodeTable(dst, m.ClientProperties)
	dst = appendShortString(dst, m.Mechanism)
	dst = appendLongString(dst, string(m.Response))
	dst = appendShortString(dst, m.Locale)
	return dst
}

// decodeConnectionStartOk exists so a fixture or fake broker can decode
// what the client sends; a real client never receives this method.
func decodeConnectionStartOk(buf []byte) (api.Method, error) {
	props, n, err := DecodeTable(buf)
	if err != nil {
		return nil, err
	}
	off := n
	mech, n, err := readShortString(buf[off:])
	if err != nil {
		return nil, err
	}
	off += n
	resp, n, err := readLongString(buf[off:])
	if err != nil {
		return nil, err
	}
	off += n
	locale, _, err := readShortString(buf[off:])
	if err != nil {
		return nil, err
	}
	return ConnectionStartOk{ClientProperties: props, Mechanism: mech, Response: []byte(resp), Locale: locale}, nil
}

// ConnectionTune carries the server's proposed transport limits.
type ConnectionTune struct {
	ChannelMax uint16
	FrameMax   uint32
	Heartbeat  uint16
}

func (ConnectionTune) ClassID() uint16  { return ClassConnection }
func (ConnectionTune) MethodID() uint16 { return MethodConnectionTune }

// encodeArgs exists for the same test/fixture reason as
// ConnectionStart.encodeArgs.
func (m ConnectionTune) encodeArgs(dst []byte) []byte {
	var b [8]byte
	binary.BigEndian.PutUint16(b[0:2], m.ChannelMax)
	binary.BigEndian.PutUint32(b[2:6], m.FrameMax)
	binary.BigEndian.PutUint16(b[6:8], m.Heartbeat)
	return append(dst, b[:]...)
}

func decodeConnectionTune(buf []byte) (api.Method, error) {
	if len(buf) < 8 {
		return nil, errShort("connection.tune")
	}
	return ConnectionTune{
		ChannelMax: binary.BigEndian.Uint16(buf[0:2]),
		FrameMax:   binary.BigEndian.Uint32(buf[2:6]),
		Heartbeat:  binary.BigEndian.Uint16(buf[6:8]),
	}, nil
}

// ConnectionTuneOk is the client's accepted transport limits.
type ConnectionTuneOk struct {
	ChannelMax uint16
	FrameMax   uint32
	Heartbeat  uint16
}

func (ConnectionTuneOk) ClassID() uint16  { return ClassConnection }
func (ConnectionTuneOk) MethodID() uint16 { return MethodConnectionTuneOk }

func (m ConnectionTuneOk) encodeArgs(dst []byte) []byte {
	var b [8]byte
	binary.BigEndian.PutUint16(b[0:2], m.ChannelMax)
	binary.BigEndian.PutUint32(b[2:6], m.FrameMax)
	binary.BigEndian.PutUint16(b[6:8], m.Heartbeat)
	return append(dst, b[:]...)
}

// decodeConnectionTuneOk mirrors decodeConnectionTune for the same
// fixture/fake-broker reason as decodeConnectionStartOk.
func decodeConnectionTuneOk(buf []byte) (api.Method, error) {
	if len(buf) < 8 {
		return nil, errShort("connection.tune-ok")
	}
	return ConnectionTuneOk{
		ChannelMax: binary.BigEndian.Uint16(buf[0:2]),
		FrameMax:   binary.BigEndian.Uint32(buf[2:6]),
		Heartbeat:  binary.BigEndian.Uint16(buf[6:8]),
	}, nil
}

// ConnectionOpen selects a vhost.
type ConnectionOpen struct {
	VHost        string
	Capabilities string
	Insist       bool
}

func (ConnectionOpen) ClassID() uint16  { return ClassConnection }
func (ConnectionOpen) MethodID() uint16 { return MethodConnectionOpen }

func (m ConnectionOpen) encodeArgs(dst []byte) []byte {
	dst = appendShortString(dst, m.VHost)
	dst = appendShortString(dst, m.Capabilities)
	var bits byte
	if m.Insist {
		bits |= 1
	}
	return append(dst, bits)
}

// decodeConnectionOpen mirrors the other decoders, for the same
// fixture/fake-broker reason as decodeConnectionStartOk.
func decodeConnectionOpen(buf []byte) (api.Method, error) {
	vhost, n, err := readShortString(buf)
	if err != nil {
		return nil, err
	}
	off := n
	caps, n, err := readShortString(buf[off:])
	if err != nil {
		return nil, err
	}
	off += n
	if len(buf) < off+1 {
		return nil, errShort("connection.open")
	}
	return ConnectionOpen{VHost: vhost, Capabilities: caps, Insist: buf[off]&1 != 0}, nil
}

// ConnectionOpenOk acknowledges ConnectionOpen.
type ConnectionOpenOk struct {
	KnownHosts string
}

func (ConnectionOpenOk) ClassID() uint16  { return ClassConnection }
func (ConnectionOpenOk) MethodID() uint16 { return MethodConnectionOpenOk }

// encodeArgs exists for the same test/fixture reason as
// ConnectionStart.encodeArgs.
func (m ConnectionOpenOk) encodeArgs(dst []byte) []byte {
	return appendShortString(dst, m.KnownHosts)
}

func decodeConnectionOpenOk(buf []byte) (api.Method, error) {
	s, _, err := readShortString(buf)
	if err != nil {
		return nil, err
	}
	return ConnectionOpenOk{KnownHosts: s}, nil
}

// ConnectionClose is a server-initiated (or client-initiated) close
// notification, carrying the close reason.
type ConnectionClose struct {
	ReplyCode uint16
	ReplyText string
	ClassID_  uint16
	MethodID_ uint16
}

func (ConnectionClose) ClassID() uint16  { return ClassConnection }
func (ConnectionClose) MethodID() uint16 { return MethodConnectionClose }

func decodeConnectionClose(buf []byte) (api.Method, error) {
	if len(buf) < 2 {
		return nil, errShort("connection.close")
	}
	m := ConnectionClose{ReplyCode: binary.BigEndian.Uint16(buf)}
	off := 2
	s, n, err := readShortString(buf[off:])
	if err != nil {
		return nil, err
	}
	m.ReplyText = s
	off += n
	if len(buf) < off+4 {
		return nil, errShort("connection.close")
	}
	m.ClassID_ = binary.BigEndian.Uint16(buf[off:])
	m.MethodID_ = binary.BigEndian.Uint16(buf[off+2:])
	return m, nil
}

func (m ConnectionClose) encodeArgs(dst []byte) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], m.ReplyCode)
	dst = append(dst, b[:]...)
	dst = appendShortString(dst, m.ReplyText)
	binary.BigEndian.PutUint16(b[:], m.ClassID_)
	dst = append(dst, b[:]...)
	binary.BigEndian.PutUint16(b[:], m.MethodID_)
	return append(dst, b[:]...)
}

// ConnectionCloseOk acknowledges ConnectionClose.
type ConnectionCloseOk struct{}

func (ConnectionCloseOk) ClassID() uint16  { return ClassConnection }
func (ConnectionCloseOk) MethodID() uint16 { return MethodConnectionCloseOk }

func (ConnectionCloseOk) encodeArgs(dst []byte) []byte { return dst }

func decodeConnectionCloseOk([]byte) (api.Method, error) { return ConnectionCloseOk{}, nil }

// ChannelOpen opens channel 1 — the only channel this client ever uses
// (see SPEC_FULL.md §10 on the preserved channel_max=1 restriction).
type ChannelOpen struct {
	OutOfBand string
}

func (ChannelOpen) ClassID() uint16  { return ClassChannel }
func (ChannelOpen) MethodID() uint16 { return MethodChannelOpen }

func (m ChannelOpen) encodeArgs(dst []byte) []byte {
	return appendShortString(dst, m.OutOfBand)
}

// decodeChannelOpen mirrors the other decoders, for the same
// fixture/fake-broker reason as decodeConnectionStartOk.
func decodeChannelOpen(buf []byte) (api.Method, error) {
	s, _, err := readShortString(buf)
	if err != nil {
		return nil, err
	}
	return ChannelOpen{OutOfBand: s}, nil
}

// ChannelOpenOk acknowledges ChannelOpen.
type ChannelOpenOk struct {
	ChannelID []byte
}

func (ChannelOpenOk) ClassID() uint16  { return ClassChannel }
func (ChannelOpenOk) MethodID() uint16 { return MethodChannelOpenOk }

// encodeArgs exists for the same test/fixture reason as
// ConnectionStart.encodeArgs.
func (m ChannelOpenOk) encodeArgs(dst []byte) []byte {
	return appendLongString(dst, string(m.ChannelID))
}

func decodeChannelOpenOk(buf []byte) (api.Method, error) {
	s, _, err := readLongString(buf)
	if err != nil {
		return nil, err
	}
	return ChannelOpenOk{ChannelID: []byte(s)}, nil
}

// ChannelClose mirrors ConnectionClose at channel scope.
type ChannelClose struct {
	ReplyCode uint16
	ReplyText string
	ClassID_  uint16
	MethodID_ uint16
}

func (ChannelClose) ClassID() uint16  { return ClassChannel }
func (ChannelClose) MethodID() uint16 { return MethodChannelClose }

func (m ChannelClose) encodeArgs(dst []byte) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], m.ReplyCode)
	dst = append(dst, b[:]...)
	dst = appendShortString(dst, m.ReplyText)
	binary.BigEndian.PutUint16(b[:], m.ClassID_)
	dst = append(dst, b[:]...)
	binary.BigEndian.PutUint16(b[:], m.MethodID_)
	return append(dst, b[:]...)
}

func decodeChannelClose(buf []byte) (api.Method, error) {
	if len(buf) < 2 {
		return nil, errShort("channel.close")
	}
	m := ChannelClose{ReplyCode: binary.BigEndian.Uint16(buf)}
	off := 2
	s, n, err := readShortString(buf[off:])
	if err != nil {
		return nil, err
	}
	m.ReplyText = s
	off += n
	if len(buf) < off+4 {
		return nil, errShort("channel.close")
	}
	m.ClassID_ = binary.BigEndian.Uint16(buf[off:])
	m.MethodID_ = binary.BigEndian.Uint16(buf[off+2:])
	return m, nil
}

// ChannelCloseOk acknowledges ChannelClose.
type ChannelCloseOk struct{}

func (ChannelCloseOk) ClassID() uint16  { return ClassChannel }
func (ChannelCloseOk) MethodID() uint16 { return MethodChannelCloseOk }

func (ChannelCloseOk) encodeArgs(dst []byte) []byte { return dst }

func decodeChannelCloseOk([]byte) (api.Method, error) { return ChannelCloseOk{}, nil }

// BasicPublish is the asynchronous publish request; the broker never
// replies to it (spec.md §4.6).
type BasicPublish struct {
	Exchange   string
	RoutingKey string
	Mandatory  bool
	Immediate  bool
}

func (BasicPublish) ClassID() uint16  { return ClassBasic }
func (BasicPublish) MethodID() uint16 { return MethodBasicPublish }

func (m BasicPublish) encodeArgs(dst []byte) []byte {
	var reservedTicket [2]byte // deprecated "ticket" field, always 0
	dst = append(dst, reservedTicket[:]...)
	dst = appendShortString(dst, m.Exchange)
	dst = appendShortString(dst, m.RoutingKey)
	var bits byte
	if m.Mandatory {
		bits |= 1
	}
	if m.Immediate {
		bits |= 2
	}
	return append(dst, bits)
}

// decodeBasicPublish mirrors the other decoders, for the same
// fixture/fake-broker reason as decodeConnectionStartOk.
func decodeBasicPublish(buf []byte) (api.Method, error) {
	if len(buf) < 2 {
		return nil, errShort("basic.publish")
	}
	off := 2 // skip the reserved ticket field
	exchange, n, err := readShortString(buf[off:])
	if err != nil {
		return nil, err
	}
	off += n
	routingKey, n, err := readShortString(buf[off:])
	if err != nil {
		return nil, err
	}
	off += n
	if len(buf) < off+1 {
		return nil, errShort("basic.publish")
	}
	bits := buf[off]
	return BasicPublish{
		Exchange:   exchange,
		RoutingKey: routingKey,
		Mandatory:  bits&1 != 0,
		Immediate:  bits&2 != 0,
	}, nil
}

// methodEncoder is implemented by every method this client sends.
type methodEncoder interface {
	api.Method
	encodeArgs(dst []byte) []byte
}

// EncodeMethod appends class-id, method-id, and the method's arguments
// to dst.
func EncodeMethod(dst []byte, m api.Method) ([]byte, error) {
	enc, ok := m.(methodEncoder)
	if !ok {
		return nil, fmt.Errorf("amqpcore/wire: method %T has no encoder (server-only method)", m)
	}
	var hdr [4]byte
	binary.BigEndian.PutUint16(hdr[0:2], m.ClassID())
	binary.BigEndian.PutUint16(hdr[2:4], m.MethodID())
	dst = append(dst, hdr[:]...)
	return enc.encodeArgs(dst), nil
}

var methodDecoders = map[uint32]func([]byte) (api.Method, error){
	methodKey(ClassConnection, MethodConnectionStart):   decodeConnectionStart,
	methodKey(ClassConnection, MethodConnectionStartOk): decodeConnectionStartOk,
	methodKey(ClassConnection, MethodConnectionTune):    decodeConnectionTune,
	methodKey(ClassConnection, MethodConnectionTuneOk):  decodeConnectionTuneOk,
	methodKey(ClassConnection, MethodConnectionOpen):    decodeConnectionOpen,
	methodKey(ClassConnection, MethodConnectionOpenOk):  decodeConnectionOpenOk,
	methodKey(ClassConnection, MethodConnectionClose):   decodeConnectionClose,
	methodKey(ClassConnection, MethodConnectionCloseOk): decodeConnectionCloseOk,
	methodKey(ClassChannel, MethodChannelOpen):          decodeChannelOpen,
	methodKey(ClassChannel, MethodChannelOpenOk):        decodeChannelOpenOk,
	methodKey(ClassChannel, MethodChannelClose):         decodeChannelClose,
	methodKey(ClassChannel, MethodChannelCloseOk):       decodeChannelCloseOk,
	methodKey(ClassBasic, MethodBasicPublish):           decodeBasicPublish,
}

// DecodeMethod reads a class-id/method-id pair and dispatches to the
// matching decoder. Every method this client sends or receives decodes
// symmetrically, so test fixtures (such as the conn package's scenario
// tests) can replay either side of the wire through the same codec.
func DecodeMethod(buf []byte) (api.Method, int, error) {
	if len(buf) < 4 {
		return nil, 0, errShort("method header")
	}
	classID := binary.BigEndian.Uint16(buf[0:2])
	methodID := binary.BigEndian.Uint16(buf[2:4])
	dec, ok := methodDecoders[methodKey(classID, methodID)]
	if !ok {
		return nil, 0, fmt.Errorf("amqpcore/wire: no decoder for class=%d method=%d", classID, methodID)
	}
	m, err := dec(buf[4:])
	if err != nil {
		return nil, 0, err
	}
	return m, len(buf), nil
}

func readShortString(buf []byte) (string, int, error) {
	if len(buf) < 1 {
		return "", 0, errShort("short string length")
	}
	n := int(buf[0])
	if len(buf) < 1+n {
		return "", 0, errShort("short string body")
	}
	return string(buf[1 : 1+n]), 1 + n, nil
}

func readLongString(buf []byte) (string, int, error) {
	if len(buf) < 4 {
		return "", 0, errShort("long string length")
	}
	n := int(binary.BigEndian.Uint32(buf))
	if len(buf) < 4+n {
		return "", 0, errShort("long string body")
	}
	return string(buf[4 : 4+n]), 4 + n, nil
}

func errShort(what string) error {
	return fmt.Errorf("amqpcore/wire: truncated %s", what)
}
