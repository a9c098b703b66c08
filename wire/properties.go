package wire

import "encoding/binary"

// Property flag bits, most-significant bit first, per AMQP 0-9-1's Basic
// class content header. Grounded on streadway/amqp's flagContentType...
// constants, trimmed to the fields Properties below carries.
const (
	flagContentType     = 0x8000
	flagContentEncoding = 0x4000
	flagHeaders         = 0x2000
	flagDeliveryMode    = 0x1000
	flagPriority        = 0x0800
	flagCorrelationID   = 0x0400
	flagReplyTo         = 0x0200
)

// Properties is the decoded Basic content-header properties block. A
// zero-valued Properties encodes with every flag bit clear, matching
// spec.md §4.6's "if the caller supplies null properties, substitute a
// zero-initialized default".
type Properties struct {
	ContentType     string
	ContentEncoding string
	Headers         Table
	DeliveryMode    uint8
	Priority        uint8
	CorrelationID   string
	ReplyTo         string
}

// EncodeProperties appends the flag word and present fields to dst.
func EncodeProperties(dst []byte, p Properties) []byte {
	var flags uint16
	if p.ContentType != "" {
		flags |= flagContentType
	}
	if p.ContentEncoding != "" {
		flags |= flagContentEncoding
	}
	if p.Headers != nil {
		flags |= flagHeaders
	}
	if p.DeliveryMode != 0 {
		flags |= flagDeliveryMode
	}
	if p.Priority != 0 {
		flags |= flagPriority
	}
	if p.CorrelationID != "" {
		flags |= flagCorrelationID
	}
	if p.ReplyTo != "" {
		flags |= flagReplyTo
	}

	var flagBuf [2]byte
	binary.BigEndian.PutUint16(flagBuf[:], flags)
	dst = append(dst, flagBuf[:]...)

	if flags&flagContentType != 0 {
		dst = appendShortString(dst, p.ContentType)
	}
	if flags&flagContentEncoding != 0 {
		dst = appendShortString(dst, p.ContentEncoding)
	}
	if flags&flagHeaders != 0 {
		dst = EncodeTable(dst, p.Headers)
	}
	if flags&flagDeliveryMode != 0 {
		dst = append(dst, p.DeliveryMode)
	}
	if flags&flagPriority != 0 {
		dst = append(dst, p.Priority)
	}
	if flags&flagCorrelationID != 0 {
		dst = appendShortString(dst, p.CorrelationID)
	}
	if flags&flagReplyTo != 0 {
		dst = appendShortString(dst, p.ReplyTo)
	}

	return dst
}

// DecodeProperties reads a flag word and the fields it marks present,
// returning the decoded Properties and bytes consumed.
func DecodeProperties(buf []byte) (Properties, int, error) {
	var p Properties
	if len(buf) < 2 {
		return p, 0, errShortProperties
	}
	flags := binary.BigEndian.Uint16(buf)
	off := 2

	readShort := func() (string, error) {
		if off >= len(buf) {
			return "", errShortProperties
		}
		n := int(buf[off])
		off++
		if off+n > len(buf) {
			return "", errShortProperties
		}
		s := string(buf[off : off+n])
		off += n
		return s, nil
	}

	var err error
	if flags&flagContentType != 0 {
		if p.ContentType, err = readShort(); err != nil {
			return p, 0, err
		}
	}
	if flags&flagContentEncoding != 0 {
		if p.ContentEncoding, err = readShort(); err != nil {
			return p, 0, err
		}
	}
	if flags&flagHeaders != 0 {
		t, n, err := DecodeTable(buf[off:])
		if err != nil {
			return p, 0, err
		}
		p.Headers = t
		off += n
	}
	if flags&flagDeliveryMode != 0 {
		if off >= len(buf) {
			return p, 0, errShortProperties
		}
		p.DeliveryMode = buf[off]
		off++
	}
	if flags&flagPriority != 0 {
		if off >= len(buf) {
			return p, 0, errShortProperties
		}
		p.Priority = buf[off]
		off++
	}
	if flags&flagCorrelationID != 0 {
		if p.CorrelationID, err = readShort(); err != nil {
			return p, 0, err
		}
	}
	if flags&flagReplyTo != 0 {
		if p.ReplyTo, err = readShort(); err != nil {
			return p, 0, err
		}
	}

	return p, off, nil
}

var errShortProperties = shortBufErr("properties")

func shortBufErr(what string) error {
	return &shortBufferError{what: what}
}

type shortBufferError struct{ what string }

func (e *shortBufferError) Error() string {
	return "amqpcore/wire: truncated " + e.what
}
