package wire

import (
	"encoding/binary"
	"fmt"
)

// Table is an AMQP 0-9-1 field table: a name->value map encoded as a
// 4-byte length-prefixed run of name+type+value triples. Grounded on
// streadway/amqp's Table/validateField, narrowed to the subset of field
// types this client's properties and client-properties blocks need:
// boolean, 32-bit signed int, long string, nested table, and void (nil).
type Table map[string]any

const (
	tableTypeBool   = 't'
	tableTypeInt32  = 'I'
	tableTypeString = 'S'
	tableTypeTable  = 'F'
	tableTypeVoid   = 'V'
)

func appendShortString(dst []byte, s string) []byte {
	dst = append(dst, byte(len(s)))
	return append(dst, s...)
}

func appendLongString(dst []byte, s string) []byte {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
	dst = append(dst, lenBuf[:]...)
	return append(dst, s...)
}

// EncodeTable appends t's wire encoding (including its own 4-byte length
// prefix) to dst and returns the result.
func EncodeTable(dst []byte, t Table) []byte {
	lenPos := len(dst)
	dst = append(dst, 0, 0, 0, 0) // placeholder length
	start := len(dst)

	for k, v := range t {
		dst = appendShortString(dst, k)
		switch val := v.(type) {
		case bool:
			dst = append(dst, tableTypeBool)
			if val {
				dst = append(dst, 1)
			} else {
				dst = append(dst, 0)
			}
		case int32:
			dst = append(dst, tableTypeInt32)
			var b [4]byte
			binary.BigEndian.PutUint32(b[:], uint32(val))
			dst = append(dst, b[:]...)
		case int:
			dst = append(dst, tableTypeInt32)
			var b [4]byte
			binary.BigEndian.PutUint32(b[:], uint32(val))
			dst = append(dst, b[:]...)
		case string:
			dst = append(dst, tableTypeString)
			dst = appendLongString(dst, val)
		case Table:
			dst = append(dst, tableTypeTable)
			dst = EncodeTable(dst, val)
		case nil:
			dst = append(dst, tableTypeVoid)
		default:
			panic(fmt.Sprintf("amqpcore/wire: unsupported table field type %T", v))
		}
	}

	binary.BigEndian.PutUint32(dst[lenPos:], uint32(len(dst)-start))
	return dst
}

// DecodeTable reads a length-prefixed table starting at buf[0] and
// returns the decoded table plus the number of bytes consumed.
func DecodeTable(buf []byte) (Table, int, error) {
	if len(buf) < 4 {
		return nil, 0, fmt.Errorf("amqpcore/wire: truncated table length")
	}
	size := int(binary.BigEndian.Uint32(buf))
	if len(buf) < 4+size {
		return nil, 0, fmt.Errorf("amqpcore/wire: truncated table body")
	}
	body := buf[4 : 4+size]
	out := make(Table)

	for len(body) > 0 {
		nameLen := int(body[0])
		body = body[1:]
		if len(body) < nameLen+1 {
			return nil, 0, fmt.Errorf("amqpcore/wire: truncated table field name")
		}
		name := string(body[:nameLen])
		body = body[nameLen:]
		tag := body[0]
		body = body[1:]

		switch tag {
		case tableTypeBool:
			if len(body) < 1 {
				return nil, 0, fmt.Errorf("amqpcore/wire: truncated bool field")
			}
			out[name] = body[0] != 0
			body = body[1:]
		case tableTypeInt32:
			if len(body) < 4 {
				return nil, 0, fmt.Errorf("amqpcore/wire: truncated int32 field")
			}
			out[name] = int32(binary.BigEndian.Uint32(body))
			body = body[4:]
		case tableTypeString:
			if len(body) < 4 {
				return nil, 0, fmt.Errorf("amqpcore/wire: truncated string length")
			}
			strLen := int(binary.BigEndian.Uint32(body))
			body = body[4:]
			if len(body) < strLen {
				return nil, 0, fmt.Errorf("amqpcore/wire: truncated string field")
			}
			out[name] = string(body[:strLen])
			body = body[strLen:]
		case tableTypeTable:
			nested, n, err := DecodeTable(body)
			if err != nil {
				return nil, 0, err
			}
			out[name] = nested
			body = body[n:]
		case tableTypeVoid:
			out[name] = nil
		default:
			return nil, 0, fmt.Errorf("amqpcore/wire: unsupported table field type %q", tag)
		}
	}

	return out, 4 + size, nil
}
