package conn

import (
	"errors"
	"io"

	"github.com/lattice-mq/amqpcore/api"
	"github.com/lattice-mq/amqpcore/wire"
)

// RPCStatus is the result taxonomy of SimpleRPC, per spec.md §4.4.
type RPCStatus int

const (
	// RPCNormal: the matching expected reply arrived.
	RPCNormal RPCStatus = iota
	// RPCServerException: a CONNECTION.CLOSE or CHANNEL.CLOSE arrived
	// instead of the expected reply.
	RPCServerException
	// RPCLibraryException: a local or transport failure.
	RPCLibraryException
)

// RPCReply is the outcome of a SimpleRPC call.
type RPCReply struct {
	Status RPCStatus
	Reply  api.Method // set on RPCNormal and RPCServerException
	Err    error      // set on RPCLibraryException
}

// SimpleRPC sends request on channel, then reads frames until one
// matches (channel, expectedClass, expectedMethod) or is a close
// notification on that channel; every other frame is parked in the
// FrameQueue for later delivery via WaitFrame. Implements spec.md §4.4.
func (c *Connection) SimpleRPC(channel uint16, request api.Method, expectedClass, expectedMethod uint16) RPCReply {
	if err := c.SendMethod(channel, request); err != nil {
		return RPCReply{Status: RPCLibraryException, Err: err}
	}

	for {
		f, err := c.reader.WaitFrame()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return RPCReply{Status: RPCLibraryException, Err: api.ErrUnexpectedEOF}
			}
			return RPCReply{Status: RPCLibraryException, Err: err}
		}

		if f.Type == api.FrameMethod && f.Channel == channel {
			m := f.Method
			if m.ClassID() == expectedClass && m.MethodID() == expectedMethod {
				return RPCReply{Status: RPCNormal, Reply: m}
			}
			if isCloseNotification(m) {
				return RPCReply{Status: RPCServerException, Reply: m}
			}
		}

		c.enqueue(f)
	}
}

func isCloseNotification(m api.Method) bool {
	if m.ClassID() == wire.ClassConnection && m.MethodID() == wire.MethodConnectionClose {
		return true
	}
	if m.ClassID() == wire.ClassChannel && m.MethodID() == wire.MethodChannelClose {
		return true
	}
	return false
}
