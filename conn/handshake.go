package conn

import (
	"fmt"

	"github.com/lattice-mq/amqpcore/api"
	"github.com/lattice-mq/amqpcore/sasl"
	"github.com/lattice-mq/amqpcore/wire"
)

// ProtocolMajor, ProtocolMinor are the AMQP 0-9-1 version octets this
// client speaks.
const (
	ProtocolMajor byte = 1
	ProtocolMinor byte = 1
)

// LoginResult is the outcome of Login: either success (channel 1 open)
// or the RPCReply that aborted it.
type LoginResult struct {
	OK    bool
	Abort RPCReply
}

// Login performs the scripted handshake of spec.md §4.5: protocol
// preamble, START/START-OK, TUNE/TUNE-OK with frame_max negotiation,
// CONNECTION.OPEN, and CHANNEL.OPEN on channel 1. It is a straight-line
// script with no branching beyond validation failures, matching the
// "linear, no branching" state machine spec.md describes; any RPC
// returning non-NORMAL aborts and is surfaced to the caller verbatim.
func (c *Connection) Login(vhost string, creds sasl.Credentials) (LoginResult, error) {
	// Step 1: protocol preamble.
	preamble := []byte{'A', 'M', 'Q', 'P', 1, 1, ProtocolMajor, ProtocolMinor}
	if _, err := c.stream.Write(preamble); err != nil {
		return LoginResult{}, &api.TransportError{Op: "write", Cause: err}
	}

	// Step 2: await CONNECTION.START.
	m, _, err := c.WaitMethod()
	if err != nil {
		return LoginResult{}, err
	}
	start, ok := m.(wire.ConnectionStart)
	if !ok {
		return LoginResult{}, fmt.Errorf("amqpcore: expected connection.start, got %T", m)
	}
	if start.VersionMajor != ProtocolMajor || start.VersionMinor != ProtocolMinor {
		return LoginResult{}, &api.ProtocolMismatchError{
			WantMajor: ProtocolMajor, WantMinor: ProtocolMinor,
			GotMajor: start.VersionMajor, GotMinor: start.VersionMinor,
		}
	}

	// Step 3: send CONNECTION.START-OK. Only PLAIN is implemented;
	// selecting anything else is a fatal assertion (spec.md §4.5 step 3,
	// §7's invariant-violation class).
	plain, ok := creds.(sasl.Plain)
	if !ok {
		panic(&api.InvariantViolation{Reason: fmt.Sprintf("unsupported SASL mechanism %q", creds.Mechanism())})
	}
	startOk := wire.ConnectionStartOk{
		ClientProperties: wire.Table{},
		Mechanism:        plain.Mechanism(),
		Response:         plain.Response(),
		Locale:           "en_US",
	}
	if err := c.SendMethod(0, startOk); err != nil {
		return LoginResult{}, err
	}

	// Step 4: release buffers.
	c.decodingPool.ReleaseBuffers()

	// Step 5: await CONNECTION.TUNE.
	m, _, err = c.WaitMethod()
	if err != nil {
		return LoginResult{}, err
	}
	tune, ok := m.(wire.ConnectionTune)
	if !ok {
		return LoginResult{}, fmt.Errorf("amqpcore: expected connection.tune, got %T", m)
	}
	c.frameMax = negotiateFrameMax(c.frameMax, tune.FrameMax)

	// Step 6: send CONNECTION.TUNE-OK.
	tuneOk := wire.ConnectionTuneOk{ChannelMax: 1, FrameMax: c.frameMax, Heartbeat: 0}
	if err := c.SendMethod(0, tuneOk); err != nil {
		return LoginResult{}, err
	}

	// Step 7: release buffers.
	c.decodingPool.ReleaseBuffers()

	// Step 8: RPC CONNECTION.OPEN.
	openReply := c.SimpleRPC(0, wire.ConnectionOpen{VHost: vhost, Capabilities: "", Insist: true},
		wire.ClassConnection, wire.MethodConnectionOpenOk)
	if openReply.Status != RPCNormal {
		return LoginResult{Abort: openReply}, nil
	}

	// Step 9: RPC CHANNEL.OPEN on channel 1.
	chanReply := c.SimpleRPC(PublishChannel, wire.ChannelOpen{OutOfBand: ""},
		wire.ClassChannel, wire.MethodChannelOpenOk)
	if chanReply.Status != RPCNormal {
		return LoginResult{Abort: chanReply}, nil
	}

	return LoginResult{OK: true}, nil
}

// negotiateFrameMax implements spec.md §3/§8's frame_max rule: the
// client's ceiling wins if the server advertises 0 (unbounded),
// otherwise the smaller of the two.
func negotiateFrameMax(client, server uint32) uint32 {
	if server == 0 {
		return client
	}
	if server < client {
		return server
	}
	return client
}
