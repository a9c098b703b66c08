package conn_test

import (
	"bytes"
	"testing"

	"github.com/lattice-mq/amqpcore/api"
	"github.com/lattice-mq/amqpcore/conn"
	"github.com/lattice-mq/amqpcore/fake"
	"github.com/lattice-mq/amqpcore/sasl"
	"github.com/lattice-mq/amqpcore/wire"
)

// feed encodes each method through wire.FrameCodec and appends the
// resulting bytes to stream's inbound buffer, simulating a broker that
// sent exactly these frames back to back.
func feed(t *testing.T, stream *fake.Stream, channel uint16, typ api.FrameType, m api.Method) {
	t.Helper()
	codec := &wire.FrameCodec{}
	var buf bytes.Buffer
	if err := codec.SendFrame(&buf, &api.Frame{Type: typ, Channel: channel, Method: m}); err != nil {
		t.Fatalf("encode fixture frame: %v", err)
	}
	stream.Feed(buf.Bytes())
}

func scriptHandshake(t *testing.T, stream *fake.Stream, serverFrameMax uint32) {
	t.Helper()
	feed(t, stream, 0, api.FrameMethod, wire.ConnectionStart{
		VersionMajor: conn.ProtocolMajor,
		VersionMinor: conn.ProtocolMinor,
		Mechanisms:   "PLAIN",
		Locales:      "en_US",
	})
	feed(t, stream, 0, api.FrameMethod, wire.ConnectionTune{ChannelMax: 0, FrameMax: serverFrameMax, Heartbeat: 0})
	feed(t, stream, 0, api.FrameMethod, wire.ConnectionOpenOk{})
	feed(t, stream, conn.PublishChannel, api.FrameMethod, wire.ChannelOpenOk{})
}

// decodeSent replays everything the client wrote back through a fresh
// codec, as a way of inspecting the frames it actually sent.
func decodeSent(t *testing.T, stream *fake.Stream) []*api.Frame {
	t.Helper()
	sent := stream.SentBytes()
	if bytes.HasPrefix(sent, []byte("AMQP")) {
		sent = sent[8:] // skip the 8-byte protocol preamble, not a frame
	}
	codec := &wire.FrameCodec{}
	var frames []*api.Frame
	for off := 0; off < len(sent); {
		var f api.Frame
		n, err := codec.HandleInput(sent[off:], &f)
		if err != nil {
			t.Fatalf("decode sent bytes at %d: %v", off, err)
		}
		if n == 0 {
			t.Fatalf("decodeSent made no progress at offset %d", off)
		}
		off += n
		if f.Type != 0 || f.Method != nil || f.Body != nil {
			frames = append(frames, &api.Frame{Type: f.Type, Channel: f.Channel, Method: f.Method, Header: f.Header, Body: f.Body})
		}
	}
	return frames
}

// Scenario 1: handshake happy path.
func TestLoginHappyPath(t *testing.T) {
	stream := fake.NewStream()
	scriptHandshake(t, stream, 131072)

	c := conn.New(stream, 131072)
	result, err := c.Login("/", sasl.Plain{User: "guest", Pass: "guest"})
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if !result.OK {
		t.Fatalf("Login did not succeed: %+v", result.Abort)
	}
	if c.FrameMax() != 131072 {
		t.Fatalf("frame_max = %d, want 131072", c.FrameMax())
	}
}

// Scenario 2: frame_max clamping — server proposes a smaller ceiling.
func TestLoginFrameMaxClamped(t *testing.T) {
	stream := fake.NewStream()
	scriptHandshake(t, stream, 65536)

	c := conn.New(stream, 1048576)
	result, err := c.Login("/", sasl.Plain{User: "guest", Pass: "guest"})
	if err != nil || !result.OK {
		t.Fatalf("Login failed: err=%v result=%+v", err, result)
	}
	if c.FrameMax() != 65536 {
		t.Fatalf("frame_max = %d, want 65536 (server's smaller ceiling)", c.FrameMax())
	}

	frames := decodeSent(t, stream)
	tuneOk := findMethod(t, frames, wire.ClassConnection, wire.MethodConnectionTuneOk).(wire.ConnectionTuneOk)
	if tuneOk.FrameMax != 65536 {
		t.Fatalf("TUNE-OK carried frame_max=%d, want 65536", tuneOk.FrameMax)
	}
}

// Scenario 3: frame_max zero means unbounded — client's ceiling wins.
func TestLoginFrameMaxServerUnbounded(t *testing.T) {
	stream := fake.NewStream()
	scriptHandshake(t, stream, 0)

	c := conn.New(stream, 4096)
	result, err := c.Login("/", sasl.Plain{User: "guest", Pass: "guest"})
	if err != nil || !result.OK {
		t.Fatalf("Login failed: err=%v result=%+v", err, result)
	}
	if c.FrameMax() != 4096 {
		t.Fatalf("frame_max = %d, want 4096 (client ceiling, server unbounded)", c.FrameMax())
	}
}

// Scenario 4: a frame for a different channel/class arrives mid-RPC and
// must be parked, not mistaken for the RPC's own reply.
func TestOutOfOrderFrameParkedDuringRPC(t *testing.T) {
	stream := fake.NewStream()

	feed(t, stream, 0, api.FrameMethod, wire.ConnectionStart{
		VersionMajor: conn.ProtocolMajor, VersionMinor: conn.ProtocolMinor,
		Mechanisms: "PLAIN", Locales: "en_US",
	})
	feed(t, stream, 0, api.FrameMethod, wire.ConnectionTune{ChannelMax: 0, FrameMax: 131072, Heartbeat: 0})
	// An unrelated frame on the publish channel arrives before the
	// CONNECTION.OPEN-OK the handshake is waiting for.
	feed(t, stream, conn.PublishChannel, api.FrameMethod, wire.ChannelCloseOk{})
	feed(t, stream, 0, api.FrameMethod, wire.ConnectionOpenOk{})
	feed(t, stream, conn.PublishChannel, api.FrameMethod, wire.ChannelOpenOk{})

	c := conn.New(stream, 131072)
	result, err := c.Login("/", sasl.Plain{User: "guest", Pass: "guest"})
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if !result.OK {
		t.Fatalf("Login did not succeed: %+v", result.Abort)
	}
	if !c.FramesEnqueued() {
		t.Fatalf("expected the out-of-order ChannelCloseOk to be parked in the FrameQueue")
	}
	parked, err := c.WaitFrame()
	if err != nil {
		t.Fatalf("WaitFrame: %v", err)
	}
	if parked.Channel != conn.PublishChannel {
		t.Fatalf("parked frame on channel %d, want %d", parked.Channel, conn.PublishChannel)
	}
	if _, ok := parked.Method.(wire.ChannelCloseOk); !ok {
		t.Fatalf("parked frame method = %T, want wire.ChannelCloseOk", parked.Method)
	}
}

// Scenario 5: the server closes the channel mid-RPC instead of replying.
func TestServerCloseDuringRPC(t *testing.T) {
	stream := fake.NewStream()
	feed(t, stream, 0, api.FrameMethod, wire.ConnectionStart{
		VersionMajor: conn.ProtocolMajor, VersionMinor: conn.ProtocolMinor,
		Mechanisms: "PLAIN", Locales: "en_US",
	})
	feed(t, stream, 0, api.FrameMethod, wire.ConnectionTune{ChannelMax: 0, FrameMax: 131072, Heartbeat: 0})
	feed(t, stream, 0, api.FrameMethod, wire.ConnectionOpenOk{})
	feed(t, stream, conn.PublishChannel, api.FrameMethod, wire.ChannelClose{
		ReplyCode: 404, ReplyText: "NOT_FOUND", ClassID_: wire.ClassChannel, MethodID_: wire.MethodChannelOpen,
	})

	c := conn.New(stream, 131072)
	result, err := c.Login("/", sasl.Plain{User: "guest", Pass: "guest"})
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if result.OK {
		t.Fatalf("Login unexpectedly succeeded")
	}
	if result.Abort.Status != conn.RPCServerException {
		t.Fatalf("abort status = %v, want RPCServerException", result.Abort.Status)
	}
	closeMsg, ok := result.Abort.Reply.(wire.ChannelClose)
	if !ok {
		t.Fatalf("abort reply = %T, want wire.ChannelClose", result.Abort.Reply)
	}
	if closeMsg.ReplyCode != 404 || closeMsg.ReplyText != "NOT_FOUND" {
		t.Fatalf("unexpected close reason: %+v", closeMsg)
	}
}

// Scenario 6: publish fragmentation obeys the negotiated frame_max.
func TestBasicPublishFragmentation(t *testing.T) {
	stream := fake.NewStream()
	scriptHandshake(t, stream, 100)

	c := conn.New(stream, 100)
	result, err := c.Login("/", sasl.Plain{User: "guest", Pass: "guest"})
	if err != nil || !result.OK {
		t.Fatalf("Login failed: err=%v result=%+v", err, result)
	}
	stream.Sent.Reset()

	body := bytes.Repeat([]byte("a"), 250)
	if err := c.BasicPublish("", "jobs", false, false, wire.Properties{}, body); err != nil {
		t.Fatalf("BasicPublish: %v", err)
	}

	frames := decodeSent(t, stream)
	var bodyFrames []*api.Frame
	for _, f := range frames {
		if f.Type == api.FrameBody {
			bodyFrames = append(bodyFrames, f)
		}
	}
	wantSizes := []int{92, 92, 66}
	if len(bodyFrames) != len(wantSizes) {
		t.Fatalf("got %d body fragments, want %d", len(bodyFrames), len(wantSizes))
	}
	var reassembled []byte
	for i, f := range bodyFrames {
		if len(f.Body) != wantSizes[i] {
			t.Fatalf("fragment %d has %d bytes, want %d", i, len(f.Body), wantSizes[i])
		}
		reassembled = append(reassembled, f.Body...)
	}
	if !bytes.Equal(reassembled, body) {
		t.Fatalf("reassembled body does not match original")
	}
}

// A frame_max too small to fit even one body byte alongside the
// envelope must be rejected outright, not silently exceeded.
func TestBasicPublishRejectsUnusableFrameMax(t *testing.T) {
	stream := fake.NewStream()
	scriptHandshake(t, stream, 4)

	c := conn.New(stream, 4)
	result, err := c.Login("/", sasl.Plain{User: "guest", Pass: "guest"})
	if err != nil || !result.OK {
		t.Fatalf("Login failed: err=%v result=%+v", err, result)
	}
	stream.Sent.Reset()

	if err := c.BasicPublish("", "jobs", false, false, wire.Properties{}, []byte("hello")); err == nil {
		t.Fatalf("expected BasicPublish to reject a frame_max too small to carry any body byte")
	}
	if len(stream.SentBytes()) != 0 {
		t.Fatalf("BasicPublish wrote %d bytes before rejecting the publish, want none", len(stream.SentBytes()))
	}
}

// An empty body must still succeed even when frame_max leaves no room
// for a body fragment, since no BODY frame is ever sent.
func TestBasicPublishEmptyBodyIgnoresUnusableFrameMax(t *testing.T) {
	stream := fake.NewStream()
	scriptHandshake(t, stream, 4)

	c := conn.New(stream, 4)
	result, err := c.Login("/", sasl.Plain{User: "guest", Pass: "guest"})
	if err != nil || !result.OK {
		t.Fatalf("Login failed: err=%v result=%+v", err, result)
	}
	stream.Sent.Reset()

	if err := c.BasicPublish("", "jobs", false, false, wire.Properties{}, nil); err != nil {
		t.Fatalf("BasicPublish with an empty body: %v", err)
	}
}

func findMethod(t *testing.T, frames []*api.Frame, classID, methodID uint16) api.Method {
	t.Helper()
	for _, f := range frames {
		if f.Type == api.FrameMethod && f.Method != nil && f.Method.ClassID() == classID && f.Method.MethodID() == methodID {
			return f.Method
		}
	}
	t.Fatalf("no sent frame matches class=%d method=%d", classID, methodID)
	return nil
}
