package wire_test

import (
	"bytes"
	"testing"

	"github.com/lattice-mq/amqpcore/api"
	"github.com/lattice-mq/amqpcore/wire"
)

func TestFrameCodecMethodRoundTrip(t *testing.T) {
	codec := &wire.FrameCodec{}
	sent := &api.Frame{
		Type:    api.FrameMethod,
		Channel: 1,
		Method:  wire.BasicPublish{Exchange: "logs", RoutingKey: "info", Mandatory: true},
	}

	var buf bytes.Buffer
	if err := codec.SendFrame(&buf, sent); err != nil {
		t.Fatalf("SendFrame: %v", err)
	}

	var got api.Frame
	n, err := codec.HandleInput(buf.Bytes(), &got)
	if err != nil {
		t.Fatalf("HandleInput: %v", err)
	}
	if n != buf.Len() {
		t.Fatalf("HandleInput consumed %d bytes, want %d", n, buf.Len())
	}
	if got.Type != api.FrameMethod || got.Channel != 1 {
		t.Fatalf("decoded frame envelope mismatch: %+v", got)
	}
	publish, ok := got.Method.(wire.BasicPublish)
	if !ok {
		t.Fatalf("decoded method = %T, want wire.BasicPublish", got.Method)
	}
	if publish.Exchange != "logs" || publish.RoutingKey != "info" || !publish.Mandatory {
		t.Fatalf("decoded method fields mismatch: %+v", publish)
	}
}

func TestFrameCodecSplitAcrossCalls(t *testing.T) {
	codec := &wire.FrameCodec{}
	var buf bytes.Buffer
	err := codec.SendFrame(&buf, &api.Frame{
		Type:    api.FrameMethod,
		Channel: 0,
		Method:  wire.ConnectionOpen{VHost: "/", Insist: true},
	})
	if err != nil {
		t.Fatalf("SendFrame: %v", err)
	}
	whole := buf.Bytes()

	var got api.Frame
	totalConsumed := 0
	for _, chunk := range splitInto(whole, 3) {
		n, err := codec.HandleInput(chunk, &got)
		if err != nil {
			t.Fatalf("HandleInput on chunk: %v", err)
		}
		totalConsumed += n
		if n != len(chunk) {
			t.Fatalf("HandleInput left %d bytes of a %d-byte chunk unconsumed mid-frame", len(chunk)-n, len(chunk))
		}
	}
	if totalConsumed != len(whole) {
		t.Fatalf("consumed %d bytes across chunks, want %d", totalConsumed, len(whole))
	}
	open, ok := got.Method.(wire.ConnectionOpen)
	if !ok {
		t.Fatalf("decoded method = %T, want wire.ConnectionOpen", got.Method)
	}
	if open.VHost != "/" || !open.Insist {
		t.Fatalf("decoded fields mismatch: %+v", open)
	}
}

func TestFrameCodecRejectsBadEndMarker(t *testing.T) {
	codec := &wire.FrameCodec{}
	var buf bytes.Buffer
	_ = codec.SendFrame(&buf, &api.Frame{Type: api.FrameHeartbeat, Channel: 0})
	corrupted := buf.Bytes()
	corrupted[len(corrupted)-1] = 0x00

	var got api.Frame
	if _, err := codec.HandleInput(corrupted, &got); err == nil {
		t.Fatalf("expected an error for a frame with a corrupted end marker")
	}
}

// splitInto breaks b into chunks of at most size bytes, in order.
func splitInto(b []byte, size int) [][]byte {
	var chunks [][]byte
	for len(b) > 0 {
		n := size
		if n > len(b) {
			n = len(b)
		}
		chunks = append(chunks, b[:n])
		b = b[n:]
	}
	return chunks
}
