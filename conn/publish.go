package conn

import (
	"fmt"

	"github.com/lattice-mq/amqpcore/api"
	"github.com/lattice-mq/amqpcore/wire"
)

// BasicPublish streams one message as METHOD + HEADER + zero-or-more
// BODY frames on PublishChannel, per spec.md §4.6. Fragmentation obeys
// the negotiated FrameMax: each BODY fragment carries at most
// FrameMax - (HeaderSize + FooterSize) bytes.
func (c *Connection) BasicPublish(exchange, routingKey string, mandatory, immediate bool, props wire.Properties, body []byte) error {
	usable := int(c.frameMax) - (wire.HeaderSize + wire.FooterSize)
	if len(body) > 0 && usable <= 0 {
		return fmt.Errorf("amqpcore: negotiated frame_max=%d leaves no room for a body fragment", c.frameMax)
	}

	// Reclaim decoding-pool memory from any prior exchange, but only if
	// nothing is still parked — spec.md §3's "reset... only at points
	// where no outstanding slice references exist".
	c.decodingPool.MaybeReleaseBuffers(c.frameQueue.Empty())

	publish := wire.BasicPublish{Exchange: exchange, RoutingKey: routingKey, Mandatory: mandatory, Immediate: immediate}
	if err := c.SendMethod(PublishChannel, publish); err != nil {
		return err
	}

	header := &api.Frame{
		Type:    api.FrameHeader,
		Channel: PublishChannel,
		Header:  api.HeaderPayload{ClassID: wire.ClassBasic, BodySize: uint64(len(body)), Properties: props},
	}
	if err := c.writer.SendFrame(header); err != nil {
		return err
	}

	if len(body) == 0 {
		return nil
	}

	for offset := 0; offset < len(body); {
		end := offset + usable
		if end > len(body) {
			end = len(body)
		}
		frag := &api.Frame{Type: api.FrameBody, Channel: PublishChannel, Body: body[offset:end]}
		if err := c.writer.SendFrame(frag); err != nil {
			return err
		}
		offset = end
	}

	return nil
}
