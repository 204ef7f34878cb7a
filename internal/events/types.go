package events

import "context"

// Publisher delivers a serialized envelope to a named channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// RouteChannel maps an envelope onto the pub/sub channel its consumers
// subscribe to. Message and participant activity fan out per
// conversation; everything else lands on the system channel.
func RouteChannel(env Envelope) string {
	switch env.AggregateType {
	case "message", "conversation":
		return "channel:conversation:" + env.AggregateID
	default:
		return "channel:system:outbox"
	}
}
