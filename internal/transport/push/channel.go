package push

import (
	"context"
	"errors"
	"strings"
)

// ErrNotConnected is returned by Publish while the channel is down.
var ErrNotConnected = errors.New("push channel is not connected")

// Handler receives one message. It must not block.
type Handler func(topic string, payload []byte)

// Channel is a topic based pub/sub transport.
type Channel interface {
	// Publish sends payload to every subscriber of topic.
	Publish(ctx context.Context, topic string, payload []byte) error
	// Subscribe registers h for topics matching filter. The returned func removes it.
	Subscribe(ctx context.Context, filter string, h Handler) (func(), error)
	// Connected reports whether Publish is expected to succeed.
	Connected() bool
}

// Reconnector is implemented by channels that can re-establish their connection on demand.
type Reconnector interface {
	RequestReconnect()
}

// Route builds the topics one replicated record kind uses.
type Route struct {
	Prefix string
	Kind   string
}

// State is the topic records of studio are published on.
func (r Route) State(studio string) string {
	return join(r.Prefix, studio, r.Kind, "state")
}

// Request is the topic state requests for studio are published on.
func (r Route) Request(studio string) string {
	return join(r.Prefix, studio, r.Kind, "request")
}

// AlarmReportTopic is where alarm-monitor publishes the ranked alarm list.
func AlarmReportTopic(prefix string) string {
	return join(prefix, "alarms", "report")
}

// AlarmAckTopic is where consoles publish acknowledgement updates.
func AlarmAckTopic(prefix string) string {
	return join(prefix, "alarms", "ack")
}

func join(parts ...string) string {
	kept := make([]string, 0, len(parts))

	for _, p := range parts {
		if p = strings.Trim(p, "/"); p != "" {
			kept = append(kept, p)
		}
	}

	return strings.Join(kept, "/")
}

// Match reports whether topic matches an MQTT style filter with + and # wildcards.
func Match(filter, topic string) bool {
	fs := strings.Split(filter, "/")
	ts := strings.Split(topic, "/")

	for i, f := range fs {
		switch {
		case f == "#":
			return true
		case i >= len(ts):
			return false
		case f != "+" && f != ts[i]:
			return false
		}
	}

	return len(fs) == len(ts)
}

// Segment returns the n-th level of topic, or "" when it has fewer levels.
func Segment(topic string, n int) string {
	parts := strings.Split(topic, "/")
	if n < 0 || n >= len(parts) {
		return ""
	}

	return parts[n]
}
