// audiopolicyd - audio stream usage policy engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package admin

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/audiopolicyd/internal/usage"
)

// Topic names for the engine's one-way collaborator fan-out. Every topic
// carries JSON-encoded events so internal/httpapi's websocket feed and
// internal/audit's Badger sink can subscribe without linking against this
// package's Go types.
const (
	TopicGainAdjustments = "gain-adjustments"
	TopicPolicyActions   = "policy-actions"
	TopicRenderActivity  = "render-activity"
	TopicCaptureActivity = "capture-activity"
	TopicStreamCounts    = "stream-counts"
)

// GainAdjustmentEvent is published on TopicGainAdjustments.
type GainAdjustmentEvent struct {
	Usage  string  `json:"usage"`
	GainDb float64 `json:"gain_db"`
}

// PolicyActionEvent is published on TopicPolicyActions.
type PolicyActionEvent struct {
	Usage    string `json:"usage"`
	Behavior string `json:"behavior"`
}

// ActivityEvent is published on TopicRenderActivity/TopicCaptureActivity.
type ActivityEvent struct {
	Bitmap uint64 `json:"bitmap"`
}

// StreamCountEvent is published on TopicStreamCounts.
type StreamCountEvent struct {
	Usage string `json:"usage"`
	Count int    `json:"count"`
}

// EventBus fans every collaborator publication out onto an in-process
// watermill gochannel Pub/Sub, and optionally mirrors the same topics onto
// a NATS subject space for out-of-process observers (a second UI shell, a
// separate audit process). The engine never blocks on a subscriber: the
// gochannel publisher is itself non-blocking per-subscriber-buffer, and
// the NATS bridge publish is wrapped in a circuit breaker so a wedged
// broker degrades to "NATS mirroring paused" rather than stalling the
// dispatcher goroutine.
type EventBus struct {
	local  *gochannel.GoChannel
	logger watermill.LoggerAdapter

	natsPublisher message.Publisher // nil if no NATS bridge configured
	breaker       *gobreaker.CircuitBreaker[interface{}]
}

// NewEventBus creates an EventBus with only the in-process gochannel
// transport active.
func NewEventBus() *EventBus {
	logger := watermill.NewStdLogger(false, false)
	return &EventBus{
		local:  gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, logger),
		logger: logger,
	}
}

// WithNATSBridge attaches a NATS-backed message.Publisher that mirrors
// every local publish, guarded by cb so a broken broker cannot stall
// EventBus.publish* calls (which run on the dispatcher goroutine).
func (b *EventBus) WithNATSBridge(pub message.Publisher, cb *gobreaker.CircuitBreaker[interface{}]) *EventBus {
	b.natsPublisher = pub
	b.breaker = cb
	return b
}

// Subscribe returns the channel of messages published to topic. Intended
// for internal/httpapi's websocket feed and internal/audit's sink; each
// caller gets its own independent channel (gochannel fans out to every
// subscriber).
func (b *EventBus) Subscribe(topic string) (<-chan *message.Message, error) {
	return b.local.Subscribe(context.Background(), topic)
}

func (b *EventBus) publish(topic string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		// Encoding a value this package itself constructed should never
		// fail; if it does there is nothing a caller could do about it
		// either, so the event is dropped without being logged or
		// surfaced (EventBus.publish has no error return by design — it
		// mirrors the engine's one-way collaborator calls).
		return
	}

	msg := message.NewMessage(uuid.NewString(), data)
	_ = b.local.Publish(topic, msg)

	if b.natsPublisher == nil {
		return
	}
	natsMsg := message.NewMessage(uuid.NewString(), data)
	publishToNATS := func() (interface{}, error) {
		return nil, b.natsPublisher.Publish(topic, natsMsg)
	}
	if b.breaker != nil {
		_, _ = b.breaker.Execute(publishToNATS)
	} else {
		_, _ = publishToNATS()
	}
}

func (b *EventBus) publishGainAdjustment(u usage.StreamUsage, gainDb float64) {
	b.publish(TopicGainAdjustments, GainAdjustmentEvent{Usage: u.String(), GainDb: gainDb})
}

func (b *EventBus) publishPolicyAction(u usage.StreamUsage, behavior usage.Behavior) {
	b.publish(TopicPolicyActions, PolicyActionEvent{Usage: u.String(), Behavior: behavior.String()})
}

func (b *EventBus) publishRenderActivity(bitmap usage.ActivityBitmap) {
	b.publish(TopicRenderActivity, ActivityEvent{Bitmap: uint64(bitmap)})
}

func (b *EventBus) publishCaptureActivity(bitmap usage.ActivityBitmap) {
	b.publish(TopicCaptureActivity, ActivityEvent{Bitmap: uint64(bitmap)})
}

func (b *EventBus) publishStreamCount(u usage.StreamUsage, count int) {
	b.publish(TopicStreamCounts, StreamCountEvent{Usage: u.String(), Count: count})
}

// NewCircuitBreaker builds the breaker EventBus.WithNATSBridge expects,
// tripping after consecutiveFailures and mirroring the teacher's
// eventprocessor.NewCircuitBreaker defaults (name + generic interface{}
// result type, since a publish has no meaningful return value).
func NewCircuitBreaker(name string, consecutiveFailures uint32, openTimeout time.Duration) *gobreaker.CircuitBreaker[interface{}] {
	settings := gobreaker.Settings{
		Name:    name,
		Timeout: openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= consecutiveFailures
		},
	}
	return gobreaker.NewCircuitBreaker[interface{}](settings)
}
