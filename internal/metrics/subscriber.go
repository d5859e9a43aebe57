// audiopolicyd - audio stream usage policy engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package metrics

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/audiopolicyd/internal/admin"
	"github.com/tomtom215/audiopolicyd/internal/logging"
)

// Subscriber drives the package's gauges/counters off internal/admin's
// EventBus, independently of any other subscriber (internal/audit,
// internal/httpapi's websocket feed) — the teacher's NATS/Watermill
// producer-consumer decoupling applied to in-process metrics collection.
type Subscriber struct {
	bus *admin.EventBus
}

// NewSubscriber wires a Subscriber to bus. Call Serve to start consuming.
func NewSubscriber(bus *admin.EventBus) *Subscriber {
	return &Subscriber{bus: bus}
}

// String implements fmt.Stringer for suture's logging.
func (s *Subscriber) String() string { return "metrics.subscriber" }

// Serve implements suture.Service: it subscribes to every topic the
// admin engine publishes and updates the package's metrics until ctx is
// cancelled.
func (s *Subscriber) Serve(ctx context.Context) error {
	log := logging.WithComponent("metrics.subscriber")

	topics := []string{
		admin.TopicGainAdjustments,
		admin.TopicPolicyActions,
		admin.TopicRenderActivity,
		admin.TopicCaptureActivity,
		admin.TopicStreamCounts,
	}
	channels := make(map[string]<-chan *message.Message, len(topics))
	for _, topic := range topics {
		ch, err := s.bus.Subscribe(topic)
		if err != nil {
			return err
		}
		channels[topic] = ch
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-channels[admin.TopicGainAdjustments]:
			handleGainAdjustment(log, msg)
		case msg := <-channels[admin.TopicPolicyActions]:
			handlePolicyAction(log, msg)
		case msg := <-channels[admin.TopicRenderActivity]:
			handleActivity(log, msg, RenderActivityBitmap)
		case msg := <-channels[admin.TopicCaptureActivity]:
			handleActivity(log, msg, CaptureActivityBitmap)
		case msg := <-channels[admin.TopicStreamCounts]:
			handleStreamCount(log, msg)
		}
	}
}

func handleGainAdjustment(log zerolog.Logger, msg *message.Message) {
	defer msg.Ack()
	var evt admin.GainAdjustmentEvent
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		log.Warn().Err(err).Msg("decode gain adjustment event")
		return
	}
	GainAdjustmentDb.WithLabelValues(evt.Usage).Set(evt.GainDb)
}

func handlePolicyAction(log zerolog.Logger, msg *message.Message) {
	defer msg.Ack()
	var evt admin.PolicyActionEvent
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		log.Warn().Err(err).Msg("decode policy action event")
		return
	}
	PolicyActionsTotal.WithLabelValues(evt.Usage, evt.Behavior).Inc()
}

func handleActivity(log zerolog.Logger, msg *message.Message, gauge interface{ Set(float64) }) {
	defer msg.Ack()
	var evt admin.ActivityEvent
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		log.Warn().Err(err).Msg("decode activity event")
		return
	}
	gauge.Set(float64(evt.Bitmap))
}

func handleStreamCount(log zerolog.Logger, msg *message.Message) {
	defer msg.Ack()
	var evt admin.StreamCountEvent
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		log.Warn().Err(err).Msg("decode stream count event")
		return
	}
	ActiveStreamCount.WithLabelValues(evt.Usage).Set(float64(evt.Count))
}
