// audiopolicyd - audio stream usage policy engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package audit

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/audiopolicyd/internal/admin"
	"github.com/tomtom215/audiopolicyd/internal/logging"
)

// Subscriber drains internal/admin.EventBus and records every event into
// a Store, independently of internal/metrics and internal/httpapi's
// websocket feed.
type Subscriber struct {
	bus   *admin.EventBus
	store *Store
}

// NewSubscriber wires a Subscriber to bus and store. Call Serve to start
// consuming.
func NewSubscriber(bus *admin.EventBus, store *Store) *Subscriber {
	return &Subscriber{bus: bus, store: store}
}

// String implements fmt.Stringer for suture's logging.
func (s *Subscriber) String() string { return "audit.subscriber" }

// Serve implements suture.Service.
func (s *Subscriber) Serve(ctx context.Context) error {
	log := logging.WithComponent("audit.subscriber")

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
			s.record(ctx, log, msg, KindGain, decodeGain)
		case msg := <-channels[admin.TopicPolicyActions]:
			s.record(ctx, log, msg, KindPolicyAction, decodePolicyAction)
		case msg := <-channels[admin.TopicRenderActivity]:
			s.record(ctx, log, msg, KindRenderActive, decodeActivity)
		case msg := <-channels[admin.TopicCaptureActivity]:
			s.record(ctx, log, msg, KindCaptureActive, decodeActivity)
		case msg := <-channels[admin.TopicStreamCounts]:
			s.record(ctx, log, msg, KindStreamCount, decodeStreamCount)
		}
	}
}

func (s *Subscriber) record(ctx context.Context, log zerolog.Logger, msg *message.Message, kind Kind, decode func([]byte) (Entry, error)) {
	defer msg.Ack()
	entry, err := decode(msg.Payload)
	if err != nil {
		log.Warn().Err(err).Str("kind", string(kind)).Msg("decode event for audit log")
		return
	}
	entry.Kind = kind
	entry.Timestamp = time.Now()
	if err := s.store.Record(ctx, entry); err != nil {
		log.Warn().Err(err).Str("kind", string(kind)).Msg("record audit entry")
	}
}

func decodeGain(payload []byte) (Entry, error) {
	var evt admin.GainAdjustmentEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return Entry{}, err
	}
	return Entry{Usage: evt.Usage, GainDb: evt.GainDb}, nil
}

func decodePolicyAction(payload []byte) (Entry, error) {
	var evt admin.PolicyActionEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return Entry{}, err
	}
	return Entry{Usage: evt.Usage, Behavior: evt.Behavior}, nil
}

func decodeActivity(payload []byte) (Entry, error) {
	var evt admin.ActivityEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return Entry{}, err
	}
	return Entry{Bitmap: evt.Bitmap}, nil
}

func decodeStreamCount(payload []byte) (Entry, error) {
	var evt admin.StreamCountEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return Entry{}, err
	}
	return Entry{Usage: evt.Usage, Count: evt.Count}, nil
}
