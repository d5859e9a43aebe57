// audiopolicyd - audio stream usage policy engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package httpapi

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
)

// messageEnvelope wraps one EventBus publication with its topic, so the
// websocket client can distinguish a gain adjustment from a policy
// action without decoding the payload twice.
type messageEnvelope struct {
	topic   string
	payload []byte
}

type wireEnvelope struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

func adaptChannel(topic string, in <-chan *message.Message) <-chan *messageEnvelope {
	out := make(chan *messageEnvelope)
	go func() {
		defer close(out)
		for msg := range in {
			data, err := json.Marshal(wireEnvelope{Topic: topic, Payload: msg.Payload})
			msg.Ack()
			if err != nil {
				continue
			}
			out <- &messageEnvelope{topic: topic, payload: data}
		}
	}()
	return out
}

// mergeEnvelopes fans multiple envelope channels into one, closing the
// output when ctx is cancelled or every input channel closes.
func mergeEnvelopes(ctx context.Context, in ...<-chan *messageEnvelope) <-chan *messageEnvelope {
	out := make(chan *messageEnvelope)
	var wg sync.WaitGroup
	wg.Add(len(in))
	for _, ch := range in {
		go func(ch <-chan *messageEnvelope) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case env, ok := <-ch:
					if !ok {
						return
					}
					select {
					case out <- env:
					case <-ctx.Done():
						return
					}
				}
			}
		}(ch)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}
