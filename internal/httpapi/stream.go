// audiopolicyd - audio stream usage policy engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/audiopolicyd/internal/admin"
	"github.com/tomtom215/audiopolicyd/internal/logging"
)

// writeWait bounds how long a single websocket frame write may block
// before the connection is considered dead.
const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The upgrader accepts any origin. The chi CORS middleware ahead of
	// this handler only sets CORS response headers; it does not reject
	// requests by origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

var streamTopics = []string{
	admin.TopicGainAdjustments,
	admin.TopicPolicyActions,
	admin.TopicRenderActivity,
	admin.TopicCaptureActivity,
	admin.TopicStreamCounts,
}

// handleStream upgrades to a websocket and relays every EventBus topic to
// the client, each message's JSON payload wrapped in a {topic, payload}
// envelope (see envelope.go), until the client
// disconnects or the server shuts down. One subscription per topic per
// connection, independent of internal/metrics and internal/audit's own
// subscriptions to the same bus.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	log := logging.WithComponent("httpapi.stream")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	channels := make([]<-chan *messageEnvelope, 0, len(streamTopics))
	for _, topic := range streamTopics {
		ch, err := s.bus.Subscribe(topic)
		if err != nil {
			log.Warn().Err(err).Str("topic", topic).Msg("subscribe failed")
			return
		}
		channels = append(channels, adaptChannel(topic, ch))
	}

	merged := mergeEnvelopes(r.Context(), channels...)
	for env := range merged {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, env.payload); err != nil {
			return
		}
	}
}
