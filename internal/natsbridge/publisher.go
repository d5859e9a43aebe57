// audiopolicyd - audio stream usage policy engine
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package natsbridge builds the optional watermill-nats publisher that
// mirrors internal/admin.EventBus's topics onto an external NATS subject
// space, grounded on the teacher's internal/eventprocessor.Publisher
// (core-NATS publish only — no JetStream stream/consumer machinery, since
// this daemon has exactly one thing to mirror: a live fan-out of the five
// admin topics, not a durable event log).
package natsbridge

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/audiopolicyd/internal/logging"
)

// Config configures the NATS mirror connection.
type Config struct {
	URL           string
	MaxReconnects int
	ReconnectWait time.Duration
}

// Publisher wraps a watermill-nats core-NATS publisher as a suture.Service
// so its connection lifetime is supervised alongside the rest of the
// daemon, matching the teacher's resilient-publisher wrapper shape (here
// narrowed: no JetStream config, no message-ID dedup, since core NATS
// pub/sub has no delivery guarantees to track).
type Publisher struct {
	cfg Config
	pub *wmnats.Publisher
}

// New connects to cfg.URL and returns a Publisher. The connection is
// started eagerly (watermill-nats's NewPublisher dials immediately), but
// because RetryOnFailedConnect is set, a server that cannot be reached at
// startup does not make New fail: the connection keeps retrying in the
// background.
func New(cfg Config) (*Publisher, error) {
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = -1
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 2 * time.Second
	}

	log := logging.WithComponent("natsbridge")
	wmLogger := watermill.NewStdLogger(false, false)

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("nats mirror disconnected")
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("nats mirror reconnected")
		}),
	}

	pub, err := wmnats.NewPublisher(wmnats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmnats.NATSMarshaler{},
		JetStream:   wmnats.JetStreamConfig{Disabled: true},
	}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("natsbridge: connect to %q: %w", cfg.URL, err)
	}

	return &Publisher{cfg: cfg, pub: pub}, nil
}

// Publisher returns the underlying message.Publisher for
// admin.EventBus.WithNATSBridge.
func (p *Publisher) Publisher() message.Publisher { return p.pub }

// String implements fmt.Stringer for suture's logging.
func (p *Publisher) String() string { return "natsbridge.publisher" }

// Serve implements suture.Service: it holds the connection open until ctx
// is cancelled, then closes it. The publish path itself runs on whatever
// goroutine calls admin.EventBus's publish methods (guarded by the
// circuit breaker EventBus.WithNATSBridge is given), not here.
func (p *Publisher) Serve(ctx context.Context) error {
	<-ctx.Done()
	if err := p.pub.Close(); err != nil {
		logging.WithComponent("natsbridge").Warn().Err(err).Msg("error closing nats mirror")
	}
	return ctx.Err()
}
